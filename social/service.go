package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/soundmates/server/cache"
	"github.com/soundmates/server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// acceptRetries bounds how often a lost thread-id allocation race is retried
// before ErrAllocationConflict is surfaced to the caller.
const acceptRetries = 3

// Event is a notification published on the receiving user's channel.
type Event struct {
	Type     string `json:"type"` // friend.request | friend.accept | message.new
	From     string `json:"from"`
	ThreadID int64  `json:"thread_id,omitempty"`
}

// Service owns the relationship lifecycle: friend requests, the transactional
// accept that provisions the friend edge together with its direct-message
// thread, unfriending, the block overlay, and candidate discovery.
type Service struct {
	db     *gorm.DB
	pubsub cache.PubSub
	logger *zap.Logger
}

// NewService creates a new social Service.
func NewService(db *gorm.DB, ps cache.PubSub, logger *zap.Logger) *Service {
	return &Service{db: db, pubsub: ps, logger: logger}
}

// SendRequest records a directed friend request from sender to receiver.
// The reciprocal direction may already be pending; only the exact ordered
// duplicate is rejected.
func (s *Service) SendRequest(ctx context.Context, sender, receiver string) error {
	if sender == "" || receiver == "" || sender == receiver {
		return ErrInvalidRequest
	}
	low, high := Canonical(sender, receiver)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var edges int64
		if err := tx.Model(&model.FriendEdge{}).
			Where("user_low = ? AND user_high = ?", low, high).
			Count(&edges).Error; err != nil {
			return err
		}
		if edges > 0 {
			return ErrAlreadyFriends
		}
		if err := tx.Create(&model.FriendRequest{Sender: sender, Receiver: receiver}).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateRequest
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notify(ctx, receiver, Event{Type: "friend.request", From: sender})
	return nil
}

// WithdrawRequest deletes the sender's directed request. Deleting a request
// that no longer exists is success, not an error.
func (s *Service) WithdrawRequest(ctx context.Context, sender, receiver string) error {
	return s.db.WithContext(ctx).
		Where("sender = ? AND receiver = ?", sender, receiver).
		Delete(&model.FriendRequest{}).Error
}

// DeclineRequest removes sender's request from receiver's inbox. Idempotent.
func (s *Service) DeclineRequest(ctx context.Context, receiver, sender string) error {
	return s.db.WithContext(ctx).
		Where("sender = ? AND receiver = ?", sender, receiver).
		Delete(&model.FriendRequest{}).Error
}

// ListIncoming returns pending requests addressed to the user.
func (s *Service) ListIncoming(ctx context.Context, receiver string) ([]model.FriendRequest, error) {
	var reqs []model.FriendRequest
	err := s.db.WithContext(ctx).
		Where("receiver = ?", receiver).
		Order("created_at").
		Find(&reqs).Error
	return reqs, err
}

// ListOutgoing returns pending requests the user has sent.
func (s *Service) ListOutgoing(ctx context.Context, sender string) ([]model.FriendRequest, error) {
	var reqs []model.FriendRequest
	err := s.db.WithContext(ctx).
		Where("sender = ?", sender).
		Order("created_at").
		Find(&reqs).Error
	return reqs, err
}

// AcceptRequest consumes sender's pending request to receiver and provisions
// the friendship: the canonical friend edge, a freshly allocated thread, and
// the direct-thread mapping commit in one transaction or not at all.
// Returns the provisioned thread ID.
func (s *Service) AcceptRequest(ctx context.Context, receiver, sender string) (int64, error) {
	if receiver == "" || sender == "" || receiver == sender {
		return 0, ErrInvalidRequest
	}

	var threadID int64
	var err error
	for attempt := 0; attempt < acceptRetries; attempt++ {
		threadID, err = s.acceptOnce(ctx, receiver, sender)
		if !errors.Is(err, ErrAllocationConflict) {
			break
		}
		s.logger.Warn("thread id allocation raced, retrying",
			zap.String("receiver", receiver),
			zap.String("sender", sender),
			zap.Int("attempt", attempt+1))
	}
	if err != nil {
		return 0, err
	}

	s.notify(ctx, sender, Event{Type: "friend.accept", From: receiver, ThreadID: threadID})
	s.logger.Info("friend request accepted",
		zap.String("receiver", receiver),
		zap.String("sender", sender),
		zap.Int64("thread_id", threadID))
	return threadID, nil
}

func (s *Service) acceptOnce(ctx context.Context, receiver, sender string) (int64, error) {
	low, high := Canonical(receiver, sender)
	var threadID int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The edge's composite primary key is the serialization point: of two
		// racing accepts, exactly one insert succeeds.
		if err := tx.Create(&model.FriendEdge{UserLow: low, UserHigh: high}).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyFriends
			}
			return err
		}

		// An accept must consume a real pending request. Zero rows deleted
		// means a racing withdraw/decline/accept got there first; roll back
		// the edge.
		res := tx.Where("sender = ? AND receiver = ?", sender, receiver).
			Delete(&model.FriendRequest{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRequestNotFound
		}

		// Unfriending keeps the pair's thread, so a re-accept finds the old
		// mapping and reuses it instead of allocating a second thread.
		var existing model.DirectThread
		err := tx.Where("user_low = ? AND user_high = ?", low, high).
			First(&existing).Error
		if err == nil {
			threadID = existing.ThreadID
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		// Thread id allocation happens inside the same transaction as the
		// inserts that consume it.
		var maxID int64
		if err := tx.Model(&model.Thread{}).
			Select("COALESCE(MAX(thread_id), 0)").
			Scan(&maxID).Error; err != nil {
			return err
		}
		threadID = maxID + 1

		thread := &model.Thread{
			ThreadID: threadID,
			Name:     fmt.Sprintf("Direct message between %s and %s", low, high),
		}
		if err := tx.Create(thread).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrAllocationConflict
			}
			return err
		}

		return tx.Create(&model.DirectThread{UserLow: low, UserHigh: high, ThreadID: threadID}).Error
	})
	if err != nil {
		return 0, err
	}
	return threadID, nil
}

// Unfriend deletes the friend edge at the canonical key. The thread, its
// mapping, and all messages are kept; history survives unfriending.
// Idempotent.
func (s *Service) Unfriend(ctx context.Context, userA, userB string) error {
	low, high := Canonical(userA, userB)
	return s.db.WithContext(ctx).
		Where("user_low = ? AND user_high = ?", low, high).
		Delete(&model.FriendEdge{}).Error
}

// ListFriends returns the IDs of everyone the user shares a friend edge with.
func (s *Service) ListFriends(ctx context.Context, userID string) ([]string, error) {
	var edges []model.FriendEdge
	err := s.db.WithContext(ctx).
		Where("user_low = ? OR user_high = ?", userID, userID).
		Find(&edges).Error
	if err != nil {
		return nil, err
	}
	friends := make([]string, 0, len(edges))
	for _, e := range edges {
		if e.UserLow == userID {
			friends = append(friends, e.UserHigh)
		} else {
			friends = append(friends, e.UserLow)
		}
	}
	return friends, nil
}

// AreFriends reports whether a friend edge exists for the pair.
func (s *Service) AreFriends(ctx context.Context, userA, userB string) (bool, error) {
	low, high := Canonical(userA, userB)
	var n int64
	err := s.db.WithContext(ctx).Model(&model.FriendEdge{}).
		Where("user_low = ? AND user_high = ?", low, high).
		Count(&n).Error
	return n > 0, err
}

// Block records a directed block. Blocking an already-blocked user is a
// no-op; an existing friend edge is deliberately left intact.
func (s *Service) Block(ctx context.Context, blocker, blocked string) error {
	if blocker == "" || blocked == "" || blocker == blocked {
		return ErrInvalidRequest
	}
	err := s.db.WithContext(ctx).Create(&model.Block{Blocker: blocker, Blocked: blocked}).Error
	if isUniqueViolation(err) {
		return nil
	}
	return err
}

// Unblock removes a directed block. Idempotent.
func (s *Service) Unblock(ctx context.Context, blocker, blocked string) error {
	return s.db.WithContext(ctx).
		Where("blocker = ? AND blocked = ?", blocker, blocked).
		Delete(&model.Block{}).Error
}

// BlockedEither reports whether a block exists in either direction between
// the two users. Consumers (messaging, discovery) suppress visibility and
// delivery on it; the record itself stays independent of friendship state.
func (s *Service) BlockedEither(ctx context.Context, userA, userB string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.Block{}).
		Where("(blocker = ? AND blocked = ?) OR (blocker = ? AND blocked = ?)",
			userA, userB, userB, userA).
		Count(&n).Error
	return n > 0, err
}

// Discover samples up to limit users who are strangers to userID: not the
// user, not a friend, no pending request in either direction, no block in
// either direction. Order is random by design.
func (s *Service) Discover(ctx context.Context, userID string, limit int) ([]model.User, error) {
	if userID == "" {
		return nil, ErrInvalidRequest
	}
	if limit <= 0 {
		return nil, nil
	}

	random := "RANDOM()"
	if s.db.Dialector.Name() == "mysql" {
		random = "RAND()"
	}

	var users []model.User
	err := s.db.WithContext(ctx).Raw(`
		SELECT users.* FROM users
		WHERE users.id <> ?
		AND NOT EXISTS (
			SELECT 1 FROM friend_edges fe
			WHERE (fe.user_low = users.id AND fe.user_high = ?)
			   OR (fe.user_low = ? AND fe.user_high = users.id))
		AND NOT EXISTS (
			SELECT 1 FROM friend_requests fr
			WHERE (fr.sender = users.id AND fr.receiver = ?)
			   OR (fr.sender = ? AND fr.receiver = users.id))
		AND NOT EXISTS (
			SELECT 1 FROM blocks b
			WHERE (b.blocker = users.id AND b.blocked = ?)
			   OR (b.blocker = ? AND b.blocked = users.id))
		ORDER BY `+random+` LIMIT ?`,
		userID, userID, userID, userID, userID, userID, userID, limit).
		Scan(&users).Error
	return users, err
}

func (s *Service) notify(ctx context.Context, userID string, ev Event) {
	if s.pubsub == nil {
		return
	}
	payload, _ := json.Marshal(ev)
	if err := s.pubsub.Publish(ctx, UserChannel(userID), string(payload)); err != nil {
		s.logger.Warn("notify publish failed",
			zap.String("user", userID),
			zap.String("type", ev.Type),
			zap.Error(err))
	}
}
