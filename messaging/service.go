package messaging

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/soundmates/server/cache"
	"github.com/soundmates/server/model"
	"github.com/soundmates/server/social"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrThreadNotFound is returned when no direct thread exists for a pair
	// or a thread id does not resolve.
	ErrThreadNotFound = errors.New("thread not found")

	// ErrInvalidMessage is returned for empty content or author.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrNotParticipant is returned when a user acts on a direct thread they
	// are not part of.
	ErrNotParticipant = errors.New("not a thread participant")
)

// Service reads and appends direct-message history. Threads themselves are
// provisioned by the social accept flow; messaging only resolves and fills
// them.
type Service struct {
	db     *gorm.DB
	pubsub cache.PubSub
	logger *zap.Logger
}

// NewService creates a new messaging Service.
func NewService(db *gorm.DB, ps cache.PubSub, logger *zap.Logger) *Service {
	return &Service{db: db, pubsub: ps, logger: logger}
}

// DirectThreadID resolves the thread shared by the two users. The lookup is
// symmetric in its arguments.
func (s *Service) DirectThreadID(ctx context.Context, userA, userB string) (int64, error) {
	low, high := social.Canonical(userA, userB)
	var mapping model.DirectThread
	err := s.db.WithContext(ctx).
		Where("user_low = ? AND user_high = ?", low, high).
		First(&mapping).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrThreadNotFound
	}
	if err != nil {
		return 0, err
	}
	return mapping.ThreadID, nil
}

// Participants returns the two users mapped to a direct thread.
func (s *Service) Participants(ctx context.Context, threadID int64) (string, string, error) {
	var mapping model.DirectThread
	err := s.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		First(&mapping).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", "", ErrThreadNotFound
	}
	if err != nil {
		return "", "", err
	}
	return mapping.UserLow, mapping.UserHigh, nil
}

// Append stores a message in the thread and notifies the author's peer.
// The author must be one of the thread's participants.
func (s *Service) Append(ctx context.Context, threadID int64, authorID, content string) (*model.Message, error) {
	if authorID == "" || content == "" {
		return nil, ErrInvalidMessage
	}
	low, high, err := s.Participants(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if authorID != low && authorID != high {
		return nil, ErrNotParticipant
	}

	msg := &model.Message{
		ThreadID: threadID,
		AuthorID: authorID,
		Content:  content,
	}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, err
	}

	peer := low
	if authorID == low {
		peer = high
	}
	s.notify(ctx, peer, social.Event{Type: "message.new", From: authorID, ThreadID: threadID})
	return msg, nil
}

// Remove deletes the author's own message. Deleting a message that is already
// gone is success.
func (s *Service) Remove(ctx context.Context, threadID, messageID int64, authorID string) error {
	return s.db.WithContext(ctx).
		Where("id = ? AND thread_id = ? AND author_id = ?", messageID, threadID, authorID).
		Delete(&model.Message{}).Error
}

// List returns the thread's messages oldest first. The id tiebreak keeps
// same-millisecond messages in insert order.
func (s *Service) List(ctx context.Context, threadID int64, limit int) ([]model.Message, error) {
	q := s.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at, id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var msgs []model.Message
	err := q.Find(&msgs).Error
	return msgs, err
}

func (s *Service) notify(ctx context.Context, userID string, ev social.Event) {
	if s.pubsub == nil {
		return
	}
	payload, _ := json.Marshal(ev)
	if err := s.pubsub.Publish(ctx, social.UserChannel(userID), string(payload)); err != nil {
		s.logger.Warn("notify publish failed",
			zap.String("user", userID),
			zap.String("type", ev.Type),
			zap.Error(err))
	}
}
