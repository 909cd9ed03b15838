package events

import (
	"context"
	"errors"
	"time"

	"github.com/soundmates/server/cache"
	"github.com/soundmates/server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrConcertNotFound is returned when a concert id does not resolve.
	ErrConcertNotFound = errors.New("concert not found")

	// ErrInvalidConcert is returned for ingest rows missing id or name.
	ErrInvalidConcert = errors.New("invalid concert")
)

// trendingKey is the sorted set holding per-concert attendance counters.
const trendingKey = "concerts:trending"

// Service manages the concert catalog: batch ingest from upstream feeds,
// search, attendance, recommendations and retention.
type Service struct {
	db     *gorm.DB
	cache  cache.Cache
	logger *zap.Logger
}

// NewService creates a new events Service.
func NewService(db *gorm.DB, c cache.Cache, logger *zap.Logger) *Service {
	return &Service{db: db, cache: c, logger: logger}
}

// Ingest stores a batch of concerts. Rows whose id already exists are
// skipped, not overwritten; feeds resend their whole window on every run.
// The batch is all-or-nothing, so a failed run never leaves a partial
// window behind. Returns the number of newly stored concerts.
func (s *Service) Ingest(ctx context.Context, concerts []model.Concert) (int, error) {
	for i := range concerts {
		if concerts[i].ID == "" || concerts[i].Name == "" {
			return 0, ErrInvalidConcert
		}
	}

	stored := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range concerts {
			c := concerts[i]
			// DoNothing makes the skip and a concurrent feed run race-free.
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&c)
			if res.Error != nil {
				return res.Error
			}
			stored += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if stored > 0 {
		s.logger.Info("concerts ingested", zap.Int("stored", stored), zap.Int("batch", len(concerts)))
	}
	return stored, nil
}

// Get returns a single concert by id.
func (s *Service) Get(ctx context.Context, concertID string) (*model.Concert, error) {
	var c model.Concert
	err := s.db.WithContext(ctx).Where("id = ?", concertID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConcertNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Search returns upcoming concerts whose name, venue or location matches the
// query, soonest first.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]model.Concert, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + query + "%"
	var concerts []model.Concert
	err := s.db.WithContext(ctx).
		Where("name LIKE ? OR venue LIKE ? OR location LIKE ?", pattern, pattern, pattern).
		Order("date").
		Limit(limit).
		Find(&concerts).Error
	return concerts, err
}

// Attend marks the user as attending. Attending twice is a no-op and does
// not bump the trending counter again.
func (s *Service) Attend(ctx context.Context, userID, concertID string) error {
	if _, err := s.Get(ctx, concertID); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND concert_id = ?", userID, concertID).
		FirstOrCreate(&model.ConcertAttendance{UserID: userID, ConcertID: concertID})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil
	}
	if _, err := s.cache.ZIncrBy(ctx, trendingKey, 1, concertID); err != nil {
		s.logger.Warn("trending bump failed", zap.String("concert", concertID), zap.Error(err))
	}
	return nil
}

// Leave removes the user's attendance. Idempotent.
func (s *Service) Leave(ctx context.Context, userID, concertID string) error {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND concert_id = ?", userID, concertID).
		Delete(&model.ConcertAttendance{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil
	}
	if _, err := s.cache.ZIncrBy(ctx, trendingKey, -1, concertID); err != nil {
		s.logger.Warn("trending decrement failed", zap.String("concert", concertID), zap.Error(err))
	}
	return nil
}

// IsAttending reports whether the user marked attendance for the concert.
func (s *Service) IsAttending(ctx context.Context, userID, concertID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.ConcertAttendance{}).
		Where("user_id = ? AND concert_id = ?", userID, concertID).
		Count(&n).Error
	return n > 0, err
}

// Attendees returns the users attending a concert.
func (s *Service) Attendees(ctx context.Context, concertID string) ([]string, error) {
	var rows []model.ConcertAttendance
	err := s.db.WithContext(ctx).
		Where("concert_id = ?", concertID).
		Order("created_at").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	users := make([]string, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.UserID)
	}
	return users, nil
}

// Recommend returns the most popular upcoming concerts the user is not yet
// attending. Upstream rank 1 is the most popular.
func (s *Service) Recommend(ctx context.Context, userID string, limit int) ([]model.Concert, error) {
	if limit <= 0 {
		limit = 8
	}
	var concerts []model.Concert
	err := s.db.WithContext(ctx).
		Where("date >= ?", time.Now()).
		Where("NOT EXISTS (SELECT 1 FROM concert_attendances ca WHERE ca.concert_id = concerts.id AND ca.user_id = ?)", userID).
		Order("popularity_rank").
		Limit(limit).
		Find(&concerts).Error
	return concerts, err
}

// Trending returns concert ids ranked by live attendance count, highest
// first.
func (s *Service) Trending(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.cache.ZRevRange(ctx, trendingKey, 0, int64(limit-1))
}

// PurgeOld deletes concerts whose date has passed, together with their
// attendance rows and trending counters. Returns the number purged.
func (s *Service) PurgeOld(ctx context.Context, now time.Time) (int64, error) {
	var stale []model.Concert
	if err := s.db.WithContext(ctx).
		Where("date < ?", now).
		Find(&stale).Error; err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(stale))
	for _, c := range stale {
		ids = append(ids, c.ID)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("concert_id IN ?", ids).
			Delete(&model.ConcertAttendance{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&model.Concert{}).Error
	})
	if err != nil {
		return 0, err
	}

	if err := s.cache.ZRem(ctx, trendingKey, ids...); err != nil {
		s.logger.Warn("trending cleanup failed", zap.Error(err))
	}
	s.logger.Info("stale concerts purged", zap.Int("count", len(ids)))
	return int64(len(ids)), nil
}
