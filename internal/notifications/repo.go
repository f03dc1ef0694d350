package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/haatbazaar/marketplace-backend/pkg/db/models"
	"github.com/haatbazaar/marketplace-backend/pkg/pagination"
)

// purgeBatch caps how many rows one DELETE removes during retention cleanup.
const purgeBatch = 500

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, q pageQuery) ([]models.Notification, *pagination.Cursor, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID, at time.Time) (readOutcome, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type pageQuery struct {
	UserID     uuid.UUID
	Limit      int
	Cursor     *pagination.Cursor
	UnreadOnly bool
}

// readOutcome separates "no such notification for this user" from "already read".
type readOutcome struct {
	Found   bool
	Updated bool
}

type store struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &store{db: db}
}

func (s *store) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return s
	}
	return &store{db: tx}
}

func (s *store) owned(ctx context.Context, userID uuid.UUID) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
}

func (s *store) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return s.db.WithContext(ctx).Create(n).Error
}

// List pages newest first on (created_at, id).
func (s *store) List(ctx context.Context, q pageQuery) ([]models.Notification, *pagination.Cursor, error) {
	query := s.owned(ctx, q.UserID)
	if q.UnreadOnly {
		query = query.Where("read_at IS NULL")
	}

	var rows []models.Notification
	if err := pagination.Keyset(query, q.Cursor, q.Limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	rows, next := pagination.Trim(rows, q.Limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	return rows, next, nil
}

func (s *store) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := s.owned(ctx, userID).Where("read_at IS NULL").Count(&n).Error
	return n, err
}

func (s *store) MarkRead(ctx context.Context, userID, id uuid.UUID, at time.Time) (readOutcome, error) {
	var current models.Notification
	err := s.owned(ctx, userID).Select("id", "read_at").Where("id = ?", id).Take(&current).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return readOutcome{}, nil
	case err != nil:
		return readOutcome{}, err
	case current.ReadAt != nil:
		return readOutcome{Found: true}, nil
	}

	res := s.owned(ctx, userID).Where("id = ? AND read_at IS NULL", id).UpdateColumn("read_at", at)
	if res.Error != nil {
		return readOutcome{}, res.Error
	}
	return readOutcome{Found: true, Updated: res.RowsAffected > 0}, nil
}

func (s *store) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	res := s.owned(ctx, userID).Where("read_at IS NULL").UpdateColumn("read_at", at)
	return res.RowsAffected, res.Error
}

// DeleteReadBefore purges notifications read before cutoff in batches of
// purgeBatch. Unread rows are never removed.
func (s *store) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		batch := s.db.Model(&models.Notification{}).
			Select("id").
			Where("read_at IS NOT NULL AND read_at < ?", cutoff).
			Limit(purgeBatch)
		res := s.db.WithContext(ctx).Where("id IN (?)", batch).Delete(&models.Notification{})
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
		if res.RowsAffected < purgeBatch {
			return total, nil
		}
	}
}
