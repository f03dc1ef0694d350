package outbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/haatbazaar/marketplace-backend/pkg/db/models"
	"github.com/haatbazaar/marketplace-backend/pkg/enums"
)

const (
	maxDLQErrorLen  = 1024
	defaultDLQLimit = 50
)

var (
	ErrNotDeadLettered = errors.New("event is not dead-lettered")
	ErrNotRequeueable  = errors.New("dead-letter reason does not allow requeue")
)

type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// InsertTx records a terminal failure alongside the outbox row update.
func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if !entry.ErrorReason.IsValid() {
		return fmt.Errorf("dlq entry for %s: invalid reason %q", entry.EventID, entry.ErrorReason)
	}
	if entry.ErrorMessage != nil && len(*entry.ErrorMessage) > maxDLQErrorLen {
		clipped := (*entry.ErrorMessage)[:maxDLQErrorLen]
		entry.ErrorMessage = &clipped
	}
	return tx.Create(&entry).Error
}

// List returns the newest dead letters, optionally for one reason.
func (r *DLQRepository) List(ctx context.Context, reason enums.OutboxDLQErrorReason, limit int) ([]models.OutboxDLQ, error) {
	if limit <= 0 {
		limit = defaultDLQLimit
	}
	q := r.db.WithContext(ctx).Order("failed_at DESC").Order("id DESC").Limit(limit)
	if reason != "" {
		q = q.Where("error_reason = ?", reason)
	}
	var rows []models.OutboxDLQ
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Requeue hands a dead-lettered outbox row back to the publisher: its
// attempt counter and last error are cleared and the DLQ entry is removed.
// Consumers deduplicate on the envelope event id, so a requeued event that
// had partly succeeded is not applied twice.
func (r *DLQRepository) Requeue(ctx context.Context, outboxID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entries []models.OutboxDLQ
		if err := tx.Where("event_id = ?", outboxID).Find(&entries).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return fmt.Errorf("%s: %w", outboxID, ErrNotDeadLettered)
		}
		for _, e := range entries {
			if !e.ErrorReason.Requeueable() {
				return fmt.Errorf("%s (%s): %w", outboxID, e.ErrorReason, ErrNotRequeueable)
			}
		}

		res := tx.Model(&models.OutboxEvent{}).
			Where("id = ? AND published_at IS NULL", outboxID).
			Updates(map[string]any{"attempt_count": 0, "last_error": nil})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%s: outbox row missing or already published", outboxID)
		}
		return tx.Where("event_id = ?", outboxID).Delete(&models.OutboxDLQ{}).Error
	})
}
