package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/soundloom/companion-bot/internal/platform/logger"
	"github.com/soundloom/companion-bot/internal/types"
)

type TrackedMessageRepo interface {
	Create(ctx context.Context, tx *gorm.DB, msg *types.TrackedMessage) (*types.TrackedMessage, error)
	ListByCategory(ctx context.Context, tx *gorm.DB, chatID int64, category types.MessageCategory) ([]*types.TrackedMessage, error)
	ListExpired(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) ([]*types.TrackedMessage, error)
	DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
	DeleteByMessage(ctx context.Context, tx *gorm.DB, chatID, messageID int64) error
}

type trackedMessageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTrackedMessageRepo(db *gorm.DB, baseLog *logger.Logger) TrackedMessageRepo {
	return &trackedMessageRepo{db: db, log: baseLog.With("repo", "TrackedMessageRepo")}
}

func (r *trackedMessageRepo) Create(ctx context.Context, tx *gorm.DB, msg *types.TrackedMessage) (*types.TrackedMessage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if err := transaction.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *trackedMessageRepo) ListByCategory(ctx context.Context, tx *gorm.DB, chatID int64, category types.MessageCategory) ([]*types.TrackedMessage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.TrackedMessage
	if err := transaction.WithContext(ctx).
		Where("chat_id = ? AND category = ?", chatID, category).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *trackedMessageRepo) ListExpired(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) ([]*types.TrackedMessage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.TrackedMessage
	q := transaction.WithContext(ctx).
		Where("persistent = ? AND expires_at IS NOT NULL AND expires_at <= ?", false, cutoff)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *trackedMessageRepo) DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&types.TrackedMessage{}).Error
}

func (r *trackedMessageRepo) DeleteByMessage(ctx context.Context, tx *gorm.DB, chatID, messageID int64) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Where("chat_id = ? AND message_id = ?", chatID, messageID).
		Delete(&types.TrackedMessage{}).Error
}
