package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/soundloom/companion-bot/internal/platform/logger"
	"github.com/soundloom/companion-bot/internal/types"
)

type DeepLinkEventRepo interface {
	Create(ctx context.Context, tx *gorm.DB, event *types.DeepLinkEvent) (*types.DeepLinkEvent, error)
}

type deepLinkEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDeepLinkEventRepo(db *gorm.DB, baseLog *logger.Logger) DeepLinkEventRepo {
	return &deepLinkEventRepo{db: db, log: baseLog.With("repo", "DeepLinkEventRepo")}
}

func (r *deepLinkEventRepo) Create(ctx context.Context, tx *gorm.DB, event *types.DeepLinkEvent) (*types.DeepLinkEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if err := transaction.WithContext(ctx).Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}
