package repos

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/soundloom/companion-bot/internal/platform/logger"
	"github.com/soundloom/companion-bot/internal/types"
)

type MenuStateRepo interface {
	Get(ctx context.Context, tx *gorm.DB, userID int64) (*types.MenuState, error)
	SetActive(ctx context.Context, tx *gorm.DB, userID, chatID, messageID int64, menuName string) error
	ClearActive(ctx context.Context, tx *gorm.DB, userID int64) error
}

type menuStateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMenuStateRepo(db *gorm.DB, baseLog *logger.Logger) MenuStateRepo {
	return &menuStateRepo{db: db, log: baseLog.With("repo", "MenuStateRepo")}
}

func (r *menuStateRepo) Get(ctx context.Context, tx *gorm.DB, userID int64) (*types.MenuState, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var row types.MenuState
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// SetActive is a single-row upsert; concurrent transitions for the same user
// resolve last-write-wins.
func (r *menuStateRepo) SetActive(ctx context.Context, tx *gorm.DB, userID, chatID, messageID int64, menuName string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	now := time.Now().UTC()
	row := &types.MenuState{
		UserID:          userID,
		ChatID:          chatID,
		ActiveMessageID: &messageID,
		CurrentMenu:     menuName,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"chat_id", "active_message_id", "current_menu", "updated_at",
			}),
		}).
		Create(row).Error
}

func (r *menuStateRepo) ClearActive(ctx context.Context, tx *gorm.DB, userID int64) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&types.MenuState{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"active_message_id": nil,
			"updated_at":        time.Now().UTC(),
		}).Error
}
