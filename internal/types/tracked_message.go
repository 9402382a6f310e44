package types

import (
	"time"

	"github.com/google/uuid"
)

type MessageCategory string

const (
	CategoryMenu         MessageCategory = "menu"
	CategoryContent      MessageCategory = "content"
	CategoryStatus       MessageCategory = "status"
	CategoryNotification MessageCategory = "notification"
)

// TrackedMessage records one outgoing message so navigation can later purge a
// whole category (replacing a screen) or a TTL sweep can drop stale status
// messages. Persistent entries survive sweeps.
type TrackedMessage struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ChatID     int64           `gorm:"column:chat_id;not null;index:idx_tracked_chat_category,priority:1" json:"chat_id"`
	MessageID  int64           `gorm:"column:message_id;not null;index" json:"message_id"`
	Category   MessageCategory `gorm:"column:category;not null;index:idx_tracked_chat_category,priority:2" json:"category"`
	Tag        string          `gorm:"column:tag;index" json:"tag,omitempty"`
	Persistent bool            `gorm:"column:persistent;not null;default:false" json:"persistent"`
	ExpiresAt  *time.Time      `gorm:"column:expires_at;index" json:"expires_at,omitempty"`
	CreatedAt  time.Time       `gorm:"not null;default:now()" json:"created_at"`
}

func (TrackedMessage) TableName() string { return "tracked_message" }
