package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DeepLinkEvent is the analytics record written for every recognized start
// parameter, whether or not the target entity resolved.
type DeepLinkEvent struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    int64          `gorm:"column:user_id;not null;index" json:"user_id"`
	Kind      string         `gorm:"column:kind;not null;index" json:"kind"`
	Value     string         `gorm:"column:value" json:"value,omitempty"`
	Handled   bool           `gorm:"column:handled;not null;default:false" json:"handled"`
	Payload   datatypes.JSON `gorm:"column:payload" json:"payload,omitempty"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (DeepLinkEvent) TableName() string { return "deeplink_event" }
