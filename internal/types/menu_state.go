package types

import (
	"time"
)

// MenuState is the single cross-invocation row per user. ActiveMessageID
// references the one message currently acting as the user's screen; nil means
// no menu is on screen.
type MenuState struct {
	UserID          int64     `gorm:"column:user_id;primaryKey" json:"user_id"`
	ChatID          int64     `gorm:"column:chat_id;not null" json:"chat_id"`
	ActiveMessageID *int64    `gorm:"column:active_message_id" json:"active_message_id,omitempty"`
	CurrentMenu     string    `gorm:"column:current_menu" json:"current_menu,omitempty"`
	CreatedAt       time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (MenuState) TableName() string { return "menu_state" }
