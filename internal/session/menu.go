package session

import (
	"context"
	"fmt"
	"time"

	"github.com/soundloom/companion-bot/internal/clients/botapi"
	pkgerrors "github.com/soundloom/companion-bot/internal/pkg/errors"
	"github.com/soundloom/companion-bot/internal/platform/logger"
	"github.com/soundloom/companion-bot/internal/repos"
	"github.com/soundloom/companion-bot/internal/types"
)

// MenuService is the active menu registry. The chat surface has no native
// "replace screen in place", so the single-screen illusion is synthesized
// here: at most one active menu message id is recorded per user, and every
// transition either edits that message or deletes it before sending the next.
type MenuService struct {
	log     *logger.Logger
	bot     botapi.Client
	menus   repos.MenuStateRepo
	tracker *Tracker
}

func NewMenuService(baseLog *logger.Logger, bot botapi.Client, menus repos.MenuStateRepo, tracker *Tracker) *MenuService {
	return &MenuService{
		log:     baseLog.With("service", "MenuService"),
		bot:     bot,
		menus:   menus,
		tracker: tracker,
	}
}

// DeleteAndReplace removes the user's current menu message and sends the new
// screen. Deletion failure is tolerated (message already gone, permissions
// changed) and the stored record is cleared regardless, so a failed delete
// can never block future replacements.
func (s *MenuService) DeleteAndReplace(ctx context.Context, userID, chatID int64, menuName, text string, keyboard *botapi.InlineKeyboardMarkup) (int64, error) {
	state, err := s.menus.Get(ctx, nil, userID)
	if err != nil {
		return 0, fmt.Errorf("load menu state: %w", err)
	}

	if state != nil && state.ActiveMessageID != nil {
		if err := s.bot.DeleteMessage(ctx, state.ChatID, *state.ActiveMessageID); err != nil {
			s.log.Warn("Active menu delete failed, proceeding",
				"user_id", userID, "message_id", *state.ActiveMessageID, "error", err)
		}
		if err := s.tracker.Forget(ctx, state.ChatID, *state.ActiveMessageID); err != nil {
			s.log.Warn("Failed to drop tracked record for deleted menu",
				"chat_id", state.ChatID, "message_id", *state.ActiveMessageID, "error", err)
		}
	}
	if err := s.menus.ClearActive(ctx, nil, userID); err != nil {
		s.log.Warn("Failed to clear active menu record", "user_id", userID, "error", err)
	}
	if err := s.tracker.DeleteCategory(ctx, chatID, types.CategoryMenu, nil); err != nil {
		s.log.Warn("Menu category cleanup failed", "chat_id", chatID, "error", err)
	}

	sent, err := s.bot.SendMessage(ctx, botapi.SendMessageRequest{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: keyboard,
	})
	if err != nil {
		return 0, fmt.Errorf("send menu %q: %w", menuName, err)
	}

	if err := s.menus.SetActive(ctx, nil, userID, chatID, sent.MessageID, menuName); err != nil {
		return 0, fmt.Errorf("persist menu state: %w", err)
	}
	if err := s.tracker.Track(ctx, chatID, sent.MessageID, types.CategoryMenu, menuName, TrackOptions{Persistent: true}); err != nil {
		s.log.Warn("Failed to track menu message", "chat_id", chatID, "error", err)
	}
	return sent.MessageID, nil
}

// EditOrReplace first tries to edit the current menu message in place, which
// avoids visible flicker; if the edit is rejected (message too old, wrong
// type) it falls back to the full delete-and-send path. Either branch ends
// with exactly one active menu message recorded.
func (s *MenuService) EditOrReplace(ctx context.Context, userID, chatID int64, menuName, text string, keyboard *botapi.InlineKeyboardMarkup) (int64, error) {
	state, err := s.menus.Get(ctx, nil, userID)
	if err != nil {
		return 0, fmt.Errorf("load menu state: %w", err)
	}

	if state == nil || state.ActiveMessageID == nil {
		return s.DeleteAndReplace(ctx, userID, chatID, menuName, text, keyboard)
	}

	messageID := *state.ActiveMessageID
	_, err = s.bot.EditMessageText(ctx, botapi.EditMessageRequest{
		ChatID:      state.ChatID,
		MessageID:   messageID,
		Text:        text,
		ReplyMarkup: keyboard,
	})
	if err != nil {
		s.log.Debug("Menu edit failed, falling back to replace",
			"user_id", userID, "message_id", messageID, "error", err)
		return s.DeleteAndReplace(ctx, userID, chatID, menuName, text, keyboard)
	}

	// The edit went to the recorded chat, so the record must keep pointing
	// there even if the inbound chat id diverges.
	if err := s.menus.SetActive(ctx, nil, userID, state.ChatID, messageID, menuName); err != nil {
		return 0, fmt.Errorf("persist menu state: %w", err)
	}
	if err := s.tracker.DeleteCategory(ctx, state.ChatID, types.CategoryMenu, &messageID); err != nil {
		s.log.Warn("Menu category cleanup failed", "chat_id", state.ChatID, "error", err)
	}
	return messageID, nil
}

// ChatID resolves the chat recorded for a user, for flows (job events) that
// only know the user id.
func (s *MenuService) ChatID(ctx context.Context, userID int64) (int64, error) {
	state, err := s.menus.Get(ctx, nil, userID)
	if err != nil {
		return 0, err
	}
	if state == nil {
		return 0, pkgerrors.ErrNotFound
	}
	return state.ChatID, nil
}

// SendNotification deliberately bypasses the registry: transient
// confirmations are not "the current screen" and must not be deleted by the
// next menu transition. They expire via the lifecycle sweep instead.
func (s *MenuService) SendNotification(ctx context.Context, chatID int64, text string, ttl time.Duration) error {
	sent, err := s.bot.SendMessage(ctx, botapi.SendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	opts := TrackOptions{}
	if ttl > 0 {
		opts.ExpiresIn = ttl
	}
	if err := s.tracker.Track(ctx, chatID, sent.MessageID, types.CategoryNotification, "notification", opts); err != nil {
		s.log.Warn("Failed to track notification", "chat_id", chatID, "error", err)
	}
	return nil
}

// ShowScreen satisfies the deep link dispatcher's renderer: deep links always
// take the replace path so the prior dashboard is gone before the preview
// arrives.
func (s *MenuService) ShowScreen(ctx context.Context, userID, chatID int64, menuName, text string, keyboard *botapi.InlineKeyboardMarkup) error {
	_, err := s.DeleteAndReplace(ctx, userID, chatID, menuName, text, keyboard)
	return err
}
