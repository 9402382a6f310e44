package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/soundloom/companion-bot/internal/clients/botapi"
	"github.com/soundloom/companion-bot/internal/clients/musicapi"
	"github.com/soundloom/companion-bot/internal/deeplink"
	"github.com/soundloom/companion-bot/internal/navigation"
	pkgerrors "github.com/soundloom/companion-bot/internal/pkg/errors"
	"github.com/soundloom/companion-bot/internal/platform/logger"
	"github.com/soundloom/companion-bot/internal/realtime"
	"github.com/soundloom/companion-bot/internal/types"
)

const statusMessageTTL = 10 * time.Minute

// FeedStarter brings up the user's change feed (push subscription plus
// polling fallback). Implemented by the realtime manager.
type FeedStarter interface {
	EnsureRunning(userID int64)
}

// Service is the per-update entry point: it validates the transition with the
// navigation store, lets the menu registry swap the screen, and routes deep
// links and callback presses to their handlers. Handlers are stateless; all
// cross-invocation state lives in the menu registry's persisted row.
type Service struct {
	log        *logger.Logger
	nav        *navigation.Store
	menus      *MenuService
	tracker    *Tracker
	music      musicapi.Client
	bot        botapi.Client
	dispatcher *deeplink.Dispatcher
	feeds      FeedStarter
}

func NewService(baseLog *logger.Logger, nav *navigation.Store, menus *MenuService, tracker *Tracker, music musicapi.Client, bot botapi.Client, dispatcher *deeplink.Dispatcher, feeds FeedStarter) *Service {
	return &Service{
		log:        baseLog.With("service", "SessionService"),
		nav:        nav,
		menus:      menus,
		tracker:    tracker,
		music:      music,
		bot:        bot,
		dispatcher: dispatcher,
		feeds:      feeds,
	}
}

// HandleUpdate processes exactly one webhook delivery. Nothing here is fatal:
// every failure is logged and degrades to a rendered fallback so the next
// update starts clean.
func (s *Service) HandleUpdate(ctx context.Context, upd botapi.Update) {
	switch {
	case upd.CallbackQuery != nil:
		s.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil:
		s.handleMessage(ctx, upd.Message)
	default:
		s.log.Debug("Update carried neither message nor callback", "update_id", upd.UpdateID)
	}
}

func (s *Service) handleMessage(ctx context.Context, msg *botapi.Message) {
	if msg.From == nil {
		s.log.Debug("Message without sender ignored", "chat_id", msg.Chat.ID)
		return
	}
	userID := msg.From.ID
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	switch {
	case strings.HasPrefix(text, "/start"):
		s.handleStart(ctx, userID, chatID, text)
	case text == "/help":
		if s.nav.NavigateTo(userID, "help", nil) {
			s.renderHelp(ctx, userID, chatID)
		}
	case text == "/library":
		if s.nav.NavigateTo(userID, "library", nil) {
			s.renderLibrary(ctx, userID, chatID, 1)
		}
	case text == "/menu":
		s.renderMainMenu(ctx, userID, chatID)
	default:
		// Free text is a generation prompt; generation itself is an external
		// collaborator, the engine only acknowledges with an expiring status.
		if s.feeds != nil {
			s.feeds.EnsureRunning(userID)
		}
		s.sendStatus(ctx, chatID, "Working on it. I'll ping you when your track is ready.")
	}
}

// handleStart is the session entry. Navigation state is reset first so loop
// windows never leak across sessions, then the start parameter (if any) is
// resolved as a deep link.
func (s *Service) handleStart(ctx context.Context, userID, chatID int64, text string) {
	s.nav.Clear(userID)
	if s.feeds != nil {
		s.feeds.EnsureRunning(userID)
	}

	param := ""
	if fields := strings.Fields(text); len(fields) > 1 {
		param = fields[1]
	}
	if param != "" {
		tok := deeplink.Parse(param)
		if s.dispatcher.Dispatch(ctx, deeplink.Session{UserID: userID, ChatID: chatID}, tok) {
			return
		}
		s.log.Debug("Unrecognized start parameter, falling back to main menu", "user_id", userID)
	}
	s.renderMainMenu(ctx, userID, chatID)
}

func (s *Service) handleCallback(ctx context.Context, cq *botapi.CallbackQuery) {
	if err := s.bot.AnswerCallbackQuery(ctx, cq.ID, ""); err != nil {
		s.log.Debug("Answer callback failed", "error", err)
	}
	if cq.Message == nil {
		s.log.Debug("Callback without message ignored")
		return
	}
	if !s.dispatchCallback(ctx, cq.From.ID, cq.Message.Chat.ID, cq.Data) {
		s.log.Debug("Unhandled callback data", "user_id", cq.From.ID, "data", cq.Data)
	}
}

// ---------- screens ----------

func (s *Service) renderMainMenu(ctx context.Context, userID, chatID int64) {
	kb := &botapi.InlineKeyboardMarkup{InlineKeyboard: [][]botapi.InlineKeyboardButton{
		{{Text: "Generate a track", CallbackData: "nav_generate"}},
		{{Text: "My library", CallbackData: "nav_library"}},
		{{Text: "Help", CallbackData: "nav_help"}},
	}}
	if _, err := s.menus.EditOrReplace(ctx, userID, chatID, "main", "What would you like to do?", kb); err != nil {
		s.log.Error("Main menu render failed", "user_id", userID, "error", err)
		return
	}
	// Top-level render completed; stale loop windows must not survive it.
	s.nav.Clear(userID)
}

func (s *Service) renderHelp(ctx context.Context, userID, chatID int64) {
	kb := backKeyboard()
	if _, err := s.menus.EditOrReplace(ctx, userID, chatID, "help", "Send any text and I'll turn it into a track. Use /library to browse what you've made.", kb); err != nil {
		s.log.Error("Help render failed", "user_id", userID, "error", err)
	}
}

func (s *Service) renderGenerate(ctx context.Context, userID, chatID int64) {
	kb := backKeyboard()
	if _, err := s.menus.EditOrReplace(ctx, userID, chatID, "generate", "Describe the track you want and send it as a message.", kb); err != nil {
		s.log.Error("Generate render failed", "user_id", userID, "error", err)
	}
}

func (s *Service) renderLibrary(ctx context.Context, userID, chatID int64, page int) {
	if page < 1 {
		page = 1
	}
	kb := &botapi.InlineKeyboardMarkup{InlineKeyboard: [][]botapi.InlineKeyboardButton{
		{
			{Text: "Prev", CallbackData: "lib_page_" + strconv.Itoa(page-1)},
			{Text: "Next", CallbackData: "lib_page_" + strconv.Itoa(page+1)},
		},
		{{Text: "Back", CallbackData: "nav_main"}},
	}}
	text := fmt.Sprintf("Your library, page %d:", page)
	if _, err := s.menus.EditOrReplace(ctx, userID, chatID, "library", text, kb); err != nil {
		s.log.Error("Library render failed", "user_id", userID, "error", err)
	}
}

func (s *Service) renderProjectDetails(ctx context.Context, userID, chatID int64, projectID string) {
	project, err := s.music.GetProject(ctx, projectID)
	if err != nil {
		s.renderLookupFailure(ctx, userID, chatID, "project", err)
		return
	}
	text := fmt.Sprintf("Project: %s (%d tracks)", project.Title, project.TrackCount)
	if _, err := s.menus.EditOrReplace(ctx, userID, chatID, "project_details", text, backKeyboard()); err != nil {
		s.log.Error("Project details render failed", "user_id", userID, "error", err)
	}
}

func (s *Service) renderTrackDetails(ctx context.Context, userID, chatID int64, trackID string) {
	track, err := s.music.GetTrack(ctx, trackID)
	if err != nil {
		s.renderLookupFailure(ctx, userID, chatID, "track", err)
		return
	}
	text := "Track: " + track.Title
	if track.ArtistName != "" {
		text += " by " + track.ArtistName
	}
	if _, err := s.menus.EditOrReplace(ctx, userID, chatID, "track_details", text, backKeyboard()); err != nil {
		s.log.Error("Track details render failed", "user_id", userID, "error", err)
	}
}

// renderLookupFailure turns a data-lookup error into an explicit screen; a
// missing entity or an unreachable backend must never be a silent no-op.
func (s *Service) renderLookupFailure(ctx context.Context, userID, chatID int64, entity string, lookupErr error) {
	text := fmt.Sprintf("That %s doesn't exist anymore.", entity)
	if !errors.Is(lookupErr, pkgerrors.ErrNotFound) {
		text = "That isn't available right now, please try again."
	}
	if _, err := s.menus.EditOrReplace(ctx, userID, chatID, "not_found", text, backKeyboard()); err != nil {
		s.log.Error("Lookup failure render failed", "user_id", userID, "error", err)
	}
}

func (s *Service) renderRoute(ctx context.Context, userID, chatID int64, route string) {
	switch {
	case route == "library" || strings.HasPrefix(route, "lib_page_"):
		s.renderLibrary(ctx, userID, chatID, 1)
	case route == "help":
		s.renderHelp(ctx, userID, chatID)
	case route == "generate":
		s.renderGenerate(ctx, userID, chatID)
	default:
		s.renderMainMenu(ctx, userID, chatID)
	}
}

func (s *Service) sendStatus(ctx context.Context, chatID int64, text string) {
	sent, err := s.bot.SendMessage(ctx, botapi.SendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		s.log.Warn("Status send failed", "chat_id", chatID, "error", err)
		return
	}
	if err := s.tracker.Track(ctx, chatID, sent.MessageID, types.CategoryStatus, "generation", TrackOptions{ExpiresIn: statusMessageTTL}); err != nil {
		s.log.Warn("Status track failed", "chat_id", chatID, "error", err)
	}
}

// HandleJobEvent is the UI refresh callback for the change feed: completed
// jobs surface as untracked notifications, progress updates as expiring
// status messages. Users with no recorded chat are skipped.
func (s *Service) HandleJobEvent(ctx context.Context, ev realtime.JobEvent) {
	chatID, err := s.menus.ChatID(ctx, ev.UserID)
	if err != nil {
		s.log.Debug("Job event for user without chat", "user_id", ev.UserID, "error", err)
		return
	}

	switch ev.Status {
	case "completed":
		text := "Your track is ready! Open it with /library."
		if err := s.menus.SendNotification(ctx, chatID, text, 0); err != nil {
			s.log.Warn("Completion notification failed", "chat_id", chatID, "error", err)
		}
	case "failed":
		if err := s.menus.SendNotification(ctx, chatID, "Generation failed, please try another prompt.", 0); err != nil {
			s.log.Warn("Failure notification failed", "chat_id", chatID, "error", err)
		}
	default:
		s.sendStatus(ctx, chatID, fmt.Sprintf("Generating... %d%%", ev.Progress))
	}
}

func backKeyboard() *botapi.InlineKeyboardMarkup {
	return &botapi.InlineKeyboardMarkup{InlineKeyboard: [][]botapi.InlineKeyboardButton{
		{{Text: "Back", CallbackData: "nav_back"}},
	}}
}
