package deeplink

import (
	"context"
	"errors"
	"fmt"

	"github.com/soundloom/companion-bot/internal/clients/botapi"
	"github.com/soundloom/companion-bot/internal/clients/musicapi"
	pkgerrors "github.com/soundloom/companion-bot/internal/pkg/errors"
	"github.com/soundloom/companion-bot/internal/platform/logger"
)

// Renderer shows a screen by replacing whatever menu message the user
// currently has. Implemented by the active menu registry.
type Renderer interface {
	ShowScreen(ctx context.Context, userID, chatID int64, menuName, text string, keyboard *botapi.InlineKeyboardMarkup) error
}

// Navigator gates screen transitions. Implemented by the navigation store.
type Navigator interface {
	NavigateTo(userID int64, route string, messageID *int64) bool
}

// EventSink records one analytics event per recognized start parameter,
// handled or not.
type EventSink interface {
	Record(ctx context.Context, userID int64, kind Kind, value string, handled bool, payload map[string]any)
}

type Session struct {
	UserID int64
	ChatID int64
}

type handlerFunc func(ctx context.Context, sess Session, value string) error

type Dispatcher struct {
	log        *logger.Logger
	music      musicapi.Client
	render     Renderer
	nav        Navigator
	events     EventSink
	appBaseURL string
	table      map[Kind]handlerFunc
}

func NewDispatcher(baseLog *logger.Logger, music musicapi.Client, render Renderer, nav Navigator, events EventSink, appBaseURL string) *Dispatcher {
	d := &Dispatcher{
		log:        baseLog.With("component", "DeepLinkDispatcher"),
		music:      music,
		render:     render,
		nav:        nav,
		events:     events,
		appBaseURL: appBaseURL,
	}
	// One entry per Kind; adding a route kind without a handler makes the
	// token fall through as unhandled rather than panicking.
	d.table = map[Kind]handlerFunc{
		KindBuy:         d.handleBuy,
		KindHelp:        d.handleHelp,
		KindLeaderboard: d.handleLeaderboard,
		KindTrack:       d.handleTrack,
		KindProject:     d.handleProject,
		KindArtist:      d.handleArtist,
		KindPlaylist:    d.handlePlaylist,
		KindGenerate:    d.handleGenerate,
		KindProfile:     d.handleProfile,
		KindRef:         d.handleRef,
	}
	return d
}

// Dispatch resolves a parsed token to its handler. The analytics event is
// recorded for every recognized token regardless of handler outcome; handler
// errors degrade to a rendered failure screen, never a propagated panic.
func (d *Dispatcher) Dispatch(ctx context.Context, sess Session, tok Token) bool {
	if tok.Kind == KindNone {
		return false
	}
	handler, ok := d.table[tok.Kind]
	if !ok {
		d.log.Warn("No handler for deep link kind", "kind", string(tok.Kind))
		return false
	}

	if !d.nav.NavigateTo(sess.UserID, routeFor(tok.Kind), nil) {
		d.events.Record(ctx, sess.UserID, tok.Kind, tok.Value, false, map[string]any{"reason": "loop_guard"})
		return true
	}

	err := handler(ctx, sess, tok.Value)
	d.events.Record(ctx, sess.UserID, tok.Kind, tok.Value, err == nil, nil)
	if err != nil {
		d.log.Warn("Deep link handler failed", "kind", string(tok.Kind), "error", err)
		d.renderUnavailable(ctx, sess)
	}
	return true
}

func routeFor(kind Kind) string {
	return "deeplink_" + string(kind)
}

func (d *Dispatcher) handleBuy(ctx context.Context, sess Session, _ string) error {
	kb := &botapi.InlineKeyboardMarkup{InlineKeyboard: [][]botapi.InlineKeyboardButton{
		{{Text: "Open store", URL: d.appBaseURL + "/store"}},
		{{Text: "Back", CallbackData: "nav_main"}},
	}}
	return d.render.ShowScreen(ctx, sess.UserID, sess.ChatID, "buy", "Top up your generation credits:", kb)
}

func (d *Dispatcher) handleHelp(ctx context.Context, sess Session, _ string) error {
	kb := navBackKeyboard()
	return d.render.ShowScreen(ctx, sess.UserID, sess.ChatID, "help", "Need a hand? Send a prompt to generate a track, or open your library with /library.", kb)
}

func (d *Dispatcher) handleLeaderboard(ctx context.Context, sess Session, _ string) error {
	kb := &botapi.InlineKeyboardMarkup{InlineKeyboard: [][]botapi.InlineKeyboardButton{
		{{Text: "Open leaderboard", URL: d.appBaseURL + "/leaderboard"}},
		{{Text: "Back", CallbackData: "nav_main"}},
	}}
	return d.render.ShowScreen(ctx, sess.UserID, sess.ChatID, "leaderboard", "This week's top creators:", kb)
}

func (d *Dispatcher) handleTrack(ctx context.Context, sess Session, value string) error {
	track, err := d.music.GetTrack(ctx, value)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return d.renderNotFound(ctx, sess, "track")
		}
		return err
	}
	kb := &botapi.InlineKeyboardMarkup{InlineKeyboard: [][]botapi.InlineKeyboardButton{
		{{Text: "Listen", URL: d.appBaseURL + "/tracks/" + track.ID}},
		{{Text: "Back", CallbackData: "nav_main"}},
	}}
	text := fmt.Sprintf("Track: %s", track.Title)
	if track.ArtistName != "" {
		text = fmt.Sprintf("Track: %s by %s", track.Title, track.ArtistName)
	}
	return d.render.ShowScreen(ctx, sess.UserID, sess.ChatID, "track_preview", text, kb)
}

func (d *Dispatcher) handleProject(ctx context.Context, sess Session, value string) error {
	project, err := d.music.GetProject(ctx, value)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return d.renderNotFound(ctx, sess, "project")
		}
		return err
	}
	kb := &botapi.InlineKeyboardMarkup{InlineKeyboard: [][]botapi.InlineKeyboardButton{
		{{Text: "Open project", URL: d.appBaseURL + "/projects/" + project.ID}},
		{{Text: "Back", CallbackData: "nav_main"}},
	}}
	text := fmt.Sprintf("Project: %s (%d tracks)", project.Title, project.TrackCount)
	return d.render.ShowScreen(ctx, sess.UserID, sess.ChatID, "project_preview", text, kb)
}

func (d *Dispatcher) handleArtist(ctx context.Context, sess Session, value string) error {
	artist, err := d.music.GetArtist(ctx, value)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return d.renderNotFound(ctx, sess, "artist")
		}
		return err
	}
	kb := &botapi.InlineKeyboardMarkup{InlineKeyboard: [][]botapi.InlineKeyboardButton{
		{{Text: "View artist", URL: d.appBaseURL + "/artists/" + artist.ID}},
		{{Text: "Back", CallbackData: "nav_main"}},
	}}
	return d.render.ShowScreen(ctx, sess.UserID, sess.ChatID, "artist_preview", "Artist: "+artist.Name, kb)
}

func (d *Dispatcher) handlePlaylist(ctx context.Context, sess Session, value string) error {
	playlist, err := d.music.GetPlaylist(ctx, value)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return d.renderNotFound(ctx, sess, "playlist")
		}
		return err
	}
	kb := &botapi.InlineKeyboardMarkup{InlineKeyboard: [][]botapi.InlineKeyboardButton{
		{{Text: "Open playlist", URL: d.appBaseURL + "/playlists/" + playlist.ID}},
		{{Text: "Back", CallbackData: "nav_main"}},
	}}
	return d.render.ShowScreen(ctx, sess.UserID, sess.ChatID, "playlist_preview", "Playlist: "+playlist.Title, kb)
}

func (d *Dispatcher) handleGenerate(ctx context.Context, sess Session, value string) error {
	text := "Send a prompt and I'll generate a track for you."
	if value != "" {
		text = fmt.Sprintf("Send a prompt and I'll generate a track in the %q style.", value)
	}
	return d.render.ShowScreen(ctx, sess.UserID, sess.ChatID, "generate", text, navBackKeyboard())
}

func (d *Dispatcher) handleProfile(ctx context.Context, sess Session, value string) error {
	kb := &botapi.InlineKeyboardMarkup{InlineKeyboard: [][]botapi.InlineKeyboardButton{
		{{Text: "Open profile", URL: d.appBaseURL + "/profiles/" + value}},
		{{Text: "Back", CallbackData: "nav_main"}},
	}}
	return d.render.ShowScreen(ctx, sess.UserID, sess.ChatID, "profile_preview", "Creator profile", kb)
}

// The referral code itself travels on the analytics event.
func (d *Dispatcher) handleRef(ctx context.Context, sess Session, _ string) error {
	text := "Welcome! Your referral has been applied."
	return d.render.ShowScreen(ctx, sess.UserID, sess.ChatID, "referral_welcome", text, navBackKeyboard())
}

func (d *Dispatcher) renderNotFound(ctx context.Context, sess Session, entity string) error {
	text := fmt.Sprintf("That %s doesn't exist anymore.", entity)
	return d.render.ShowScreen(ctx, sess.UserID, sess.ChatID, "not_found", text, navBackKeyboard())
}

func (d *Dispatcher) renderUnavailable(ctx context.Context, sess Session) {
	if err := d.render.ShowScreen(ctx, sess.UserID, sess.ChatID, "unavailable", "That isn't available right now, please try again.", navBackKeyboard()); err != nil {
		d.log.Warn("Failed to render unavailable screen", "error", err)
	}
}

func navBackKeyboard() *botapi.InlineKeyboardMarkup {
	return &botapi.InlineKeyboardMarkup{InlineKeyboard: [][]botapi.InlineKeyboardButton{
		{{Text: "Back", CallbackData: "nav_main"}},
	}}
}
