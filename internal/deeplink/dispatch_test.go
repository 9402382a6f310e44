package deeplink

import (
	"context"
	"testing"

	"github.com/soundloom/companion-bot/internal/clients/botapi"
	"github.com/soundloom/companion-bot/internal/clients/musicapi"
	pkgerrors "github.com/soundloom/companion-bot/internal/pkg/errors"
	"github.com/soundloom/companion-bot/internal/platform/logger"
)

type fakeMusic struct {
	tracks   map[string]*musicapi.Track
	projects map[string]*musicapi.Project
	err      error
}

func (f *fakeMusic) GetTrack(_ context.Context, id string) (*musicapi.Track, error) {
	if f.err != nil {
		return nil, f.err
	}
	if t, ok := f.tracks[id]; ok {
		return t, nil
	}
	return nil, pkgerrors.ErrNotFound
}

func (f *fakeMusic) GetProject(_ context.Context, id string) (*musicapi.Project, error) {
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.projects[id]; ok {
		return p, nil
	}
	return nil, pkgerrors.ErrNotFound
}

func (f *fakeMusic) GetArtist(_ context.Context, id string) (*musicapi.Artist, error) {
	return &musicapi.Artist{ID: id, Name: "artist"}, nil
}

func (f *fakeMusic) GetPlaylist(_ context.Context, id string) (*musicapi.Playlist, error) {
	return &musicapi.Playlist{ID: id, Title: "playlist"}, nil
}

func (f *fakeMusic) ListActiveJobs(_ context.Context, _ int64) ([]*musicapi.GenerationJob, error) {
	return nil, nil
}

type shownScreen struct {
	menuName string
	text     string
}

type fakeRenderer struct {
	screens []shownScreen
}

func (f *fakeRenderer) ShowScreen(_ context.Context, _, _ int64, menuName, text string, _ *botapi.InlineKeyboardMarkup) error {
	f.screens = append(f.screens, shownScreen{menuName: menuName, text: text})
	return nil
}

type fakeNav struct {
	accept bool
	routes []string
}

func (f *fakeNav) NavigateTo(_ int64, route string, _ *int64) bool {
	f.routes = append(f.routes, route)
	return f.accept
}

type recordedEvent struct {
	kind    Kind
	value   string
	handled bool
}

type fakeSink struct {
	events []recordedEvent
}

func (f *fakeSink) Record(_ context.Context, _ int64, kind Kind, value string, handled bool, _ map[string]any) {
	f.events = append(f.events, recordedEvent{kind: kind, value: value, handled: handled})
}

func newTestDispatcher(t *testing.T, music musicapi.Client) (*Dispatcher, *fakeRenderer, *fakeNav, *fakeSink) {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	render := &fakeRenderer{}
	nav := &fakeNav{accept: true}
	sink := &fakeSink{}
	d := NewDispatcher(log, music, render, nav, sink, "https://app.example.com")
	return d, render, nav, sink
}

func TestDispatchTrackFound(t *testing.T) {
	music := &fakeMusic{tracks: map[string]*musicapi.Track{
		"TRK42": {ID: "TRK42", Title: "Night Drive", ArtistName: "Neon"},
	}}
	d, render, nav, sink := newTestDispatcher(t, music)

	sess := Session{UserID: 7, ChatID: 7}
	if !d.Dispatch(context.Background(), sess, Token{Kind: KindTrack, Value: "TRK42"}) {
		t.Fatal("track token should be handled")
	}
	if len(render.screens) != 1 || render.screens[0].menuName != "track_preview" {
		t.Fatalf("expected one track_preview screen, got %+v", render.screens)
	}
	if len(nav.routes) != 1 || nav.routes[0] != "deeplink_track" {
		t.Fatalf("expected deeplink_track transition, got %v", nav.routes)
	}
	if len(sink.events) != 1 || !sink.events[0].handled || sink.events[0].value != "TRK42" {
		t.Fatalf("expected handled analytics event, got %+v", sink.events)
	}
}

func TestDispatchEntityNotFound(t *testing.T) {
	d, render, _, sink := newTestDispatcher(t, &fakeMusic{})

	sess := Session{UserID: 7, ChatID: 7}
	if !d.Dispatch(context.Background(), sess, Token{Kind: KindProject, Value: "missing"}) {
		t.Fatal("recognized token should be handled even when entity is missing")
	}
	if len(render.screens) != 1 || render.screens[0].menuName != "not_found" {
		t.Fatalf("expected not_found screen, got %+v", render.screens)
	}
	if len(sink.events) != 1 {
		t.Fatalf("analytics event must be recorded for missing entity, got %+v", sink.events)
	}
}

func TestDispatchBackendUnavailable(t *testing.T) {
	d, render, _, sink := newTestDispatcher(t, &fakeMusic{err: pkgerrors.ErrUnavailable})

	sess := Session{UserID: 7, ChatID: 7}
	if !d.Dispatch(context.Background(), sess, Token{Kind: KindTrack, Value: "TRK42"}) {
		t.Fatal("recognized token should be handled even when backend is down")
	}
	if len(render.screens) != 1 || render.screens[0].menuName != "unavailable" {
		t.Fatalf("expected unavailable screen, got %+v", render.screens)
	}
	if len(sink.events) != 1 || sink.events[0].handled {
		t.Fatalf("expected unhandled analytics event, got %+v", sink.events)
	}
}

func TestDispatchUnrecognizedToken(t *testing.T) {
	d, render, _, sink := newTestDispatcher(t, &fakeMusic{})

	if d.Dispatch(context.Background(), Session{UserID: 7, ChatID: 7}, Token{}) {
		t.Fatal("null token must resolve to not-handled")
	}
	if len(render.screens) != 0 || len(sink.events) != 0 {
		t.Fatal("null token must not render or record")
	}
}

func TestDispatchTableCoversAllKinds(t *testing.T) {
	music := &fakeMusic{
		tracks:   map[string]*musicapi.Track{"v": {ID: "v", Title: "t"}},
		projects: map[string]*musicapi.Project{"v": {ID: "v", Title: "p"}},
	}
	d, _, _, _ := newTestDispatcher(t, music)

	kinds := []Kind{KindBuy, KindHelp, KindLeaderboard, KindTrack, KindProject, KindArtist, KindPlaylist, KindGenerate, KindProfile, KindRef}
	for _, kind := range kinds {
		if !d.Dispatch(context.Background(), Session{UserID: 1, ChatID: 1}, Token{Kind: kind, Value: "v"}) {
			t.Fatalf("kind %q has no handler", kind)
		}
	}
}

func TestDispatchLoopGuardSkipsRender(t *testing.T) {
	d, render, nav, sink := newTestDispatcher(t, &fakeMusic{})
	nav.accept = false

	sess := Session{UserID: 7, ChatID: 7}
	if !d.Dispatch(context.Background(), sess, Token{Kind: KindHelp}) {
		t.Fatal("recognized token is handled even when the transition is rejected")
	}
	if len(render.screens) != 0 {
		t.Fatalf("rejected transition must not render, got %+v", render.screens)
	}
	if len(sink.events) != 1 || sink.events[0].handled {
		t.Fatalf("expected unhandled analytics event, got %+v", sink.events)
	}
}
