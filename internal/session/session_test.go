package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/soundloom/companion-bot/internal/clients/botapi"
	"github.com/soundloom/companion-bot/internal/clients/musicapi"
	pkgerrors "github.com/soundloom/companion-bot/internal/pkg/errors"
	"github.com/soundloom/companion-bot/internal/platform/logger"
	"github.com/soundloom/companion-bot/internal/types"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

// ---------- bot transport fake ----------

type deletedMessage struct {
	ChatID    int64
	MessageID int64
}

type fakeBot struct {
	mu     sync.Mutex
	nextID int64

	sent    []botapi.SendMessageRequest
	sentIDs []int64
	edits   []botapi.EditMessageRequest
	deletes []deletedMessage

	failSend   bool
	failEdit   bool
	failDelete bool
}

func (b *fakeBot) SendMessage(_ context.Context, req botapi.SendMessageRequest) (*botapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failSend {
		return nil, fmt.Errorf("send rejected")
	}
	b.nextID++
	b.sent = append(b.sent, req)
	b.sentIDs = append(b.sentIDs, b.nextID)
	return &botapi.Message{MessageID: b.nextID, Chat: botapi.Chat{ID: req.ChatID}}, nil
}

func (b *fakeBot) EditMessageText(_ context.Context, req botapi.EditMessageRequest) (*botapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failEdit {
		return nil, fmt.Errorf("message can't be edited")
	}
	b.edits = append(b.edits, req)
	return &botapi.Message{MessageID: req.MessageID, Chat: botapi.Chat{ID: req.ChatID}}, nil
}

func (b *fakeBot) DeleteMessage(_ context.Context, chatID, messageID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes = append(b.deletes, deletedMessage{ChatID: chatID, MessageID: messageID})
	if b.failDelete {
		return fmt.Errorf("message to delete not found")
	}
	return nil
}

func (b *fakeBot) AnswerCallbackQuery(_ context.Context, _, _ string) error { return nil }

func (b *fakeBot) lastSent(t *testing.T) botapi.SendMessageRequest {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.sent) == 0 {
		t.Fatal("no messages sent")
	}
	return b.sent[len(b.sent)-1]
}

// ---------- repo fakes ----------

type fakeMenuStateRepo struct {
	mu     sync.Mutex
	states map[int64]*types.MenuState
}

func newFakeMenuStateRepo() *fakeMenuStateRepo {
	return &fakeMenuStateRepo{states: make(map[int64]*types.MenuState)}
}

func (r *fakeMenuStateRepo) Get(_ context.Context, _ *gorm.DB, userID int64) (*types.MenuState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[userID]
	if !ok {
		return nil, nil
	}
	clone := *state
	if state.ActiveMessageID != nil {
		id := *state.ActiveMessageID
		clone.ActiveMessageID = &id
	}
	return &clone, nil
}

func (r *fakeMenuStateRepo) SetActive(_ context.Context, _ *gorm.DB, userID, chatID, messageID int64, menuName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[userID] = &types.MenuState{
		UserID:          userID,
		ChatID:          chatID,
		ActiveMessageID: &messageID,
		CurrentMenu:     menuName,
		UpdatedAt:       time.Now().UTC(),
	}
	return nil
}

func (r *fakeMenuStateRepo) ClearActive(_ context.Context, _ *gorm.DB, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.states[userID]; ok {
		state.ActiveMessageID = nil
	}
	return nil
}

type fakeTrackedMessageRepo struct {
	mu   sync.Mutex
	rows []*types.TrackedMessage
}

func (r *fakeTrackedMessageRepo) Create(_ context.Context, _ *gorm.DB, msg *types.TrackedMessage) (*types.TrackedMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	clone := *msg
	r.rows = append(r.rows, &clone)
	return msg, nil
}

func (r *fakeTrackedMessageRepo) ListByCategory(_ context.Context, _ *gorm.DB, chatID int64, category types.MessageCategory) ([]*types.TrackedMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.TrackedMessage
	for _, row := range r.rows {
		if row.ChatID == chatID && row.Category == category {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeTrackedMessageRepo) ListExpired(_ context.Context, _ *gorm.DB, cutoff time.Time, limit int) ([]*types.TrackedMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.TrackedMessage
	for _, row := range r.rows {
		if row.Persistent || row.ExpiresAt == nil || row.ExpiresAt.After(cutoff) {
			continue
		}
		out = append(out, row)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeTrackedMessageRepo) DeleteByIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	drop := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := r.rows[:0]
	for _, row := range r.rows {
		if !drop[row.ID] {
			kept = append(kept, row)
		}
	}
	r.rows = kept
	return nil
}

func (r *fakeTrackedMessageRepo) DeleteByMessage(_ context.Context, _ *gorm.DB, chatID, messageID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.rows[:0]
	for _, row := range r.rows {
		if !(row.ChatID == chatID && row.MessageID == messageID) {
			kept = append(kept, row)
		}
	}
	r.rows = kept
	return nil
}

func (r *fakeTrackedMessageRepo) count(category types.MessageCategory) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, row := range r.rows {
		if row.Category == category {
			n++
		}
	}
	return n
}

// ---------- music backend fake ----------

type fakeMusicClient struct {
	tracks   map[string]*musicapi.Track
	projects map[string]*musicapi.Project
	jobs     []*musicapi.GenerationJob
}

func (c *fakeMusicClient) GetTrack(_ context.Context, id string) (*musicapi.Track, error) {
	if t, ok := c.tracks[id]; ok {
		return t, nil
	}
	return nil, pkgerrors.ErrNotFound
}

func (c *fakeMusicClient) GetProject(_ context.Context, id string) (*musicapi.Project, error) {
	if p, ok := c.projects[id]; ok {
		return p, nil
	}
	return nil, pkgerrors.ErrNotFound
}

func (c *fakeMusicClient) GetArtist(_ context.Context, _ string) (*musicapi.Artist, error) {
	return nil, pkgerrors.ErrNotFound
}

func (c *fakeMusicClient) GetPlaylist(_ context.Context, _ string) (*musicapi.Playlist, error) {
	return nil, pkgerrors.ErrNotFound
}

func (c *fakeMusicClient) ListActiveJobs(_ context.Context, _ int64) ([]*musicapi.GenerationJob, error) {
	return c.jobs, nil
}
