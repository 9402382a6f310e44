package session

import (
	"context"
	"testing"
	"time"

	"github.com/soundloom/companion-bot/internal/types"
)

func newTestTracker(t *testing.T) (*Tracker, *fakeBot, *fakeTrackedMessageRepo) {
	t.Helper()
	bot := &fakeBot{}
	repo := &fakeTrackedMessageRepo{}
	return NewTracker(testLogger(t), repo, bot), bot, repo
}

func TestDeleteCategoryLeavesOtherCategories(t *testing.T) {
	tracker, bot, repo := newTestTracker(t)
	ctx := context.Background()
	const chat = int64(500)

	if err := tracker.Track(ctx, chat, 1, types.CategoryMenu, "main", TrackOptions{Persistent: true}); err != nil {
		t.Fatalf("track menu: %v", err)
	}
	if err := tracker.Track(ctx, chat, 2, types.CategoryContent, "track_preview", TrackOptions{}); err != nil {
		t.Fatalf("track content: %v", err)
	}
	if err := tracker.Track(ctx, chat, 3, types.CategoryContent, "track_preview", TrackOptions{}); err != nil {
		t.Fatalf("track content: %v", err)
	}

	if err := tracker.DeleteCategory(ctx, chat, types.CategoryContent, nil); err != nil {
		t.Fatalf("delete content category: %v", err)
	}

	if got := repo.count(types.CategoryContent); got != 0 {
		t.Fatalf("content records remaining=%d, want 0", got)
	}
	if got := repo.count(types.CategoryMenu); got != 1 {
		t.Fatalf("menu records remaining=%d, want 1", got)
	}
	if len(bot.deletes) != 2 {
		t.Fatalf("transport deletes=%d, want 2", len(bot.deletes))
	}
}

func TestDeleteCategorySkipsExcludedMessage(t *testing.T) {
	tracker, bot, repo := newTestTracker(t)
	ctx := context.Background()
	const chat = int64(501)

	tracker.Track(ctx, chat, 10, types.CategoryMenu, "main", TrackOptions{Persistent: true})
	tracker.Track(ctx, chat, 11, types.CategoryMenu, "library", TrackOptions{Persistent: true})

	keep := int64(11)
	if err := tracker.DeleteCategory(ctx, chat, types.CategoryMenu, &keep); err != nil {
		t.Fatalf("delete category: %v", err)
	}

	for _, d := range bot.deletes {
		if d.MessageID == keep {
			t.Fatal("excluded message must not be deleted on the transport")
		}
	}
	remaining, _ := repo.ListByCategory(ctx, nil, chat, types.CategoryMenu)
	if len(remaining) != 1 || remaining[0].MessageID != keep {
		t.Fatalf("remaining=%+v, want only message %d", remaining, keep)
	}
}

func TestDeleteCategoryDropsRecordOnTransportFailure(t *testing.T) {
	tracker, bot, repo := newTestTracker(t)
	bot.failDelete = true
	ctx := context.Background()
	const chat = int64(502)

	tracker.Track(ctx, chat, 20, types.CategoryStatus, "generation", TrackOptions{})
	if err := tracker.DeleteCategory(ctx, chat, types.CategoryStatus, nil); err != nil {
		t.Fatalf("delete category: %v", err)
	}
	if got := repo.count(types.CategoryStatus); got != 0 {
		t.Fatalf("record should be dropped even when the transport delete fails, got %d", got)
	}
}

func TestPurgeExpired(t *testing.T) {
	tracker, bot, repo := newTestTracker(t)
	ctx := context.Background()
	const chat = int64(503)

	// Already past its TTL.
	past := time.Now().UTC().Add(-time.Minute)
	repo.Create(ctx, nil, &types.TrackedMessage{
		ChatID: chat, MessageID: 30, Category: types.CategoryStatus, ExpiresAt: &past,
	})
	// Still live.
	tracker.Track(ctx, chat, 31, types.CategoryStatus, "generation", TrackOptions{ExpiresIn: time.Hour})
	// Persistent entries never expire, TTL or not.
	repo.Create(ctx, nil, &types.TrackedMessage{
		ChatID: chat, MessageID: 32, Category: types.CategoryMenu, Persistent: true, ExpiresAt: &past,
	})

	purged, err := tracker.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Fatalf("purged=%d, want 1", purged)
	}
	if len(bot.deletes) != 1 || bot.deletes[0].MessageID != 30 {
		t.Fatalf("deletes=%+v, want only message 30", bot.deletes)
	}
	if got := repo.count(types.CategoryMenu); got != 1 {
		t.Fatal("persistent entry must survive the sweep")
	}
}

func TestPurgeExpiredEmpty(t *testing.T) {
	tracker, bot, _ := newTestTracker(t)

	purged, err := tracker.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 0 || len(bot.deletes) != 0 {
		t.Fatalf("expected a no-op sweep, purged=%d deletes=%d", purged, len(bot.deletes))
	}
}
