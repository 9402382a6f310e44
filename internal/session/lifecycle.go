package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/soundloom/companion-bot/internal/clients/botapi"
	"github.com/soundloom/companion-bot/internal/platform/logger"
	"github.com/soundloom/companion-bot/internal/repos"
	"github.com/soundloom/companion-bot/internal/types"
)

// Tracker is the message lifecycle manager: every outgoing message is
// registered under a category so screen transitions can purge their
// predecessors and a periodic sweep can drop expired status messages.
type Tracker struct {
	log  *logger.Logger
	repo repos.TrackedMessageRepo
	bot  botapi.Client
}

func NewTracker(baseLog *logger.Logger, repo repos.TrackedMessageRepo, bot botapi.Client) *Tracker {
	return &Tracker{
		log:  baseLog.With("component", "MessageTracker"),
		repo: repo,
		bot:  bot,
	}
}

type TrackOptions struct {
	ExpiresIn  time.Duration
	Persistent bool
}

func (t *Tracker) Track(ctx context.Context, chatID, messageID int64, category types.MessageCategory, tag string, opts TrackOptions) error {
	msg := &types.TrackedMessage{
		ChatID:     chatID,
		MessageID:  messageID,
		Category:   category,
		Tag:        tag,
		Persistent: opts.Persistent,
	}
	if opts.ExpiresIn > 0 {
		expires := time.Now().UTC().Add(opts.ExpiresIn)
		msg.ExpiresAt = &expires
	}
	_, err := t.repo.Create(ctx, nil, msg)
	return err
}

// Forget drops the record for a single message whose transport delete was
// already issued elsewhere, so a later category purge does not delete it a
// second time.
func (t *Tracker) Forget(ctx context.Context, chatID, messageID int64) error {
	return t.repo.DeleteByMessage(ctx, nil, chatID, messageID)
}

// DeleteCategory issues best-effort transport deletes for every tracked
// message in the category, skipping the excluded id (the message being edited
// in place). Records are dropped whether or not the transport delete worked;
// a dangling reference must never block a future replacement.
func (t *Tracker) DeleteCategory(ctx context.Context, chatID int64, category types.MessageCategory, except *int64) error {
	tracked, err := t.repo.ListByCategory(ctx, nil, chatID, category)
	if err != nil {
		return err
	}

	ids := make([]uuid.UUID, 0, len(tracked))
	for _, msg := range tracked {
		if except != nil && msg.MessageID == *except {
			continue
		}
		if err := t.bot.DeleteMessage(ctx, msg.ChatID, msg.MessageID); err != nil {
			t.log.Warn("Transport delete failed, dropping record anyway",
				"chat_id", msg.ChatID, "message_id", msg.MessageID, "category", string(category), "error", err)
		}
		ids = append(ids, msg.ID)
	}
	return t.repo.DeleteByIDs(ctx, nil, ids)
}

// PurgeExpired removes non-persistent entries whose TTL has passed, in any
// category. A stale progress message left visible is cosmetic, so transport
// failures are logged and never retried.
func (t *Tracker) PurgeExpired(ctx context.Context) (int, error) {
	expired, err := t.repo.ListExpired(ctx, nil, time.Now().UTC(), 200)
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	ids := make([]uuid.UUID, 0, len(expired))
	for _, msg := range expired {
		if err := t.bot.DeleteMessage(ctx, msg.ChatID, msg.MessageID); err != nil {
			t.log.Warn("Expired message delete failed",
				"chat_id", msg.ChatID, "message_id", msg.MessageID, "error", err)
		}
		ids = append(ids, msg.ID)
	}
	if err := t.repo.DeleteByIDs(ctx, nil, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// RunSweeper blocks, purging expired messages on a fixed interval until the
// context is cancelled.
func (t *Tracker) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	t.log.Info("Message expiry sweeper started", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			t.log.Info("Message expiry sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			purged, err := t.PurgeExpired(ctx)
			if err != nil {
				t.log.Warn("Expiry sweep failed", "error", err)
				continue
			}
			if purged > 0 {
				t.log.Debug("Expiry sweep purged messages", "count", purged)
			}
		}
	}
}
