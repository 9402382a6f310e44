package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/soundloom/companion-bot/internal/platform/logger"
)

// Manager runs one supervisor plus one polling loop per active user session.
// The poller is deliberately independent of the push channel: even if the
// push side never recovers, a fixed-interval scan of in-flight jobs keeps the
// user's view converging.
type Manager struct {
	log     *logger.Logger
	bus     Bus
	cfg     SupervisorConfig
	onEvent func(JobEvent)
	poll    func(ctx context.Context, userID int64) error

	mu      sync.Mutex
	baseCtx context.Context
	cancels map[int64]context.CancelFunc
}

func NewManager(ctx context.Context, baseLog *logger.Logger, bus Bus, cfg SupervisorConfig, onEvent func(JobEvent), poll func(ctx context.Context, userID int64) error) *Manager {
	return &Manager{
		log:     baseLog.With("component", "FeedManager"),
		bus:     bus,
		cfg:     cfg.withDefaults(),
		onEvent: onEvent,
		poll:    poll,
		baseCtx: ctx,
		cancels: make(map[int64]context.CancelFunc),
	}
}

// EnsureRunning starts the user's feed if it isn't already up. Safe to call
// on every session start.
func (m *Manager) EnsureRunning(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cancels[userID]; ok {
		return
	}

	ctx, cancel := context.WithCancel(m.baseCtx)
	m.cancels[userID] = cancel

	// No bus means no push channel to supervise; the poller alone carries
	// delivery.
	if m.bus != nil {
		sup := NewSupervisor(m.log, m.bus, userID, m.cfg, m.onEvent)
		go func() {
			err := sup.Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				m.log.Warn("Feed supervisor exited", "user_id", userID, "error", err)
			}
		}()
	}
	go m.runPoller(ctx, userID)
}

func (m *Manager) runPoller(ctx context.Context, userID int64) {
	if m.poll == nil {
		return
	}
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.poll(ctx, userID); err != nil {
				m.log.Debug("Job poll failed", "user_id", userID, "error", err)
			}
		}
	}
}

func (m *Manager) Stop(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, ok := m.cancels[userID]; ok {
		cancel()
		delete(m.cancels, userID)
	}
}

func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for userID, cancel := range m.cancels {
		cancel()
		delete(m.cancels, userID)
	}
}
