package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/soundloom/companion-bot/internal/platform/logger"
)

// ErrPushChannelDown is returned when the supervisor stops retrying the push
// channel; the caller's polling fallback remains the only delivery path.
var ErrPushChannelDown = errors.New("push channel down after max attempts")

type SupervisorState int

const (
	StateDisconnected SupervisorState = iota
	StateConnecting
	StateSubscribed
	StateBackoff
)

type SupervisorConfig struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
	PollInterval time.Duration
}

func (c SupervisorConfig) withDefaults() SupervisorConfig {
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 8
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 15 * time.Second
	}
	return c
}

// Supervisor keeps one user's push subscription alive:
// Disconnected -> Connecting -> Subscribed -> (Error -> Backoff -> Connecting)*.
// Any delivered event resets the failure counter; after MaxAttempts
// consecutive failures it gives up and the polling fallback carries the load.
type Supervisor struct {
	log     *logger.Logger
	bus     Bus
	userID  int64
	cfg     SupervisorConfig
	onEvent func(JobEvent)

	mu       sync.Mutex
	state    SupervisorState
	attempts int

	sleep func(ctx context.Context, d time.Duration) error
}

func NewSupervisor(baseLog *logger.Logger, bus Bus, userID int64, cfg SupervisorConfig, onEvent func(JobEvent)) *Supervisor {
	return &Supervisor{
		log:     baseLog.With("component", "FeedSupervisor", "user_id", userID),
		bus:     bus,
		userID:  userID,
		cfg:     cfg.withDefaults(),
		onEvent: onEvent,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NextDelay is the backoff for the given consecutive-failure count (1-based):
// BaseDelay doubled per failure, capped at MaxDelay.
func (s *Supervisor) NextDelay(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	delay := s.cfg.BaseDelay
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= s.cfg.MaxDelay {
			return s.cfg.MaxDelay
		}
	}
	if delay > s.cfg.MaxDelay {
		return s.cfg.MaxDelay
	}
	return delay
}

func (s *Supervisor) State() SupervisorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func (s *Supervisor) setState(st SupervisorState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Run blocks until the context is cancelled or the retry budget is exhausted.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.setState(StateDisconnected)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.setState(StateConnecting)

		sub, err := s.bus.Subscribe(ctx, s.userID)
		if err != nil {
			if giveUp, backoffErr := s.backoff(ctx, err); giveUp || backoffErr != nil {
				if backoffErr != nil {
					return backoffErr
				}
				return ErrPushChannelDown
			}
			continue
		}

		s.setState(StateSubscribed)
		closed := s.consume(ctx, sub)
		// The handle must be released before any re-subscribe or listeners
		// pile up on the channel.
		_ = sub.Close()
		if !closed {
			return ctx.Err()
		}

		if giveUp, backoffErr := s.backoff(ctx, errors.New("event channel closed")); giveUp || backoffErr != nil {
			if backoffErr != nil {
				return backoffErr
			}
			return ErrPushChannelDown
		}
	}
}

// consume pumps events until the channel closes (returns true) or the context
// ends (returns false). Every delivered event zeroes the failure counter.
func (s *Supervisor) consume(ctx context.Context, sub Subscription) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-sub.Events():
			if !ok {
				return true
			}
			s.mu.Lock()
			s.attempts = 0
			s.mu.Unlock()
			s.onEvent(ev)
		}
	}
}

func (s *Supervisor) backoff(ctx context.Context, cause error) (giveUp bool, err error) {
	s.mu.Lock()
	s.attempts++
	attempts := s.attempts
	s.mu.Unlock()

	if attempts >= s.cfg.MaxAttempts {
		s.log.Warn("Push channel retry budget exhausted, leaving it to the poller",
			"attempts", attempts, "error", cause)
		return true, nil
	}

	delay := s.NextDelay(attempts)
	s.log.Debug("Push channel down, backing off",
		"attempt", attempts, "delay", delay.String(), "error", cause)
	s.setState(StateBackoff)
	if err := s.sleep(ctx, delay); err != nil {
		return false, err
	}
	return false, nil
}
