package realtime

import (
	"context"
	"testing"
	"time"
)

func TestManagerWithoutBusStillPolls(t *testing.T) {
	polled := make(chan int64, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewManager(ctx, testLogger(t), nil, SupervisorConfig{
		PollInterval: 5 * time.Millisecond,
	}, func(JobEvent) {}, func(_ context.Context, userID int64) error {
		polled <- userID
		return nil
	})
	m.EnsureRunning(7)

	select {
	case userID := <-polled:
		if userID != 7 {
			t.Fatalf("polled user=%d, want 7", userID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poller never ran without a bus")
	}
	m.Stop(7)
}

func TestManagerEnsureRunningIdempotent(t *testing.T) {
	bus := &scriptedBus{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewManager(ctx, testLogger(t), bus, SupervisorConfig{
		PollInterval: time.Hour,
	}, func(JobEvent) {}, nil)
	m.EnsureRunning(1)
	m.EnsureRunning(1)

	deadline := time.After(2 * time.Second)
	for {
		bus.mu.Lock()
		n := len(bus.subs)
		bus.mu.Unlock()
		if n >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("feed never subscribed")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	bus.mu.Lock()
	calls := bus.calls
	bus.mu.Unlock()
	if calls != 1 {
		t.Fatalf("subscribe calls=%d, want 1 for a deduplicated feed", calls)
	}
}
