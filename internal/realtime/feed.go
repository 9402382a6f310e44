package realtime

import "context"

// JobEvent is one change notification for a user's in-flight generation job.
type JobEvent struct {
	UserID   int64  `json:"user_id"`
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	Progress int    `json:"progress,omitempty"`
	TrackID  string `json:"track_id,omitempty"`
}

// Bus carries job events between the backend and per-user sessions.
type Bus interface {
	Publish(ctx context.Context, ev JobEvent) error
	Subscribe(ctx context.Context, userID int64) (Subscription, error)
	Close() error
}

// Subscription is a live handle on one user's event channel. It must be
// closed before re-subscribing or listeners leak.
type Subscription interface {
	Events() <-chan JobEvent
	Close() error
}
