package directory

import (
	"context"
	"time"
)

// Fetcher loads a navigation target and returns the rendered HTML.
type Fetcher interface {
	Fetch(ctx context.Context, target Target) (string, error)
}

// ArtifactStore persists raw page content addressed by target key.
// Get before Put is a cache miss, never an error.
type ArtifactStore interface {
	Put(key string, html string) error
	Get(key string) (html string, ok bool, err error)
}

// Ledger records per-stage completion markers and a failure log so a later
// run can skip finished work and selectively retry failed keys. A key is
// marked complete only after its downstream processing succeeds; fetch
// completion is the artifact store's concern, never the ledger's.
type Ledger interface {
	MarkComplete(ctx context.Context, phase string, key string) error
	IsComplete(ctx context.Context, phase string, key string) (bool, error)
	RecordFailure(ctx context.Context, phase string, key string, errText string) error
	ClearFailure(ctx context.Context, phase string, key string) error
	Failures(ctx context.Context) ([]Failure, error)
}

// Failure is one entry in the ledger's failure log.
type Failure struct {
	Phase      string    `json:"phase"`
	Key        string    `json:"key"`
	Error      string    `json:"error"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Publisher pushes run and phase events to an external channel.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}
