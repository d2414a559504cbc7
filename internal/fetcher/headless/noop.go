package headless

import (
	"context"
	"errors"

	"github.com/openkenya/ecitizen-crawler/internal/directory"
)

// Noop implements directory.Fetcher but always returns an error, for builds
// or dry runs where a browser is not available.
type Noop struct{}

// NewNoop creates a new Noop fetcher.
func NewNoop() *Noop {
	return &Noop{}
}

// Fetch returns an error since this is a stub implementation.
func (Noop) Fetch(_ context.Context, _ directory.Target) (string, error) {
	return "", errors.New("headless fetcher not configured")
}
