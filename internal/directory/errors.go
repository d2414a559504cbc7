package directory

import (
	"errors"
	"fmt"
)

// Sentinel fetch errors. The governor's anomaly detection relies on these
// being distinguishable from ordinary failures.
var (
	// ErrFetchTimeout reports that navigation or the ready condition did
	// not complete within the attempt deadline.
	ErrFetchTimeout = errors.New("fetch timed out")

	// ErrEmptyContent reports that the ready condition held but the
	// expected content was empty.
	ErrEmptyContent = errors.New("expected content is empty")

	// ErrAborted reports that the governor reached its abort threshold;
	// no further network fetches will be attempted this run.
	ErrAborted = errors.New("fetching aborted after repeated anomalies")
)

// StatusError reports a non-2xx document response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d fetching %s", e.Code, e.URL)
}

// IsAnomaly reports whether a fetch error suggests rate limiting or bot
// detection rather than an ordinary transient failure. HTTP 429 and 403 and
// server errors are treated as blocking signals.
func IsAnomaly(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrFetchTimeout) || errors.Is(err, ErrEmptyContent) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == 429 || statusErr.Code == 403 || statusErr.Code >= 500
	}
	return false
}
