package governor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openkenya/ecitizen-crawler/internal/directory"
)

// scriptedFetcher returns canned outcomes in order, then repeats the last.
type scriptedFetcher struct {
	outcomes []error
	calls    int
}

func (f *scriptedFetcher) Fetch(_ context.Context, _ directory.Target) (string, error) {
	idx := f.calls
	if idx >= len(f.outcomes) {
		idx = len(f.outcomes) - 1
	}
	f.calls++
	if err := f.outcomes[idx]; err != nil {
		return "", err
	}
	return "<html>ok</html>", nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = 1
	cfg.AttemptTimeout = time.Second
	return cfg
}

func newTestGovernor(f directory.Fetcher, cfg Config) *Governor {
	return New(f, cfg, zap.NewNop(),
		WithSleeper(func(context.Context, time.Duration) {}),
		WithJitter(func(time.Duration) time.Duration { return 0 }),
	)
}

func TestFetchSuccessStaysNormal(t *testing.T) {
	fetcher := &scriptedFetcher{outcomes: []error{nil}}
	g := newTestGovernor(fetcher, testConfig())

	html, err := g.Fetch(context.Background(), directory.Target{URL: "https://example.org"})
	require.NoError(t, err)
	require.Equal(t, "<html>ok</html>", html)
	require.Equal(t, StateNormal, g.State())
}

func TestAnomalyEntersCautious(t *testing.T) {
	fetcher := &scriptedFetcher{outcomes: []error{&directory.StatusError{Code: 429, URL: "u"}, nil}}
	g := newTestGovernor(fetcher, testConfig())

	_, err := g.Fetch(context.Background(), directory.Target{URL: "u"})
	require.Error(t, err)
	require.Equal(t, StateCautious, g.State())
}

func TestCautiousWindowReturnsToNormal(t *testing.T) {
	outcomes := []error{errors.New("boom")}
	for i := 0; i < 10; i++ {
		outcomes = append(outcomes, nil)
	}
	fetcher := &scriptedFetcher{outcomes: outcomes}
	g := newTestGovernor(fetcher, testConfig())

	_, err := g.Fetch(context.Background(), directory.Target{URL: "u"})
	require.Error(t, err)

	for i := 0; i < 9; i++ {
		_, err := g.Fetch(context.Background(), directory.Target{URL: "u"})
		require.NoError(t, err)
		require.Equal(t, StateCautious, g.State(), "request %d should still be cautious", i+1)
	}
	_, err = g.Fetch(context.Background(), directory.Target{URL: "u"})
	require.NoError(t, err)
	require.Equal(t, StateNormal, g.State())
}

func TestPersistentAnomaliesEscalateToBackoff(t *testing.T) {
	fetcher := &scriptedFetcher{outcomes: []error{
		errors.New("boom"),
		errors.New("boom"),
		nil,
	}}
	g := newTestGovernor(fetcher, testConfig())

	_, _ = g.Fetch(context.Background(), directory.Target{URL: "u"})
	require.Equal(t, StateCautious, g.State())
	_, _ = g.Fetch(context.Background(), directory.Target{URL: "u"})
	require.Equal(t, StateBackoff, g.State())

	// A success in Backoff does not recover the governor.
	_, err := g.Fetch(context.Background(), directory.Target{URL: "u"})
	require.NoError(t, err)
	require.Equal(t, StateBackoff, g.State())
}

func TestBackoffPauseDoubles(t *testing.T) {
	fetcher := &scriptedFetcher{outcomes: []error{errors.New("boom")}}
	var waits []time.Duration
	cfg := testConfig()
	cfg.AbortThreshold = 10
	g := New(fetcher, cfg, zap.NewNop(),
		WithSleeper(func(_ context.Context, d time.Duration) { waits = append(waits, d) }),
		WithJitter(func(time.Duration) time.Duration { return 0 }),
	)

	for i := 0; i < 4; i++ {
		_, err := g.Fetch(context.Background(), directory.Target{URL: "u"})
		require.Error(t, err)
	}
	require.Equal(t, StateBackoff, g.State())

	// Waits: normal, cautious, backoff pause (3m) + cautious floor,
	// doubled pause (6m) + cautious floor.
	require.Len(t, waits, 4)
	require.Equal(t, cfg.BaseDelayMin, waits[0])
	require.Equal(t, cfg.CautiousDelayMin, waits[1])
	require.Equal(t, cfg.BackoffPause+cfg.CautiousDelayMin, waits[2])
	require.Equal(t, 2*cfg.BackoffPause+cfg.CautiousDelayMin, waits[3])
}

func TestAbortAfterFiveConsecutiveAnomalies(t *testing.T) {
	fetcher := &scriptedFetcher{outcomes: []error{errors.New("boom")}}
	g := newTestGovernor(fetcher, testConfig())

	for i := 0; i < 5; i++ {
		_, err := g.Fetch(context.Background(), directory.Target{URL: "u"})
		require.Error(t, err)
	}
	require.Equal(t, StateAborted, g.State())

	calls := fetcher.calls
	_, err := g.Fetch(context.Background(), directory.Target{URL: "u"})
	require.ErrorIs(t, err, directory.ErrAborted)
	require.Equal(t, calls, fetcher.calls, "aborted governor must not attempt network I/O")
}

func TestSuccessResetsConsecutiveCount(t *testing.T) {
	fetcher := &scriptedFetcher{outcomes: []error{
		errors.New("boom"), errors.New("boom"),
		nil,
		errors.New("boom"), errors.New("boom"),
	}}
	g := newTestGovernor(fetcher, testConfig())

	for i := 0; i < 5; i++ {
		_, _ = g.Fetch(context.Background(), directory.Target{URL: "u"})
	}
	require.NotEqual(t, StateAborted, g.State(), "a success between anomalies resets the abort count")
}

func TestAttemptRetriesBeforeAnomaly(t *testing.T) {
	fetcher := &scriptedFetcher{outcomes: []error{
		errors.New("transient"),
		errors.New("transient"),
		nil,
	}}
	cfg := testConfig()
	cfg.MaxAttempts = 3
	g := newTestGovernor(fetcher, cfg)

	html, err := g.Fetch(context.Background(), directory.Target{URL: "u"})
	require.NoError(t, err)
	require.NotEmpty(t, html)
	require.Equal(t, StateNormal, g.State(), "retried success is not an anomaly")
	require.Equal(t, 3, fetcher.calls)
}
