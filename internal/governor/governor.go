// Package governor paces all network navigation through a single sequential
// path and escalates when the target platform shows signs of rate limiting.
package governor

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openkenya/ecitizen-crawler/internal/directory"
	"github.com/openkenya/ecitizen-crawler/internal/metrics"
)

// State is the governor's escalation level.
type State string

// Escalation levels. Aborted is terminal: once reached, every further fetch
// fails immediately and the run must be inspected manually.
const (
	StateNormal   State = "normal"
	StateCautious State = "cautious"
	StateBackoff  State = "backoff"
	StateAborted  State = "aborted"
)

// Config holds the pacing and retry knobs.
type Config struct {
	BaseDelayMin     time.Duration
	BaseDelayMax     time.Duration
	JitterMax        time.Duration
	CautiousDelayMin time.Duration
	CautiousDelayMax time.Duration
	CautiousWindow   int
	BackoffPause     time.Duration
	AbortThreshold   int
	MaxAttempts      int
	AttemptTimeout   time.Duration
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
}

// DefaultConfig returns the pacing profile used against the live platform.
func DefaultConfig() Config {
	return Config{
		BaseDelayMin:     2 * time.Second,
		BaseDelayMax:     6 * time.Second,
		JitterMax:        4 * time.Second,
		CautiousDelayMin: 10 * time.Second,
		CautiousDelayMax: 20 * time.Second,
		CautiousWindow:   10,
		BackoffPause:     3 * time.Minute,
		AbortThreshold:   5,
		MaxAttempts:      3,
		AttemptTimeout:   30 * time.Second,
		RetryBaseDelay:   250 * time.Millisecond,
		RetryMaxDelay:    5 * time.Second,
	}
}

// Governor wraps a Fetcher with pacing, anomaly detection, and escalating
// backoff. One instance owns the whole run's network path; Fetch serializes
// callers so navigation stays strictly sequential.
type Governor struct {
	fetcher directory.Fetcher
	cfg     Config
	logger  *zap.Logger

	// sleep and jitter are injectable so the state machine is testable
	// without real time.
	sleep  func(ctx context.Context, d time.Duration)
	jitter func(limit time.Duration) time.Duration

	mu           sync.Mutex
	state        State
	cautiousLeft int
	consecutive  int
	lastPause    time.Duration
	pendingPause time.Duration
}

// Option adjusts a Governor at construction time.
type Option func(*Governor)

// WithSleeper replaces the real pacing wait; tests use this to run the
// state machine instantly.
func WithSleeper(sleep func(ctx context.Context, d time.Duration)) Option {
	return func(g *Governor) { g.sleep = sleep }
}

// WithJitter replaces the random jitter source.
func WithJitter(jitter func(limit time.Duration) time.Duration) Option {
	return func(g *Governor) { g.jitter = jitter }
}

// New constructs a Governor in the Normal state.
func New(fetcher directory.Fetcher, cfg Config, logger *zap.Logger, opts ...Option) *Governor {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Governor{
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger,
		sleep:   timerSleep,
		jitter:  randomJitter,
		state:   StateNormal,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// State returns the current escalation level.
func (g *Governor) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Fetch paces, fetches with per-attempt retries, and feeds the outcome back
// into the state machine. A fetch that exhausts its attempts counts as one
// anomaly signal and is reported to the caller as a failed page, never as a
// fatal run error.
func (g *Governor) Fetch(ctx context.Context, target directory.Target) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == StateAborted {
		return "", directory.ErrAborted
	}

	g.sleep(ctx, g.nextDelay())
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("pacing wait: %w", err)
	}

	metrics.FetchesTotal.Inc()
	html, err := g.fetchWithRetries(ctx, target)
	if err != nil {
		metrics.FetchFailuresTotal.Inc()
		g.recordAnomaly(target, err)
		return "", err
	}

	g.recordSuccess()
	return html, nil
}

func (g *Governor) fetchWithRetries(ctx context.Context, target directory.Target) (string, error) {
	var lastErr error
	for attempt := 0; attempt < g.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			g.sleep(ctx, g.retryBackoff(attempt))
		}
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("fetch canceled: %w", err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.AttemptTimeout)
		html, err := g.fetcher.Fetch(attemptCtx, target)
		cancel()
		if err == nil {
			return html, nil
		}

		lastErr = err
		if errors.Is(err, context.DeadlineExceeded) {
			lastErr = fmt.Errorf("%w: %s", directory.ErrFetchTimeout, target.URL)
		}
		metrics.FetchRetriesTotal.Inc()
		g.logger.Warn("fetch attempt failed",
			zap.String("url", target.URL),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)
	}
	return "", fmt.Errorf("all %d attempts exhausted: %w", g.cfg.MaxAttempts, lastErr)
}

// nextDelay picks the pacing wait for the upcoming request and consumes any
// pending backoff pause. Callers hold g.mu.
func (g *Governor) nextDelay() time.Duration {
	pause := g.pendingPause
	g.pendingPause = 0

	switch g.state {
	case StateCautious, StateBackoff:
		return pause + g.uniform(g.cfg.CautiousDelayMin, g.cfg.CautiousDelayMax)
	default:
		return pause + g.uniform(g.cfg.BaseDelayMin, g.cfg.BaseDelayMax) + g.jitter(g.cfg.JitterMax)
	}
}

// recordSuccess resets the consecutive-anomaly count and walks the cautious
// window down. A single late success never short-circuits the window: only
// CautiousWindow consecutive clean requests return the governor to Normal.
// There is no automatic recovery from Backoff. Callers hold g.mu.
func (g *Governor) recordSuccess() {
	g.consecutive = 0
	if g.state == StateCautious {
		g.cautiousLeft--
		if g.cautiousLeft <= 0 {
			g.transition(StateNormal)
		}
	}
}

// recordAnomaly escalates the state machine. Callers hold g.mu.
func (g *Governor) recordAnomaly(target directory.Target, err error) {
	metrics.AnomaliesTotal.Inc()
	g.consecutive++
	g.logger.Warn("anomaly recorded",
		zap.String("url", target.URL),
		zap.Int("consecutive", g.consecutive),
		zap.String("state", string(g.state)),
		zap.Bool("blocking_signal", directory.IsAnomaly(err)),
		zap.Error(err),
	)

	if g.consecutive >= g.cfg.AbortThreshold {
		g.transition(StateAborted)
		return
	}

	switch g.state {
	case StateNormal:
		g.cautiousLeft = g.cfg.CautiousWindow
		g.transition(StateCautious)
	case StateCautious:
		g.lastPause = g.cfg.BackoffPause
		g.pendingPause = g.lastPause
		g.transition(StateBackoff)
	case StateBackoff:
		g.lastPause *= 2
		g.pendingPause = g.lastPause
	}
}

func (g *Governor) transition(next State) {
	if g.state == next {
		return
	}
	g.logger.Info("governor state change",
		zap.String("from", string(g.state)),
		zap.String("to", string(next)),
	)
	g.state = next
	metrics.GovernorTransitionsTotal.WithLabelValues(string(next)).Inc()
}

func (g *Governor) retryBackoff(attempt int) time.Duration {
	delay := g.cfg.RetryBaseDelay << uint(attempt)
	if delay > g.cfg.RetryMaxDelay {
		delay = g.cfg.RetryMaxDelay
	}
	return delay/2 + g.jitter(delay/2)
}

func (g *Governor) uniform(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + g.jitter(max-min)
}

func timerSleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// randomJitter returns a uniformly distributed duration in [0, limit).
func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
