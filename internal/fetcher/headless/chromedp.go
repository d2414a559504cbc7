// Package headless fetches pages through a headless Chrome instance. The
// directory platform renders its listings client-side, so every fetch must
// wait for a structural ready condition on the rendered DOM rather than a
// fixed timeout.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/openkenya/ecitizen-crawler/internal/directory"
)

// Config controls the behavior of the headless fetcher.
type Config struct {
	UserAgent   string
	SettleDelay time.Duration
}

// Fetcher implements directory.Fetcher using chromedp. A single browser
// allocator is shared across the run so session and cookie state persists
// between sequential navigations.
type Fetcher struct {
	cfg         Config
	allocator   context.Context
	allocCancel context.CancelFunc
}

// New creates a headless fetcher backed by chromedp.
func New(cfg Config) (*Fetcher, error) {
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 500 * time.Millisecond
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context, shutting the browser down.
func (f *Fetcher) Close() {
	f.allocCancel()
}

// Fetch navigates to the target, waits for its ready condition, and returns
// the rendered document. Timeouts, non-2xx document responses, and empty
// expected content surface as distinguishable errors so the governor can
// classify them as anomalies.
func (f *Fetcher) Fetch(ctx context.Context, target directory.Target) (string, error) {
	taskCtx, taskCancel := chromedp.NewContext(f.allocator)
	defer taskCancel()

	// Honor the caller's deadline on the browser task.
	stop := context.AfterFunc(ctx, taskCancel)
	defer stop()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	ready := target.ReadySelector
	if ready == "" {
		ready = "body"
	}

	var html, readyText string
	actions := []chromedp.Action{
		f.networkSetupAction(),
		chromedp.Navigate(target.URL),
		chromedp.WaitReady(ready, chromedp.ByQuery),
		chromedp.Sleep(f.cfg.SettleDelay),
		chromedp.Text(ready, &readyText, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %s", directory.ErrFetchTimeout, target.URL)
		}
		return "", fmt.Errorf("chromedp run: %w", err)
	}

	if status := meta.status(); status != 0 && (status < 200 || status > 299) {
		return "", &directory.StatusError{Code: status, URL: target.URL}
	}
	if strings.TrimSpace(readyText) == "" && strings.TrimSpace(html) == "" {
		return "", fmt.Errorf("%w: %s", directory.ErrEmptyContent, target.URL)
	}

	return html, nil
}

func (f *Fetcher) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

// responseMeta captures the document response status from CDP events.
type responseMeta struct {
	mu         sync.RWMutex
	statusCode int
	headers    http.Header
}

func newResponseMeta() *responseMeta {
	return &responseMeta{headers: http.Header{}}
}

func (m *responseMeta) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	headers := http.Header{}
	for key, value := range resp.Response.Headers {
		headers.Add(key, fmt.Sprint(value))
	}
	m.mu.Lock()
	m.statusCode = int(resp.Response.Status)
	m.headers = headers
	m.mu.Unlock()
}

func (m *responseMeta) status() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statusCode
}
