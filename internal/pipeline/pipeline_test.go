package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openkenya/ecitizen-crawler/internal/directory"
	"github.com/openkenya/ecitizen-crawler/internal/ids"
	"github.com/openkenya/ecitizen-crawler/internal/publisher/memory"
	"github.com/openkenya/ecitizen-crawler/internal/store"
)

const (
	faqURL        = "https://accounts.example.test/help-and-support"
	agenciesURL   = "https://accounts.example.test/agencies"
	ministriesURL = "https://accounts.example.test/national-ministries"
	ministryURL   = "https://accounts.example.test/ministries/moh"
	placementURL  = "https://accounts.example.test/ministries/moh?department=medical"
)

const faqHTML = `<html><body><ul>
<li id="faq_1"><button>How do I create an account?</button><div>Use the sign up page.</div></li>
<li id="faq_2"><button>How do I reset my password?</button><div>Use the reset link.</div></li>
</ul></body></html>`

const agenciesHTML = `<html><body>
<a href="/agencies/knh"><img src="/logos/knh.png"/><h4>Kenyatta National Hospital</h4><p>National referral hospital.</p></a>
<a href="/agencies/ntsa"><img src="/logos/ntsa.png"/><h4>National Transport and Safety Authority</h4><p>Road transport regulator.</p></a>
</body></html>`

const ministriesHTML = `<html><body>
<a href="/ministries/moh">Ministry of Health</a>
</body></html>`

const ministryHTML = `<html><body>
<dl><dd>1</dd><dd>7</dd></dl>
<article>Health policy and national referral services.</article>
<ul role="listbox">
<div><span>Medical Services</span>
<ul><li><a href="/ministries/moh?department=medical">Kenyatta National Hospital</a></li></ul>
</div>
</ul>
</body></html>`

const servicesHTML = `<html><body>
<a href="/services/book">Book Appointment</a>
<a href="/services/records">Request Records</a>
</body></html>`

// mapFetcher serves canned pages by URL and counts network fetches.
type mapFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls int
}

func (f *mapFetcher) Fetch(_ context.Context, target directory.Target) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	html, ok := f.pages[target.URL]
	if !ok {
		return "", &directory.StatusError{Code: 404, URL: target.URL}
	}
	return html, nil
}

func (f *mapFetcher) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// abortingFetcher simulates the governor reaching its abort threshold at a
// particular URL.
type abortingFetcher struct {
	inner   mapFetcher
	abortAt string
}

func (f *abortingFetcher) Fetch(ctx context.Context, target directory.Target) (string, error) {
	if target.URL == f.abortAt {
		return "", directory.ErrAborted
	}
	return f.inner.Fetch(ctx, target)
}

func allPages() map[string]string {
	return map[string]string{
		faqURL:        faqHTML,
		agenciesURL:   agenciesHTML,
		ministriesURL: ministriesHTML,
		ministryURL:   ministryHTML,
		placementURL:  servicesHTML,
	}
}

func testSeeds() Seeds {
	return Seeds{
		FAQURL:             faqURL,
		AgencyDirectoryURL: agenciesURL,
		MinistryListURL:    ministriesURL,
	}
}

func newTestCoordinator(t *testing.T, dir string, fetcher directory.Fetcher, pub directory.Publisher) *Coordinator {
	t.Helper()
	artifacts, err := store.NewArtifactStore(dir)
	require.NoError(t, err)
	ledger, err := store.OpenLedger(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })

	return NewCoordinator(fetcher, artifacts, ledger, pub, zap.NewNop(), Options{
		Seeds:      testSeeds(),
		PoolSize:   2,
		EventTopic: "crawl-events",
	})
}

func TestRunBuildsFullGraph(t *testing.T) {
	fetcher := &mapFetcher{pages: allPages()}
	pub := memory.New()
	coord := newTestCoordinator(t, t.TempDir(), fetcher, pub)

	report, g, err := coord.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, StatusSuccess, report.Status)
	require.Equal(t, map[string]int{
		"ministries":  1,
		"departments": 1,
		"agencies":    1,
		"services":    2,
		"faqs":        2,
	}, report.Counts)
	require.Empty(t, report.Failures)
	require.Equal(t, 5, fetcher.fetchCount(), "one fetch per page")
	require.Equal(t, 0, report.Insights["agencies_missing_directory_metadata"])
	require.Equal(t, 0, report.Insights["agencies_without_services"])

	// Directory metadata joins onto the placement by name hash.
	require.Len(t, g.Agencies, 1)
	ag := g.Agencies[0]
	require.Equal(t, ids.StableID("Kenyatta National Hospital"), ag.AgencyNameHash)
	require.NotNil(t, ag.Description)
	require.Equal(t, "National referral hospital.", *ag.Description)
	require.Equal(t, 2, ag.ObservedServiceCount)

	// Reported 7 services, observed 2: one warning finding, delta 5.
	require.Len(t, report.Findings, 1)
	f := report.Findings[0]
	require.Equal(t, "count_discrepancy", f.Kind)
	require.Equal(t, 5, f.Delta)
}

func TestRunPublishesLifecycleEvents(t *testing.T) {
	pub := memory.New()
	coord := newTestCoordinator(t, t.TempDir(), &mapFetcher{pages: allPages()}, pub)

	_, _, err := coord.Run(context.Background())
	require.NoError(t, err)

	msgs := pub.MessagesFor("crawl-events")
	require.Len(t, msgs, 6, "run start, four phases, run completion")
	start, ok := msgs[0].Payload.(runEvent)
	require.True(t, ok)
	require.Equal(t, "run.started", start.Event)
	done, ok := msgs[5].Payload.(runEvent)
	require.True(t, ok)
	require.Equal(t, "run.completed", done.Event)
	require.NotNil(t, done.Report)
}

func TestRerunServesFromCacheWithoutFetching(t *testing.T) {
	dir := t.TempDir()
	first := newTestCoordinator(t, dir, &mapFetcher{pages: allPages()}, nil)
	firstReport, firstGraph, err := first.Run(context.Background())
	require.NoError(t, err)

	// A populated store must satisfy the whole re-run: the fetcher holds
	// no pages, so any network attempt would fail the comparison below.
	empty := &mapFetcher{pages: map[string]string{}}
	second := newTestCoordinator(t, dir, empty, nil)
	secondReport, secondGraph, err := second.Run(context.Background())
	require.NoError(t, err)

	require.Zero(t, empty.fetchCount())
	require.Equal(t, firstReport.Counts, secondReport.Counts)
	require.Equal(t, firstGraph, secondGraph)
	require.Equal(t, StatusSuccess, secondReport.Status)
}

func TestFailedPageIsRecordedNotFatal(t *testing.T) {
	pages := allPages()
	delete(pages, placementURL)
	coord := newTestCoordinator(t, t.TempDir(), &mapFetcher{pages: pages}, nil)

	report, g, err := coord.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, StatusPartial, report.Status)
	require.Len(t, report.Failures, 1)
	require.Equal(t, PhaseServices, report.Failures[0].Phase)
	require.Empty(t, g.Services)
	require.Len(t, g.Agencies, 1, "placement survives its failed service listing")
}

func TestRerunClearsRecoveredFailures(t *testing.T) {
	dir := t.TempDir()
	pages := allPages()
	delete(pages, placementURL)
	first := newTestCoordinator(t, dir, &mapFetcher{pages: pages}, nil)

	firstReport, _, err := first.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusPartial, firstReport.Status)
	require.Len(t, firstReport.Failures, 1)

	// The listing is reachable again: the second run retries only the
	// failed key and drops it from the failure log once it resolves.
	retry := &mapFetcher{pages: allPages()}
	second := newTestCoordinator(t, dir, retry, nil)
	secondReport, g, err := second.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, retry.fetchCount(), "only the failed listing is refetched")
	require.Empty(t, secondReport.Failures)
	require.Equal(t, StatusSuccess, secondReport.Status)
	require.Len(t, g.Services, 2)
}

func TestAbortStillParsesCachedArtifacts(t *testing.T) {
	dir := t.TempDir()
	artifacts, err := store.NewArtifactStore(dir)
	require.NoError(t, err)

	// Everything except the FAQ page is already cached from an earlier run.
	mid := ids.StableID("Ministry of Health")
	did := ids.StableID(mid, "Medical Services")
	aid := ids.StableID(mid, did, "Kenyatta National Hospital")
	require.NoError(t, artifacts.Put("agencies/page", agenciesHTML))
	require.NoError(t, artifacts.Put("ministries/list", ministriesHTML))
	require.NoError(t, artifacts.Put("ministries/"+mid+"/page", ministryHTML))
	require.NoError(t, artifacts.Put(
		"ministries/"+mid+"/departments/"+did+"/agencies/"+aid+"/services", servicesHTML))

	fetcher := &abortingFetcher{abortAt: faqURL}
	coord := newTestCoordinator(t, dir, fetcher, nil)

	report, g, err := coord.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, StatusAborted, report.Status)
	require.Zero(t, fetcher.inner.fetchCount(), "no fetches after the abort")
	require.Len(t, g.Ministries, 1, "cached pages are still parsed and resolved")
	require.Len(t, g.Departments, 1)
	require.Len(t, g.Agencies, 1)
	require.Len(t, g.Services, 2)
	require.Empty(t, g.FAQs)

	// Checkpoints record downstream processing, so the drained pages are
	// marked complete while the never-fetched FAQ page is not.
	ledger, err := store.OpenLedger(dir)
	require.NoError(t, err)
	defer ledger.Close()
	done, err := ledger.IsComplete(context.Background(), PhaseMinistries, "ministries/"+mid+"/page")
	require.NoError(t, err)
	require.True(t, done)
	done, err = ledger.IsComplete(context.Background(), PhaseFAQ, "faq/page")
	require.NoError(t, err)
	require.False(t, done)
}

func TestCachedParseFailureNeverRefetches(t *testing.T) {
	dir := t.TempDir()
	pages := allPages()
	pages[faqURL] = `<html><body><ul></ul></body></html>`
	first := newTestCoordinator(t, dir, &mapFetcher{pages: pages}, nil)

	firstReport, _, err := first.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusPartial, firstReport.Status)
	require.Len(t, firstReport.Failures, 1)
	require.Equal(t, PhaseFAQ, firstReport.Failures[0].Phase)

	// The broken page is cached, so the second run re-parses the artifact
	// instead of refetching it and the failure entry stays.
	empty := &mapFetcher{pages: map[string]string{}}
	second := newTestCoordinator(t, dir, empty, nil)
	secondReport, _, err := second.Run(context.Background())
	require.NoError(t, err)

	require.Zero(t, empty.fetchCount())
	require.Len(t, secondReport.Failures, 1)
	require.Equal(t, StatusPartial, secondReport.Status)
}

func TestAbortDrainsAndReportsPartialGraph(t *testing.T) {
	fetcher := &abortingFetcher{
		inner:   mapFetcher{pages: allPages()},
		abortAt: ministryURL,
	}
	coord := newTestCoordinator(t, t.TempDir(), fetcher, nil)

	report, g, err := coord.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, StatusAborted, report.Status)
	require.Len(t, g.FAQs, 2, "phases completed before the abort are kept")
	require.Len(t, g.Ministries, 1, "the seeded ministry survives")
	require.Empty(t, g.Departments)
	require.Empty(t, g.Services)
}
