// Package pipeline coordinates the crawl: three ordered barrier phases over
// the FAQ page, the global agency directory, and the ministry hierarchy.
// Fetching is strictly sequential through the paced fetcher; parsing and
// resolution of cached artifacts run on a bounded worker pool.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openkenya/ecitizen-crawler/internal/directory"
	"github.com/openkenya/ecitizen-crawler/internal/extract"
	"github.com/openkenya/ecitizen-crawler/internal/graph"
	"github.com/openkenya/ecitizen-crawler/internal/metrics"
	"github.com/openkenya/ecitizen-crawler/internal/resolve"
)

// Phase names used for ledger checkpoints and progress events.
const (
	PhaseFAQ        = "faq"
	PhaseAgencies   = "agencies"
	PhaseMinistries = "ministries"
	PhaseServices   = "services"
)

// Seeds holds the entry-point URLs for each phase.
type Seeds struct {
	FAQURL             string
	AgencyDirectoryURL string
	MinistryListURL    string
}

// Options configures a Coordinator.
type Options struct {
	Seeds          Seeds
	PoolSize       int
	CountTolerance int
	EventTopic     string
}

// Coordinator drives a full crawl run. The fetcher is expected to be the
// governor-paced path; the coordinator never talks to the network directly.
type Coordinator struct {
	fetcher   directory.Fetcher
	store     directory.ArtifactStore
	ledger    directory.Ledger
	publisher directory.Publisher
	logger    *zap.Logger
	opts      Options

	assembler *graph.Assembler
	index     *resolve.Index
	aborted   bool
}

// NewCoordinator wires a Coordinator. publisher may be nil when no event
// channel is configured.
func NewCoordinator(
	fetcher directory.Fetcher,
	store directory.ArtifactStore,
	ledger directory.Ledger,
	publisher directory.Publisher,
	logger *zap.Logger,
	opts Options,
) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		fetcher:   fetcher,
		store:     store,
		ledger:    ledger,
		publisher: publisher,
		logger:    logger,
		opts:      opts,
		assembler: graph.NewAssembler(),
		index:     resolve.NewIndex(),
	}
}

// Run executes all phases and returns the run report together with the
// finalized graph. Page-level failures never fail the run; the only run
// error is a broken local environment (store or ledger I/O).
func (c *Coordinator) Run(ctx context.Context) (*RunReport, *graph.Graph, error) {
	runID := uuid.NewString()
	started := time.Now().UTC()
	c.logger.Info("run started", zap.String("run_id", runID))
	c.publish(ctx, runEvent{RunID: runID, Event: "run.started"})

	if err := c.runFAQPhase(ctx, runID); err != nil {
		return nil, nil, err
	}
	if err := c.runAgencyPhase(ctx, runID); err != nil {
		return nil, nil, err
	}
	if err := c.runMinistryPhase(ctx, runID); err != nil {
		return nil, nil, err
	}

	g := c.assembler.Finalize()
	findings := append(c.assembler.Collisions(), graph.Validate(g, c.opts.CountTolerance)...)
	failures, err := c.ledger.Failures(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read failure log: %w", err)
	}

	report := &RunReport{
		RunID:      runID,
		Status:     c.status(findings, failures),
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Counts: map[string]int{
			"ministries":  len(g.Ministries),
			"departments": len(g.Departments),
			"agencies":    len(g.Agencies),
			"services":    len(g.Services),
			"faqs":        len(g.FAQs),
		},
		Insights: insights(g),
		Findings: findings,
		Failures: failures,
	}

	c.logger.Info("run finished",
		zap.String("run_id", runID),
		zap.String("status", string(report.Status)),
		zap.Any("counts", report.Counts),
		zap.Int("findings", len(findings)),
		zap.Int("failures", len(failures)),
	)
	c.publish(ctx, runEvent{RunID: runID, Event: "run.completed", Report: report})
	return report, g, nil
}

func (c *Coordinator) status(findings []graph.Finding, failures []directory.Failure) Status {
	if c.aborted {
		return StatusAborted
	}
	if graph.HasFatal(findings) || len(failures) > 0 {
		return StatusPartial
	}
	return StatusSuccess
}

// runFAQPhase fetches and resolves the standalone help page.
func (c *Coordinator) runFAQPhase(ctx context.Context, runID string) error {
	target := directory.Target{
		Key:           "faq/page",
		URL:           c.opts.Seeds.FAQURL,
		Kind:          directory.PageFAQ,
		ReadySelector: `li[id^="faq_"]`,
	}
	html, ok, err := c.cachedFetch(ctx, PhaseFAQ, target)
	if err != nil {
		return err
	}
	count := 0
	if ok {
		items, parseErr := extract.FAQPage(html)
		if parseErr != nil {
			c.recordFailure(ctx, PhaseFAQ, target.Key, parseErr)
		} else {
			metrics.PagesParsedTotal.WithLabelValues(string(target.Kind)).Inc()
			for _, f := range resolve.BuildFAQs(items) {
				c.assembler.AddFAQ(f)
				count++
			}
			metrics.EntitiesResolvedTotal.WithLabelValues("faq").Add(float64(count))
			if err := c.markProcessed(ctx, PhaseFAQ, target.Key); err != nil {
				return err
			}
		}
	}
	c.publish(ctx, phaseEvent{RunID: runID, Phase: PhaseFAQ, Count: count})
	return nil
}

// runAgencyPhase fetches the global directory listing and seeds the agency
// metadata index used during ministry traversal.
func (c *Coordinator) runAgencyPhase(ctx context.Context, runID string) error {
	target := directory.Target{
		Key:           "agencies/page",
		URL:           c.opts.Seeds.AgencyDirectoryURL,
		Kind:          directory.PageAgencyDirectory,
		ReadySelector: "h4",
	}
	html, ok, err := c.cachedFetch(ctx, PhaseAgencies, target)
	if err != nil {
		return err
	}
	count := 0
	if ok {
		cards, parseErr := extract.AgencyDirectory(html, target.URL)
		if parseErr != nil {
			c.recordFailure(ctx, PhaseAgencies, target.Key, parseErr)
		} else {
			metrics.PagesParsedTotal.WithLabelValues(string(target.Kind)).Inc()
			count = resolve.SeedIndex(c.index, cards)
			if err := c.markProcessed(ctx, PhaseAgencies, target.Key); err != nil {
				return err
			}
		}
	}
	c.logger.Info("agency index seeded", zap.Int("entries", c.index.Len()))
	c.publish(ctx, phaseEvent{RunID: runID, Phase: PhaseAgencies, Count: count})
	return nil
}

// ministryArtifact pairs a seeded ministry with its cached page content for
// the parallel parse step.
type ministryArtifact struct {
	ministry directory.Ministry
	html     string
}

// serviceTarget is a placement whose service listing still needs visiting.
type serviceTarget struct {
	agency directory.Agency
	target directory.Target
}

// serviceArtifact pairs a placement with its cached service listing.
type serviceArtifact struct {
	agency directory.Agency
	html   string
}

// runMinistryPhase walks the hierarchy: national listing, then each ministry
// page, then each placement's service listing. Fetches stay sequential;
// parsing of the cached artifacts runs on the worker pool. When the governor
// aborts, no further fetches are issued but every artifact already in hand
// is still parsed and resolved.
func (c *Coordinator) runMinistryPhase(ctx context.Context, runID string) error {
	listTarget := directory.Target{
		Key:           "ministries/list",
		URL:           c.opts.Seeds.MinistryListURL,
		Kind:          directory.PageMinistryList,
		ReadySelector: "a",
	}
	html, ok, err := c.cachedFetch(ctx, PhaseMinistries, listTarget)
	if err != nil {
		return err
	}
	var ministries []directory.Ministry
	if ok {
		links, parseErr := extract.MinistryList(html, listTarget.URL)
		if parseErr != nil {
			c.recordFailure(ctx, PhaseMinistries, listTarget.Key, parseErr)
		} else {
			metrics.PagesParsedTotal.WithLabelValues(string(listTarget.Kind)).Inc()
			ministries = resolve.BuildMinistries(links)
			if err := c.markProcessed(ctx, PhaseMinistries, listTarget.Key); err != nil {
				return err
			}
		}
	}
	for _, m := range ministries {
		c.assembler.AddMinistry(m)
	}
	metrics.EntitiesResolvedTotal.WithLabelValues("ministry").Add(float64(len(ministries)))

	// Sequential fetch of every ministry page. After an abort this loop keeps
	// going: cachedFetch serves the hits and skips only the misses, so pages
	// already in hand still reach the parse step below.
	var artifacts []ministryArtifact
	for _, m := range ministries {
		target := directory.Target{
			Key:           path.Join("ministries", m.MinistryID, "page"),
			URL:           m.MinistryURL,
			Kind:          directory.PageMinistry,
			ReadySelector: "dd",
		}
		pageHTML, pageOK, fetchErr := c.cachedFetch(ctx, PhaseMinistries, target)
		if fetchErr != nil {
			return fetchErr
		}
		if pageOK {
			artifacts = append(artifacts, ministryArtifact{ministry: m, html: pageHTML})
		}
	}

	// Parallel parse and resolve of the cached ministry pages. Service
	// targets surface here because placements are only known after the
	// department panel is resolved.
	var (
		mu             sync.Mutex
		serviceTargets []serviceTarget
	)
	parseErr := resolve.RunParallel(ctx, c.opts.PoolSize, artifacts, func(ctx context.Context, art ministryArtifact) error {
		targets, err := c.resolveMinistryPage(ctx, art)
		if err != nil {
			return err
		}
		mu.Lock()
		serviceTargets = append(serviceTargets, targets...)
		mu.Unlock()
		return nil
	})
	if parseErr != nil {
		return parseErr
	}
	c.publish(ctx, phaseEvent{RunID: runID, Phase: PhaseMinistries, Count: len(artifacts)})

	return c.runServiceStage(ctx, runID, serviceTargets)
}

// resolveMinistryPage parses one cached ministry page into overview fields
// and placements, and returns the service listings left to visit.
func (c *Coordinator) resolveMinistryPage(ctx context.Context, art ministryArtifact) ([]serviceTarget, error) {
	m := art.ministry
	key := path.Join("ministries", m.MinistryID, "page")

	overview, err := extract.Overview(art.html)
	if err != nil {
		c.recordFailure(ctx, PhaseMinistries, key, err)
		return nil, nil
	}
	var description *string
	if overview.Description != "" {
		description = &overview.Description
	}
	c.assembler.SetMinistryOverview(m.MinistryID, description,
		overview.ReportedAgencyCount, overview.ReportedServiceCount)

	blocks, err := extract.DepartmentPanel(art.html, m.MinistryURL)
	if err != nil {
		c.recordFailure(ctx, PhaseMinistries, key, err)
		return nil, nil
	}
	metrics.PagesParsedTotal.WithLabelValues(string(directory.PageMinistry)).Inc()

	departments, agencies := resolve.BuildPlacements(m.MinistryID, blocks, c.index)
	for _, d := range departments {
		c.assembler.AddDepartment(d)
	}
	for _, ag := range agencies {
		c.assembler.AddAgency(ag)
	}
	metrics.EntitiesResolvedTotal.WithLabelValues("department").Add(float64(len(departments)))
	metrics.EntitiesResolvedTotal.WithLabelValues("agency").Add(float64(len(agencies)))

	if err := c.markProcessed(ctx, PhaseMinistries, key); err != nil {
		return nil, err
	}

	targets := make([]serviceTarget, 0, len(agencies))
	for _, ag := range agencies {
		targets = append(targets, serviceTarget{
			agency: ag,
			target: directory.Target{
				Key: path.Join("ministries", ag.MinistryID,
					"departments", ag.DepartmentID,
					"agencies", ag.AgencyID, "services"),
				URL:           ag.PlacementURL,
				Kind:          directory.PageServiceList,
				ReadySelector: "a",
			},
		})
	}
	return targets, nil
}

// runServiceStage visits each placement's service listing sequentially, then
// resolves the cached listings in parallel.
func (c *Coordinator) runServiceStage(ctx context.Context, runID string, targets []serviceTarget) error {
	var artifacts []serviceArtifact
	for _, st := range targets {
		html, ok, err := c.cachedFetch(ctx, PhaseServices, st.target)
		if err != nil {
			return err
		}
		if ok {
			artifacts = append(artifacts, serviceArtifact{agency: st.agency, html: html})
		}
	}

	count := 0
	var mu sync.Mutex
	err := resolve.RunParallel(ctx, c.opts.PoolSize, artifacts, func(ctx context.Context, art serviceArtifact) error {
		key := path.Join("ministries", art.agency.MinistryID,
			"departments", art.agency.DepartmentID,
			"agencies", art.agency.AgencyID, "services")
		links, parseErr := extract.ServiceList(art.html, art.agency.PlacementURL)
		if parseErr != nil {
			c.recordFailure(ctx, PhaseServices, key, parseErr)
			return nil
		}
		metrics.PagesParsedTotal.WithLabelValues(string(directory.PageServiceList)).Inc()
		services := resolve.BuildServices(
			art.agency.MinistryID, art.agency.DepartmentID, art.agency.AgencyID, links)
		for _, s := range services {
			c.assembler.AddService(s)
		}
		metrics.EntitiesResolvedTotal.WithLabelValues("service").Add(float64(len(services)))
		mu.Lock()
		count += len(services)
		mu.Unlock()
		return c.markProcessed(ctx, PhaseServices, key)
	})
	if err != nil {
		return err
	}
	c.publish(ctx, phaseEvent{RunID: runID, Phase: PhaseServices, Count: count})
	return nil
}

// cachedFetch serves the target from the artifact store when present and
// goes through the paced fetcher otherwise. Cache hits are always served,
// even after an abort and regardless of checkpoint state: downstream
// processing failures never force a refetch. The bool result reports whether
// content is available; a failed page is recorded and skipped, never fatal.
// The error result is reserved for local store problems.
func (c *Coordinator) cachedFetch(ctx context.Context, phase string, target directory.Target) (string, bool, error) {
	html, hit, err := c.store.Get(target.Key)
	if err != nil {
		return "", false, fmt.Errorf("artifact store read %s: %w", target.Key, err)
	}
	if hit {
		metrics.CacheHitsTotal.Inc()
		return html, true, nil
	}
	if c.aborted {
		return "", false, nil
	}

	html, err = c.fetcher.Fetch(ctx, target)
	if err != nil {
		if errors.Is(err, directory.ErrAborted) {
			c.aborted = true
			c.logger.Error("governor aborted, draining without further fetches",
				zap.String("key", target.Key))
			return "", false, nil
		}
		c.recordFailure(ctx, phase, target.Key, err)
		return "", false, nil
	}

	if err := c.store.Put(target.Key, html); err != nil {
		return "", false, fmt.Errorf("artifact store write %s: %w", target.Key, err)
	}
	return html, true, nil
}

// markProcessed checkpoints a key once its parse and resolution succeeded,
// clearing any failure entry left by an earlier run. Keys already
// checkpointed by a previous run are skipped, so a warm re-run leaves the
// ledger untouched.
func (c *Coordinator) markProcessed(ctx context.Context, phase, key string) error {
	done, err := c.ledger.IsComplete(ctx, phase, key)
	if err != nil {
		return fmt.Errorf("ledger checkpoint read %s: %w", key, err)
	}
	if done {
		return nil
	}
	if err := c.ledger.MarkComplete(ctx, phase, key); err != nil {
		return fmt.Errorf("ledger checkpoint %s: %w", key, err)
	}
	if err := c.ledger.ClearFailure(ctx, phase, key); err != nil {
		return fmt.Errorf("ledger failure clear %s: %w", key, err)
	}
	return nil
}

func (c *Coordinator) recordFailure(ctx context.Context, phase, key string, cause error) {
	c.logger.Warn("page failed",
		zap.String("phase", phase),
		zap.String("key", key),
		zap.Error(cause),
	)
	if err := c.ledger.RecordFailure(ctx, phase, key, cause.Error()); err != nil {
		c.logger.Error("failure log write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *Coordinator) publish(ctx context.Context, payload any) {
	if c.publisher == nil {
		return
	}
	if _, err := c.publisher.Publish(ctx, c.opts.EventTopic, payload); err != nil {
		c.logger.Warn("event publish failed", zap.Error(err))
	}
}
