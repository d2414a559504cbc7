// Package metrics exposes the crawl pipeline's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchesTotal counts navigation requests issued by the governor.
	FetchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ecitizen_fetches_total",
		Help: "The total number of page fetches issued.",
	})
	// FetchFailuresTotal counts fetches that exhausted all attempts.
	FetchFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ecitizen_fetch_failures_total",
		Help: "The total number of fetches that failed after retries.",
	})
	// FetchRetriesTotal counts individual failed attempts.
	FetchRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ecitizen_fetch_retries_total",
		Help: "The total number of failed fetch attempts.",
	})
	// AnomaliesTotal counts anomaly signals fed into the governor.
	AnomaliesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ecitizen_anomalies_total",
		Help: "The total number of anomaly signals (timeouts, blocks, empty pages).",
	})
	// CacheHitsTotal counts artifact-store hits that skipped the network.
	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ecitizen_cache_hits_total",
		Help: "The total number of pages served from the artifact store.",
	})
	// GovernorTransitionsTotal counts state-machine transitions by target state.
	GovernorTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ecitizen_governor_transitions_total",
		Help: "The total number of governor state transitions.",
	}, []string{"state"})
	// PagesParsedTotal counts parsed artifacts by page kind.
	PagesParsedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ecitizen_pages_parsed_total",
		Help: "The total number of cached artifacts parsed.",
	}, []string{"kind"})
	// EntitiesResolvedTotal counts resolved records by entity type.
	EntitiesResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ecitizen_entities_resolved_total",
		Help: "The total number of entity records resolved.",
	}, []string{"entity"})
)
