package pipeline

import (
	"time"

	"github.com/openkenya/ecitizen-crawler/internal/directory"
	"github.com/openkenya/ecitizen-crawler/internal/graph"
)

// Status is the overall outcome of a crawl run.
type Status string

// Run outcomes. Partial means the graph was built and exported but some
// pages failed or a fatal finding was recorded; aborted means the governor
// stopped all fetching before traversal finished.
const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusAborted Status = "aborted"
)

// RunReport summarizes one crawl run.
type RunReport struct {
	RunID      string              `json:"run_id"`
	Status     Status              `json:"status"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Counts     map[string]int      `json:"counts"`
	Insights   map[string]int      `json:"insights"`
	Findings   []graph.Finding     `json:"findings"`
	Failures   []directory.Failure `json:"failures"`
}

// insights derives summary tallies from the finalized graph.
func insights(g *graph.Graph) map[string]int {
	missingMeta := 0
	for _, a := range g.Agencies {
		if a.Description == nil && a.LogoURL == nil && a.AgencyURL == nil {
			missingMeta++
		}
	}
	emptyDepartments := 0
	for _, d := range g.Departments {
		if d.ObservedAgencyCount == 0 {
			emptyDepartments++
		}
	}
	emptyAgencies := 0
	for _, a := range g.Agencies {
		if a.ObservedServiceCount == 0 {
			emptyAgencies++
		}
	}
	return map[string]int{
		"agencies_missing_directory_metadata": missingMeta,
		"departments_without_agencies":        emptyDepartments,
		"agencies_without_services":           emptyAgencies,
	}
}

// phaseEvent is published after each barrier phase completes.
type phaseEvent struct {
	RunID string `json:"run_id"`
	Phase string `json:"phase"`
	Count int    `json:"count"`
}

// runEvent is published at run start and run completion.
type runEvent struct {
	RunID  string     `json:"run_id"`
	Event  string     `json:"event"`
	Report *RunReport `json:"report,omitempty"`
}
