// Package iteration provides the domain model for a single pass of the
// agent driver: ingest transcript, evaluate, decide (§4.6).
package iteration

import (
	"context"
	"time"

	"github.com/relaysync/conductor/domain/criteria"
)

// Outcome classifies how an iteration ended.
type Outcome string

const (
	OutcomeProgress   Outcome = "progress"
	OutcomeStuck      Outcome = "stuck"
	OutcomeError      Outcome = "error"
	OutcomeGateFailed Outcome = "gate-failed"
)

// Record is owned by the agent and replicated to the coordinator on
// progress.
type Record struct {
	Sequence        int              `json:"sequence"`
	StartedAt       time.Time        `json:"startedAt"`
	EndedAt         time.Time        `json:"endedAt"`
	Duration        time.Duration    `json:"duration"`
	TokenEstimate   int              `json:"tokenEstimate"`
	Outcome         Outcome          `json:"outcome"`
	CriteriaResults []criteria.Result `json:"criteriaResults,omitempty"`
	Summary         string           `json:"summary"`
	FilesChanged    []string         `json:"filesChanged,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// PassRate is the fraction of CriteriaResults that passed, used by the
// stuck detector's no-progress pattern (§4.8). Zero criteria results in
// a pass rate of 0, not a division by zero.
func (r Record) PassRate() float64 {
	if len(r.CriteriaResults) == 0 {
		return 0
	}
	passed := 0
	for _, cr := range r.CriteriaResults {
		if cr.Passed {
			passed++
		}
	}
	return float64(passed) / float64(len(r.CriteriaResults))
}

// Metrics accumulates running totals across a task's iterations.
type Metrics struct {
	TotalTokens      int           `json:"totalTokens"`
	TotalDuration    time.Duration `json:"totalDuration"`
	IterationsRun    int           `json:"iterationsRun"`
}

// Fold adds one iteration's contribution to the running totals.
func (m *Metrics) Fold(r Record) {
	m.TotalTokens += r.TokenEstimate
	m.TotalDuration += r.Duration
	m.IterationsRun++
}

// Store replicates iteration records to the coordinator for durability
// and for the stats surface under /api.
type Store interface {
	Append(ctx context.Context, taskID string, r Record) error
	List(ctx context.Context, taskID string) ([]Record, error)
}
