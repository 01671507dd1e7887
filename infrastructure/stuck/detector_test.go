package stuck_test

import (
	"strconv"
	"testing"

	"github.com/relaysync/conductor/domain/criteria"
	"github.com/relaysync/conductor/domain/iteration"
	"github.com/relaysync/conductor/infrastructure/stuck"
)

func records(summaries ...string) []iteration.Record {
	out := make([]iteration.Record, len(summaries))
	for i, s := range summaries {
		out[i] = iteration.Record{Sequence: i + 1, Summary: s, Outcome: iteration.OutcomeProgress}
	}
	return out
}

func TestDetect_SameOutput(t *testing.T) {
	hist := records("Did X", "did x", " DID X ")
	d := stuck.Detect(hist, stuck.DefaultThresholds())
	if d.Pattern != stuck.PatternSameOutput {
		t.Fatalf("expected same-output pattern, got %q", d.Pattern)
	}
}

func TestDetect_SameOutput_NeedsFullWindow(t *testing.T) {
	hist := records("Did X", "Did Y")
	d := stuck.Detect(hist, stuck.DefaultThresholds())
	if d.Pattern != stuck.PatternNone {
		t.Fatalf("expected no pattern with too few iterations, got %q", d.Pattern)
	}
}

func TestDetect_NoProgress(t *testing.T) {
	hist := make([]iteration.Record, 0, 5)
	for i := 0; i < 5; i++ {
		hist = append(hist, iteration.Record{
			Sequence: i + 1,
			Summary:  "attempt " + strconv.Itoa(i),
			Outcome:  iteration.OutcomeProgress,
			CriteriaResults: []criteria.Result{
				{Name: "a", Passed: true},
				{Name: "b", Passed: false},
			},
		})
	}
	d := stuck.Detect(hist, stuck.DefaultThresholds())
	if d.Pattern != stuck.PatternNoProgress {
		t.Fatalf("expected no-progress pattern, got %q", d.Pattern)
	}
}

func TestDetect_NoProgress_SkipsWhenAnyFullyPassed(t *testing.T) {
	hist := make([]iteration.Record, 0, 5)
	for i := 0; i < 5; i++ {
		passed := i == 4
		hist = append(hist, iteration.Record{
			Sequence: i + 1,
			Summary:  "attempt " + strconv.Itoa(i),
			Outcome:  iteration.OutcomeProgress,
			CriteriaResults: []criteria.Result{
				{Name: "a", Passed: passed},
			},
		})
	}
	d := stuck.Detect(hist, stuck.DefaultThresholds())
	if d.Pattern != stuck.PatternNone {
		t.Fatalf("expected no pattern when a later iteration hit 100%%, got %q", d.Pattern)
	}
}

func TestDetect_RepeatingError(t *testing.T) {
	hist := []iteration.Record{
		{Sequence: 1, Summary: "attempt 1", Outcome: iteration.OutcomeError, Error: "compile error: undefined foo"},
		{Sequence: 2, Summary: "attempt 2", Outcome: iteration.OutcomeError, Error: "compile error: undefined foo"},
		{Sequence: 3, Summary: "attempt 3", Outcome: iteration.OutcomeError, Error: "compile error: undefined foo"},
	}
	d := stuck.Detect(hist, stuck.DefaultThresholds())
	if d.Pattern != stuck.PatternRepeatingError {
		t.Fatalf("expected repeating-error pattern, got %q", d.Pattern)
	}
}

func TestDetect_RepeatingError_IgnoresUnknown(t *testing.T) {
	hist := []iteration.Record{
		{Sequence: 1, Summary: "attempt 1", Outcome: iteration.OutcomeError, Error: "unknown"},
		{Sequence: 2, Summary: "attempt 2", Outcome: iteration.OutcomeError, Error: "unknown"},
		{Sequence: 3, Summary: "attempt 3", Outcome: iteration.OutcomeError, Error: "unknown"},
	}
	d := stuck.Detect(hist, stuck.DefaultThresholds())
	if d.Pattern != stuck.PatternNone {
		t.Fatalf("expected unknown errors not to count as repeating, got %q", d.Pattern)
	}
}

func TestStrategyFor_FallsBackToAbort(t *testing.T) {
	if s := stuck.StrategyFor(map[stuck.Pattern]stuck.Strategy{}, stuck.PatternSameOutput); s != stuck.StrategyAbort {
		t.Fatalf("expected abort fallback, got %q", s)
	}
	configured := stuck.DefaultStrategies()
	if s := stuck.StrategyFor(configured, stuck.PatternNoProgress); s != stuck.StrategySimplify {
		t.Fatalf("expected simplify for no-progress, got %q", s)
	}
}
