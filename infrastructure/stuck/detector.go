// Package stuck implements the stuck-pattern detector and recovery
// strategy selection described in §4.8.
package stuck

import (
	"strconv"
	"strings"

	"github.com/relaysync/conductor/domain/iteration"
)

// Pattern names a detected stuck condition.
type Pattern string

const (
	PatternSameOutput     Pattern = "same-output"
	PatternNoProgress     Pattern = "no-progress"
	PatternRepeatingError Pattern = "repeating-error"
	PatternNone           Pattern = ""
)

// Strategy is a recovery action chosen for a detected pattern.
type Strategy string

const (
	StrategyRetryVariation Strategy = "retry-variation"
	StrategySimplify       Strategy = "simplify"
	StrategyRollback       Strategy = "rollback"
	StrategyAbort          Strategy = "abort"
)

// Thresholds sets the window sizes of the same-output and no-progress
// patterns (§4.8 defaults). Repeating-error always compares the last 3
// errors.
type Thresholds struct {
	SameOutput int
	NoProgress int
}

// DefaultThresholds returns the spec's defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{SameOutput: 3, NoProgress: 5}
}

// Detection is the outcome of running the detector over a task's history.
type Detection struct {
	Pattern Pattern
	Reason  string
}

// Detect evaluates the three patterns, in order, over history (oldest
// first). It returns the first pattern that matches, or PatternNone.
func Detect(history []iteration.Record, t Thresholds) Detection {
	if d := detectSameOutput(history, t.SameOutput); d.Pattern != PatternNone {
		return d
	}
	if d := detectNoProgress(history, t.NoProgress); d.Pattern != PatternNone {
		return d
	}
	if d := detectRepeatingError(history); d.Pattern != PatternNone {
		return d
	}
	return Detection{Pattern: PatternNone}
}

func detectSameOutput(history []iteration.Record, n int) Detection {
	if n <= 0 || len(history) < n {
		return Detection{Pattern: PatternNone}
	}
	window := history[len(history)-n:]
	first := normalize(window[0].Summary)
	for _, r := range window[1:] {
		if normalize(r.Summary) != first {
			return Detection{Pattern: PatternNone}
		}
	}
	return Detection{
		Pattern: PatternSameOutput,
		Reason:  "last " + strconv.Itoa(n) + " iterations produced identical output",
	}
}

func detectNoProgress(history []iteration.Record, m int) Detection {
	if m <= 0 || len(history) < m {
		return Detection{Pattern: PatternNone}
	}
	window := history[len(history)-m:]
	min, max := 1.0, 0.0
	anyCriteria := false
	for _, r := range window {
		if len(r.CriteriaResults) > 0 {
			anyCriteria = true
		}
		rate := r.PassRate()
		if rate < min {
			min = rate
		}
		if rate > max {
			max = rate
		}
	}
	if !anyCriteria {
		return Detection{Pattern: PatternNone}
	}
	if max == 1 {
		return Detection{Pattern: PatternNone}
	}
	if max-min < 0.05 {
		return Detection{
			Pattern: PatternNoProgress,
			Reason:  "last " + strconv.Itoa(m) + " iterations show no meaningful pass-rate movement",
		}
	}
	return Detection{Pattern: PatternNone}
}

func detectRepeatingError(history []iteration.Record) Detection {
	var errs []string
	for _, r := range history {
		if r.Outcome == iteration.OutcomeError {
			errs = append(errs, r.Error)
		}
	}
	if len(errs) < 3 {
		return Detection{Pattern: PatternNone}
	}
	last3 := errs[len(errs)-3:]
	msg := normalize(last3[0])
	if msg == "" || msg == "unknown" {
		return Detection{Pattern: PatternNone}
	}
	for _, e := range last3[1:] {
		if normalize(e) != msg {
			return Detection{Pattern: PatternNone}
		}
	}
	return Detection{
		Pattern: PatternRepeatingError,
		Reason:  "last 3 errors are identical: " + last3[0],
	}
}

func normalize(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

// StrategyFor maps a detected pattern to its configured recovery
// strategy. Task authors select the strategy per pattern; this function
// just validates that an unconfigured pattern falls back to abort.
func StrategyFor(configured map[Pattern]Strategy, p Pattern) Strategy {
	if s, ok := configured[p]; ok {
		return s
	}
	return StrategyAbort
}

// DefaultStrategies returns the spec's suggested default mapping.
func DefaultStrategies() map[Pattern]Strategy {
	return map[Pattern]Strategy{
		PatternSameOutput:     StrategyRetryVariation,
		PatternNoProgress:     StrategySimplify,
		PatternRepeatingError: StrategyRollback,
	}
}

// PromptSuffix returns the suffix text to forward to the runtime for a
// continuing recovery strategy. Every suffix starts with the marker
// "STUCK DETECTED". Rollback's own suffix is only used after the caller
// restored a checkpoint; when no checkpoint existed the caller uses
// retry-variation's wording instead.
func PromptSuffix(s Strategy) string {
	switch s {
	case StrategyRetryVariation:
		return "STUCK DETECTED: Your last few attempts produced the same result. Try a genuinely different approach."
	case StrategySimplify:
		return "STUCK DETECTED: Progress has stalled. Make one small, incremental, verifiable change instead of a large one."
	case StrategyRollback:
		return "STUCK DETECTED: Restored to the last checkpoint. Start fresh from this state."
	default:
		return ""
	}
}
