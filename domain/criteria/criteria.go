// Package criteria provides the tagged-union completion-criterion model
// consumed by the criteria evaluator.
package criteria

// Variant names a criterion's evaluation strategy.
type Variant string

const (
	VariantPromise      Variant = "promise"
	VariantCommand      Variant = "command"
	VariantFileExists   Variant = "file-exists"
	VariantFileContains Variant = "file-contains"
	VariantTestPass     Variant = "test-pass"
	VariantLintClean    Variant = "lint-clean"
	VariantCoverage     Variant = "coverage"
	VariantCustomScript Variant = "custom-script"
)

// Mode selects how individual criterion results aggregate into a score.
type Mode string

const (
	ModeAll      Mode = "all"
	ModeAny      Mode = "any"
	ModeWeighted Mode = "weighted"
)

// Config is the tagged-union payload for a criterion. Exactly the fields
// relevant to Variant are populated; the evaluator dispatches on Variant
// alone and never inspects irrelevant fields.
type Config struct {
	Variant Variant `json:"variant" yaml:"variant"`

	// Promise
	Text string `json:"text,omitempty" yaml:"text,omitempty"`

	// Command / CustomScript
	Command    string   `json:"command,omitempty" yaml:"command,omitempty"`
	Args       []string `json:"args,omitempty" yaml:"args,omitempty"`
	ExpectExit int      `json:"expectExit,omitempty" yaml:"expectExit,omitempty"`

	// FileExists / FileContains
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Regex   bool   `json:"regex,omitempty" yaml:"regex,omitempty"`

	// LintClean
	MaxErrors int `json:"maxErrors,omitempty" yaml:"maxErrors,omitempty"`

	// Coverage
	MinPercent float64 `json:"minPercent,omitempty" yaml:"minPercent,omitempty"`
}

// Criterion is a named, weighted predicate deciding whether a task is done.
type Criterion struct {
	Name     string `json:"name" yaml:"name"`
	Config   Config `json:"config" yaml:"config"`
	Weight   int    `json:"weight" yaml:"weight"`
	Required bool   `json:"required" yaml:"required"`
}

// Result is the outcome of evaluating a single criterion. Errors are
// recorded rather than propagated: a failing criterion never aborts the
// evaluator's batch (§4.7, §4.11).
type Result struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Detail  string `json:"detail,omitempty"`
	Error   string `json:"error,omitempty"`
	Weight  int    `json:"weight"`
}

// Score aggregates a batch of Results under the given Mode.
func Score(mode Mode, results []Result) float64 {
	if len(results) == 0 {
		return 0
	}

	switch mode {
	case ModeAll:
		for _, r := range results {
			if !r.Passed {
				return 0
			}
		}
		return 1

	case ModeAny:
		for _, r := range results {
			if r.Passed {
				return 1
			}
		}
		return 0

	case ModeWeighted:
		var total, passed int
		for _, r := range results {
			w := r.Weight
			if w <= 0 {
				w = 1
			}
			total += w
			if r.Passed {
				passed += w
			}
		}
		if total == 0 {
			return 0
		}
		return float64(passed) / float64(total)

	default:
		return Score(ModeAll, results)
	}
}

// Complete decides overall completion per §4.7: every required criterion
// must pass, and the aggregate score must clear the mode's bar.
func Complete(mode Mode, requiredScore float64, criteria []Criterion, results []Result) bool {
	byName := make(map[string]Result, len(results))
	for _, r := range results {
		byName[r.Name] = r
	}

	for _, c := range criteria {
		if !c.Required {
			continue
		}
		r, ok := byName[c.Name]
		if !ok || !r.Passed {
			return false
		}
	}

	score := Score(mode, results)
	switch mode {
	case ModeAll:
		return score == 1
	case ModeAny:
		return score > 0
	case ModeWeighted:
		return score >= requiredScore
	default:
		return score == 1
	}
}
