// Package criteria evaluates completion criteria against a workspace (§4.7).
package criteria

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"

	"github.com/relaysync/conductor/domain/criteria"
)

// Config bounds how the evaluator runs external commands.
type Config struct {
	// WorkingDir is the workspace root criteria run against.
	WorkingDir string

	// CommandTimeout caps a single criterion's external command.
	CommandTimeout time.Duration

	// MaxConcurrent bounds how many criteria run their commands at once.
	MaxConcurrent int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(workingDir string) Config {
	return Config{
		WorkingDir:     workingDir,
		CommandTimeout: 2 * time.Minute,
		MaxConcurrent:  4,
	}
}

// Evaluator runs a batch of criteria concurrently, bounded by a bulkhead,
// and never lets one criterion's failure abort the batch (§4.7, §4.11).
type Evaluator struct {
	cfg      Config
	bulkhead bulkhead.Bulkhead[criteria.Result]
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(cfg Config) *Evaluator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	return &Evaluator{
		cfg: cfg,
		bulkhead: bulkhead.New[criteria.Result](bulkhead.Config{
			MaxConcurrent: cfg.MaxConcurrent,
		}),
	}
}

// Evaluate runs every criterion against the given promise text (the last
// <promise>...</promise> marker extracted from the transcript, if any)
// and returns one Result per criterion, in input order.
func (e *Evaluator) Evaluate(ctx context.Context, crits []criteria.Criterion, promiseText string) []criteria.Result {
	results := make([]criteria.Result, len(crits))
	done := make(chan struct{}, len(crits))

	for i, c := range crits {
		i, c := i, c
		go func() {
			defer func() { done <- struct{}{} }()
			r, err := e.bulkhead.Execute(ctx, func(ctx context.Context) (criteria.Result, error) {
				return e.evaluateOne(ctx, c, promiseText), nil
			})
			if err != nil {
				r = criteria.Result{Name: c.Name, Passed: false, Weight: c.Weight, Error: err.Error()}
			}
			results[i] = r
		}()
	}
	for range crits {
		<-done
	}
	return results
}

func (e *Evaluator) evaluateOne(ctx context.Context, c criteria.Criterion, promiseText string) criteria.Result {
	r := criteria.Result{Name: c.Name, Weight: c.Weight}

	switch c.Config.Variant {
	case criteria.VariantPromise:
		r.Passed = strings.TrimSpace(promiseText) == strings.TrimSpace(c.Config.Text)
		if !r.Passed {
			r.Detail = "promise text did not match"
		}

	case criteria.VariantCommand, criteria.VariantCustomScript, criteria.VariantTestPass:
		code, out, err := e.run(ctx, c.Config.Command, c.Config.Args)
		if err != nil {
			r.Error = err.Error()
			return r
		}
		want := c.Config.ExpectExit
		r.Passed = code == want
		r.Detail = truncate(out, 512)

	case criteria.VariantFileExists:
		_, err := os.Stat(e.resolve(c.Config.Path))
		r.Passed = err == nil
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			r.Error = err.Error()
		}

	case criteria.VariantFileContains:
		data, err := os.ReadFile(e.resolve(c.Config.Path))
		if err != nil {
			r.Error = err.Error()
			return r
		}
		if c.Config.Regex {
			re, err := regexp.Compile(c.Config.Pattern)
			if err != nil {
				r.Error = err.Error()
				return r
			}
			r.Passed = re.Match(data)
		} else {
			r.Passed = strings.Contains(string(data), c.Config.Pattern)
		}

	case criteria.VariantLintClean:
		_, out, err := e.run(ctx, c.Config.Command, c.Config.Args)
		if err != nil {
			r.Error = err.Error()
			return r
		}
		count, ok := parseCount(out, lintCountPatterns)
		if !ok {
			r.Error = "could not parse lint error count"
			return r
		}
		r.Passed = count <= c.Config.MaxErrors
		r.Detail = strconv.Itoa(count) + " errors"

	case criteria.VariantCoverage:
		_, out, err := e.run(ctx, c.Config.Command, c.Config.Args)
		if err != nil {
			r.Error = err.Error()
			return r
		}
		pct, ok := parsePercent(out, coveragePatterns)
		if !ok {
			r.Error = "could not parse coverage percentage"
			return r
		}
		r.Passed = pct >= c.Config.MinPercent
		r.Detail = strconv.FormatFloat(pct, 'f', 1, 64) + "%"

	default:
		r.Error = "unknown criterion variant: " + string(c.Config.Variant)
	}

	return r
}

func (e *Evaluator) resolve(path string) string {
	if path == "" || e.cfg.WorkingDir == "" {
		return path
	}
	if strings.HasPrefix(path, "/") {
		return path
	}
	return e.cfg.WorkingDir + "/" + path
}

// run executes an external command and returns its exit code and
// combined output. A non-zero exit is not itself an error, mirroring
// the teacher's shell pack's treatment of exec.ExitError.
func (e *Evaluator) run(ctx context.Context, command string, args []string) (int, string, error) {
	if command == "" {
		return 0, "", errors.New("empty command")
	}
	timeout := e.cfg.CommandTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, command, args...) // #nosec G204 -- command comes from task-author config, not user input
	if e.cfg.WorkingDir != "" {
		cmd.Dir = e.cfg.WorkingDir
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	exitCode := 0
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
		err = nil
	}
	if err != nil {
		return 0, out.String(), err
	}
	return exitCode, out.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// lintCountPatterns are tried in order against a linter's output until one
// matches, per §4.7's "multiple regexes tried in order".
var lintCountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+)\s+errors?\s+found`),
	regexp.MustCompile(`(\d+)\s+problems?\s*\(`),
	regexp.MustCompile(`Found\s+(\d+)\s+error`),
}

func parseCount(output string, patterns []*regexp.Regexp) (int, bool) {
	for _, re := range patterns {
		m := re.FindStringSubmatch(output)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		return n, true
	}
	// a linter producing no matches and no output is clean
	if strings.TrimSpace(output) == "" {
		return 0, true
	}
	return 0, false
}

// coveragePatterns are tried in order; parsePercent falls back to the last
// percentage found anywhere in the output per §4.7.
var coveragePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)total[^\d]*(\d+(?:\.\d+)?)%`),
	regexp.MustCompile(`(?i)coverage:\s*(\d+(?:\.\d+)?)%`),
}

var anyPercent = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)

func parsePercent(output string, patterns []*regexp.Regexp) (float64, bool) {
	for _, re := range patterns {
		m := re.FindStringSubmatch(output)
		if m == nil {
			continue
		}
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v, true
		}
	}
	matches := anyPercent.FindAllStringSubmatch(output, -1)
	if len(matches) == 0 {
		return 0, false
	}
	last := matches[len(matches)-1]
	v, err := strconv.ParseFloat(last[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
