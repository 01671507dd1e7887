package criteria_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	domaincriteria "github.com/relaysync/conductor/domain/criteria"
	"github.com/relaysync/conductor/infrastructure/criteria"
)

func TestEvaluator_Promise(t *testing.T) {
	e := criteria.NewEvaluator(criteria.DefaultConfig(t.TempDir()))
	crits := []domaincriteria.Criterion{
		{Name: "done", Config: domaincriteria.Config{Variant: domaincriteria.VariantPromise, Text: "all tests pass"}, Weight: 1, Required: true},
	}

	results := e.Evaluate(context.Background(), crits, "all tests pass")
	if !results[0].Passed {
		t.Fatalf("expected promise match to pass, got %+v", results[0])
	}

	results = e.Evaluate(context.Background(), crits, "something else")
	if results[0].Passed {
		t.Fatalf("expected promise mismatch to fail, got %+v", results[0])
	}
}

func TestEvaluator_FileExists(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "out.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	e := criteria.NewEvaluator(criteria.DefaultConfig(dir))

	crits := []domaincriteria.Criterion{
		{Name: "exists", Config: domaincriteria.Config{Variant: domaincriteria.VariantFileExists, Path: "out.txt"}, Weight: 1},
		{Name: "missing", Config: domaincriteria.Config{Variant: domaincriteria.VariantFileExists, Path: "nope.txt"}, Weight: 1},
	}
	results := e.Evaluate(context.Background(), crits, "")
	byName := map[string]domaincriteria.Result{}
	for _, r := range results {
		byName[r.Name] = r
	}
	if !byName["exists"].Passed {
		t.Fatalf("expected exists to pass: %+v", byName["exists"])
	}
	if byName["missing"].Passed {
		t.Fatalf("expected missing to fail: %+v", byName["missing"])
	}
}

func TestEvaluator_FileContains(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "log.txt"), []byte("build succeeded: 0 errors"), 0o644); err != nil {
		t.Fatal(err)
	}
	e := criteria.NewEvaluator(criteria.DefaultConfig(dir))

	crits := []domaincriteria.Criterion{
		{Name: "substr", Config: domaincriteria.Config{Variant: domaincriteria.VariantFileContains, Path: "log.txt", Pattern: "succeeded"}, Weight: 1},
		{Name: "regex", Config: domaincriteria.Config{Variant: domaincriteria.VariantFileContains, Path: "log.txt", Pattern: `\d+ errors`, Regex: true}, Weight: 1},
	}
	results := e.Evaluate(context.Background(), crits, "")
	for _, r := range results {
		if !r.Passed {
			t.Fatalf("expected %s to pass: %+v", r.Name, r)
		}
	}
}

func TestEvaluator_Command(t *testing.T) {
	e := criteria.NewEvaluator(criteria.DefaultConfig(t.TempDir()))
	crits := []domaincriteria.Criterion{
		{Name: "ok", Config: domaincriteria.Config{Variant: domaincriteria.VariantCommand, Command: "true"}, Weight: 1},
		{Name: "bad", Config: domaincriteria.Config{Variant: domaincriteria.VariantCommand, Command: "false"}, Weight: 1},
	}
	results := e.Evaluate(context.Background(), crits, "")
	byName := map[string]domaincriteria.Result{}
	for _, r := range results {
		byName[r.Name] = r
	}
	if !byName["ok"].Passed {
		t.Fatalf("expected true to pass: %+v", byName["ok"])
	}
	if byName["bad"].Passed {
		t.Fatalf("expected false to fail: %+v", byName["bad"])
	}
}

func TestEvaluator_BatchNeverAbortsOnOneFailure(t *testing.T) {
	e := criteria.NewEvaluator(criteria.DefaultConfig(t.TempDir()))
	crits := []domaincriteria.Criterion{
		{Name: "broken", Config: domaincriteria.Config{Variant: domaincriteria.VariantCommand, Command: ""}, Weight: 1},
		{Name: "fine", Config: domaincriteria.Config{Variant: domaincriteria.VariantCommand, Command: "true"}, Weight: 1},
	}
	results := e.Evaluate(context.Background(), crits, "")
	if len(results) != 2 {
		t.Fatalf("expected 2 results even with one failing criterion, got %d", len(results))
	}
}
