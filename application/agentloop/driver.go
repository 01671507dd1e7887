// Package agentloop implements the agent iteration driver (C6): one
// tick per parent-runtime turn, ingesting the transcript, scoring
// completion criteria, deciding stuck recovery, and reporting back to
// the coordinator (§4.6), generalized from the teacher's Engine.step
// dispatch loop.
package agentloop

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"time"

	"github.com/relaysync/conductor/application/coordinator"
	domaincheckpoint "github.com/relaysync/conductor/domain/checkpoint"
	"github.com/relaysync/conductor/domain/criteria"
	"github.com/relaysync/conductor/domain/intervention"
	"github.com/relaysync/conductor/domain/iteration"
	"github.com/relaysync/conductor/domain/policy"
	"github.com/relaysync/conductor/domain/task"
	infracheckpoint "github.com/relaysync/conductor/infrastructure/checkpoint"
	infracriteria "github.com/relaysync/conductor/infrastructure/criteria"
	"github.com/relaysync/conductor/infrastructure/logging"
	"github.com/relaysync/conductor/infrastructure/storage/badger"
	"github.com/relaysync/conductor/infrastructure/stuck"
)

const (
	defaultMaxHistory  = 50
	defaultGateTimeout = 2 * time.Minute
)

var promisePattern = regexp.MustCompile(`(?s)<promise>(.*?)</promise>`)

// CoordinatorClient is the subset of the coordinator's sync protocol the
// driver needs. *coordinator.Handler satisfies it directly for a
// same-process agent; interfaces/httpapi's client satisfies it for a
// remote one.
type CoordinatorClient interface {
	Push(ctx context.Context, projectID string, req coordinator.PushRequest) (*coordinator.PushResponse, error)
	Heartbeat(ctx context.Context, taskID string, req coordinator.HeartbeatRequest) (*coordinator.HeartbeatResponse, error)
	ClaimNext(ctx context.Context, projectID string, req coordinator.ClaimRequest) (*coordinator.ClaimNextResponse, error)
}

// Config configures a Driver.
type Config struct {
	Coordinator CoordinatorClient

	Checkpoints   domaincheckpoint.Store
	CheckpointMgr *infracheckpoint.Manager
	Evaluator     *infracriteria.Evaluator

	StuckThresholds stuck.Thresholds
	StuckStrategies map[stuck.Pattern]stuck.Strategy

	Gates  []QualityGate
	Outbox *badger.Outbox

	Inbox      CommandInbox
	Transcript TranscriptSource
	Diff       WorkspaceDiff
	Persister  StatePersister

	MaxHistory int
	Now        func() time.Time
}

// Driver runs one tick of the agent iteration loop inside a single
// workspace. It is not safe for concurrent ticks on the same State.
type Driver struct {
	coord CoordinatorClient

	checkpoints   domaincheckpoint.Store
	checkpointMgr *infracheckpoint.Manager
	evaluator     *infracriteria.Evaluator

	stuckThresholds stuck.Thresholds
	stuckStrategies map[stuck.Pattern]stuck.Strategy

	gates  []QualityGate
	outbox *badger.Outbox

	inbox      CommandInbox
	transcript TranscriptSource
	diff       WorkspaceDiff
	persister  StatePersister

	maxHistory int
	now        func() time.Time
}

// NewDriver creates a Driver from cfg, defaulting optional collaborators
// the way the teacher's NewEngine defaults its executor, eligibility and
// transitions fields.
func NewDriver(cfg Config) (*Driver, error) {
	if cfg.Coordinator == nil {
		return nil, errors.New("agentloop: coordinator client is required")
	}
	if cfg.Transcript == nil {
		return nil, errors.New("agentloop: transcript source is required")
	}

	d := &Driver{
		coord:           cfg.Coordinator,
		checkpoints:     cfg.Checkpoints,
		checkpointMgr:   cfg.CheckpointMgr,
		evaluator:       cfg.Evaluator,
		stuckThresholds: cfg.StuckThresholds,
		stuckStrategies: cfg.StuckStrategies,
		gates:           cfg.Gates,
		outbox:          cfg.Outbox,
		inbox:           cfg.Inbox,
		transcript:      cfg.Transcript,
		diff:            cfg.Diff,
		persister:       cfg.Persister,
		maxHistory:      cfg.MaxHistory,
		now:             cfg.Now,
	}
	if d.evaluator == nil {
		d.evaluator = infracriteria.NewEvaluator(infracriteria.DefaultConfig(""))
	}
	if d.stuckThresholds == (stuck.Thresholds{}) {
		d.stuckThresholds = stuck.DefaultThresholds()
	}
	if d.stuckStrategies == nil {
		d.stuckStrategies = stuck.DefaultStrategies()
	}
	if d.maxHistory <= 0 {
		d.maxHistory = defaultMaxHistory
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d, nil
}

// Claim asks the coordinator for the next queued task in projectID and
// initializes s for it, per §4.6.1's "new task directory, iteration 1".
func (d *Driver) Claim(ctx context.Context, s *State, projectID, nodeID string) (bool, error) {
	resp, err := d.coord.ClaimNext(ctx, projectID, coordinator.ClaimRequest{NodeID: nodeID})
	if err != nil {
		if e, ok := coordinator.AsError(err); ok && e.Code == coordinator.CodeTaskNotFound {
			return false, nil
		}
		return false, fmt.Errorf("agentloop: claim next: %w", err)
	}
	s.reset(projectID, nodeID, resp.TaskID, resp.Name, resp.Prompt, resp.Config, resp.Version, d.now())
	d.persist(ctx, s)
	return true, nil
}

// Tick runs one pass of the driver loop (§4.6) and returns the signal
// the parent runtime should act on next.
func (d *Driver) Tick(ctx context.Context, s *State) (Signal, error) {
	d.drainOutbox(ctx)

	// Step 1: nothing to do without an active running task.
	if s.TaskID == "" || s.Status != task.StatusRunning {
		return Signal{Type: SignalApprove}, nil
	}

	// Step 2: external command inbox.
	if d.inbox != nil {
		cmd, err := d.inbox.Next(ctx)
		if err != nil {
			logging.Warn().Add(logging.ErrorField(err)).Msg("command inbox read failed")
		} else if cmd != nil {
			return d.applyCommand(ctx, s, cmd)
		}
	}

	// Step 3: transcript ingestion.
	text, err := d.transcript.Read(ctx)
	if err != nil {
		return Signal{}, fmt.Errorf("agentloop: read transcript: %w", err)
	}
	promise := extractPromise(text)

	// Step 4: token/duration accounting.
	now := d.now()
	tokenEstimate := int(math.Ceil(float64(len(text)) / 4))
	duration := now.Sub(s.CurrentStartedAt)
	s.Metrics.TotalTokens += tokenEstimate
	s.Metrics.TotalDuration += duration
	s.Metrics.IterationsRun++

	// Step 5: working tree diff.
	var filesChanged []string
	if d.diff != nil {
		filesChanged, err = d.diff.Changed(ctx)
		if err != nil {
			logging.Warn().Add(logging.ErrorField(err)).Msg("workspace diff failed")
		}
	}

	record := iteration.Record{
		Sequence:      s.Iteration,
		StartedAt:     s.CurrentStartedAt,
		EndedAt:       now,
		Duration:      duration,
		TokenEstimate: tokenEstimate,
		Summary:       summarize(text),
		FilesChanged:  filesChanged,
	}

	// Step 6: budget enforcement. s.Metrics already persists cumulative
	// duration/tokens, so the budget is rebuilt fresh each tick from cfg's
	// limits rather than carried in State: policy.Budget has no exported
	// fields, so it can't round-trip through forgefs's JSON state file.
	cfg := s.Config
	budget := policy.UnlimitedBudget()
	if cfg.MaxDuration > 0 {
		budget.SetLimit("duration", int(cfg.MaxDuration))
	}
	if cfg.MaxTokens > 0 {
		budget.SetLimit("tokens", cfg.MaxTokens)
	}
	if err := budget.Consume("duration", int(now.Sub(s.StartedAt))); err != nil {
		return d.terminal(ctx, s, task.StatusFailed, "max duration exceeded")
	}
	if err := budget.Consume("tokens", s.Metrics.TotalTokens); err != nil {
		return d.terminal(ctx, s, task.StatusFailed, "max tokens exceeded")
	}

	// Step 7: iteration cap.
	if cfg.MaxIterations > 0 && s.Iteration >= cfg.MaxIterations {
		return d.terminal(ctx, s, task.StatusFailed, "max iterations")
	}

	// Step 8: completion criteria.
	results := d.evaluator.Evaluate(ctx, cfg.Criteria, promise)
	record.CriteriaResults = results
	if criteria.Complete(cfg.Mode, cfg.RequiredScore, cfg.Criteria, results) {
		sig, err := d.terminal(ctx, s, task.StatusCompleted, "criteria satisfied")
		if err != nil {
			return sig, err
		}
		return d.autoAdvance(ctx, s, sig)
	}

	// Step 9: history + stuck detection.
	record.Outcome = iteration.OutcomeProgress
	d.appendHistory(s, record)
	detection := stuck.Detect(s.History, d.stuckThresholds)
	suffix := ""
	if detection.Pattern != stuck.PatternNone {
		strategy := stuck.StrategyFor(d.stuckStrategies, detection.Pattern)
		if strategy == stuck.StrategyAbort {
			if n := len(s.History); n > 0 {
				s.History[n-1].Outcome = iteration.OutcomeStuck
				s.History[n-1].Error = detection.Reason
			}
			return d.terminal(ctx, s, task.StatusStuck, detection.Reason)
		}
		suffix = d.recover(ctx, s, strategy)
		if suffix == "" {
			suffix = stuck.PromptSuffix(strategy)
		}
	}

	// Step 10: checkpoint cadence.
	d.maybeCheckpoint(ctx, s)

	// Step 11: quality gates.
	d.runGates(ctx, s)

	// Step 12: advance and sync.
	s.Iteration++
	s.CurrentStartedAt = now
	d.persist(ctx, s)
	commands := d.heartbeat(ctx, s)
	if sig, handled := d.applyInterventions(ctx, s, commands); handled {
		return sig, nil
	}

	// Step 13.
	return Signal{Type: SignalContinue, Prompt: s.Prompt, Reason: suffix}, nil
}

// appendHistory bounds s.History to maxHistory entries, dropping the
// oldest first.
func (d *Driver) appendHistory(s *State, r iteration.Record) {
	s.History = append(s.History, r)
	if over := len(s.History) - d.maxHistory; over > 0 {
		s.History = s.History[over:]
	}
}

// applyCommand performs the terminal transition the inbox requested
// (§4.6 step 2).
func (d *Driver) applyCommand(ctx context.Context, s *State, cmd *Command) (Signal, error) {
	switch cmd.Type {
	case CommandComplete:
		return d.terminal(ctx, s, task.StatusCompleted, fallback(cmd.Reason, "operator-completed"))
	case CommandPause:
		s.Status = task.StatusPaused
		if err := d.pushStatus(ctx, s, task.StatusPaused, nil); err != nil {
			logging.Warn().Add(logging.ErrorField(err)).Msg("pause push failed")
			d.enqueueOutbox(ctx, s, task.StatusPaused, cmd.Reason)
		}
		d.persist(ctx, s)
		return Signal{Type: SignalExit, Reason: fallback(cmd.Reason, "paused")}, nil
	case CommandAbort:
		return d.terminal(ctx, s, task.StatusAborted, fallback(cmd.Reason, "operator-aborted"))
	default:
		return Signal{Type: SignalContinue, Prompt: s.Prompt}, nil
	}
}

// applyInterventions acts on commands the coordinator drained and
// returned from a heartbeat. Only PAUSE and ABORT end the tick early;
// RELEASE_LOCK is already applied server-side when it is queued, and
// FORCE_STATUS and RETRY commands are ignored here.
func (d *Driver) applyInterventions(ctx context.Context, s *State, commands []coordinator.Command) (Signal, bool) {
	for _, c := range commands {
		switch c.Type {
		case intervention.TypePause:
			s.Status = task.StatusPaused
			d.persist(ctx, s)
			return Signal{Type: SignalExit, Reason: fallback(c.Reason, "paused by operator")}, true
		case intervention.TypeAbort:
			sig, err := d.terminal(ctx, s, task.StatusAborted, fallback(c.Reason, "aborted by operator"))
			if err != nil {
				logging.Warn().Add(logging.ErrorField(err)).Msg("intervention abort push failed")
			}
			return sig, true
		}
	}
	return Signal{}, false
}

// terminal pushes a terminal status to the coordinator, falling back to
// the outbox on failure, and returns an exit signal.
func (d *Driver) terminal(ctx context.Context, s *State, status task.Status, reason string) (Signal, error) {
	s.Status = status
	result := map[string]any{"reason": reason}
	if err := d.pushStatus(ctx, s, status, result); err != nil {
		logging.Warn().
			Add(logging.TaskID(s.TaskID)).
			Add(logging.ErrorField(err)).
			Msg("terminal status push failed, queued to outbox")
		d.enqueueOutbox(ctx, s, status, reason)
	}
	d.persist(ctx, s)
	return Signal{Type: SignalExit, Reason: reason}, nil
}

// autoAdvance implements §4.6.1: after completion, try to claim the next
// queued task in the same project and keep driving if one is granted.
func (d *Driver) autoAdvance(ctx context.Context, s *State, completed Signal) (Signal, error) {
	projectID, nodeID := s.ProjectID, s.NodeID
	claimed, err := d.Claim(ctx, s, projectID, nodeID)
	if err != nil {
		logging.Warn().Add(logging.ErrorField(err)).Msg("auto-advance claim failed")
		return completed, nil
	}
	if !claimed {
		return completed, nil
	}
	return Signal{Type: SignalContinue, Prompt: s.Prompt}, nil
}

// pushStatus reports status to the coordinator and advances the
// driver's locally-tracked sync version on success.
func (d *Driver) pushStatus(ctx context.Context, s *State, status task.Status, result map[string]any) error {
	resp, err := d.coord.Push(ctx, s.ProjectID, coordinator.PushRequest{
		NodeID: s.NodeID,
		Tasks: []coordinator.PushTaskUpdate{{
			ID:              s.TaskID,
			ExpectedVersion: s.SyncVersion,
			Status:          string(status),
			Result:          result,
			Iteration:       s.Iteration,
		}},
	})
	if err != nil {
		return err
	}
	for _, r := range resp.Results {
		if r.ID != s.TaskID {
			continue
		}
		if !r.Applied {
			return fmt.Errorf("agentloop: push rejected: %s", r.Error)
		}
		s.SyncVersion = r.Version
		return nil
	}
	return errors.New("agentloop: push result missing for task")
}

func (d *Driver) enqueueOutbox(ctx context.Context, s *State, status task.Status, reason string) {
	if d.outbox == nil {
		return
	}
	u := badger.StatusUpdate{
		TaskID:          s.TaskID,
		ProjectID:       s.ProjectID,
		NodeID:          s.NodeID,
		Status:          status,
		ExpectedVersion: s.SyncVersion,
		Iteration:       s.Iteration,
		Reason:          reason,
	}
	if err := d.outbox.Enqueue(ctx, u); err != nil {
		logging.Warn().Add(logging.ErrorField(err)).Msg("outbox enqueue failed")
	}
}

// drainOutbox flushes any status updates a prior tick could not deliver
// (§4.10), replaying each through the same push path a live update uses.
func (d *Driver) drainOutbox(ctx context.Context) {
	if d.outbox == nil {
		return
	}
	deliver := func(ctx context.Context, u badger.StatusUpdate) error {
		resp, err := d.coord.Push(ctx, u.ProjectID, coordinator.PushRequest{
			NodeID: u.NodeID,
			Tasks: []coordinator.PushTaskUpdate{{
				ID:              u.TaskID,
				ExpectedVersion: u.ExpectedVersion,
				Status:          string(u.Status),
				Result:          map[string]any{"reason": u.Reason},
				Iteration:       u.Iteration,
			}},
		})
		if err != nil {
			return err
		}
		for _, r := range resp.Results {
			if r.ID == u.TaskID && !r.Applied {
				return fmt.Errorf("push not applied: %s", r.Error)
			}
		}
		return nil
	}
	onDiscard := func(u badger.StatusUpdate) {
		logging.Error().Add(logging.TaskID(u.TaskID)).Msg("status update discarded after max delivery attempts")
	}
	if err := d.outbox.Drain(ctx, deliver, onDiscard); err != nil {
		logging.Warn().Add(logging.ErrorField(err)).Msg("outbox drain failed")
	}
}

// recover applies a non-abort stuck strategy and returns any prompt
// suffix it produced. Rollback restores the last checkpoint when one
// exists; otherwise it degrades to retry-variation's wording.
func (d *Driver) recover(ctx context.Context, s *State, strategy stuck.Strategy) string {
	if strategy != stuck.StrategyRollback || d.checkpointMgr == nil || d.checkpoints == nil {
		return ""
	}
	cp, ok, err := d.checkpointMgr.Rollback(ctx, d.checkpoints, s.TaskID)
	if err != nil {
		logging.Warn().Add(logging.ErrorField(err)).Msg("checkpoint rollback failed")
		return stuck.PromptSuffix(stuck.StrategyRetryVariation)
	}
	if !ok {
		return stuck.PromptSuffix(stuck.StrategyRetryVariation)
	}
	s.Metrics.TotalTokens = cp.Metrics.TotalTokens
	s.Metrics.TotalDuration = cp.Metrics.TotalDuration
	s.Iteration = cp.Iteration
	kept := s.History[:0]
	for _, r := range s.History {
		if r.Sequence <= cp.Iteration {
			kept = append(kept, r)
		}
	}
	s.History = kept
	return stuck.PromptSuffix(stuck.StrategyRollback)
}

// maybeCheckpoint creates a checkpoint when the configured interval has
// elapsed since the last one (§4.9).
func (d *Driver) maybeCheckpoint(ctx context.Context, s *State) {
	interval := s.Config.CheckpointInterval
	if interval <= 0 || d.checkpointMgr == nil || d.checkpoints == nil {
		return
	}
	if s.Iteration-s.LastCheckpointIteration < interval {
		return
	}
	keep := s.Config.CheckpointKeep
	snapshot := domaincheckpoint.MetricsSnapshot{
		TotalTokens:   s.Metrics.TotalTokens,
		TotalDuration: s.Metrics.TotalDuration,
	}
	if _, err := d.checkpointMgr.Create(ctx, d.checkpoints, s.TaskID, s.Iteration, domaincheckpoint.TypeAuto, snapshot, keep); err != nil {
		logging.Warn().Add(logging.ErrorField(err)).Msg("checkpoint create failed")
		return
	}
	s.LastCheckpointIteration = s.Iteration
}

// runGates runs every quality gate whose interval hits this iteration.
// A failing gate runs its auto-fix command, if any, but never fails the
// iteration by itself (§4.6 step 11, §4.11).
func (d *Driver) runGates(ctx context.Context, s *State) {
	for _, g := range d.gates {
		if g.Interval <= 0 || s.Iteration%g.Interval != 0 {
			continue
		}
		results := d.evaluator.Evaluate(ctx, []criteria.Criterion{g.asCriterion()}, "")
		if len(results) == 1 && results[0].Passed {
			continue
		}
		logging.Warn().Add(logging.Str("gate", g.Name)).Add(logging.TaskID(s.TaskID)).Msg("quality gate failed")
		if g.AutoFixCommand == "" {
			continue
		}
		if err := d.runAutoFix(ctx, g); err != nil {
			logging.Warn().Add(logging.Str("gate", g.Name)).Add(logging.ErrorField(err)).Msg("quality gate auto-fix failed")
		}
	}
}

func (g QualityGate) asCriterion() criteria.Criterion {
	return criteria.Criterion{
		Name: g.Name,
		Config: criteria.Config{
			Variant: criteria.VariantCommand,
			Command: g.Command,
			Args:    g.Args,
		},
	}
}

func (d *Driver) runAutoFix(ctx context.Context, g QualityGate) error {
	ctx, cancel := context.WithTimeout(ctx, defaultGateTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, g.AutoFixCommand, g.AutoFixArgs...) // #nosec G204 -- command comes from task-author config, not user input
	return cmd.Run()
}

func (d *Driver) heartbeat(ctx context.Context, s *State) []coordinator.Command {
	resp, err := d.coord.Heartbeat(ctx, s.TaskID, coordinator.HeartbeatRequest{
		NodeID:    s.NodeID,
		Iteration: s.Iteration,
	})
	if err != nil {
		logging.Warn().Add(logging.TaskID(s.TaskID)).Add(logging.ErrorField(err)).Msg("heartbeat failed")
		return nil
	}
	return resp.Commands
}

func (d *Driver) persist(ctx context.Context, s *State) {
	if d.persister == nil {
		return
	}
	if err := d.persister.Save(ctx, *s); err != nil {
		logging.Warn().Add(logging.ErrorField(err)).Msg("state persist failed")
	}
}

// extractPromise returns the contents of the last <promise>...</promise>
// marker in text, or "" if none is present.
func extractPromise(text string) string {
	matches := promisePattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return ""
	}
	return matches[len(matches)-1][1]
}

// summarize takes a one-line summary of the iteration's output for the
// history record.
func summarize(text string) string {
	const maxLen = 200
	line := text
	for i, r := range text {
		if r == '\n' {
			line = text[:i]
			break
		}
	}
	if len(line) > maxLen {
		return line[:maxLen]
	}
	return line
}

func fallback(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
