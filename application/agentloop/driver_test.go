package agentloop_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"

	"github.com/relaysync/conductor/application/agentloop"
	"github.com/relaysync/conductor/application/coordinator"
	domaincheckpoint "github.com/relaysync/conductor/domain/checkpoint"
	"github.com/relaysync/conductor/domain/criteria"
	"github.com/relaysync/conductor/domain/iteration"
	"github.com/relaysync/conductor/domain/task"
	"github.com/relaysync/conductor/infrastructure/checkpoint"
	"github.com/relaysync/conductor/infrastructure/storage/badger"
	"github.com/relaysync/conductor/infrastructure/storage/memory"
	"github.com/relaysync/conductor/infrastructure/stuck"
)

type fakeCoordinator struct {
	pushResp     *coordinator.PushResponse
	pushErr      error
	pushCalls    []coordinator.PushRequest
	heartbeat    *coordinator.HeartbeatResponse
	heartbeatErr error
	claimResp    *coordinator.ClaimNextResponse
	claimErr     error
}

func (f *fakeCoordinator) Push(_ context.Context, _ string, req coordinator.PushRequest) (*coordinator.PushResponse, error) {
	f.pushCalls = append(f.pushCalls, req)
	if f.pushErr != nil {
		return nil, f.pushErr
	}
	if f.pushResp != nil {
		return f.pushResp, nil
	}
	results := make([]coordinator.PushResult, len(req.Tasks))
	for i, t := range req.Tasks {
		results[i] = coordinator.PushResult{ID: t.ID, Applied: true, Version: t.ExpectedVersion + 1, Status: t.Status}
	}
	return &coordinator.PushResponse{ServerClock: 1, Results: results}, nil
}

func (f *fakeCoordinator) Heartbeat(_ context.Context, _ string, _ coordinator.HeartbeatRequest) (*coordinator.HeartbeatResponse, error) {
	if f.heartbeatErr != nil {
		return nil, f.heartbeatErr
	}
	if f.heartbeat != nil {
		return f.heartbeat, nil
	}
	return &coordinator.HeartbeatResponse{ServerClock: 1, LockExpiresAt: time.Now().Add(time.Minute)}, nil
}

func (f *fakeCoordinator) ClaimNext(_ context.Context, _ string, _ coordinator.ClaimRequest) (*coordinator.ClaimNextResponse, error) {
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	if f.claimResp != nil {
		return f.claimResp, nil
	}
	return nil, &coordinator.Error{Code: coordinator.CodeTaskNotFound, Reason: "no queued task available"}
}

type fakeTranscript struct {
	text string
	err  error
}

func (f fakeTranscript) Read(_ context.Context) (string, error) { return f.text, f.err }

type fakeInbox struct {
	cmd *agentloop.Command
	err error
}

func (f *fakeInbox) Next(_ context.Context) (*agentloop.Command, error) {
	cmd := f.cmd
	f.cmd = nil
	return cmd, f.err
}

type fakeDiff struct{ files []string }

func (f fakeDiff) Changed(_ context.Context) ([]string, error) { return f.files, nil }

type fakePersister struct{ saved []agentloop.State }

func (f *fakePersister) Save(_ context.Context, s agentloop.State) error {
	f.saved = append(f.saved, s)
	return nil
}

func newRunningState() *agentloop.State {
	return &agentloop.State{
		TaskID:           "t1",
		ProjectID:        "p1",
		NodeID:           "node-1",
		Prompt:           "do the thing",
		Status:           task.StatusRunning,
		SyncVersion:      1,
		Iteration:        1,
		StartedAt:        time.Now().Add(-time.Minute),
		CurrentStartedAt: time.Now().Add(-time.Second),
	}
}

func TestNewDriver_RequiresCoordinator(t *testing.T) {
	_, err := agentloop.NewDriver(agentloop.Config{Transcript: fakeTranscript{}})
	if err == nil {
		t.Fatal("expected error for missing coordinator")
	}
}

func TestNewDriver_RequiresTranscript(t *testing.T) {
	_, err := agentloop.NewDriver(agentloop.Config{Coordinator: &fakeCoordinator{}})
	if err == nil {
		t.Fatal("expected error for missing transcript source")
	}
}

func TestTick_NoActiveTask_Approves(t *testing.T) {
	d, err := agentloop.NewDriver(agentloop.Config{
		Coordinator: &fakeCoordinator{},
		Transcript:  fakeTranscript{text: "hello"},
	})
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}
	sig, err := d.Tick(context.Background(), &agentloop.State{})
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if sig.Type != agentloop.SignalApprove {
		t.Fatalf("expected approve signal, got %v", sig.Type)
	}
}

func TestTick_CriteriaComplete_MarksCompletedAndExits(t *testing.T) {
	coord := &fakeCoordinator{}
	d, err := agentloop.NewDriver(agentloop.Config{
		Coordinator: coord,
		Transcript:  fakeTranscript{text: "<promise>done</promise>"},
	})
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}
	s := newRunningState()
	s.Config.Mode = criteria.ModeAll
	s.Config.Criteria = []criteria.Criterion{
		{Name: "promise", Required: true, Config: criteria.Config{Variant: criteria.VariantPromise, Text: "done"}},
	}

	sig, err := d.Tick(context.Background(), s)
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if sig.Type != agentloop.SignalExit {
		t.Fatalf("expected exit signal, got %v", sig.Type)
	}
	if s.Status != task.StatusCompleted {
		t.Fatalf("expected completed status, got %s", s.Status)
	}
	if len(coord.pushCalls) != 1 || coord.pushCalls[0].Tasks[0].Status != string(task.StatusCompleted) {
		t.Fatalf("expected one completed push, got %+v", coord.pushCalls)
	}
}

func TestTick_CriteriaComplete_AutoAdvances(t *testing.T) {
	coord := &fakeCoordinator{
		claimResp: &coordinator.ClaimNextResponse{
			ClaimResponse: coordinator.ClaimResponse{TaskID: "t2", Version: 1},
			Prompt:        "next task",
			Name:          "task two",
		},
	}
	d, err := agentloop.NewDriver(agentloop.Config{
		Coordinator: coord,
		Transcript:  fakeTranscript{text: "<promise>done</promise>"},
	})
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}
	s := newRunningState()
	s.Config.Mode = criteria.ModeAll
	s.Config.Criteria = []criteria.Criterion{
		{Name: "promise", Required: true, Config: criteria.Config{Variant: criteria.VariantPromise, Text: "done"}},
	}

	sig, err := d.Tick(context.Background(), s)
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if sig.Type != agentloop.SignalContinue {
		t.Fatalf("expected continue signal after auto-advance, got %v", sig.Type)
	}
	if sig.Prompt != "next task" {
		t.Fatalf("expected next task's prompt, got %q", sig.Prompt)
	}
	if s.TaskID != "t2" || s.Iteration != 1 {
		t.Fatalf("expected state reset to new task, got %+v", s)
	}
}

func TestTick_MaxDurationExceeded_MarksFailed(t *testing.T) {
	coord := &fakeCoordinator{}
	d, err := agentloop.NewDriver(agentloop.Config{
		Coordinator: coord,
		Transcript:  fakeTranscript{text: "still working"},
	})
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}
	s := newRunningState()
	s.StartedAt = time.Now().Add(-time.Hour)
	s.Config.MaxDuration = time.Minute

	sig, err := d.Tick(context.Background(), s)
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if sig.Type != agentloop.SignalExit || s.Status != task.StatusFailed {
		t.Fatalf("expected failed exit, got signal=%v status=%s", sig.Type, s.Status)
	}
}

func TestTick_MaxIterations_MarksFailed(t *testing.T) {
	coord := &fakeCoordinator{}
	d, err := agentloop.NewDriver(agentloop.Config{
		Coordinator: coord,
		Transcript:  fakeTranscript{text: "still working"},
	})
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}
	s := newRunningState()
	s.Iteration = 5
	s.Config.MaxIterations = 5

	sig, err := d.Tick(context.Background(), s)
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if sig.Type != agentloop.SignalExit || s.Status != task.StatusFailed {
		t.Fatalf("expected failed exit, got signal=%v status=%s", sig.Type, s.Status)
	}
}

func TestTick_Progress_ContinuesAndPersists(t *testing.T) {
	coord := &fakeCoordinator{}
	persister := &fakePersister{}
	d, err := agentloop.NewDriver(agentloop.Config{
		Coordinator: coord,
		Transcript:  fakeTranscript{text: "making progress, no promise yet"},
		Diff:        fakeDiff{files: []string{"main.go"}},
		Persister:   persister,
	})
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}
	s := newRunningState()
	s.Config.Mode = criteria.ModeAll
	s.Config.Criteria = []criteria.Criterion{
		{Name: "promise", Required: true, Config: criteria.Config{Variant: criteria.VariantPromise, Text: "done"}},
	}

	sig, err := d.Tick(context.Background(), s)
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if sig.Type != agentloop.SignalContinue {
		t.Fatalf("expected continue signal, got %v", sig.Type)
	}
	if s.Iteration != 2 {
		t.Fatalf("expected iteration incremented to 2, got %d", s.Iteration)
	}
	if len(s.History) != 1 || s.History[0].Outcome != iteration.OutcomeProgress {
		t.Fatalf("expected one progress history record, got %+v", s.History)
	}
	if len(persister.saved) == 0 {
		t.Fatal("expected state to be persisted")
	}
}

func TestTick_StuckSameOutput_AbortsToStuck(t *testing.T) {
	coord := &fakeCoordinator{}
	d, err := agentloop.NewDriver(agentloop.Config{
		Coordinator:     coord,
		Transcript:      fakeTranscript{text: "identical output\nno new content"},
		StuckThresholds: stuck.Thresholds{SameOutput: 2, NoProgress: 100},
		StuckStrategies: map[stuck.Pattern]stuck.Strategy{stuck.PatternSameOutput: stuck.StrategyAbort},
	})
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}
	s := newRunningState()
	s.History = []iteration.Record{
		{Sequence: 1, Outcome: iteration.OutcomeProgress, Summary: "identical output"},
	}

	sig, err := d.Tick(context.Background(), s)
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if sig.Type != agentloop.SignalExit || s.Status != task.StatusStuck {
		t.Fatalf("expected stuck exit, got signal=%v status=%s", sig.Type, s.Status)
	}
}

func TestTick_StuckRollback_RestoresCheckpointIteration(t *testing.T) {
	dir := t.TempDir()
	if _, err := git.PlainInit(dir, false); err != nil {
		t.Fatalf("PlainInit failed: %v", err)
	}
	mgr, err := checkpoint.NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	store := memory.NewCheckpointStore()
	cp, err := mgr.Create(context.Background(), store, "t1", 6, domaincheckpoint.TypeAuto,
		domaincheckpoint.MetricsSnapshot{TotalTokens: 42, TotalDuration: time.Minute}, 5)
	if err != nil {
		t.Fatalf("Create checkpoint failed: %v", err)
	}
	if cp.Iteration != 6 {
		t.Fatalf("expected checkpoint at iteration 6, got %d", cp.Iteration)
	}

	coord := &fakeCoordinator{}
	d, err := agentloop.NewDriver(agentloop.Config{
		Coordinator:     coord,
		Transcript:      fakeTranscript{text: "same output"},
		CheckpointMgr:   mgr,
		Checkpoints:     store,
		StuckThresholds: stuck.Thresholds{SameOutput: 2, NoProgress: 100},
		StuckStrategies: map[stuck.Pattern]stuck.Strategy{stuck.PatternSameOutput: stuck.StrategyRollback},
	})
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}

	s := newRunningState()
	s.Iteration = 10
	s.Metrics.TotalTokens = 500
	s.History = []iteration.Record{
		{Sequence: 9, Outcome: iteration.OutcomeProgress, Summary: "same output"},
	}

	sig, err := d.Tick(context.Background(), s)
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if sig.Type != agentloop.SignalContinue {
		t.Fatalf("expected continue signal after rollback, got %v", sig.Type)
	}
	if s.Iteration != cp.Iteration+1 {
		t.Fatalf("expected iteration reset to checkpoint+1 (%d), got %d", cp.Iteration+1, s.Iteration)
	}
	if s.Metrics.TotalTokens != 42 {
		t.Fatalf("expected metrics restored from checkpoint, got %d tokens", s.Metrics.TotalTokens)
	}
	if len(s.History) != 0 {
		t.Fatalf("expected history truncated to sequence <= %d (dropping the seq-9 and seq-10 records), got %+v", cp.Iteration, s.History)
	}
}

func TestTick_InboxAbort_MarksAborted(t *testing.T) {
	coord := &fakeCoordinator{}
	inbox := &fakeInbox{cmd: &agentloop.Command{Type: agentloop.CommandAbort, Reason: "operator said stop"}}
	d, err := agentloop.NewDriver(agentloop.Config{
		Coordinator: coord,
		Transcript:  fakeTranscript{text: "irrelevant"},
		Inbox:       inbox,
	})
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}
	s := newRunningState()

	sig, err := d.Tick(context.Background(), s)
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if sig.Type != agentloop.SignalExit || s.Status != task.StatusAborted {
		t.Fatalf("expected aborted exit, got signal=%v status=%s", sig.Type, s.Status)
	}
	if sig.Reason != "operator said stop" {
		t.Fatalf("expected reason to propagate, got %q", sig.Reason)
	}
}

func TestTick_InboxPause_Exits(t *testing.T) {
	coord := &fakeCoordinator{}
	inbox := &fakeInbox{cmd: &agentloop.Command{Type: agentloop.CommandPause}}
	d, err := agentloop.NewDriver(agentloop.Config{
		Coordinator: coord,
		Transcript:  fakeTranscript{text: "irrelevant"},
		Inbox:       inbox,
	})
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}
	s := newRunningState()

	sig, err := d.Tick(context.Background(), s)
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if sig.Type != agentloop.SignalExit || s.Status != task.StatusPaused {
		t.Fatalf("expected paused exit, got signal=%v status=%s", sig.Type, s.Status)
	}
}

func TestTick_PushFailure_FallsBackToOutbox(t *testing.T) {
	ob, err := badger.NewOutbox(badger.Config{InMemory: true})
	if err != nil {
		t.Fatalf("NewOutbox failed: %v", err)
	}
	defer ob.Close()

	coord := &fakeCoordinator{pushErr: errors.New("network unreachable")}
	d, err := agentloop.NewDriver(agentloop.Config{
		Coordinator: coord,
		Transcript:  fakeTranscript{text: "still working"},
		Outbox:      ob,
	})
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}
	s := newRunningState()
	s.Config.MaxIterations = 1

	sig, err := d.Tick(context.Background(), s)
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if sig.Type != agentloop.SignalExit || s.Status != task.StatusFailed {
		t.Fatalf("expected failed exit despite push failure, got signal=%v status=%s", sig.Type, s.Status)
	}

	n, err := ob.Len(context.Background())
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected the failed push queued to the outbox, got %d entries", n)
	}
}

func TestClaim_NoQueuedTask_ReturnsFalse(t *testing.T) {
	coord := &fakeCoordinator{}
	d, err := agentloop.NewDriver(agentloop.Config{
		Coordinator: coord,
		Transcript:  fakeTranscript{text: "x"},
	})
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}
	s := &agentloop.State{}
	claimed, err := d.Claim(context.Background(), s, "p1", "node-1")
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if claimed {
		t.Fatal("expected no task to be claimed")
	}
}

func TestClaim_Success_InitializesState(t *testing.T) {
	coord := &fakeCoordinator{
		claimResp: &coordinator.ClaimNextResponse{
			ClaimResponse: coordinator.ClaimResponse{TaskID: "t9", Version: 3},
			Prompt:        "build the thing",
			Name:          "build",
		},
	}
	d, err := agentloop.NewDriver(agentloop.Config{
		Coordinator: coord,
		Transcript:  fakeTranscript{text: "x"},
	})
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}
	s := &agentloop.State{}
	claimed, err := d.Claim(context.Background(), s, "p1", "node-1")
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if !claimed {
		t.Fatal("expected claim to succeed")
	}
	if s.TaskID != "t9" || s.Prompt != "build the thing" || s.Status != task.StatusRunning || s.Iteration != 1 {
		t.Fatalf("unexpected state after claim: %+v", s)
	}
}
