package coordinator

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/felixgeelhaar/statekit"

	"github.com/relaysync/conductor/domain/conflict"
	"github.com/relaysync/conductor/domain/intervention"
	"github.com/relaysync/conductor/domain/node"
	"github.com/relaysync/conductor/domain/synclog"
	"github.com/relaysync/conductor/domain/task"
	"github.com/relaysync/conductor/infrastructure/distributed/broadcast"
	"github.com/relaysync/conductor/infrastructure/distributed/clock"
	"github.com/relaysync/conductor/infrastructure/distributed/lock"
	"github.com/relaysync/conductor/infrastructure/logging"
	"github.com/relaysync/conductor/infrastructure/statemachine"
)

const defaultLeaseDuration = 5 * time.Minute

// ledgerEntry is a recorded transition awaiting an append once the
// CompareAndSwap mutate closure it ran inside has committed; actions
// run before the store confirms the write, so the coordinator buffers
// one entry per mutate call and appends it only on success.
type ledgerEntry struct {
	taskID   string
	from, to task.Status
	reason   string
}

// ledgerBuffer implements statemachine.TransitionRecorder by buffering
// a single transition per mutate closure rather than writing straight
// through, so a CompareAndSwap retry never double-logs.
type ledgerBuffer struct {
	entry *ledgerEntry
}

func (b *ledgerBuffer) RecordTransition(taskID string, from, to task.Status, reason string) {
	b.entry = &ledgerEntry{taskID: taskID, from: from, to: to, reason: reason}
}

// transition drives t through the task statechart to target, recording
// the move on a ledgerBuffer the caller flushes after a successful
// CompareAndSwap. Returns a CodeInvalidTransition error if the move is
// not permitted from t's current status.
func (h *Handler) transition(t *task.Task, target task.Status, reason string) (*ledgerBuffer, error) {
	buf := &ledgerBuffer{}
	mctx := statemachine.NewContext(t, buf)
	mctx.Transitions = h.transitions

	interp := statemachine.NewInterpreter(h.machine, mctx)
	if err := interp.Restore(t.Status); err != nil {
		return nil, fmt.Errorf("coordinator: restore machine: %w", err)
	}
	if err := interp.Transition(target, reason); err != nil {
		return nil, newError(CodeInvalidTransition, err.Error())
	}
	return buf, nil
}

// Handler is the sync protocol handler (C1): it owns no HTTP concerns,
// only the orchestration of the domain stores and collaborators behind
// the paths listed under /api/v2/sync.
type Handler struct {
	tasks         task.Store
	nodes         node.Store
	interventions intervention.Store
	synclog       synclog.Store
	bus           *broadcast.Bus
	clk           *clock.Logical
	sweepLock     lock.Locker
	transitions   *task.Transitions
	leaseDuration time.Duration
	machine       *statekit.MachineConfig[*statemachine.Context]
}

// Config supplies Handler's collaborators.
type Config struct {
	Tasks         task.Store
	Nodes         node.Store
	Interventions intervention.Store
	SyncLog       synclog.Store
	Bus           *broadcast.Bus
	Clock         *clock.Logical
	// SweepLock guards the sweeper's critical section across coordinator
	// replicas; it does not hold individual task leases, those live on
	// the task row itself (LockedBy/LockExpiresAt) guarded by
	// task.Store.CompareAndSwap.
	SweepLock     lock.Locker
	Transitions   *task.Transitions
	LeaseDuration time.Duration
}

// NewHandler builds a Handler, applying defaults the way the teacher's
// NewEngine does for its own collaborators.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Tasks == nil {
		return nil, fmt.Errorf("coordinator: task store is required")
	}
	if cfg.Nodes == nil {
		return nil, fmt.Errorf("coordinator: node store is required")
	}
	if cfg.Interventions == nil {
		return nil, fmt.Errorf("coordinator: intervention store is required")
	}
	if cfg.SyncLog == nil {
		return nil, fmt.Errorf("coordinator: sync log store is required")
	}

	h := &Handler{
		tasks:         cfg.Tasks,
		nodes:         cfg.Nodes,
		interventions: cfg.Interventions,
		synclog:       cfg.SyncLog,
		bus:           cfg.Bus,
		clk:           cfg.Clock,
		sweepLock:     cfg.SweepLock,
		transitions:   cfg.Transitions,
		leaseDuration: cfg.LeaseDuration,
	}

	if h.bus == nil {
		h.bus = broadcast.New()
	}
	if h.clk == nil {
		h.clk = clock.New()
	}
	if h.transitions == nil {
		h.transitions = task.DefaultTransitions()
	}
	if h.leaseDuration == 0 {
		h.leaseDuration = defaultLeaseDuration
	}

	machine, err := statemachine.DefaultMachine()
	if err != nil {
		return nil, fmt.Errorf("coordinator: build task machine: %w", err)
	}
	h.machine = machine

	return h, nil
}

// tick advances the coordinator's logical clock against a received
// value and returns the new local value (§4.1).
func (h *Handler) tick(received int64) int64 {
	return h.clk.Tick(received)
}

func (h *Handler) publish(topic broadcast.Topic, projectID, taskID, nodeID string, data any) {
	if h.bus == nil {
		return
	}
	h.bus.Publish(broadcast.Event{
		Topic:     topic,
		ProjectID: projectID,
		TaskID:    taskID,
		NodeID:    nodeID,
		Data:      data,
	})
}

func (h *Handler) appendLog(ctx context.Context, projectID, taskID, nodeID string, op synclog.Operation, oldValue, newValue any) {
	entry := synclog.Entry{
		ID:           randomID("log"),
		ProjectID:    projectID,
		TaskID:       taskID,
		NodeID:       nodeID,
		Operation:    op,
		OldValue:     oldValue,
		NewValue:     newValue,
		LogicalClock: h.clk.Value(),
		Timestamp:    time.Now(),
	}
	if err := h.synclog.Append(ctx, entry); err != nil {
		logging.Warn().
			Add(logging.Component("coordinator")).
			Add(logging.Operation(string(op))).
			Add(logging.TaskID(taskID)).
			Add(logging.ErrorField(err)).
			Msg("sync log append failed")
	}
}

// Handshake buckets every task version the agent reports against the
// server's view (§4.1).
func (h *Handler) Handshake(ctx context.Context, projectID string, req HandshakeRequest) (*HandshakeResponse, error) {
	serverClock := h.tick(req.LocalClock)

	rows, err := h.tasks.List(ctx, task.ListFilter{ProjectID: projectID})
	if err != nil {
		return nil, fmt.Errorf("coordinator: list tasks for handshake: %w", err)
	}

	serverByID := make(map[string]*task.Task, len(rows))
	for _, t := range rows {
		serverByID[t.ID] = t
	}

	buckets := map[string][]string{
		string(BucketInSync):    {},
		string(BucketNeedsPull): {},
		string(BucketNeedsPush): {},
		string(BucketConflict):  {},
	}

	seen := make(map[string]bool, len(req.TaskVersions))
	for id, clientVersion := range req.TaskVersions {
		seen[id] = true
		t, ok := serverByID[id]
		if !ok {
			buckets[string(BucketNeedsPush)] = append(buckets[string(BucketNeedsPush)], id)
			continue
		}
		switch {
		case clientVersion == t.SyncVersion:
			buckets[string(BucketInSync)] = append(buckets[string(BucketInSync)], id)
		case clientVersion > t.SyncVersion:
			buckets[string(BucketNeedsPush)] = append(buckets[string(BucketNeedsPush)], id)
		default:
			buckets[string(BucketNeedsPull)] = append(buckets[string(BucketNeedsPull)], id)
		}
	}
	for id := range serverByID {
		if !seen[id] {
			buckets[string(BucketNeedsPull)] = append(buckets[string(BucketNeedsPull)], id)
		}
	}

	return &HandshakeResponse{ServerClock: serverClock, Buckets: buckets}, nil
}

// Push applies a batch of task updates (§4.1 steps 1-5).
func (h *Handler) Push(ctx context.Context, projectID string, req PushRequest) (*PushResponse, error) {
	serverClock := h.tick(0)
	results := make([]PushResult, 0, len(req.Tasks))

	for _, upd := range req.Tasks {
		result := h.pushOne(ctx, projectID, req.NodeID, upd)
		results = append(results, result)
	}

	return &PushResponse{ServerClock: serverClock, Results: results}, nil
}

func (h *Handler) pushOne(ctx context.Context, projectID, nodeID string, upd PushTaskUpdate) PushResult {
	proposed := task.Status(upd.Status)

	current, err := h.tasks.Get(ctx, upd.ID)
	if err != nil {
		return PushResult{ID: upd.ID, Applied: false, Error: string(CodeTaskNotFound)}
	}

	if current.Status.Terminal() {
		return PushResult{ID: upd.ID, Applied: false, Version: current.SyncVersion, Status: string(current.Status), Error: string(CodeTerminalState)}
	}

	if upd.ExpectedVersion != current.SyncVersion {
		verdict := conflict.Resolve(conflict.Context{
			PluginIsActiveRunner: current.LockedBy == nodeID,
			ServerStatus:         current.Status,
			PluginStatus:         proposed,
			Transitions:          h.transitions,
		})
		switch verdict {
		case conflict.Reject:
			return PushResult{ID: upd.ID, Applied: false, Version: current.SyncVersion, Status: string(current.Status), Error: string(CodeVersionConflict)}
		case conflict.PluginWins:
			if proposed == current.Status {
				// rule 4: idempotent retry of an already-applied status.
				// A same-status move isn't a real transition, so treat it
				// as a no-op success instead of falling through to
				// transition(), which rejects self-transitions.
				return PushResult{ID: upd.ID, Applied: true, Version: current.SyncVersion, Status: string(current.Status)}
			}
			// fall through to apply below with the server's current version
			// as the base, since the resolver already validated the move.
		case conflict.ServerWins:
			return PushResult{ID: upd.ID, Applied: false, Version: current.SyncVersion, Status: string(current.Status)}
		}
	} else if !h.transitions.CanTransition(current.Status, proposed) {
		return PushResult{ID: upd.ID, Applied: false, Version: current.SyncVersion, Status: string(current.Status), Error: string(CodeInvalidTransition)}
	}

	var buf *ledgerBuffer
	updated, err := h.tasks.CompareAndSwap(ctx, upd.ID, current.SyncVersion, func(t *task.Task) error {
		var txErr error
		buf, txErr = h.transition(t, proposed, "push")
		if txErr != nil {
			return txErr
		}
		if upd.Iteration > 0 {
			t.Iteration = upd.Iteration
		}
		if upd.Result != nil {
			t.Result = &task.Result{
				Success: proposed == task.StatusCompleted,
				Data:    upd.Result,
			}
		}
		if proposed.Terminal() {
			now := time.Now()
			t.CompletedAt = &now
			t.ClearLock()
		}
		return nil
	})
	if err != nil {
		if e, ok := AsError(err); ok {
			return PushResult{ID: upd.ID, Applied: false, Version: current.SyncVersion, Status: string(current.Status), Error: string(e.Code)}
		}
		return PushResult{ID: upd.ID, Applied: false, Error: err.Error()}
	}

	if buf.entry != nil {
		h.appendLog(ctx, projectID, upd.ID, nodeID, synclog.OpPush, buf.entry.from, buf.entry.to)
	}
	h.publish(broadcast.TopicTaskUpdate, projectID, upd.ID, nodeID, updated.Status)
	if proposed.Terminal() {
		h.publish(broadcast.TopicTaskUnlocked, projectID, upd.ID, nodeID, nil)
	}

	logging.Info().
		Add(logging.Component("coordinator")).
		Add(logging.Operation("push")).
		Add(logging.TaskID(upd.ID)).
		Add(logging.NodeID(nodeID)).
		Add(logging.FromStatus(current.Status)).
		Add(logging.ToStatus(updated.Status)).
		Add(logging.Version(int(updated.SyncVersion))).
		Msg("task pushed")

	return PushResult{ID: upd.ID, Applied: true, Version: updated.SyncVersion, Status: string(updated.Status)}
}

// Pull returns the current state of the requested tasks, omitting ids
// unknown to the server (§4.1).
func (h *Handler) Pull(ctx context.Context, req PullRequest) (*PullResponse, error) {
	out := make([]PullTaskState, 0, len(req.TaskIDs))
	for _, id := range req.TaskIDs {
		t, err := h.tasks.Get(ctx, id)
		if err != nil {
			continue
		}
		state := PullTaskState{
			ID:        t.ID,
			Status:    string(t.Status),
			Version:   t.SyncVersion,
			Iteration: t.Iteration,
			LockedBy:  t.LockedBy,
		}
		if t.Result != nil {
			state.Result = t.Result.Data
		}
		out = append(out, state)
	}
	return &PullResponse{ServerClock: h.clk.Value(), Tasks: out}, nil
}

// Claim attempts to take ownership of a queued task (§4.4).
func (h *Handler) Claim(ctx context.Context, projectID, taskID string, req ClaimRequest) (*ClaimResponse, error) {
	lease := req.LockDuration
	if lease <= 0 {
		lease = h.leaseDuration
	}
	now := time.Now()

	current, err := h.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, newError(CodeTaskNotFound, "task not found")
	}
	if current.Status != task.StatusQueued {
		return nil, newError(CodeInvalidStatus, "task is not queued")
	}
	if current.Locked(now) {
		return nil, newError(CodeAlreadyLocked, "task is already locked by "+current.LockedBy)
	}

	var buf *ledgerBuffer
	updated, err := h.tasks.CompareAndSwap(ctx, taskID, current.SyncVersion, func(t *task.Task) error {
		if t.Locked(now) {
			return fmt.Errorf("%s", CodeAlreadyLocked)
		}
		var txErr error
		buf, txErr = h.transition(t, task.StatusRunning, "claim")
		if txErr != nil {
			return txErr
		}
		t.LockedBy = req.NodeID
		t.LockedAt = now
		t.LockExpiresAt = now.Add(lease)
		t.StartedAt = now
		return nil
	})
	if err != nil {
		return nil, newError(CodeAlreadyLocked, "claim lost the race")
	}
	if updated.LockedBy != req.NodeID {
		return nil, newError(CodeAlreadyLocked, "claim lost the race")
	}

	if buf.entry != nil {
		h.appendLog(ctx, projectID, taskID, req.NodeID, synclog.OpClaim, buf.entry.from, buf.entry.to)
	}
	h.publish(broadcast.TopicTaskLocked, projectID, taskID, req.NodeID, nil)

	logging.Info().
		Add(logging.Component("coordinator")).
		Add(logging.Operation("claim")).
		Add(logging.TaskID(taskID)).
		Add(logging.NodeID(req.NodeID)).
		Msg("task claimed")

	return &ClaimResponse{
		ServerClock:   h.clk.Value(),
		TaskID:        taskID,
		Version:       updated.SyncVersion,
		LockExpiresAt: updated.LockExpiresAt,
	}, nil
}

// ClaimNext finds the highest-priority queued task for a project and
// claims it, backing the `/api/projects/:projectId/claim-task`
// convenience endpoint and the agent driver's auto-advance (§4.6.1). It
// tries candidates in priority order, skipping any that lose the claim
// race to another node, rather than failing on the first collision.
func (h *Handler) ClaimNext(ctx context.Context, projectID string, req ClaimRequest) (*ClaimNextResponse, error) {
	rows, err := h.tasks.List(ctx, task.ListFilter{
		ProjectID:  projectID,
		Status:     []task.Status{task.StatusQueued},
		OrderBy:    task.OrderByPriority,
		Descending: false,
		Limit:      50,
	})
	if err != nil {
		return nil, fmt.Errorf("coordinator: list queued tasks: %w", err)
	}

	for _, row := range rows {
		resp, err := h.Claim(ctx, projectID, row.ID, req)
		if err != nil {
			continue
		}
		return &ClaimNextResponse{
			ClaimResponse: *resp,
			Name:          row.Name,
			Prompt:        row.Prompt,
			Config:        row.Config,
		}, nil
	}
	return nil, newError(CodeTaskNotFound, "no queued task available")
}

// Heartbeat extends a held lease and drains pending interventions into
// commands for the agent to apply (§4.4).
func (h *Handler) Heartbeat(ctx context.Context, taskID string, req HeartbeatRequest) (*HeartbeatResponse, error) {
	now := time.Now()

	current, err := h.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, newError(CodeTaskNotFound, "task not found")
	}
	if current.LockedBy != req.NodeID {
		return nil, newError(CodeLockLost, "lock not held by requester")
	}

	updated, err := h.tasks.CompareAndSwap(ctx, taskID, current.SyncVersion, func(t *task.Task) error {
		if t.LockedBy != req.NodeID {
			return fmt.Errorf("%s", CodeLockLost)
		}
		t.LockExpiresAt = now.Add(h.leaseDuration)
		if req.Iteration > 0 {
			t.Iteration = req.Iteration
		}
		return nil
	})
	if err != nil {
		return nil, newError(CodeLockLost, "lease was lost before heartbeat landed")
	}

	drained, err := h.interventions.DrainPending(ctx, taskID, now)
	if err != nil {
		logging.Warn().
			Add(logging.Component("coordinator")).
			Add(logging.Operation("heartbeat")).
			Add(logging.TaskID(taskID)).
			Add(logging.ErrorField(err)).
			Msg("drain pending interventions failed")
	}

	commands := make([]Command, 0, len(drained))
	for _, iv := range drained {
		commands = append(commands, Command{Type: iv.Type, Reason: iv.Reason, Params: iv.Params})
	}

	if req.Progress != "" {
		h.publish(broadcast.TopicTaskProgress, current.ProjectID, taskID, req.NodeID, req.Progress)
	}

	return &HeartbeatResponse{
		ServerClock:   h.clk.Value(),
		LockExpiresAt: updated.LockExpiresAt,
		Commands:      commands,
	}, nil
}

// Release voluntarily clears a held lease, required on terminal
// transitions (§4.4).
func (h *Handler) Release(ctx context.Context, projectID, taskID string, req ReleaseRequest) error {
	current, err := h.tasks.Get(ctx, taskID)
	if err != nil {
		return newError(CodeTaskNotFound, "task not found")
	}
	if current.LockedBy != req.NodeID {
		return nil
	}

	_, err = h.tasks.CompareAndSwap(ctx, taskID, current.SyncVersion, func(t *task.Task) error {
		t.ClearLock()
		return nil
	})
	if err != nil {
		return fmt.Errorf("coordinator: release task %s: %w", taskID, err)
	}

	h.appendLog(ctx, projectID, taskID, req.NodeID, synclog.OpRelease, nil, nil)
	h.publish(broadcast.TopicTaskUnlocked, projectID, taskID, req.NodeID, nil)
	return nil
}

// Intervene queues an operator command for delivery on the next
// heartbeat, applying release-lock immediately since it requires no
// agent cooperation.
func (h *Handler) Intervene(ctx context.Context, projectID string, req IntervenRequest) (*intervention.Intervention, error) {
	iv := &intervention.Intervention{
		ID:          randomID("iv"),
		TaskID:      req.TaskID,
		Type:        req.Type,
		RequestedBy: req.RequestedBy,
		Reason:      req.Reason,
		Params:      req.Params,
		Status:      intervention.StatusPending,
		CreatedAt:   time.Now(),
	}

	if err := h.interventions.Create(ctx, iv); err != nil {
		return nil, fmt.Errorf("coordinator: create intervention: %w", err)
	}

	h.appendLog(ctx, projectID, req.TaskID, req.RequestedBy, synclog.OpIntervene, nil, req.Type)

	if req.Type == intervention.TypeReleaseLock {
		if err := h.forceRelease(ctx, projectID, req.TaskID, req.RequestedBy); err != nil {
			logging.Warn().
				Add(logging.Component("coordinator")).
				Add(logging.Operation("intervene")).
				Add(logging.TaskID(req.TaskID)).
				Add(logging.ErrorField(err)).
				Msg("force release failed")
		}
	}

	logging.Info().
		Add(logging.Component("coordinator")).
		Add(logging.Operation("intervene")).
		Add(logging.TaskID(req.TaskID)).
		Add(logging.Reason(string(req.Type))).
		Msg("intervention queued")

	return iv, nil
}

func (h *Handler) forceRelease(ctx context.Context, projectID, taskID, requestedBy string) error {
	current, err := h.tasks.Get(ctx, taskID)
	if err != nil {
		return err
	}
	_, err = h.tasks.CompareAndSwap(ctx, taskID, current.SyncVersion, func(t *task.Task) error {
		t.ClearLock()
		return nil
	})
	if err != nil {
		return err
	}
	h.publish(broadcast.TopicTaskUnlocked, projectID, taskID, requestedBy, nil)
	return nil
}

// Sweep transitions every running task whose lease has expired to
// stuck, clearing its lock (§4.4 "Sweeper"). SweepLock, when configured,
// ensures only one coordinator replica runs this at a time.
func (h *Handler) Sweep(ctx context.Context, projectID string) (*SweepResult, error) {
	if h.sweepLock != nil {
		var result *SweepResult
		var sweepErr error
		err := h.sweepLock.WithLock(ctx, "sweep:"+projectID, 30*time.Second, func(ctx context.Context) error {
			result, sweepErr = h.sweepLocked(ctx, projectID)
			return sweepErr
		})
		if err != nil {
			return nil, fmt.Errorf("coordinator: sweep: %w", err)
		}
		return result, nil
	}
	return h.sweepLocked(ctx, projectID)
}

func (h *Handler) sweepLocked(ctx context.Context, projectID string) (*SweepResult, error) {
	now := time.Now()
	rows, err := h.tasks.List(ctx, task.ListFilter{ProjectID: projectID, Status: []task.Status{task.StatusRunning}})
	if err != nil {
		return nil, fmt.Errorf("coordinator: list running tasks: %w", err)
	}

	stuck := make([]string, 0)
	for _, t := range rows {
		if t.LockExpiresAt.IsZero() || t.LockExpiresAt.After(now) {
			continue
		}

		var buf *ledgerBuffer
		updated, err := h.tasks.CompareAndSwap(ctx, t.ID, t.SyncVersion, func(row *task.Task) error {
			if !row.LockExpiresAt.Before(now) {
				return fmt.Errorf("lease no longer expired")
			}
			var txErr error
			buf, txErr = h.transition(row, task.StatusStuck, "lease expired")
			if txErr != nil {
				return txErr
			}
			row.ClearLock()
			return nil
		})
		if err != nil {
			continue
		}

		if buf.entry != nil {
			h.appendLog(ctx, projectID, t.ID, "", synclog.OpStuck, buf.entry.from, buf.entry.to)
		}
		h.publish(broadcast.TopicTaskStuck, projectID, t.ID, "", "lease expired")
		stuck = append(stuck, updated.ID)

		logging.Warn().
			Add(logging.Component("coordinator")).
			Add(logging.Operation("sweep")).
			Add(logging.TaskID(t.ID)).
			Msg("lease expired, task marked stuck")
	}

	return &SweepResult{ServerClock: h.clk.Value(), Stuck: stuck}, nil
}

// RegisterNode upserts a node record, used by the /nodes/register path.
func (h *Handler) RegisterNode(ctx context.Context, n *node.Node) error {
	n.LastSeen = time.Now()
	if err := h.nodes.Upsert(ctx, n); err != nil {
		return fmt.Errorf("coordinator: register node: %w", err)
	}
	h.publish(broadcast.TopicNodeRegistered, n.ProjectID, "", n.ID, nil)
	return nil
}

// NodeHeartbeat updates a node's liveness timestamp.
func (h *Handler) NodeHeartbeat(ctx context.Context, nodeID string) error {
	return h.nodes.Heartbeat(ctx, nodeID, time.Now())
}

// ListNodes returns every node registered to the project.
func (h *Handler) ListNodes(ctx context.Context, projectID string) ([]*node.Node, error) {
	return h.nodes.ListByProject(ctx, projectID)
}

// Log returns the tail of the project's sync log.
func (h *Handler) Log(ctx context.Context, projectID string, limit int) ([]synclog.Entry, error) {
	return h.synclog.Tail(ctx, projectID, limit)
}

// Status reports the aggregate health view backing GET /status/:projectId.
// Stores that implement task.SummaryProvider compute it directly;
// otherwise Status derives it from a full List.
func (h *Handler) Status(ctx context.Context, projectID string) (*task.Summary, error) {
	if sp, ok := h.tasks.(task.SummaryProvider); ok {
		summary, err := sp.Summary(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("coordinator: status: %w", err)
		}
		return &summary, nil
	}

	rows, err := h.tasks.List(ctx, task.ListFilter{ProjectID: projectID})
	if err != nil {
		return nil, fmt.Errorf("coordinator: status: %w", err)
	}

	var summary task.Summary
	var totalDuration time.Duration
	var finished int64
	for _, row := range rows {
		summary.TotalTasks++
		switch row.Status {
		case task.StatusPending:
			summary.PendingTasks++
		case task.StatusQueued:
			summary.QueuedTasks++
		case task.StatusRunning:
			summary.RunningTasks++
		case task.StatusCompleted:
			summary.CompletedTasks++
			if !row.StartedAt.IsZero() && row.CompletedAt != nil {
				totalDuration += row.CompletedAt.Sub(row.StartedAt)
				finished++
			}
		case task.StatusFailed:
			summary.FailedTasks++
		case task.StatusStuck:
			summary.StuckTasks++
		}
	}
	if finished > 0 {
		summary.AverageDuration = totalDuration / time.Duration(finished)
	}
	return &summary, nil
}

func randomID(prefix string) string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return prefix + "-" + hex.EncodeToString(buf)
}
