package badger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/relaysync/conductor/domain/task"
	"github.com/relaysync/conductor/infrastructure/storage/badger"
)

func newTestOutbox(t *testing.T) *badger.Outbox {
	t.Helper()
	ob, err := badger.NewOutbox(badger.Config{InMemory: true})
	if err != nil {
		t.Fatalf("NewOutbox failed: %v", err)
	}
	return ob
}

func TestOutbox_EnqueueAndDrainSuccess(t *testing.T) {
	ob := newTestOutbox(t)
	defer ob.Close()
	ctx := context.Background()

	if err := ob.Enqueue(ctx, badger.StatusUpdate{TaskID: "t1", Status: task.StatusCompleted}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	n, err := ob.Len(ctx)
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 queued item, got %d", n)
	}

	delivered := 0
	err = ob.Drain(ctx, func(ctx context.Context, u badger.StatusUpdate) error {
		delivered++
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if delivered != 1 {
		t.Fatalf("expected 1 delivery, got %d", delivered)
	}

	n, err = ob.Len(ctx)
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected outbox empty after successful drain, got %d", n)
	}
}

func TestOutbox_LastWriterWinsReplace(t *testing.T) {
	ob := newTestOutbox(t)
	defer ob.Close()
	ctx := context.Background()

	_ = ob.Enqueue(ctx, badger.StatusUpdate{TaskID: "t1", Status: task.StatusFailed, Reason: "first"})
	_ = ob.Enqueue(ctx, badger.StatusUpdate{TaskID: "t1", Status: task.StatusCompleted, Reason: "second"})

	n, err := ob.Len(ctx)
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected replacement to collapse to 1 item, got %d", n)
	}

	pending, err := ob.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if pending[0].Status != task.StatusCompleted || pending[0].Reason != "second" {
		t.Fatalf("expected last-writer-wins entry, got %+v", pending[0])
	}
}

func TestOutbox_DrainFailureBumpsAttempts(t *testing.T) {
	ob := newTestOutbox(t)
	defer ob.Close()
	ctx := context.Background()

	_ = ob.Enqueue(ctx, badger.StatusUpdate{TaskID: "t1", Status: task.StatusCompleted})

	failing := func(ctx context.Context, u badger.StatusUpdate) error {
		return errors.New("coordinator unreachable")
	}

	if err := ob.Drain(ctx, failing, nil); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	pending, err := ob.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected item to remain queued, got %d", len(pending))
	}
	if pending[0].Attempts != 1 {
		t.Fatalf("expected attempts=1, got %d", pending[0].Attempts)
	}
}

func TestOutbox_DiscardsAtAttemptCap(t *testing.T) {
	ob := newTestOutbox(t)
	defer ob.Close()
	ctx := context.Background()

	_ = ob.Enqueue(ctx, badger.StatusUpdate{TaskID: "t1", Status: task.StatusCompleted})

	failing := func(ctx context.Context, u badger.StatusUpdate) error {
		return errors.New("coordinator unreachable")
	}

	var discarded []badger.StatusUpdate
	for i := 0; i < 10; i++ {
		if err := ob.Drain(ctx, failing, func(u badger.StatusUpdate) {
			discarded = append(discarded, u)
		}); err != nil {
			t.Fatalf("Drain failed: %v", err)
		}
	}

	n, err := ob.Len(ctx)
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected outbox empty after reaching attempt cap, got %d", n)
	}
	if len(discarded) != 1 {
		t.Fatalf("expected exactly one discard callback, got %d", len(discarded))
	}
}

func TestOutbox_DrainSuccessAfterRetries(t *testing.T) {
	ob := newTestOutbox(t)
	defer ob.Close()
	ctx := context.Background()

	_ = ob.Enqueue(ctx, badger.StatusUpdate{TaskID: "t1", Status: task.StatusCompleted})

	attempt := 0
	deliver := func(ctx context.Context, u badger.StatusUpdate) error {
		attempt++
		if attempt < 3 {
			return errors.New("transient")
		}
		return nil
	}

	for i := 0; i < 3; i++ {
		if err := ob.Drain(ctx, deliver, nil); err != nil {
			t.Fatalf("Drain failed: %v", err)
		}
	}

	n, err := ob.Len(ctx)
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected outbox drained after eventual success, got %d", n)
	}
}
