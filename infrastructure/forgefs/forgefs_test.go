package forgefs

import (
	"os"
	"testing"
	"time"

	"github.com/relaysync/conductor/application/agentloop"
	"github.com/relaysync/conductor/domain/task"
)

func TestStateFile_SaveAndLoad(t *testing.T) {
	dir, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sf := NewStateFile(dir)

	want := agentloop.State{TaskID: "t1", ProjectID: "p1", Status: task.StatusRunning, Iteration: 3}
	if err := sf.Save(t.Context(), want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := sf.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.TaskID != want.TaskID || got.Iteration != want.Iteration {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestStateFile_LoadMissingIsEmpty(t *testing.T) {
	dir, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sf := NewStateFile(dir)

	got, err := sf.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.TaskID != "" {
		t.Fatalf("expected empty state, got %+v", got)
	}
}

func TestCommandInbox_NextConsumes(t *testing.T) {
	dir, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := writeJSONAtomic(dir.Path("command.json"), commandFile{Type: agentloop.CommandPause, Reason: "operator requested pause"}); err != nil {
		t.Fatalf("seed command: %v", err)
	}

	inbox := NewCommandInbox(dir)
	cmd, err := inbox.Next(t.Context())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if cmd == nil || cmd.Type != agentloop.CommandPause {
		t.Fatalf("cmd = %+v, want pause", cmd)
	}

	cmd, err = inbox.Next(t.Context())
	if err != nil {
		t.Fatalf("Next (second): %v", err)
	}
	if cmd != nil {
		t.Fatalf("expected nil after consuming, got %+v", cmd)
	}
}

func TestRegistration_SaveAndLoad(t *testing.T) {
	dir, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	want := RegistrationFile{URL: "http://localhost:3344", ProjectID: "proj1", NodeID: "node1"}
	if err := dir.SaveRegistration(want); err != nil {
		t.Fatalf("SaveRegistration: %v", err)
	}

	got, err := dir.LoadRegistration()
	if err != nil {
		t.Fatalf("LoadRegistration: %v", err)
	}
	if *got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestWatcher_WakesOnTranscriptWrite(t *testing.T) {
	dir, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	done := make(chan struct{})
	go func() {
		w.Wait(t.Context(), 2*time.Second)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(dir.Path("transcript.txt"), []byte("turn 1"), 0o644); err != nil {
		t.Fatalf("write transcript: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after transcript.txt was written")
	}
}

func TestWatcher_TimesOutWhenQuiet(t *testing.T) {
	dir, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	start := time.Now()
	w.Wait(t.Context(), 100*time.Millisecond)
	if time.Since(start) < 100*time.Millisecond {
		t.Fatal("Wait returned before the timeout elapsed")
	}
}

func TestRegistration_LoadMissing(t *testing.T) {
	dir, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := dir.LoadRegistration(); err == nil {
		t.Fatal("expected an error when no registration exists")
	}
}
