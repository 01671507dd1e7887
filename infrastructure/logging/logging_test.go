package logging

import (
	"bytes"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/relaysync/conductor/domain/task"
)

// testLogger creates a logger that writes to a buffer for testing
func testLogger() (*bolt.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	handler := bolt.NewJSONHandler(buf)
	logger := bolt.New(handler).SetLevel(bolt.TRACE)
	return logger, buf
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()

	if config.Level != "info" {
		t.Errorf("Level = %s, want info", config.Level)
	}
	if config.Format != "console" {
		t.Errorf("Format = %s, want console", config.Format)
	}
	if config.Output != os.Stdout {
		t.Errorf("Output = %v, want os.Stdout", config.Output)
	}
}

func TestProductionConfig(t *testing.T) {
	t.Parallel()

	config := ProductionConfig()

	if config.Level != "info" {
		t.Errorf("Level = %s, want info", config.Level)
	}
	if config.Format != "json" {
		t.Errorf("Format = %s, want json", config.Format)
	}
	if config.Output != os.Stdout {
		t.Errorf("Output = %v, want os.Stdout", config.Output)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected bolt.Level
	}{
		{"trace", bolt.TRACE},
		{"debug", bolt.DEBUG},
		{"info", bolt.INFO},
		{"warn", bolt.WARN},
		{"error", bolt.ERROR},
		{"unknown", bolt.INFO}, // Default
		{"", bolt.INFO},        // Empty defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			result := parseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("parseLevel(%s) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestTaskIDField(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	field := TaskID("t-123")
	if field == nil {
		t.Fatal("TaskID() returned nil")
	}

	event := logger.Info()
	field(event).Msg("test")

	if !bytes.Contains(buf.Bytes(), []byte(`"task_id":"t-123"`)) {
		t.Errorf("expected task_id field in output: %s", buf.String())
	}
}

func TestProjectIDField(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	field := ProjectID("p-123")
	if field == nil {
		t.Fatal("ProjectID() returned nil")
	}

	event := logger.Info()
	field(event).Msg("test")

	if !bytes.Contains(buf.Bytes(), []byte(`"project_id":"p-123"`)) {
		t.Errorf("expected project_id field in output: %s", buf.String())
	}
}

func TestNodeIDField(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	field := NodeID("node-1")
	if field == nil {
		t.Fatal("NodeID() returned nil")
	}

	event := logger.Info()
	field(event).Msg("test")

	if !bytes.Contains(buf.Bytes(), []byte(`"node_id":"node-1"`)) {
		t.Errorf("expected node_id field in output: %s", buf.String())
	}
}

func TestStatusField(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	field := Status(task.StatusRunning)
	if field == nil {
		t.Fatal("Status() returned nil")
	}

	event := logger.Info()
	field(event).Msg("test")

	if !bytes.Contains(buf.Bytes(), []byte(`"status":"running"`)) {
		t.Errorf("expected status field in output: %s", buf.String())
	}
}

func TestFromStatusField(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	field := FromStatus(task.StatusPending)
	if field == nil {
		t.Fatal("FromStatus() returned nil")
	}

	event := logger.Info()
	field(event).Msg("test")

	if !bytes.Contains(buf.Bytes(), []byte(`"from_status":"pending"`)) {
		t.Errorf("expected from_status field in output: %s", buf.String())
	}
}

func TestToStatusField(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	field := ToStatus(task.StatusRunning)
	if field == nil {
		t.Fatal("ToStatus() returned nil")
	}

	event := logger.Info()
	field(event).Msg("test")

	if !bytes.Contains(buf.Bytes(), []byte(`"to_status":"running"`)) {
		t.Errorf("expected to_status field in output: %s", buf.String())
	}
}

func TestIterationField(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	field := Iteration(3)
	if field == nil {
		t.Fatal("Iteration() returned nil")
	}

	event := logger.Info()
	field(event).Msg("test")

	if !bytes.Contains(buf.Bytes(), []byte(`"iteration":3`)) {
		t.Errorf("expected iteration field in output: %s", buf.String())
	}
}

func TestDurationField(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	field := Duration(100 * time.Millisecond)
	if field == nil {
		t.Fatal("Duration() returned nil")
	}

	event := logger.Info()
	field(event).Msg("test")

	if !bytes.Contains(buf.Bytes(), []byte(`"duration_ms":100`)) {
		t.Errorf("expected duration_ms field in output: %s", buf.String())
	}
}

func TestDurationNsField(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	field := DurationNs(100 * time.Millisecond)
	if field == nil {
		t.Fatal("DurationNs() returned nil")
	}

	event := logger.Info()
	field(event).Msg("test")

	if !bytes.Contains(buf.Bytes(), []byte(`"duration_ns":100000000`)) {
		t.Errorf("expected duration_ns field in output: %s", buf.String())
	}
}

func TestErrorField(t *testing.T) {
	t.Parallel()

	t.Run("with error", func(t *testing.T) {
		t.Parallel()

		logger, buf := testLogger()
		field := ErrorField(errors.New("test error"))
		if field == nil {
			t.Fatal("ErrorField() returned nil")
		}

		event := logger.Info()
		field(event).Msg("test")

		if !bytes.Contains(buf.Bytes(), []byte(`"error":"test error"`)) {
			t.Errorf("expected error field in output: %s", buf.String())
		}
	})

	t.Run("with nil error", func(t *testing.T) {
		t.Parallel()

		logger, buf := testLogger()
		field := ErrorField(nil)
		if field == nil {
			t.Fatal("ErrorField(nil) returned nil")
		}

		event := logger.Info()
		field(event).Msg("test")

		// Should not contain error field
		if bytes.Contains(buf.Bytes(), []byte(`"error"`)) {
			t.Errorf("unexpected error field in output: %s", buf.String())
		}
	})
}

func TestAttemptField(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	field := Attempt(2)
	if field == nil {
		t.Fatal("Attempt() returned nil")
	}

	event := logger.Info()
	field(event).Msg("test")

	if !bytes.Contains(buf.Bytes(), []byte(`"attempt":2`)) {
		t.Errorf("expected attempt field in output: %s", buf.String())
	}
}

func TestPatternField(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	field := Pattern("no-progress")
	if field == nil {
		t.Fatal("Pattern() returned nil")
	}

	event := logger.Info()
	field(event).Msg("test")

	if !bytes.Contains(buf.Bytes(), []byte(`"pattern":"no-progress"`)) {
		t.Errorf("expected pattern field in output: %s", buf.String())
	}
}

func TestStrategyField(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	field := Strategy("simplify")
	if field == nil {
		t.Fatal("Strategy() returned nil")
	}

	event := logger.Info()
	field(event).Msg("test")

	if !bytes.Contains(buf.Bytes(), []byte(`"strategy":"simplify"`)) {
		t.Errorf("expected strategy field in output: %s", buf.String())
	}
}

func TestCheckpointRefField(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	field := CheckpointRef("abc123")
	if field == nil {
		t.Fatal("CheckpointRef() returned nil")
	}

	event := logger.Info()
	field(event).Msg("test")

	if !bytes.Contains(buf.Bytes(), []byte(`"checkpoint_ref":"abc123"`)) {
		t.Errorf("expected checkpoint_ref field in output: %s", buf.String())
	}
}

func TestScoreField(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	field := Score(0.875)
	if field == nil {
		t.Fatal("Score() returned nil")
	}

	event := logger.Info()
	field(event).Msg("test")

	if !bytes.Contains(buf.Bytes(), []byte(`"score":"0.88"`)) {
		t.Errorf("expected score field in output: %s", buf.String())
	}
}

func TestGoalField(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	field := Goal("process files")
	if field == nil {
		t.Fatal("Goal() returned nil")
	}

	event := logger.Info()
	field(event).Msg("test")

	if !bytes.Contains(buf.Bytes(), []byte(`"goal":"process files"`)) {
		t.Errorf("expected goal field in output: %s", buf.String())
	}
}

func TestReasonField(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	field := Reason("user request")
	if field == nil {
		t.Fatal("Reason() returned nil")
	}

	event := logger.Info()
	field(event).Msg("test")

	if !bytes.Contains(buf.Bytes(), []byte(`"reason":"user request"`)) {
		t.Errorf("expected reason field in output: %s", buf.String())
	}
}

func TestComponentField(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	field := Component("engine")
	if field == nil {
		t.Fatal("Component() returned nil")
	}

	event := logger.Info()
	field(event).Msg("test")

	if !bytes.Contains(buf.Bytes(), []byte(`"component":"engine"`)) {
		t.Errorf("expected component field in output: %s", buf.String())
	}
}

func TestOperationField(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	field := Operation("claim")
	if field == nil {
		t.Fatal("Operation() returned nil")
	}

	event := logger.Info()
	field(event).Msg("test")

	if !bytes.Contains(buf.Bytes(), []byte(`"operation":"claim"`)) {
		t.Errorf("expected operation field in output: %s", buf.String())
	}
}

func TestLockKeyField(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	field := LockKey("conductor:task:t-1")
	if field == nil {
		t.Fatal("LockKey() returned nil")
	}

	event := logger.Info()
	field(event).Msg("test")

	if !bytes.Contains(buf.Bytes(), []byte(`"lock_key":"conductor:task:t-1"`)) {
		t.Errorf("expected lock_key field in output: %s", buf.String())
	}
}

func TestVersionField(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	field := Version(4)
	if field == nil {
		t.Fatal("Version() returned nil")
	}

	event := logger.Info()
	field(event).Msg("test")

	if !bytes.Contains(buf.Bytes(), []byte(`"version":4`)) {
		t.Errorf("expected version field in output: %s", buf.String())
	}
}

func TestStrField(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	field := Str("custom_key", "custom_value")
	if field == nil {
		t.Fatal("Str() returned nil")
	}

	event := logger.Info()
	field(event).Msg("test")

	if !bytes.Contains(buf.Bytes(), []byte(`"custom_key":"custom_value"`)) {
		t.Errorf("expected custom_key field in output: %s", buf.String())
	}
}

// TestInit tests logger initialization
func TestInit(t *testing.T) {
	// Note: Can't test Init() properly due to sync.Once
	// Just test that Init doesn't panic with various configs
	t.Run("with nil output uses stdout", func(t *testing.T) {
		// Skip because sync.Once is already triggered
		t.Skip("sync.Once already triggered in other tests")
	})
}

// TestGet tests getting the default logger
func TestGet(t *testing.T) {
	logger := Get()
	if logger == nil {
		t.Fatal("Get() returned nil")
	}
}

// TestSetLevel tests changing the log level
func TestSetLevel(t *testing.T) {
	// Just verify it doesn't panic
	SetLevel("debug")
	SetLevel("info")
	SetLevel("error")
}

// TestLogEvent tests the LogEvent wrapper
func TestLogEvent(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()

	t.Run("Add chains fields", func(t *testing.T) {
		buf.Reset()
		event := &LogEvent{event: logger.Info()}
		event.Add(TaskID("t-1")).Add(Status(task.StatusRunning)).Msg("test")

		if !bytes.Contains(buf.Bytes(), []byte(`"task_id":"t-1"`)) {
			t.Errorf("expected task_id field in output: %s", buf.String())
		}
		if !bytes.Contains(buf.Bytes(), []byte(`"status":"running"`)) {
			t.Errorf("expected status field in output: %s", buf.String())
		}
	})

	t.Run("Send without message", func(t *testing.T) {
		buf.Reset()
		event := &LogEvent{event: logger.Info()}
		event.Add(TaskID("t-2")).Send()

		if !bytes.Contains(buf.Bytes(), []byte(`"task_id":"t-2"`)) {
			t.Errorf("expected task_id field in output: %s", buf.String())
		}
	})
}

// TestNewEvent tests creating a new LogEvent wrapper
func TestNewEvent(t *testing.T) {
	logger, _ := testLogger()
	event := logger.Info()
	logEvent := NewEvent(event)

	if logEvent == nil {
		t.Fatal("NewEvent() returned nil")
	}
	if logEvent.event != event {
		t.Error("NewEvent() did not store the event correctly")
	}
}

// TestLogLevelHelpers tests the convenience methods
func TestLogLevelHelpers(t *testing.T) {
	// These call Get() which initializes the default logger
	// Just verify they don't panic and return non-nil

	// Redirect to discard to avoid polluting test output
	originalOutput := os.Stdout
	os.Stdout = os.NewFile(0, os.DevNull)
	defer func() { os.Stdout = originalOutput }()

	t.Run("Trace", func(t *testing.T) {
		event := Trace()
		if event == nil {
			t.Fatal("Trace() returned nil")
		}
	})

	t.Run("Debug", func(t *testing.T) {
		event := Debug()
		if event == nil {
			t.Fatal("Debug() returned nil")
		}
	})

	t.Run("Info", func(t *testing.T) {
		event := Info()
		if event == nil {
			t.Fatal("Info() returned nil")
		}
	})

	t.Run("Warn", func(t *testing.T) {
		event := Warn()
		if event == nil {
			t.Fatal("Warn() returned nil")
		}
	})

	t.Run("Error", func(t *testing.T) {
		event := Error()
		if event == nil {
			t.Fatal("Error() returned nil")
		}
	})

	// Note: Don't test Fatal() as it might call os.Exit
}

// Ensure io import is used
var _ io.Writer = (*bytes.Buffer)(nil)
