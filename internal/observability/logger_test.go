package observability

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestNewLogger_LevelMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		level string
	}{
		{name: "debug", level: "debug"},
		{name: "info", level: "info"},
		{name: "warn", level: "warn"},
		{name: "error", level: "error"},
		{name: "mixed case", level: " Info "},
		{name: "empty defaults to info", level: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, err := NewLogger(tt.level)
			if err != nil {
				t.Fatalf("NewLogger(%q) error = %v", tt.level, err)
			}
			if logger == nil {
				t.Fatal("NewLogger() returned nil logger")
			}
		})
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	t.Parallel()

	if _, err := NewLogger("verbose"); err == nil {
		t.Fatal("NewLogger(verbose) should fail")
	}
}

func TestTaskID_ContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := WithTaskID(context.Background(), "task-123")

	got, ok := TaskIDFromContext(ctx)
	if !ok {
		t.Fatal("task id should be present")
	}
	if got != "task-123" {
		t.Fatalf("task id = %q, want task-123", got)
	}
}

func TestTaskID_MissingValue(t *testing.T) {
	t.Parallel()

	if _, ok := TaskIDFromContext(context.Background()); ok {
		t.Fatal("task id should be absent")
	}
	if _, ok := TaskIDFromContext(nil); ok { //nolint:staticcheck
		t.Fatal("nil context should report absent")
	}
}

func TestWithContextLogger(t *testing.T) {
	t.Parallel()

	base := zap.NewNop()

	if got := WithContextLogger(base, context.Background()); got != base {
		t.Fatal("logger without task id should be returned unchanged")
	}

	ctx := WithTaskID(context.Background(), "task-123")
	if got := WithContextLogger(base, ctx); got == base {
		t.Fatal("logger with task id should be a child logger")
	}

	if got := WithContextLogger(nil, ctx); got != nil {
		t.Fatal("nil logger should stay nil")
	}
}
