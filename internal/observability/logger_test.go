package observability

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_LevelMapping(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		level        string
		debugEnabled bool
	}{
		{name: "debug level", level: "debug", debugEnabled: true},
		{name: "info level", level: "info", debugEnabled: false},
		{name: "mixed case warn", level: " WARN ", debugEnabled: false},
		{name: "empty level defaults to info", level: "", debugEnabled: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			logger, err := NewLogger(tc.level)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if logger == nil {
				t.Fatal("logger should not be nil")
			}

			if got := logger.Core().Enabled(zapcore.DebugLevel); got != tc.debugEnabled {
				t.Fatalf("debug enabled=%v, want=%v", got, tc.debugEnabled)
			}
		})
	}
}

func TestNewLogger_WithFields(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger("info", zap.String("mode", "daemon"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logger == nil {
		t.Fatal("logger should not be nil")
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger("loud")
	if err == nil {
		t.Fatal("expected error for invalid level")
	}
	if logger != nil {
		t.Fatal("expected nil logger for invalid level")
	}
}

func TestRunID_ContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := WithRun(WithTrigger(context.Background(), TriggerSchedule), "run-123", false)
	runID, ok := RunIDFromContext(ctx)
	if !ok {
		t.Fatal("expected run id to exist")
	}
	if runID != "run-123" {
		t.Fatalf("run id=%q, want=%q", runID, "run-123")
	}
}

func TestRunID_MissingValue(t *testing.T) {
	t.Parallel()

	if _, ok := RunIDFromContext(context.Background()); ok {
		t.Fatal("expected run id to be missing")
	}
	if _, ok := RunIDFromContext(WithTrigger(context.Background(), TriggerManual)); ok {
		t.Fatal("expected trigger alone to carry no run id")
	}
	if _, ok := RunIDFromContext(WithRun(context.Background(), "", false)); ok {
		t.Fatal("expected empty run id to be treated as missing")
	}
}

func TestWithContextLogger(t *testing.T) {
	t.Parallel()

	core, recorded := observer.New(zapcore.InfoLevel)
	baseLogger := zap.New(core)

	ctx := WithRun(context.Background(), "run-789", false)
	WithContextLogger(baseLogger, ctx).Info("run started")

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("entries=%d, want=1", len(entries))
	}
	fields := entries[0].ContextMap()
	if got := fields["runId"]; got != "run-789" {
		t.Fatalf("runId=%v, want=%q", got, "run-789")
	}
	if _, ok := fields["forced"]; ok {
		t.Fatal("expected forced field to be absent for a normal run")
	}
	if _, ok := fields["trigger"]; ok {
		t.Fatal("expected trigger field to be absent when unset")
	}
}

func TestWithContextLogger_TriggerAndForce(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		ctx     context.Context
		trigger string
	}{
		{
			name:    "trigger set before run",
			ctx:     WithRun(WithTrigger(context.Background(), TriggerSchedule), "run-1", true),
			trigger: TriggerSchedule,
		},
		{
			name:    "trigger set after run keeps run id",
			ctx:     WithTrigger(WithRun(context.Background(), "run-1", true), TriggerManual),
			trigger: TriggerManual,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			core, recorded := observer.New(zapcore.InfoLevel)
			WithContextLogger(zap.New(core), tc.ctx).Info("item sent")

			fields := recorded.All()[0].ContextMap()
			if fields["runId"] != "run-1" || fields["trigger"] != tc.trigger || fields["forced"] != true {
				t.Fatalf("fields=%v", fields)
			}
		})
	}
}

func TestWithContextLogger_NoRunID(t *testing.T) {
	t.Parallel()

	core, recorded := observer.New(zapcore.InfoLevel)
	baseLogger := zap.New(core)

	WithContextLogger(baseLogger, context.Background()).Info("no run")

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("entries=%d, want=1", len(entries))
	}
	if _, ok := entries[0].ContextMap()["runId"]; ok {
		t.Fatal("expected runId field to be absent")
	}
}

func TestWithContextLogger_NilLogger(t *testing.T) {
	t.Parallel()

	if got := WithContextLogger(nil, context.Background()); got != nil {
		t.Fatal("expected nil logger")
	}
}
