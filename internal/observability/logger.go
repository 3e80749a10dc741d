package observability

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Run triggers recorded on every log line of a run.
const (
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
)

type runInfoKey struct{}

// runInfo is what a context knows about the dispatch run it serves. The
// trigger is set by whoever starts the run; the id and force flag by the run.
type runInfo struct {
	id      string
	trigger string
	forced  bool
}

// NewLogger builds the process logger. fields are attached to every entry,
// e.g. the invocation mode.
func NewLogger(level string, fields ...zap.Field) (*zap.Logger, error) {
	parsedLevel, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsedLevel)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true

	logger, err := cfg.Build(zap.AddCaller(), zap.Fields(fields...))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger.Named("outreach-dispatch"), nil
}

func parseLevel(level string) (zapcore.Level, error) {
	var parsed zapcore.Level
	normalized := strings.ToLower(strings.TrimSpace(level))
	if normalized == "" {
		normalized = "info"
	}

	if err := parsed.UnmarshalText([]byte(normalized)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	return parsed, nil
}

func infoFrom(ctx context.Context) runInfo {
	if ctx == nil {
		return runInfo{}
	}
	info, _ := ctx.Value(runInfoKey{}).(runInfo)
	return info
}

// WithTrigger records what started the run that ctx will carry.
func WithTrigger(ctx context.Context, trigger string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	info := infoFrom(ctx)
	info.trigger = trigger
	return context.WithValue(ctx, runInfoKey{}, info)
}

// WithRun tags ctx with the run id and whether the send window is bypassed.
// A trigger already on ctx is kept.
func WithRun(ctx context.Context, runID string, forced bool) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	info := infoFrom(ctx)
	info.id = runID
	info.forced = forced
	return context.WithValue(ctx, runInfoKey{}, info)
}

func RunIDFromContext(ctx context.Context) (string, bool) {
	info := infoFrom(ctx)
	return info.id, info.id != ""
}

// WithContextLogger adds the run fields found on ctx. forced is only logged
// when true so that bypassed send windows stand out in audits.
func WithContextLogger(logger *zap.Logger, ctx context.Context) *zap.Logger {
	if logger == nil {
		return nil
	}

	info := infoFrom(ctx)
	fields := make([]zap.Field, 0, 3)
	if info.id != "" {
		fields = append(fields, zap.String("runId", info.id))
	}
	if info.trigger != "" {
		fields = append(fields, zap.String("trigger", info.trigger))
	}
	if info.forced {
		fields = append(fields, zap.Bool("forced", true))
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}
