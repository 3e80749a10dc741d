package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/kursadbilgin/outreach-dispatch/internal/observability"
)

// Runner executes one dispatch run.
type Runner interface {
	Run(ctx context.Context, opts RunOptions) (RunSummary, error)
}

// Scheduler triggers dispatch runs on a cron schedule. A tick that fires while
// the previous run is still going is skipped.
type Scheduler struct {
	runner Runner
	spec   string
	opts   RunOptions
	logger *zap.Logger
	parser cron.Parser
	runs   atomic.Int64

	mu      sync.RWMutex
	last    RunSummary
	lastErr error
	hasRun  bool
}

// LastRun is the outcome of the most recent finished run.
type LastRun struct {
	Summary RunSummary
	Err     error
}

func NewScheduler(runner Runner, spec string, opts RunOptions, logger *zap.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	spec = strings.TrimSpace(spec)
	if _, err := parser.Parse(spec); err != nil {
		return nil, fmt.Errorf("invalid dispatch schedule %q: %w", spec, err)
	}

	return &Scheduler{
		runner: runner,
		spec:   spec,
		opts:   opts,
		logger: logger,
		parser: parser,
	}, nil
}

// Start blocks until ctx is done, then waits for an in-flight run to return.
func (s *Scheduler) Start(ctx context.Context) error {
	cronLog := cronLogger{logger: s.logger.Sugar()}
	c := cron.New(
		cron.WithParser(s.parser),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	if _, err := c.AddFunc(s.spec, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("failed to register dispatch schedule: %w", err)
	}

	c.Start()
	s.logger.Info("scheduler started", zap.String("schedule", s.spec))

	<-ctx.Done()
	<-c.Stop().Done()

	s.logger.Info("scheduler stopped", zap.Int64("runs", s.runs.Load()))
	return nil
}

// Runs returns how many runs the scheduler has started.
func (s *Scheduler) Runs() int64 {
	return s.runs.Load()
}

// LastRun returns the most recent run, or false when none has finished yet.
func (s *Scheduler) LastRun() (LastRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return LastRun{Summary: s.last, Err: s.lastErr}, s.hasRun
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	s.runs.Add(1)

	summary, err := s.runner.Run(observability.WithTrigger(ctx, observability.TriggerSchedule), s.opts)

	s.mu.Lock()
	s.last, s.lastErr, s.hasRun = summary, err, true
	s.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("scheduled dispatch run failed",
			zap.String("runId", summary.RunID),
			zap.Error(err),
		)
	}
}

// cronLogger adapts zap to the cron.Logger interface.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
