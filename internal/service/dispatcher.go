package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kursadbilgin/outreach-dispatch/internal/domain"
	"github.com/kursadbilgin/outreach-dispatch/internal/observability"
	"github.com/kursadbilgin/outreach-dispatch/internal/personalize"
	"github.com/kursadbilgin/outreach-dispatch/internal/provider"
	"github.com/kursadbilgin/outreach-dispatch/internal/queue"
	"github.com/kursadbilgin/outreach-dispatch/internal/ratelimit"
	"github.com/kursadbilgin/outreach-dispatch/internal/render"
	"github.com/kursadbilgin/outreach-dispatch/internal/repository"
	"github.com/kursadbilgin/outreach-dispatch/internal/sendwindow"
	"github.com/kursadbilgin/outreach-dispatch/internal/suppression"
)

const (
	defaultBatchSize       = 6
	defaultOverfetchFactor = 3
	progressLogEvery       = 50
	sentVia                = "outreach-dispatch"
)

// Run results recorded on the runs metric.
const (
	runResultOK          = "ok"
	runResultError       = "error"
	runResultInterrupted = "interrupted"
)

// SuppressionSource builds the per-run suppression snapshot.
type SuppressionSource interface {
	Build(ctx context.Context) (*suppression.Oracle, error)
}

// Renderer turns a personalized body into the provider payload.
type Renderer interface {
	Render(body, assetLink string) (render.Content, error)
}

// DispatcherConfig carries the per-run limits and identity.
type DispatcherConfig struct {
	BatchSize       int
	OverfetchFactor int
	SendDelay       time.Duration
	OrganizationID  string
}

// DispatcherDeps are the collaborators of a Dispatcher. SendCap, Retries and
// Publisher are optional.
type DispatcherDeps struct {
	Queue        repository.QueueRepository
	Activities   repository.ActivityRepository
	Suppressions SuppressionSource
	Evaluator    *sendwindow.Evaluator
	Personalizer personalize.Personalizer
	Renderer     Renderer
	Provider     provider.Provider
	Publisher    queue.Publisher
	SendCap      ratelimit.RateLimiter
	Retries      *RetryScanner
}

// RunOptions are the per-invocation overrides.
type RunOptions struct {
	// BatchSize overrides the configured quota when positive.
	BatchSize int
	// Force bypasses the send window. Suppression still applies.
	Force bool
}

// RunSummary reports what one run did.
type RunSummary struct {
	RunID      string
	Candidates int
	Sent       int
	Failed     int
	Skipped    int
	Suppressed int
	// Invalid counts items marked failed before any send attempt because their
	// fields or content can never produce a message.
	Invalid int
	// Errored counts items abandoned or left inconsistent by a store or log write failure.
	Errored    int
	Forced     bool
	StartedAt  time.Time
	FinishedAt time.Time
}

func (s RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Dispatcher executes one dispatch run over a bounded slice of the backlog.
type Dispatcher struct {
	deps     DispatcherDeps
	selector *QueueSelector
	cfg      DispatcherConfig
	logger   *zap.Logger
	metrics  *observability.Metrics
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	newID    func() string
}

func NewDispatcher(deps DispatcherDeps, cfg DispatcherConfig, logger *zap.Logger) (*Dispatcher, error) {
	switch {
	case deps.Queue == nil:
		return nil, fmt.Errorf("queue repository is required")
	case deps.Activities == nil:
		return nil, fmt.Errorf("activity repository is required")
	case deps.Suppressions == nil:
		return nil, fmt.Errorf("suppression source is required")
	case deps.Evaluator == nil:
		return nil, fmt.Errorf("send window evaluator is required")
	case deps.Renderer == nil:
		return nil, fmt.Errorf("renderer is required")
	case deps.Provider == nil:
		return nil, fmt.Errorf("provider is required")
	}
	if deps.Personalizer == nil {
		deps.Personalizer = personalize.NewRegexPersonalizer()
	}
	if deps.Publisher == nil {
		deps.Publisher = queue.NopPublisher{}
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.OverfetchFactor < 1 {
		cfg.OverfetchFactor = defaultOverfetchFactor
	}
	if cfg.SendDelay < 0 {
		cfg.SendDelay = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	selector, err := NewQueueSelector(deps.Queue)
	if err != nil {
		return nil, err
	}

	return &Dispatcher{
		deps:     deps,
		selector: selector,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepWithContext,
		newID:    uuid.NewString,
	}, nil
}

func (d *Dispatcher) SetMetrics(metrics *observability.Metrics) {
	if d == nil {
		return
	}
	d.metrics = metrics
}

// Run processes one batch. Only a failed candidate read, a fail-closed
// suppression build or cancellation return an error; per-item failures are
// recorded and counted.
func (d *Dispatcher) Run(ctx context.Context, opts RunOptions) (RunSummary, error) {
	batchSize := opts.BatchSize
	if batchSize < 1 {
		batchSize = d.cfg.BatchSize
	}

	summary := RunSummary{
		RunID:     d.newID(),
		Forced:    opts.Force,
		StartedAt: d.now().UTC(),
	}
	ctx = observability.WithRun(ctx, summary.RunID, opts.Force)
	logger := observability.WithContextLogger(d.logger, ctx)

	finish := func(result string, err error) (RunSummary, error) {
		summary.FinishedAt = d.now().UTC()
		d.metrics.ObserveRun(result, summary.Duration())
		return summary, err
	}

	logger.Info("dispatch run started",
		zap.Int("batchSize", batchSize),
		zap.Bool("force", opts.Force),
		zap.Duration("sendDelay", d.cfg.SendDelay),
	)
	if opts.Force {
		logger.Warn("send window disabled for this run")
	}

	if d.deps.Retries != nil {
		if _, err := d.deps.Retries.Requeue(ctx); err != nil {
			logger.Error("retry requeue failed, continuing", zap.Error(err))
		}
	}

	candidates, err := d.selector.SelectCandidates(ctx, batchSize*d.cfg.OverfetchFactor)
	if err != nil {
		logger.Error("dispatch run aborted", zap.Error(err))
		return finish(runResultError, err)
	}
	summary.Candidates = len(candidates)

	oracle, err := d.deps.Suppressions.Build(ctx)
	if err != nil {
		logger.Error("dispatch run aborted", zap.Error(err))
		return finish(runResultError, fmt.Errorf("failed to build suppression list: %w", err))
	}
	if oracle == nil {
		oracle = suppression.NewOracle(nil)
	}

	safety := NewSafetyController(batchSize, d.cfg.SendDelay, d.deps.SendCap, d.cfg.OrganizationID, d.sleep)
	run := &runState{
		dispatcher: d,
		opts:       opts,
		oracle:     oracle,
		safety:     safety,
		summary:    &summary,
		logger:     logger,
	}

	for i := range candidates {
		if safety.QuotaExhausted() {
			logger.Info("run quota reached", zap.Int("quota", batchSize))
			break
		}
		if i > 0 && i%progressLogEvery == 0 {
			logger.Info("dispatch progress",
				zap.Int("processed", i),
				zap.Int("candidates", len(candidates)),
				zap.Int("sent", summary.Sent),
			)
		}

		outcome := run.process(ctx, &candidates[i])
		if outcome == outcomeStop {
			break
		}
		if outcome != outcomeAttempted || safety.QuotaExhausted() || i == len(candidates)-1 {
			continue
		}

		if err := safety.Pause(ctx); err != nil {
			logger.Warn("dispatch run interrupted", zap.Error(err))
			d.logSummary(logger, summary)
			return finish(runResultInterrupted, fmt.Errorf("dispatch run interrupted: %w", err))
		}
	}

	if err := ctx.Err(); err != nil {
		logger.Warn("dispatch run interrupted", zap.Error(err))
		d.logSummary(logger, summary)
		return finish(runResultInterrupted, fmt.Errorf("dispatch run interrupted: %w", err))
	}

	summary, err = finish(runResultOK, nil)
	d.logSummary(logger, summary)
	return summary, err
}

func (d *Dispatcher) logSummary(logger *zap.Logger, s RunSummary) {
	logger.Info("dispatch run finished",
		zap.Int("candidates", s.Candidates),
		zap.Int("sent", s.Sent),
		zap.Int("failed", s.Failed),
		zap.Int("skipped", s.Skipped),
		zap.Int("suppressed", s.Suppressed),
		zap.Int("invalid", s.Invalid),
		zap.Int("errored", s.Errored),
		zap.Bool("forced", s.Forced),
	)
}

type itemOutcome int

const (
	outcomeNotAttempted itemOutcome = iota
	outcomeAttempted
	outcomeStop
)

// runState holds the mutable state of a single Run.
type runState struct {
	dispatcher *Dispatcher
	opts       RunOptions
	oracle     *suppression.Oracle
	safety     *SafetyController
	summary    *RunSummary
	logger     *zap.Logger
}

func (r *runState) process(ctx context.Context, item *domain.QueueItem) itemOutcome {
	d := r.dispatcher
	logger := r.logger.With(
		zap.String("queueId", item.ID),
		zap.String("recipient", item.RecipientEmail),
	)

	if err := item.Validate(); err != nil {
		r.markFailed(ctx, logger, item, err.Error())
		r.summary.Invalid++
		d.metrics.IncItem("invalid")
		logger.Warn("queue item is invalid, marked failed", zap.Error(err))
		return outcomeNotAttempted
	}

	decision := d.deps.Evaluator.Evaluate(item.Jurisdiction, d.now(), r.opts.Force)
	logger = logger.With(
		zap.String("jurisdiction", decision.Jurisdiction),
		zap.String("timezone", decision.Timezone),
	)
	if !decision.Allowed {
		r.summary.Skipped++
		d.metrics.IncSkipped(decision.Reason)
		logger.Info("outside send window, left pending",
			zap.String("reason", decision.Reason),
			zap.String("localTime", decision.Local.Format("Mon 15:04")),
		)
		return outcomeNotAttempted
	}
	if decision.Forced && decision.Reason != sendwindow.ReasonAllowed {
		logger.Warn("send window bypassed by force", zap.String("reason", decision.Reason))
	}

	if reason, suppressed := r.oracle.Reason(item.RecipientEmail); suppressed {
		r.summary.Suppressed++
		d.metrics.IncSkipped("suppressed_" + reason.String())
		logger.Info("recipient suppressed, left pending", zap.String("reason", reason.String()))
		return outcomeNotAttempted
	}

	personalized := d.deps.Personalizer.Personalize(item.Body, decision.Weekday)
	content, err := d.deps.Renderer.Render(personalized.Body, item.Metadata.String(domain.MetadataAssetLink))
	if err != nil {
		r.markFailed(ctx, logger, item, fmt.Sprintf("render failed: %v", err))
		r.summary.Invalid++
		d.metrics.IncItem("invalid")
		logger.Error("failed to render message, marked failed", zap.Error(err))
		return outcomeNotAttempted
	}

	allowed, err := r.safety.AllowSend(ctx)
	if err != nil {
		logger.Error("send cap unavailable, stopping run", zap.Error(err))
		return outcomeStop
	}
	if !allowed {
		logger.Info("daily send cap reached, stopping run")
		return outcomeStop
	}

	now := d.now().UTC()
	activity := &domain.ActivityRecord{
		ID:             d.newID(),
		OrganizationID: d.cfg.OrganizationID,
		ProjectID:      item.ProjectID,
		QueueItemID:    &item.ID,
		RecipientEmail: item.RecipientEmail,
		ActivityType:   domain.ChannelEmail,
		Subject:        item.Subject,
		MessageBody:    personalized.Body,
		Status:         domain.ActivityStatusPending,
		Metadata:       activityMetadata(item, decision, personalized, r.opts.Force),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := d.deps.Activities.Append(ctx, activity); err != nil {
		r.summary.Errored++
		d.metrics.IncItem("errored")
		logger.Error("failed to record provisional activity, skipping send", zap.Error(err))
		return outcomeNotAttempted
	}

	r.safety.RecordAttempt()
	sendStart := d.now()
	resp, sendErr := d.deps.Provider.Send(ctx, provider.Message{
		To:      item.RecipientEmail,
		Subject: item.Subject,
		HTML:    content.HTML,
		Text:    content.Text,
		CustomArgs: map[string]string{
			"queue_id":    item.ID,
			"project_id":  item.ProjectIDValue(),
			"activity_id": activity.ID,
		},
	})
	d.metrics.ObserveProviderSendDuration(d.now().Sub(sendStart))
	resolvedAt := d.now().UTC()

	event := queue.ActivityEvent{
		ActivityID:      activity.ID,
		QueueItemID:     item.ID,
		ProjectID:       item.ProjectIDValue(),
		OrganizationID:  d.cfg.OrganizationID,
		RunID:           r.summary.RunID,
		RecipientEmail:  item.RecipientEmail,
		Forced:          r.opts.Force,
		Personalization: personalized.Applied.String(),
		OccurredAt:      resolvedAt,
	}

	if sendErr != nil {
		message := provider.ErrorMessage(sendErr)
		r.summary.Failed++
		d.metrics.IncItem("failed")
		logger.Error("provider send failed",
			zap.Bool("transient", provider.IsTransient(sendErr)),
			zap.Error(sendErr),
		)

		r.markFailed(ctx, logger, item, message)
		r.resolveActivity(ctx, logger, activity.ID, domain.ActivityStatusFailed)

		event.Status = domain.ActivityStatusFailed
		event.Error = message
		r.publish(ctx, logger, event)
		return outcomeAttempted
	}

	r.summary.Sent++
	d.metrics.IncItem("sent")
	r.oracle.Add(item.RecipientEmail, domain.SuppressionAlreadySent)
	if resp != nil {
		event.ProviderMessageID = resp.MessageID
	}
	logger.Info("message sent",
		zap.String("personalization", personalized.Applied.String()),
		zap.String("providerMessageId", event.ProviderMessageID),
	)

	if err := d.deps.Queue.MarkSent(ctx, item.ID, resolvedAt); err != nil {
		r.summary.Errored++
		logger.Error("failed to mark queue item sent", zap.Error(err))
	}
	r.resolveActivity(ctx, logger, activity.ID, domain.ActivityStatusSent)

	event.Status = domain.ActivityStatusSent
	r.publish(ctx, logger, event)
	return outcomeAttempted
}

func (r *runState) markFailed(ctx context.Context, logger *zap.Logger, item *domain.QueueItem, message string) {
	if err := r.dispatcher.deps.Queue.MarkFailed(ctx, item.ID, message, r.dispatcher.now().UTC()); err != nil {
		r.summary.Errored++
		logger.Error("failed to mark queue item failed", zap.Error(err))
	}
}

func (r *runState) resolveActivity(ctx context.Context, logger *zap.Logger, id string, status domain.ActivityStatus) {
	if err := r.dispatcher.deps.Activities.UpdateStatus(ctx, id, status); err != nil {
		r.summary.Errored++
		logger.Error("failed to resolve activity record",
			zap.String("activityId", id),
			zap.String("status", status.String()),
			zap.Error(err),
		)
	}
}

func (r *runState) publish(ctx context.Context, logger *zap.Logger, event queue.ActivityEvent) {
	if err := r.dispatcher.deps.Publisher.Publish(ctx, event); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logger.Warn("failed to publish activity event", zap.Error(err))
	}
}

// activityMetadata copies the item's metadata and adds the dispatch facts. The
// dispatch facts win over item keys with the same name.
func activityMetadata(
	item *domain.QueueItem,
	decision sendwindow.Decision,
	personalized personalize.Result,
	forced bool,
) domain.Metadata {
	meta := item.Metadata.Clone()
	meta[domain.MetaRecipientEmail] = item.RecipientEmail
	meta[domain.MetaQueueID] = item.ID
	meta[domain.MetaTimezone] = decision.Timezone
	meta[domain.MetaJurisdiction] = decision.Jurisdiction
	meta[domain.MetaSentHourLocal] = decision.Hour
	meta[domain.MetaSentDayLocal] = int(decision.Weekday)
	meta[domain.MetaPersonalization] = personalized.Applied.String()
	meta[domain.MetaForced] = forced
	meta[domain.MetaSentVia] = sentVia
	return meta
}
