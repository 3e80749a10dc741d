package suppression

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kursadbilgin/outreach-dispatch/internal/domain"
	"github.com/kursadbilgin/outreach-dispatch/internal/observability"
)

const sourceHistory = "history"

// History lists recipients that already have a sent activity.
type History interface {
	SentRecipients(ctx context.Context) ([]string, error)
}

// Builder assembles the per-run Oracle from local history and the provider feed.
type Builder struct {
	history    History
	feed       Feed
	failClosed bool
	metrics    *observability.Metrics
	logger     *zap.Logger
}

type BuilderOption func(*Builder)

// WithFailClosed makes Build return an error when any feed category fails.
func WithFailClosed(failClosed bool) BuilderOption {
	return func(b *Builder) {
		b.failClosed = failClosed
	}
}

func WithMetrics(metrics *observability.Metrics) BuilderOption {
	return func(b *Builder) {
		b.metrics = metrics
	}
}

func NewBuilder(history History, feed Feed, logger *zap.Logger, opts ...BuilderOption) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Builder{
		history: history,
		feed:    feed,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build snapshots every suppression source. Failed sources are treated as
// empty unless the builder is fail-closed.
func (b *Builder) Build(ctx context.Context) (*Oracle, error) {
	logger := observability.WithContextLogger(b.logger, ctx)
	oracle := NewOracle(nil)

	if b.history != nil {
		sent, err := b.history.SentRecipients(ctx)
		if err != nil {
			logger.Warn("failed to read send history, continuing without it", zap.Error(err))
		}
		for _, address := range sent {
			oracle.Add(address, domain.SuppressionAlreadySent)
		}
		b.metrics.SetSuppressionListSize(sourceHistory, len(sent))
	}

	if b.feed == nil {
		return oracle, nil
	}

	results := make(map[Category][]string, len(Categories))
	var (
		mu      sync.Mutex
		feedErr error
	)

	g, groupCtx := errgroup.WithContext(ctx)
	for _, category := range Categories {
		category := category
		g.Go(func() error {
			addresses, err := b.feed.Fetch(groupCtx, category)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				feedErr = multierr.Append(feedErr, err)
				return nil
			}
			results[category] = addresses
			return nil
		})
	}
	_ = g.Wait()

	if feedErr != nil {
		if b.failClosed {
			return nil, fmt.Errorf("suppression feed unavailable: %w", feedErr)
		}
		logger.Warn("suppression feed partially unavailable, failing open",
			zap.Int("failedCategories", len(multierr.Errors(feedErr))),
			zap.Error(feedErr),
		)
	}

	// Merge in a fixed order so the recorded reason does not depend on goroutine timing.
	for _, category := range Categories {
		addresses := results[category]
		for _, address := range addresses {
			oracle.Add(address, category.Reason())
		}
		b.metrics.SetSuppressionListSize(string(category), len(addresses))
	}

	logger.Info("suppression list built", zap.Int("addresses", oracle.Len()))
	return oracle, nil
}
