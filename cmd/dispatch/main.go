// Command dispatch runs the outreach dispatch scheduler, either once per
// invocation or as a cron-driven daemon with an ops HTTP surface.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kursadbilgin/outreach-dispatch/internal/config"
	"github.com/kursadbilgin/outreach-dispatch/internal/handler"
	"github.com/kursadbilgin/outreach-dispatch/internal/infra/postgresql"
	"github.com/kursadbilgin/outreach-dispatch/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/outreach-dispatch/internal/infra/redis"
	"github.com/kursadbilgin/outreach-dispatch/internal/observability"
	"github.com/kursadbilgin/outreach-dispatch/internal/personalize"
	"github.com/kursadbilgin/outreach-dispatch/internal/provider"
	"github.com/kursadbilgin/outreach-dispatch/internal/queue"
	"github.com/kursadbilgin/outreach-dispatch/internal/ratelimit"
	"github.com/kursadbilgin/outreach-dispatch/internal/render"
	"github.com/kursadbilgin/outreach-dispatch/internal/repository"
	"github.com/kursadbilgin/outreach-dispatch/internal/sendwindow"
	"github.com/kursadbilgin/outreach-dispatch/internal/service"
	"github.com/kursadbilgin/outreach-dispatch/internal/suppression"
)

const shutdownTimeout = 10 * time.Second

type cliFlags struct {
	batchSize int
	force     bool
	daemon    bool
}

func main() {
	var flags cliFlags
	flag.IntVar(&flags.batchSize, "batch-size", 0, "max send attempts per run (default BATCH_SIZE)")
	flag.BoolVar(&flags.force, "force", false, "ignore recipient send windows; suppression still applies")
	flag.BoolVar(&flags.daemon, "daemon", false, "run on DISPATCH_SCHEDULE and serve ops endpoints on OPS_PORT")
	flag.Parse()

	os.Exit(run(flags))
}

func run(flags cliFlags) int {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("failed to load config: %v", err)
		return 1
	}

	mode := "oneshot"
	if flags.daemon {
		mode = "daemon"
	}
	logger, err := observability.NewLogger(cfg.LogLevel, zap.String("mode", mode))
	if err != nil {
		log.Printf("failed to initialize logger: %v", err)
		return 1
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := wire(ctx, cfg, logger)
	if app != nil {
		defer app.close()
	}
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return 1
	}

	opts := service.RunOptions{BatchSize: flags.batchSize, Force: flags.force}

	if flags.daemon {
		if err := runDaemon(ctx, cfg, logger, app, opts); err != nil {
			logger.Error("daemon stopped with error", zap.Error(err))
			return 1
		}
		return 0
	}

	summary, err := app.dispatcher.Run(observability.WithTrigger(ctx, observability.TriggerManual), opts)
	printSummary(os.Stdout, summary)
	if err != nil {
		logger.Error("dispatch run failed", zap.Error(err))
		return 1
	}
	return 0
}

type application struct {
	dispatcher *service.Dispatcher
	metrics    *observability.Metrics
	sqlDB      *sql.DB
	rdb        *goredis.Client
	closers    []func() error
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

// wire builds the dispatcher and its infrastructure. The returned application
// is non-nil whenever something was opened and must be closed by the caller.
func wire(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*application, error) {
	app := &application{metrics: observability.NewMetrics()}

	db, err := postgresql.NewPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		return app, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return app, fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	app.sqlDB = sqlDB
	app.closers = append(app.closers, sqlDB.Close)

	if err := migrations.Migrate(db); err != nil {
		return app, fmt.Errorf("database migrations failed: %w", err)
	}

	var sendCap ratelimit.RateLimiter
	if cfg.RedisURL != "" {
		rdb, err := infraredis.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return app, err
		}
		app.rdb = rdb
		app.closers = append(app.closers, rdb.Close)
	}
	if cfg.DailySendCap > 0 {
		if app.rdb == nil {
			return app, errors.New("DAILY_SEND_CAP requires REDIS_URL")
		}
		limiter, err := infraredis.NewRedisRateLimiter(app.rdb, cfg.DailySendCap, infraredis.DefaultWindow)
		if err != nil {
			return app, err
		}
		sendCap = limiter
	}

	var publisher queue.Publisher = queue.NopPublisher{}
	if cfg.RabbitMQURL != "" {
		broker, err := queue.NewRabbitMQ(ctx, cfg.RabbitMQURL)
		if err != nil {
			return app, fmt.Errorf("rabbitmq initialization failed: %w", err)
		}
		rabbitPublisher := queue.NewRabbitMQPublisher(broker)
		app.closers = append(app.closers, rabbitPublisher.Close)
		publisher = rabbitPublisher
	}

	sendGridClient, err := provider.NewSendGridClient(cfg.SendGridBaseURL, cfg.SendGridAPIKey, 0)
	if err != nil {
		return app, err
	}
	mailer, err := provider.NewSendGridProviderWithClient(provider.SendGridConfig{
		FromEmail: cfg.SenderEmail,
		FromName:  cfg.SenderName,
	}, sendGridClient, provider.NewCircuitBreaker("sendgrid-mail"))
	if err != nil {
		return app, err
	}
	feed, err := suppression.NewSendGridFeed(sendGridClient, provider.NewCircuitBreaker("sendgrid-suppression"))
	if err != nil {
		return app, err
	}

	evaluator, err := sendwindow.NewEvaluator(cfg.DefaultTimezone, nil)
	if err != nil {
		return app, err
	}
	renderer, err := render.NewRenderer(render.Branding{
		SenderName:  cfg.SenderName,
		SenderEmail: cfg.SenderEmail,
		BaseURL:     cfg.AppBaseURL,
	})
	if err != nil {
		return app, err
	}

	queueRepo := repository.NewGormQueueRepo(db)
	activityRepo := repository.NewGormActivityRepo(db)

	var retries *service.RetryScanner
	if cfg.RetryEnabled() {
		retries, err = service.NewRetryScanner(queueRepo, cfg.RetryCooldown, cfg.RetryMaxAttempts, 0, logger)
		if err != nil {
			return app, err
		}
		retries.SetMetrics(app.metrics)
	}

	suppressions := suppression.NewBuilder(activityRepo, feed, logger,
		suppression.WithFailClosed(cfg.SuppressionFailClosed),
		suppression.WithMetrics(app.metrics),
	)

	dispatcher, err := service.NewDispatcher(service.DispatcherDeps{
		Queue:        queueRepo,
		Activities:   activityRepo,
		Suppressions: suppressions,
		Evaluator:    evaluator,
		Personalizer: personalize.NewRegexPersonalizer(),
		Renderer:     renderer,
		Provider:     mailer,
		Publisher:    publisher,
		SendCap:      sendCap,
		Retries:      retries,
	}, service.DispatcherConfig{
		BatchSize:       cfg.BatchSize,
		OverfetchFactor: cfg.OverfetchFactor,
		SendDelay:       cfg.SendDelay,
		OrganizationID:  cfg.OrganizationID,
	}, logger)
	if err != nil {
		return app, err
	}
	dispatcher.SetMetrics(app.metrics)
	app.dispatcher = dispatcher

	return app, nil
}

func runDaemon(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	app *application,
	opts service.RunOptions,
) error {
	scheduler, err := service.NewScheduler(app.dispatcher, cfg.DispatchSchedule, opts, logger)
	if err != nil {
		return err
	}
	ops := handler.NewOpsApp(logger, app.metrics, app.sqlDB, app.rdb, scheduler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.Start(gctx)
	})
	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.OpsPort)
		logger.Info("ops server starting", zap.String("addr", addr))
		if err := ops.Listen(addr); err != nil {
			return fmt.Errorf("ops server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return ops.ShutdownWithTimeout(shutdownTimeout)
	})
	return g.Wait()
}

func printSummary(w io.Writer, s service.RunSummary) {
	fmt.Fprintf(w, "run %s: candidates=%d sent=%d skipped=%d suppressed=%d failed=%d invalid=%d errored=%d forced=%t duration=%s\n",
		s.RunID, s.Candidates, s.Sent, s.Skipped, s.Suppressed, s.Failed, s.Invalid, s.Errored, s.Forced,
		s.Duration().Round(time.Millisecond))
}
