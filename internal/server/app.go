// Package server wires the pricewatch components together: storage,
// authentication, the mail pipeline, the alerting scheduler, the gRPC
// transport and the metrics endpoint, and runs them until shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/pricewatch/internal/logging"
	"github.com/dmitrijs2005/pricewatch/internal/server/alerting"
	"github.com/dmitrijs2005/pricewatch/internal/server/auth"
	"github.com/dmitrijs2005/pricewatch/internal/server/config"
	"github.com/dmitrijs2005/pricewatch/internal/server/mailer"
	"github.com/dmitrijs2005/pricewatch/internal/server/metrics"
	"github.com/dmitrijs2005/pricewatch/internal/server/oracle"
	"github.com/dmitrijs2005/pricewatch/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/pricewatch/internal/server/services"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/pricewatch/internal/server/grpc"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config    *config.Config
	logger    logging.Logger
	db        *sql.DB
	metrics   *metrics.Metrics
	queue     mailer.Queue
	pool      *mailer.Pool
	scheduler *alerting.Scheduler
	grpc      *gs.GRPCServer
}

// OpenDB opens the PostgreSQL pool and applies pending migrations.
func OpenDB(ctx context.Context, c *config.Config) (*sql.DB, *repomanager.PostgresRepositoryManager, error) {
	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrations error: %w", err)
	}
	return db, rm, nil
}

// NewAuthenticator builds the token authenticator from configuration.
func NewAuthenticator(c *config.Config, opts ...auth.Option) (*auth.Authenticator, error) {
	return auth.NewAuthenticator(auth.Settings{
		AccessSecret:  c.AccessTokenSecret,
		RefreshSecret: c.RefreshTokenSecret,
		Algorithm:     c.SigningAlgorithm,
		AccessTTL:     c.AccessTokenValidityDuration,
		RefreshTTL:    c.RefreshTokenValidityDuration,
		SecureCookies: c.CookiesSecure(),
	}, opts...)
}

// NewMailQueue builds the configured mail queue backend.
func NewMailQueue(c *config.Config) (mailer.Queue, error) {
	switch c.MailQueue {
	case "", "memory":
		return mailer.NewChannelQueue(1024), nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		return mailer.NewRedisQueue(client, c.RedisQueueKey), nil
	default:
		return nil, fmt.Errorf("unknown mail queue %q", c.MailQueue)
	}
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSON(os.Stdout, c.LogLevel)
	m := metrics.New()

	db, rm, err := OpenDB(ctx, c)
	if err != nil {
		return nil, err
	}

	authn, err := NewAuthenticator(c, auth.WithRotationHook(m.TokenRotated))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("auth init error: %w", err)
	}

	queue, err := NewMailQueue(c)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	dispatcher := mailer.NewDispatcher(queue, logger)
	us := services.NewUserService(db, rm, authn, dispatcher)
	store := services.NewSubscriptionStore(db, rm)

	httpClient := &http.Client{Timeout: c.OracleTimeout}
	router := oracle.NewRouter(
		oracle.NewCoinGecko(c.CoinGeckoBaseURL, c.CoinGeckoAPIKey, httpClient),
		oracle.NewStocks(c.StockBaseURL, httpClient),
		c.OracleRequestsPerSecond,
		c.OracleTimeout,
	)

	poolCfg := mailer.DefaultPoolConfig()
	poolCfg.NumWorkers = c.MailWorkers
	poolCfg.MaxRetries = c.MailMaxRetries
	sender := mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     c.SMTPHost,
		Port:     c.SMTPPort,
		Username: c.SMTPUsername,
		Password: c.SMTPPassword,
		From:     c.MailFrom,
		FromName: c.MailFromName,
	})
	pool := mailer.NewPool(poolCfg, queue, sender, logger)
	pool.OnDelivery(m.MailDelivery)

	engine := alerting.NewEngine(store, router, dispatcher, logger,
		alerting.WithConcurrency(c.EvaluationConcurrency),
		alerting.WithRecorder(m),
	)

	return &App{
		config:    c,
		logger:    logger,
		db:        db,
		metrics:   m,
		queue:     queue,
		pool:      pool,
		scheduler: alerting.NewScheduler(engine, c.EvaluationInterval, logger),
		grpc:      gs.NewGRPCServer(c.EndpointAddrGRPC, logger, authn, us, store),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startMetricsServer(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", app.metrics.Handler())

	srv := &http.Server{Addr: app.config.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "Starting metrics server", "address", app.config.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (app *App) startBackground(ctx context.Context) error {
	if err := app.pool.Start(ctx); err != nil {
		return fmt.Errorf("mail pool: %w", err)
	}
	if err := app.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.scheduler.Stop(stopCtx); err != nil {
		app.logger.Warn(stopCtx, "scheduler stop", "error", err)
	}
	if err := app.queue.Close(); err != nil {
		app.logger.Warn(stopCtx, "queue close", "error", err)
	}
	if err := app.pool.Stop(stopCtx); err != nil {
		app.logger.Warn(stopCtx, "mail pool stop", "error", err)
	}
	return nil
}

func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.grpc.Run(ctx) })
	g.Go(func() error { return app.startMetricsServer(ctx) })
	g.Go(func() error { return app.startBackground(ctx) })

	err := g.Wait()

	if cerr := app.db.Close(); cerr != nil {
		app.logger.Error(context.Background(), "db close", "error", cerr)
	}
	app.logger.Info(context.Background(), "App stopped")

	return err
}
