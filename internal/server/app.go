// Package server wires the document portal together: configuration,
// PostgreSQL, blob storage, the session store and the external
// collaborators, and runs the HTTP API next to the gRPC health endpoint
// until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/educhain/internal/logging"
	"github.com/dmitrijs2005/educhain/internal/server/attestation"
	"github.com/dmitrijs2005/educhain/internal/server/auth"
	"github.com/dmitrijs2005/educhain/internal/server/challenge"
	"github.com/dmitrijs2005/educhain/internal/server/config"
	"github.com/dmitrijs2005/educhain/internal/server/httpserver"
	"github.com/dmitrijs2005/educhain/internal/server/locks"
	"github.com/dmitrijs2005/educhain/internal/server/metrics"
	"github.com/dmitrijs2005/educhain/internal/server/oracle"
	"github.com/dmitrijs2005/educhain/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/educhain/internal/server/services"
	"github.com/dmitrijs2005/educhain/internal/server/sessions"
	"github.com/dmitrijs2005/educhain/internal/server/storage"

	gs "github.com/dmitrijs2005/educhain/internal/server/grpc"
)

// startupTimeout bounds connecting to PostgreSQL and Redis and running migrations.
const startupTimeout = 30 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	redis  *redis.Client
	http   *httpserver.Server
	grpc   *gs.GRPCServer
}

var openDB = func(dsn string) (*sql.DB, error) { return sql.Open("pgx", dsn) }

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel, "educhain-server")

	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db}

	sessionStore, locker, rdb, err := newCoordination(ctx, c, logger)
	if err != nil {
		app.close(ctx)
		return nil, err
	}
	app.redis = rdb

	blobs, err := newBlobStore(ctx, c, logger)
	if err != nil {
		app.close(ctx)
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	sm := sessions.NewManager(sessionStore, []byte(c.SessionSecret), c.SessionTTL)
	gate := auth.NewGate(db, rm, newChallenge(c, logger), sm, logger)

	docs := services.NewDocumentService(services.Deps{
		DB:          db,
		RepoManager: rm,
		Store:       blobs,
		Oracle:      newOracle(c, logger),
		Attester:    newAttester(c, logger),
		Locks:       locker,
		Metrics:     m,
		Log:         logger,
	}, services.Options{
		MaxUploadBytes:      c.MaxUploadBytes,
		ConfidenceThreshold: c.ConfidenceThreshold,
		OracleTimeout:       c.OracleTimeout,
		AttestationTimeout:  c.AttestationTimeout,
	})

	app.http = httpserver.NewServer(c.HTTPAddr, logger, gate, docs, m, httpserver.Options{
		MaxUploadBytes: c.MaxUploadBytes,
		SecureCookie:   c.SecureCookie,
		Ready:          app.ready,
	})
	app.grpc = gs.NewGRPCServer(c.GRPCAddr, logger, app.ready, 5*time.Second)

	return app, nil
}

// newCoordination picks where sessions and verification locks live. Without
// Redis both stay in process memory, which only suits a single instance.
func newCoordination(ctx context.Context, c *config.Config, log logging.Logger) (sessions.Store, locks.Locker, *redis.Client, error) {
	if c.RedisURL == "" {
		log.Warn(ctx, "no redis configured, sessions and verification locks are process-local")
		return sessions.NewMemoryStore(), locks.NewMemoryLocker(), nil, nil
	}

	opts, err := redis.ParseURL(c.RedisURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, nil, fmt.Errorf("redis init error: %w", err)
	}

	// A lock must outlive the slowest verification it guards.
	lockTTL := c.OracleTimeout + c.AttestationTimeout + 30*time.Second
	return sessions.NewRedisStore(rdb), locks.NewRedisLocker(rdb, lockTTL), rdb, nil
}

func newBlobStore(ctx context.Context, c *config.Config, log logging.Logger) (storage.Store, error) {
	switch c.StorageBackend {
	case "s3":
		s, err := storage.NewS3Store(ctx, storage.S3Config{
			Region:       c.S3Region,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			Bucket:       c.S3Bucket,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("storage init error: %w", err)
		}
		return s, nil
	case "memory":
		log.Warn(ctx, "using in-memory document storage, content is lost on restart")
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
}

func newOracle(c *config.Config, log logging.Logger) services.Classifier {
	if !c.OracleEnabled || c.OracleAPIKey == "" {
		log.Warn(context.Background(), "verification oracle disabled, documents are classified as their declared type")
		return oracle.Static{}
	}
	return oracle.NewGemini(c.OracleURL, c.OracleAPIKey)
}

func newAttester(c *config.Config, log logging.Logger) services.Attester {
	if c.AttestationURL == "" {
		log.Info(context.Background(), "using local attestation ledger")
		return attestation.NewLocal(c.AttestationSecret)
	}
	return attestation.NewClient(c.AttestationURL)
}

func newChallenge(c *config.Config, log logging.Logger) auth.ChallengeVerifier {
	if c.ChallengeSecret == "" {
		log.Warn(context.Background(), "challenge secret not set, any non-empty challenge token is accepted")
		return challenge.AcceptAll{}
	}
	return challenge.NewClient(c.ChallengeVerifyURL, c.ChallengeSecret, c.ChallengeTimeout)
}

// ready reports whether the backing stores answer.
func (app *App) ready(ctx context.Context) error {
	if err := app.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if app.redis != nil {
		if err := app.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
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

// Run serves until ctx is cancelled, a signal arrives or one of the servers
// fails. Either server failing stops the other.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.http.Run(gctx) })
	g.Go(func() error { return app.grpc.Run(gctx) })

	err := g.Wait()
	app.close(context.WithoutCancel(ctx))
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	app.logger.Info(ctx, "App stopped")
	return nil
}

func (app *App) close(ctx context.Context) {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error(ctx, "error closing redis", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "error closing database", "error", err)
	}
}
