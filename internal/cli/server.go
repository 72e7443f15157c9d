package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"ipzy-gateway/internal/app"
	"ipzy-gateway/internal/config"
	"ipzy-gateway/internal/guard"
	"ipzy-gateway/internal/i18n"
	"ipzy-gateway/internal/infra/memory"
	pgcatalog "ipzy-gateway/internal/infra/postgres"
	"ipzy-gateway/internal/infra/quizapi"
	rediscache "ipzy-gateway/internal/infra/redis"
	"ipzy-gateway/internal/tabsession"
	transport "ipzy-gateway/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the gateway.
func NewStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return runServer(cmd.Context(), cfg, logger)
		},
	}
}

func runServer(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Session.Secret == "" {
		return errors.New("session secret not configured (session.secret or IPZY_SESSION_SECRET)")
	}
	if err := i18n.Init(cfg.I18n.Lang, logger.Named("i18n")); err != nil {
		return err
	}

	client := quizapi.NewClient(cfg.Upstream.BaseURL,
		quizapi.WithHTTPClient(&http.Client{Timeout: config.TTLDuration(cfg.Upstream.Timeout, 15*time.Second)}),
		quizapi.WithLogger(logger.Named("quizapi")),
	)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
	}

	loader, closeLoader, err := catalogLoader(ctx, cfg, client, logger)
	if err != nil {
		return err
	}
	defer closeLoader()

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var catalog app.QuizCatalog
	if redisClient != nil {
		catalog = rediscache.NewQuestionCache(redisClient, loader, quizTTL, logger.Named("catalog"))
	} else {
		catalog = memory.NewQuestionCache(loader, quizTTL)
	}

	sessionTTL := config.TTLDuration(cfg.Session.TTL, 2*time.Hour)
	var surfaces app.SurfaceProvider
	var sweepSurfaces func() int
	if redisClient != nil {
		surfaces = rediscache.NewSurfaceStore(redisClient, config.TTLDuration(cfg.Redis.TTL, sessionTTL), logger.Named("surface"))
	} else {
		store := memory.NewSurfaceStore(sessionTTL)
		surfaces = store
		sweepSurfaces = store.Sweep
	}

	attempts := memory.NewAttemptRegistry(sessionTTL)
	flow := app.NewFlowService(catalog, client, attempts, app.AttemptOptions{
		AdvanceDelay: config.TTLDuration(cfg.Quiz.AdvanceDelay, app.DefaultAdvanceDelay),
		Logger:       logger.Named("quiz"),
	})

	identityLogger := logger.Named("identity")
	server := transport.NewServer(transport.Deps{
		Flow:     flow,
		Surfaces: surfaces,
		Identities: func(store app.Surface) transport.Identity {
			return quizapi.NewIdentity(client, store, identityLogger)
		},
		Results:        client,
		Sessions:       tabsession.NewManager(cfg.Session.Secret, tabsession.Options{CookieName: cfg.Session.CookieName, Secure: cfg.Server.SecureCookies, Logger: logger.Named("tab")}),
		Guard:          guard.New(guard.DefaultPaths, guard.DefaultRoutes(), logger.Named("guard")),
		Logger:         logger.Named("http"),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		LoginURL:       cfg.Upstream.BaseURL + "/api/auth/login/kakao",
	})

	httpServer := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     server.Routes(),
		ReadTimeout: 15 * time.Second,
		// websocket streams outlive any write timeout; API handlers carry their own
		IdleTimeout: 60 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweep(sweepCtx, time.Minute, logger, attempts, sweepSurfaces)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting gateway", zap.String("addr", httpServer.Addr), zap.String("quizSource", cfg.Quiz.Source))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		logger.Info("shutting down gateway")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down gateway")
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// catalogLoader picks where quiz content comes from. The postgres catalog is migrated first.
func catalogLoader(ctx context.Context, cfg config.Config, client *quizapi.Client, logger *zap.Logger) (memory.CatalogLoader, func(), error) {
	switch cfg.Quiz.Source {
	case "", "api":
		return client, func() {}, nil
	case "postgres":
		if cfg.Postgres.URL == "" {
			return nil, nil, errors.New("quiz.source is postgres but postgres.url is empty")
		}
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return nil, nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return pgcatalog.NewQuestionLoader(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown quiz.source %q", cfg.Quiz.Source)
	}
}

// sweep drops idle attempts and expired in-memory tab sessions.
func sweep(ctx context.Context, every time.Duration, logger *zap.Logger, attempts *memory.AttemptRegistry, surfaces func() int) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dropped := attempts.Sweep()
			expired := 0
			if surfaces != nil {
				expired = surfaces()
			}
			if dropped > 0 || expired > 0 {
				logger.Debug("swept idle tabs", zap.Int("attempts", dropped), zap.Int("surfaces", expired))
			}
		}
	}
}
