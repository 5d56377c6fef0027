package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/odonto-agent/cmd/mainconfig"
	"github.com/wolfman30/odonto-agent/internal/agent"
	"github.com/wolfman30/odonto-agent/internal/api/router"
	"github.com/wolfman30/odonto-agent/internal/app/bootstrap"
	appconfig "github.com/wolfman30/odonto-agent/internal/config"
	"github.com/wolfman30/odonto-agent/internal/dialogue"
	"github.com/wolfman30/odonto-agent/internal/events"
	"github.com/wolfman30/odonto-agent/internal/leads"
	"github.com/wolfman30/odonto-agent/internal/messaging"
	"github.com/wolfman30/odonto-agent/internal/notify"
	"github.com/wolfman30/odonto-agent/internal/observability/metrics"
	"github.com/wolfman30/odonto-agent/internal/session"
	"github.com/wolfman30/odonto-agent/pkg/logging"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting odonto-agent API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"clinic", cfg.ClinicName,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsHandler, convMetrics := setupMetrics()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}
	dedup := bootstrap.BuildDeduper(redisClient, cfg)

	var deps bootstrap.LeadDeps
	if cfg.HasSink("postgres") {
		deps.Pool = connectPostgresPool(ctx, cfg.DatabaseURL, logger)
		if deps.Pool != nil {
			defer deps.Pool.Close()
		}
	}

	var sesClient notify.SESAPI
	if mainconfig.NeedsAWS(cfg) {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		clients := mainconfig.NewAWSClients(awsCfg, cfg)
		deps.S3 = clients.S3
		deps.SQS = clients.SQS
		sesClient = clients.SESv2
	}
	deps.Email = bootstrap.BuildEmailSender(cfg, sesClient, logger)

	pipeline, err := bootstrap.BuildLeadPipeline(cfg, deps, logger)
	if err != nil {
		logger.Error("failed to configure lead sinks", "error", err)
		os.Exit(1)
	}

	engine := dialogue.NewEngine(cfg.DialogueConfig())
	sessions := session.NewMemoryStore(session.WithTTL(cfg.SessionTTL), session.WithLogger(logger))

	svc := agent.NewService(engine, sessions,
		agent.WithLeadSink(pipeline.Sink),
		agent.WithMetrics(convMetrics),
		agent.WithLogger(logger),
	)

	routerCfg := &router.Config{
		Logger:           logger,
		MessagingHandler: messaging.NewHandler(messaging.HandlerConfig{AuthToken: cfg.TwilioAuthToken, PublicBaseURL: cfg.PublicBaseURL, Channel: cfg.LeadChannel}, svc, dedup, convMetrics, logger),
		MetaHandler:      buildMetaHandler(cfg, svc, dedup, convMetrics, logger),
		LeadsHandler:     leads.NewHandler(pipeline.Repository, logger),
		AdminAuthSecret:  cfg.AdminJWTSecret,
		MetricsHandler:   metricsHandler,
		WebhookRateLimit: cfg.WebhookRateLimit,
		WebhookRateBurst: cfg.WebhookRateBurst,
	}
	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set; admin lead API disabled")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sessions.RunEviction(gctx, cfg.SessionSweepInterval)
		return nil
	})
	g.Go(func() error {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped", "sessions", sessions.Len())
	fmt.Println("Server exited gracefully")
}

// setupMetrics registers the conversation metrics plus runtime collectors on
// a private registry.
func setupMetrics() (http.Handler, *metrics.ConversationMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewConversationMetrics(reg)
}

// connectPostgresPool returns nil when the URL is empty or unreachable.
func connectPostgresPool(ctx context.Context, url string, logger *logging.Logger) *pgxpool.Pool {
	if url == "" {
		logger.Warn("postgres lead sink configured without DATABASE_URL")
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(pingCtx, url)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		return nil
	}
	if err := pool.Ping(pingCtx); err != nil {
		logger.Error("postgres ping failed", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

func buildMetaHandler(cfg *appconfig.Config, svc *agent.Service, dedup events.Deduper, m *metrics.ConversationMetrics, logger *logging.Logger) *messaging.MetaHandler {
	var sender messaging.TextSender
	if gc := messaging.NewGraphClient(cfg.MetaWhatsToken, cfg.MetaPhoneNumberID, cfg.MetaGraphBaseURL); gc != nil {
		sender = gc
	} else {
		logger.Warn("meta cloud credentials not set; replies will be logged only")
	}
	return messaging.NewMetaHandler(messaging.MetaConfig{
		VerifyToken: cfg.MetaVerifyToken,
		AppSecret:   cfg.MetaAppSecret,
		Channel:     cfg.MetaChannel,
		SendTimeout: 10 * time.Second,
	}, svc, sender, dedup, m, logger)
}
