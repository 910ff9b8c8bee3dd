package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/api"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/armory"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/bot"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/bot/commands"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/clock"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/config"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/conflict"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/health"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/leader"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/mirror"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/picker"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/raiderio"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/raidmgr"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/store"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/telemetry"

	// Register store drivers so they are available via store.Open.
	_ "github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/store/postgres"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		slog.Error("fatal error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load configuration.
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup telemetry.
	tp, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("telemetry setup failed, continuing without OTEL export", slog.Any("error", err))
		tp = telemetry.NewNopProvider()
	}
	defer func() {
		if shutdownErr := tp.Shutdown(context.Background()); shutdownErr != nil {
			slog.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	logger := tp.Logger
	clk := clock.Real{}

	// Open store using the configured driver.
	repos, err := store.Open(ctx, cfg.Database, clk)
	if err != nil {
		return fmt.Errorf("opening store (driver=%s): %w", cfg.Database.Driver, err)
	}
	defer repos.Closer.Close()

	logger.InfoContext(ctx, "connected to database", slog.String("driver", cfg.Database.Driver))

	// The bot is created before the managers: the roster mirror posts
	// through its session.
	discordBot, err := bot.New(cfg.Discord, logger)
	if err != nil {
		return fmt.Errorf("creating bot: %w", err)
	}

	// Initialize managers.
	sync := mirror.NewSynchronizer(repos.Raids, repos.Signups, discordBot.Transport(),
		cfg.Discord.DefaultChannelID, logger, tp.TracerProvider)
	checker := conflict.NewEvaluator(repos.Signups, logger, tp.TracerProvider)
	pickMgr := picker.NewManager(repos.Raids, repos.Signups, checker, repos.Events, sync, logger, tp.TracerProvider)
	raidMgr := raidmgr.NewManager(repos.Raids, repos.Signups, repos.Presets, repos.Events, sync, sync, clk, logger, tp.TracerProvider)
	armoryMgr := armory.NewManager(repos.Characters, raiderio.NewClient(cfg.RaiderIO), repos.Events, logger, tp.TracerProvider)

	handlers := commands.NewHandlers(raidMgr, pickMgr, repos.Users, repos.Signups, repos.Characters, repos.Presets, clk, logger, tp.TracerProvider)
	apiServer := api.New(cfg.API, pickMgr, raidMgr, armoryMgr, repos.Signups, repos.Users, repos.Presets, logger)

	// Setup health checks.
	healthHandler := health.NewHandler(clk,
		health.Checker{
			Name:  "database",
			Check: repos.Ping,
		},
	)

	// HTTP server: health endpoints and the web API (runs on all replicas;
	// only the Discord connection is leader-gated).
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler.LivenessHandler())
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler())
	mux.Handle("/api/", apiServer.Router())

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.InfoContext(ctx, "starting http server", slog.Int("port", cfg.Server.Port))
		if listenErr := httpServer.ListenAndServe(); listenErr != nil && listenErr != http.ErrServerClosed {
			logger.ErrorContext(ctx, "http server error", slog.Any("error", listenErr))
		}
	}()

	// startBot is the core work that only the leader should run.
	startBot := func(ctx context.Context) {
		if botErr := discordBot.Start(ctx, handlers); botErr != nil {
			logger.ErrorContext(ctx, "starting bot failed", slog.Any("error", botErr))
			return
		}

		healthHandler.SetReady(true)
		logger.InfoContext(ctx, "raidbot is running (leader)", slog.String("version", version))

		// Block until leadership is lost or process is shutting down.
		<-ctx.Done()

		healthHandler.SetReady(false)
		if stopErr := discordBot.Stop(); stopErr != nil {
			logger.Error("bot shutdown error", slog.Any("error", stopErr))
		}
	}

	if cfg.LeaderElection.Enabled {
		logger.InfoContext(ctx, "leader election enabled, waiting for leadership...")

		leaderCfg := leader.Config{
			Enabled:        cfg.LeaderElection.Enabled,
			LeaseName:      cfg.LeaderElection.LeaseName,
			LeaseNamespace: cfg.LeaderElection.LeaseNamespace,
			LeaseDuration:  cfg.LeaderElection.LeaseDuration,
			RenewDeadline:  cfg.LeaderElection.RenewDeadline,
			RetryPeriod:    cfg.LeaderElection.RetryPeriod,
		}
		if leaderErr := leader.Run(ctx, leaderCfg, logger, startBot, func() {
			logger.Info("lost leadership, shutting down...")
			cancel()
		}); leaderErr != nil {
			return fmt.Errorf("leader election: %w", leaderErr)
		}
	} else {
		// No leader election; run directly.
		if botErr := discordBot.Start(ctx, handlers); botErr != nil {
			return fmt.Errorf("starting bot: %w", botErr)
		}

		healthHandler.SetReady(true)
		logger.InfoContext(ctx, "raidbot is running", slog.String("version", version))

		// Wait for shutdown signal.
		<-ctx.Done()
		logger.Info("shutting down...")

		healthHandler.SetReady(false)

		if stopErr := discordBot.Stop(); stopErr != nil {
			logger.Error("bot shutdown error", slog.Any("error", stopErr))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", slog.Any("error", err))
	}

	logger.Info("shutdown complete")
	return nil
}
