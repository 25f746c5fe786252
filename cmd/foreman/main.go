package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nidhogg/foreman/internal/api"
	"github.com/nidhogg/foreman/internal/checkpoint"
	"github.com/nidhogg/foreman/internal/config"
	"github.com/nidhogg/foreman/internal/gate"
	"github.com/nidhogg/foreman/internal/graph"
	"github.com/nidhogg/foreman/internal/history"
	"github.com/nidhogg/foreman/internal/orchestrator"
	"github.com/nidhogg/foreman/internal/registry"
	"github.com/nidhogg/foreman/internal/router"
	"github.com/nidhogg/foreman/internal/task"
	"github.com/nidhogg/foreman/internal/worker"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting Foreman...")

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/foreman.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config unavailable, using defaults", zap.String("path", cfgPath), zap.Error(err))
		cfg = config.Default()
	} else {
		logger.Info("Config loaded", zap.String("path", cfgPath))
	}

	// Build the worker registry. Configuration errors here are fatal.
	profiles := registry.DefaultProfiles()
	if len(cfg.Workers) > 0 {
		profiles = make([]registry.WorkerProfile, len(cfg.Workers))
		for i, wc := range cfg.Workers {
			profiles[i] = registry.WorkerProfile{
				Name:              wc.Name,
				PrimaryCommands:   wc.PrimaryCommands,
				SecondaryCommands: wc.SecondaryCommands,
				Capabilities:      wc.Capabilities,
				CoreActivities:    wc.CoreActivities,
				QualityFocus:      wc.QualityFocus,
				HandoffTargets:    wc.HandoffTargets,
			}
		}
	}
	fallback := cfg.Routing.FallbackWorker
	if fallback == "" {
		fallback = registry.DefaultFallbackWorker
	}
	reg, err := registry.New(profiles, fallback)
	if err != nil {
		logger.Fatal("invalid worker registry", zap.Error(err))
	}
	logger.Info("Registry loaded", zap.Int("workers", len(profiles)))

	// Router
	overrides := cfg.Routing.Overrides
	if len(overrides) == 0 && len(cfg.Workers) == 0 {
		overrides = registry.DefaultOverrides()
	}
	// Pointers are always filled after applyDefaults.
	weights := router.Weights{
		PrimaryCommand:   *cfg.Routing.Weights.PrimaryCommand,
		SecondaryCommand: *cfg.Routing.Weights.SecondaryCommand,
		Capability:       *cfg.Routing.Weights.Capability,
		CoreActivity:     *cfg.Routing.Weights.CoreActivity,
		HandoffChain:     *cfg.Routing.Weights.HandoffChain,
		ActiveWorker:     *cfg.Routing.Weights.ActiveWorker,
		PhaseOwner:       *cfg.Routing.Weights.PhaseOwner,
	}
	rt, err := router.New(reg, overrides, weights, cfg.Routing.UrgentKeywords, cfg.Routing.HighPriorityTypes, logger)
	if err != nil {
		logger.Fatal("invalid routing configuration", zap.Error(err))
	}

	// History store (optional)
	var hist *history.Store
	if cfg.Database.Postgres.DSN != "" {
		hs, hErr := history.New(cfg.Database.Postgres.DSN, logger)
		if hErr != nil {
			logger.Warn("PostgreSQL unavailable, running without history", zap.Error(hErr))
		} else {
			if mErr := hs.Migrate(context.Background(), "migrations"); mErr != nil {
				logger.Fatal("migration failed", zap.Error(mErr))
			}
			hist = hs
			defer hs.Close()
		}
	}

	// Checkpoint stream (optional)
	var checkpoints *checkpoint.Publisher
	if cfg.Database.Redis.URL != "" {
		cp, cpErr := checkpoint.NewPublisher(cfg.Database.Redis.URL, "", logger)
		if cpErr != nil {
			logger.Warn("Redis unavailable, running without checkpoint stream", zap.Error(cpErr))
		} else {
			checkpoints = cp
			defer cp.Close()
		}
	}

	// Handoff graph (optional)
	var handoffs *graph.HandoffGraph
	if cfg.Database.Neo4j.URI != "" {
		hg, gErr := graph.New(cfg.Database.Neo4j.URI, cfg.Database.Neo4j.User, cfg.Database.Neo4j.Password, logger)
		if gErr != nil {
			logger.Warn("Neo4j unavailable, running without handoff graph", zap.Error(gErr))
		} else {
			handoffs = hg
			defer hg.Close(context.Background())
		}
	}

	// Validator and orchestrator
	validator := gate.New(cfg.Gates, nil, logger)
	invoker := worker.NewStaticInvoker(reg)
	var sink orchestrator.CheckpointSink
	if checkpoints != nil {
		sink = checkpoints
	}
	orch := orchestrator.New(reg, invoker, validator, sink,
		cfg.Coordination.PoolSize,
		time.Duration(cfg.Coordination.InvocationTimeoutSeconds)*time.Second,
		logger)

	// Tail the checkpoint stream so runs are observable in the logs.
	tailCtx, stopTail := context.WithCancel(context.Background())
	defer stopTail()
	if checkpoints != nil {
		go func() {
			for ev := range checkpoints.Subscribe(tailCtx) {
				logger.Debug("checkpoint",
					zap.String("session", ev.SessionID),
					zap.String("phase", ev.Phase),
					zap.String("kind", ev.Kind))
			}
		}()
	}

	// Warm-up route so misconfigured registries fail loudly at startup.
	probe := rt.Route(task.Task{Description: "startup probe"}, router.Context{})
	logger.Info("Router ready", zap.String("probe_worker", probe.AssignedWorker))

	handler := api.NewHandler(reg, rt, orch, hist, checkpoints, handoffs, logger)

	port := fmt.Sprintf("%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("Foreman listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
