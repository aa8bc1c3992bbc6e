// Command robogovernd runs the governance server: it owns the mission/run
// registry, the hash-chained event log, the broadcast hub, and the HTTP/WS
// facade in front of them. Exit codes follow the documented contract: 0 on
// a clean shutdown, 1 on a configuration error, 2 on a startup failure.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/antigravity-dev/robogovern/pkg/api"
	"github.com/antigravity-dev/robogovern/pkg/config"
	"github.com/antigravity-dev/robogovern/pkg/eventlog"
	"github.com/antigravity-dev/robogovern/pkg/hub"
	"github.com/antigravity-dev/robogovern/pkg/runservice"
	"github.com/antigravity-dev/robogovern/pkg/simclient"
	"github.com/antigravity-dev/robogovern/pkg/store"
	"github.com/antigravity-dev/robogovern/pkg/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		return 1
	}

	logLevel := new(slog.LevelVar)
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel.Set(slog.LevelInfo)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("starting robogovernd", "version", version.Full(), "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.Open(ctx, cfg.Store)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		return 2
	}
	defer pool.Close()

	repo := runservice.NewPostgresRepo(pool)
	events := eventlog.NewPostgresStore(pool)
	bus := hub.New(cfg.Hub.SubscriberBuffer, cfg.Hub.EvictAfter)
	sim := simclient.New(cfg.Sim)
	registry := runservice.NewRegistry(repo, sim, events, bus, cfg.Run)

	if err := registry.AutoResume(ctx); err != nil {
		slog.Error("failed to resume in-flight runs", "error", err)
		return 2
	}
	defer registry.Shutdown()

	srv := api.NewServer(api.Deps{
		Repo:       repo,
		Registry:   registry,
		Events:     events,
		Bus:        bus,
		Sim:        sim,
		PolicyCfg:  cfg.Policy,
		PlannerCfg: cfg.Run.Planner,
		AgenticCfg: api.AgenticConfig{
			MaxSteps:  cfg.Agentic.MaxSteps,
			WallClock: cfg.Agentic.WallClock,
		},
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			slog.Error("http server failed", "error", err)
			return 2
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
		return 2
	}

	slog.Info("robogovernd stopped cleanly")
	return 0
}
