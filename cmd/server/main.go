package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Venue/internal/adapters/http"
	"github.com/dkeye/Venue/internal/app"
	"github.com/dkeye/Venue/internal/app/orch"
	"github.com/dkeye/Venue/internal/auth"
	"github.com/dkeye/Venue/internal/config"
	"github.com/dkeye/Venue/internal/core"
	"github.com/dkeye/Venue/internal/metrics"
	"github.com/dkeye/Venue/internal/snapshot"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Str("module", "main").Msg("failed to load config")
	}
	setupLogging(cfg)

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Str("module", "main").Msg("server stopped with error")
		os.Exit(1)
	}
	log.Info().Str("module", "main").Msg("Server exited gracefully")
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	hostAuth, err := auth.New(auth.Config{
		Password:     cfg.HostPassword,
		PasswordHash: cfg.HostPasswordHash,
		Secret:       cfg.Secret,
		TTL:          cfg.HostTokenTTL,
	})
	if err != nil {
		return fmt.Errorf("host auth: %w", err)
	}
	if !hostAuth.Enabled() {
		log.Warn().Str("module", "main").Msg("host login disabled: no host password configured")
	}

	policy, err := app.ParsePolicy(cfg.SlowConsumerPolicy)
	if err != nil {
		return err
	}

	store, err := snapshot.Open(snapshot.Options{
		Backend:        cfg.Snapshot.Backend,
		Path:           cfg.Snapshot.Path,
		ValkeyAddr:     cfg.Snapshot.ValkeyAddr,
		ValkeyPassword: cfg.Snapshot.ValkeyPassword,
	})
	if err != nil {
		return fmt.Errorf("snapshot store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Str("module", "main").Msg("close snapshot store")
		}
	}()

	m := metrics.New()
	var verifier core.HostVerifier
	if hostAuth.Enabled() {
		verifier = hostAuth
	}
	rooms := app.NewRoomManager(app.NewRoomFactory(app.RoomConfig{
		Capacity:     cfg.SpeakerCapacity,
		ChatLimit:    cfg.ChatRateLimit,
		ChatInterval: cfg.ChatRateInterval,
		Verifier:     verifier,
		Observer:     m,
		OnCreate:     snapshot.Restorer(store, 2*time.Second),
	}))
	o := orch.New(rooms, policy, m)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.SetupRouter(ctx, cfg, router.Deps{Orch: o, Auth: hostAuth, Metrics: m}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	flusher := &snapshot.Flusher{
		Store:    store,
		Rooms:    rooms,
		Interval: cfg.Snapshot.Interval,
		OnSave:   m.SnapshotSaved,
	}
	// Settings of a room that emptied out are kept for its next opening.
	o.OnRoomRemoved = func(room *core.Room) {
		saveCtx, saveCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer saveCancel()
		_ = flusher.Save(saveCtx, room)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("module", "main").Str("addr", addr).Msg("Venue server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	flushed := make(chan struct{})
	if _, noop := store.(snapshot.NoopStore); noop {
		close(flushed)
	} else {
		g.Go(func() error {
			defer close(flushed)
			return flusher.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Str("module", "main").Msg("Shutting down")
		// Rooms must outlive the final snapshot flush.
		<-flushed
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		for _, room := range rooms.Rooms() {
			o.EvictRoom(room.Name())
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}
