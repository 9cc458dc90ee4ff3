package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"tailscale.com/tsnet"

	"github.com/ringvault/ringvault/internal/cache"
	"github.com/ringvault/ringvault/internal/clock"
	"github.com/ringvault/ringvault/internal/config"
	"github.com/ringvault/ringvault/internal/ingest/qring"
	"github.com/ringvault/ringvault/internal/mcp"
	"github.com/ringvault/ringvault/internal/metrics"
	"github.com/ringvault/ringvault/internal/models"
	"github.com/ringvault/ringvault/internal/query"
	"github.com/ringvault/ringvault/internal/reconcile"
	"github.com/ringvault/ringvault/internal/server"
	"github.com/ringvault/ringvault/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults plus env when empty)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg)
	log.Info().Str("version", server.Version).Str("environment", cfg.Environment).Msg("RingVault starting")

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Storage.DataDir).Msg("failed to create data dir")
	}

	file, err := storage.NewSnapshotFile(cfg.SnapshotPath(), cfg.Storage.Compress)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open snapshot file")
	}
	defer file.Close()

	norm := clock.NewNormalizer(clock.System{})
	engine := reconcile.NewEngine(norm)
	store := storage.NewStore(file, clock.System{}, log)
	if err := store.Load(engine); err != nil {
		// A corrupt snapshot must not be overwritten by an empty store.
		log.Fatal().Err(err).Str("path", cfg.SnapshotPath()).Msg("failed to restore snapshot")
	}

	rec := metrics.New(cfg.Metrics.Enabled)
	store.SetPersistHook(rec.ObservePersistence)
	for kind, n := range store.Counts() {
		rec.SetRecordsTotal(string(kind), n)
	}

	provider := qring.NewProvider(store, engine, norm, log)
	q := query.NewService(store, norm)
	logs := storage.NewIngestLogs(storage.DefaultIngestLogSize)

	srv := server.New(provider, q, logs, server.Options{
		Production: cfg.Production(),
		Origins:    cfg.CORS.Origins,
		DataFile:   cfg.SnapshotPath(),
	}, log)
	srv.SetMetrics(rec)
	srv.SetCache(cache.New(cfg.Cache.Enabled, cfg.Cache.SizeMB, cfg.Cache.TTL))
	srv.SetMCP(mcp.NewHTTPHandler(mcp.New(q, server.Version, log)))

	var listener net.Listener
	if cfg.Tailscale.Enabled {
		ts := &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
			Logf:     func(format string, args ...any) { log.Debug().Msgf(format, args...) },
		}
		if err := ts.Start(); err != nil {
			log.Fatal().Err(err).Msg("tsnet start failed")
		}
		defer ts.Close()

		listener, err = ts.Listen("tcp", ":80")
		if err != nil {
			log.Fatal().Err(err).Msg("tsnet listen failed")
		}
		log.Info().Str("hostname", cfg.Tailscale.Hostname).Msg("tsnet server starting")
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Fatal().Err(err).Str("addr", addr).Msg("listen failed")
		}
		log.Info().Str("addr", addr).Str("data_file", cfg.SnapshotPath()).
			Interface("counts", countsByName(store.Counts())).Msg("server starting")
	}

	httpSrv := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	if err := store.Persist(); err != nil {
		log.Error().Err(err).Msg("final persist failed")
	}
	log.Info().Msg("server stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if cfg.Production() {
		log = zerolog.New(os.Stdout)
	} else {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime})
	}
	return log.Level(level).With().Timestamp().Logger()
}

func countsByName(counts map[models.Kind]int) map[string]int {
	out := make(map[string]int, len(counts))
	for k, n := range counts {
		out[string(k)] = n
	}
	return out
}
