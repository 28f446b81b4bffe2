package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/spotvec/internal/api"
	"github.com/dshills/spotvec/internal/auth"
	"github.com/dshills/spotvec/internal/config"
	"github.com/dshills/spotvec/internal/embedder"
	"github.com/dshills/spotvec/internal/gateway"
	"github.com/dshills/spotvec/internal/generator"
	"github.com/dshills/spotvec/internal/ingest"
	"github.com/dshills/spotvec/internal/logging"
	"github.com/dshills/spotvec/internal/mcp"
	"github.com/dshills/spotvec/internal/service"
	"github.com/dshills/spotvec/internal/spotify"
	"github.com/dshills/spotvec/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	mode := "all"
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version":
			fmt.Printf("spotvec\n")
			fmt.Printf("Version: %s\n", version)
			fmt.Printf("Build Time: %s\n", buildTime)
			fmt.Printf("Build Mode: %s\n", storage.BuildMode)
			fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
			fmt.Printf("Vector Extension: %v\n", storage.VectorExtensionAvailable)
			os.Exit(0)
		case "--http":
			mode = "http"
		case "--stdio":
			mode = "stdio"
		default:
			fmt.Fprintf(os.Stderr, "usage: spotvec [--version | --http | --stdio]\n")
			os.Exit(2)
		}
	}

	cfg, loaded := config.Load()
	closer := logging.Setup(logging.Options{Level: cfg.Logging.Level, File: cfg.Logging.File})
	defer func() { _ = closer.Close() }()

	log.WithFields(log.Fields{
		"version": version,
		"mode":    mode,
		"driver":  storage.DriverName,
		"vec":     storage.VectorExtensionAvailable,
		"dotenv":  loaded,
	}).Info("spotvec starting")
	if err := cfg.Spotify.RequireExchange(); err != nil {
		log.Warnf("Token exchange unavailable: %v", err)
	}

	sentryOn := initSentry(cfg.Server)
	if sentryOn {
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, mode, sentryOn); err != nil {
		log.Errorf("Server error: %v", err)
		if sentryOn {
			sentry.CaptureException(err)
			sentry.Flush(2 * time.Second)
		}
		os.Exit(1)
	}
	log.Info("Server stopped")
}

func run(ctx context.Context, cfg *config.Config, mode string, sentryOn bool) error {
	emb, err := embedder.FromConfig(ctx, cfg.Embeddings)
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}
	defer func() { _ = emb.Close() }()

	store, err := storage.NewSQLiteStore(cfg.Store.DBPath, emb)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	gen, err := generator.FromConfig(ctx, cfg.Gemini)
	if err != nil {
		return fmt.Errorf("failed to initialize generator: %w", err)
	}

	gw := gateway.New(store, gen, gateway.Options{
		BatchSize:       cfg.Store.BatchSize,
		PreserveOnStart: cfg.Store.PreserveOnStart,
	})
	spotifyAPI := spotify.NewAPI(cfg.Spotify.APIURL, nil)
	fetcher := spotify.NewFetcher(spotifyAPI, nil)

	svc := service.New(cfg.Spotify, service.Deps{
		Tokens:    auth.NewManager(cfg.Spotify, nil),
		API:       spotifyAPI,
		Fetcher:   fetcher,
		Gateway:   gw,
		Ingest:    ingest.New(fetcher, spotify.NewEnricher(spotifyAPI, cfg.Spotify.EnrichDelay), gw),
		Generator: cfg.Gemini.Enabled,
	})

	g, gctx := errgroup.WithContext(ctx)
	if mode != "stdio" {
		httpServer := api.New(svc, api.Options{Sentry: sentryOn, Port: cfg.Server.Port})
		g.Go(func() error {
			return httpServer.Run(gctx, ":"+cfg.Server.Port)
		})
	}
	if mode != "http" {
		mcpServer := mcp.NewServer(svc, version)
		g.Go(func() error {
			log.Info("MCP server ready, listening on stdio...")
			err := mcpServer.Serve(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

// initSentry reports whether error reporting is enabled.
func initSentry(cfg config.ServerConfig) bool {
	if cfg.SentryDSN == "" {
		return false
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Release:          cfg.Release,
		TracesSampleRate: 1.0,
	}); err != nil {
		log.Warnf("sentry.Init: %v", err)
		return false
	}
	return true
}
