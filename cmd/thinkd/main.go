// Thinkd is a creative-thinking workflow daemon speaking MCP over stdio.
//
// It serves three tools: discover_techniques, plan_thinking_session,
// and execute_thinking_step. Sessions persist as JSON documents under
// the configured store directory. An optional HTTP sidecar exposes
// health, metrics, and read-only session endpoints.
//
// Usage:
//
//	# Start with defaults (~/.config/thinkd/config.yaml if present)
//	thinkd
//
//	# Explicit config file, quiet logging
//	thinkd -config /etc/thinkd/config.yaml -quiet
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thinkd/internal/catalog"
	"github.com/fyrsmithlabs/thinkd/internal/config"
	thinkdhttp "github.com/fyrsmithlabs/thinkd/internal/http"
	"github.com/fyrsmithlabs/thinkd/internal/logging"
	"github.com/fyrsmithlabs/thinkd/internal/mcp"
	"github.com/fyrsmithlabs/thinkd/internal/orchestrator"
	"github.com/fyrsmithlabs/thinkd/internal/session"
	"github.com/fyrsmithlabs/thinkd/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/thinkd/config.yaml)")
	quiet := flag.Bool("quiet", false, "log errors only")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  thinkd           Start the thinkd daemon on stdio\n")
			fmt.Fprintf(os.Stderr, "  thinkd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath, *quiet); err != nil {
		log.Fatalf("thinkd error: %v", err)
	}
}

func printVersion() {
	fmt.Printf("thinkd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires the full daemon: config, logger, telemetry, store,
// catalog, engine, sidecar, and finally the stdio transport. It blocks
// until the context is cancelled or the transport closes.
func run(ctx context.Context, configPath string, quiet bool) error {
	if err := config.EnsureConfigDir(); err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if quiet {
		cfg.Log.Quiet = true
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logging.Sync(logger) }()

	logger.Info("starting thinkd",
		zap.String("version", version),
		zap.String("store_backend", cfg.Store.Backend),
	)

	tel, err := telemetry.New(ctx, cfg.Telemetry, logger.Named("telemetry"))
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	store, err := openStore(cfg.Store, logger)
	if err != nil {
		return err
	}

	cat, err := catalog.Load()
	if err != nil {
		return fmt.Errorf("loading technique catalog: %w", err)
	}
	logger.Info("technique catalog loaded", zap.Int("techniques", cat.Len()))

	engine, err := orchestrator.NewEngine(&orchestrator.Config{
		Tracker: cfg.Tracker,
		Options: cfg.Options,
	}, cat, store, logger.Named("engine"))
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	if cfg.Server.Enabled {
		sidecar, err := thinkdhttp.NewServer(engine, logger.Named("http"), cfg.Server, nil)
		if err != nil {
			return fmt.Errorf("creating http sidecar: %w", err)
		}
		go func() {
			if err := sidecar.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http sidecar failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
			defer cancel()
			if err := sidecar.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http sidecar shutdown", zap.Error(err))
			}
		}()
	}

	srv, err := mcp.NewServer(&mcp.Config{
		Name:    "thinkd",
		Version: version,
		Logger:  logger.Named("mcp"),
	}, engine)
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	err = srv.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// openStore builds the configured session store. With memory_fallback
// set, a broken file backend degrades to the in-memory store so the
// tool surface stays available.
func openStore(cfg config.StoreConfig, logger *zap.Logger) (session.Store, error) {
	switch cfg.Backend {
	case config.StoreMemory:
		logger.Warn("using in-memory session store; sessions will not survive restarts")
		return session.NewMemStore(), nil
	case config.StoreFile:
		store, err := session.NewFileStore(cfg.Path, logger.Named("store"))
		if err != nil {
			if cfg.MemoryFallback {
				logger.Error("file store unavailable, falling back to memory",
					zap.String("path", cfg.Path), zap.Error(err))
				return session.NewMemStore(), nil
			}
			return nil, fmt.Errorf("opening session store at %s: %w", cfg.Path, err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
