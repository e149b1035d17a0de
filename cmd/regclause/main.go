// Package main is the regclause CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hyperjump/regclause/internal/config"
	"github.com/hyperjump/regclause/internal/server"
	"github.com/hyperjump/regclause/internal/watcher"
	"github.com/hyperjump/regclause/pkg/utils"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/regclause/config.yaml"
	defaultServerURL  = "http://localhost:8000"
)

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory takes precedence; when neither exists the built-in defaults plus
// environment overrides are used. Returns the path actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			local := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(local); err == nil {
				path = local
			}
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			cfg, err := config.Default()
			return cfg, "", err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// loadDotEnv reads .env (or the given files) and lets their values replace
// variables already set in the environment.
func loadDotEnv(files ...string) error {
	return godotenv.Overload(files...)
}

func main() {
	// A missing .env is normal.
	_ = loadDotEnv()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "reindex":
		runReindex()
	case "status":
		runStatus()
	case "init":
		runInit()
	case "version", "--version", "-v":
		fmt.Printf("regclause version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)
	logDocuments(cfg, logger)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	if err := components.Controller.Warm(context.Background()); err != nil {
		logger.Fatal("Failed to build index", zap.Error(err))
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watchSvc *watcher.Watcher
	if cfg.Watch.Enabled {
		ctrl := components.Controller
		watchSvc = watcher.NewWatcher(
			cfg.DocumentPaths(),
			func(ctx context.Context, changed []string) {
				n, err := ctrl.Reindex(ctx)
				if err != nil {
					logger.Warn("watch reindex failed", zap.Strings("paths", changed), zap.Error(err))
					return
				}
				logger.Info("watch reindex complete", zap.Int("count", n))
			},
			watcher.WithLogger(logger),
			watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMs)*time.Millisecond),
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
	}

	srv := server.NewServer(components.Controller, components.Engine, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	if watchSvc != nil {
		watchSvc.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("config", "config.yaml", "config file to write")
	force := fs.Bool("force", false, "overwrite an existing file")
	_ = fs.Parse(os.Args[2:])

	if err := writeStarterConfig(*path, *force); err != nil {
		fmt.Fprintf(os.Stderr, "Init failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *path)
}

// writeStarterConfig saves the built-in defaults, with paths left relative to the
// config file, to path.
func writeStarterConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	var cfg config.Config
	config.ApplyDefaults(&cfg)
	return config.Save(path, &cfg)
}

// logDocuments reports each configured source document and whether it exists.
func logDocuments(cfg *config.Config, logger *zap.Logger) {
	for _, doc := range cfg.Documents {
		_, err := os.Stat(doc.Path)
		logger.Info("source document",
			zap.String("key", doc.Key),
			zap.String("path", doc.Path),
			zap.Bool("exists", err == nil))
	}
}

func printUsage() {
	fmt.Println(`regclause - Regulatory clause search

Usage:
  regclause server [flags]           Start the HTTP server
  regclause search [flags] <query>   Search clauses
  regclause reindex [flags]          Rebuild the clause index from source documents
  regclause status [flags]           Show index and embedding status
  regclause init [flags]             Write a starter config file
  regclause version                  Show version
  regclause help                     Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/regclause/config.yaml,
                     then ./config.yaml, then built-in defaults)
  --debug            Enable debug logging

Search Flags:
  --config string    Config file path (direct mode)
  --server string    Server URL (default: http://localhost:8000). Use --server "" to search in-process.
  --top-k int        Number of results (1-100, default from config)
  --method string    lexical, semantic or hybrid (default: lexical)
  --alpha float      Semantic weight for hybrid search (0.0-1.0, default from config)
  --output string    Output format: text, compact or json (default: text)

Reindex Flags:
  --config string    Config file path (direct mode)
  --server string    Server URL (default: http://localhost:8000). Use --server "" to rebuild in-process.

Status Flags:
  --config string    Config file path (direct mode)
  --server string    Server URL (default: http://localhost:8000). Use --server "" for direct mode.
  --output string    Output format: text or json (default: text)

Init Flags:
  --config string    Path to write (default: ./config.yaml)
  --force            Overwrite an existing file

Environment:
  <KEY>_PATH (e.g. PDPL_PATH, ECC_PATH), APP_HOST, APP_PORT, ALLOW_ORIGINS,
  EMBEDDING_PROVIDER, EMBEDDING_API_KEY (or OPENAI_API_KEY), EMBEDDING_BASE_URL.
  A .env file in the working directory is loaded first.

Examples:
  regclause server
  regclause search personal data retention
  regclause search --method hybrid --alpha 0.7 "access control"
  regclause search --output json --server "" "data breach notification"
  regclause reindex
  regclause status --output json`)
}
