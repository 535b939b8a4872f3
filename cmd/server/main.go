package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/loomline/loomline/internal/api"
	"github.com/loomline/loomline/internal/config"
	"github.com/loomline/loomline/internal/storage"
)

// initLogger configures the global slog default with JSON output.
func initLogger(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}
	h := slog.NewJSONHandler(os.Stdout, opts)
	slog.SetDefault(slog.New(h))
}

// envOrDefault resolves a configuration value with the priority:
//   flag (if explicitly set, i.e. differs from defaultVal) > env var > default.
func envOrDefault(envKey, flagVal, defaultVal string) string {
	if flagVal != defaultVal {
		return flagVal
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return defaultVal
}

func main() {
	// ---- Flags -----------------------------------------------------------
	configFlag := flag.String("config", "", "Path to TOML config file (optional)")
	dataDirFlag := flag.String("data-dir", "", "Directory holding graph files")
	fileFlag := flag.String("file", "", "Graph file to open at startup")
	listenFlag := flag.String("listen", "", "HTTP listen address")
	logLevelFlag := flag.String("log-level", "", "Log level (debug|info|warn|error)")
	flag.Parse()

	cfg, err := config.Load(envOrDefault("LOOMLINE_CONFIG", *configFlag, ""))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Resolve overrides: flag > env var > config file.
	cfg.DataDir = envOrDefault("LOOMLINE_DATA_DIR", orFallback(*dataDirFlag, cfg.DataDir), cfg.DataDir)
	cfg.GraphFile = envOrDefault("LOOMLINE_FILE", orFallback(*fileFlag, cfg.GraphFile), cfg.GraphFile)
	cfg.ListenAddr = envOrDefault("LOOMLINE_LISTEN", orFallback(*listenFlag, cfg.ListenAddr), cfg.ListenAddr)
	cfg.LogLevel = envOrDefault("LOOMLINE_LOG_LEVEL", orFallback(*logLevelFlag, cfg.LogLevel), cfg.LogLevel)

	initLogger(cfg.LogLevel)

	// ---- Session ---------------------------------------------------------
	graphPath := cfg.GraphFile
	if !filepath.IsAbs(graphPath) {
		graphPath = filepath.Join(cfg.DataDir, graphPath)
	}

	ctx := context.Background()
	session, err := storage.Open(ctx, graphPath)
	if err != nil {
		log.Fatalf("failed to open graph file: %v", err)
	}

	// ---- HTTP Server -----------------------------------------------------
	srv := api.NewServer(session, cfg.DataDir, cfg.Save.RatePerSec, cfg.Save.Burst)
	srv.RegisterRoutes()

	slog.Info("loomline starting",
		"graph_file", graphPath,
		"data_dir", cfg.DataDir,
		"listen", cfg.ListenAddr,
	)

	go func() {
		slog.Info("HTTP server listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(cfg.ListenAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// ---- Graceful shutdown -----------------------------------------------
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if err := session.Close(); err != nil {
		slog.Error("session close error", "error", err)
	}

	slog.Info("loomline shutdown complete")
}

// orFallback returns v unless it is empty, in which case fallback is used.
// Lets unset string flags defer to the config file.
func orFallback(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
