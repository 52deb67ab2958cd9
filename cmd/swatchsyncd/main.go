// Command swatchsyncd serves the swatch→carousel synchronization engine for
// one product page.
//
// Usage:
//
//	swatchsyncd -config swatchsync.yaml      # full YAML config
//	swatchsyncd -page page.html              # quick single-page mode
//
// The page file is watched; a rewrite (section re-render, theme deploy) fires
// a section-load lifecycle event through the reinit coordinator.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hazyhaar/swatchsync/analytics"
	"github.com/hazyhaar/swatchsync/engine"
	"github.com/hazyhaar/swatchsync/httpapi"
	"github.com/hazyhaar/swatchsync/reinit"
)

func main() {
	configPath := flag.String("config", "", "path to swatchsync.yaml config file")
	pagePath := flag.String("page", "", "page markup file (single-page mode)")
	listen := flag.String("listen", ":8098", "HTTP listen address")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *pagePath, *listen); err != nil {
		logger.Error("swatchsyncd: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, pagePath, listen string) error {
	var cfg *Config
	switch {
	case configPath != "":
		loaded, err := LoadConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	case pagePath != "":
		cfg = &Config{Listen: listen, Page: pagePath}
		cfg.defaults()
	default:
		fmt.Fprintln(os.Stderr, "usage: swatchsyncd -config <file> | -page <file>")
		os.Exit(1)
	}

	opts := engine.Options{
		AnimationSpeed: cfg.AnimationSpeed(),
		PreloadCount:   cfg.PreloadCount,
		Logger:         logger,
	}

	var events *analytics.Store
	if cfg.AnalyticsDB != "" {
		store, err := analytics.Open(cfg.AnalyticsDB, logger)
		if err != nil {
			return fmt.Errorf("open analytics: %w", err)
		}
		defer store.Close()
		events = store
		opts.Recorder = store
	}
	eng := engine.New(opts)

	if err := eng.LoadMarkupFile(cfg.Page); err != nil {
		return fmt.Errorf("load page: %w", err)
	}

	coord := reinit.New(func() {
		if err := eng.LoadMarkupFile(cfg.Page); err != nil {
			logger.Warn("swatchsyncd: page reload failed", "error", err)
		}
		n := eng.Pass()
		if n > 0 {
			logger.Info("swatchsyncd: pass initialized widgets", "count", n)
		}
	}, reinit.Options{Window: cfg.Debounce(), Logger: logger})
	go coord.Run(ctx)

	// First pass runs immediately; file watches and API calls debounce
	// through the coordinator from here on.
	eng.Pass()

	if err := watchPage(ctx, cfg.Page, coord, logger); err != nil {
		logger.Warn("swatchsyncd: page watch unavailable", "error", err)
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           httpapi.New(eng, coord, events, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("swatchsyncd: listening", "addr", cfg.Listen, "page", cfg.Page)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// watchPage fires a section-load lifecycle event whenever the page file is
// rewritten. Watching the parent directory survives editors and deploy tools
// that replace the file instead of writing in place.
func watchPage(ctx context.Context, page string, coord *reinit.Coordinator, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dir := filepath.Dir(page)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	target, err := filepath.Abs(page)
	if err != nil {
		target = page
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				abs, err := filepath.Abs(ev.Name)
				if err != nil || abs != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					logger.Debug("swatchsyncd: page file changed", "op", ev.Op.String())
					coord.NotifyLifecycle("shopify:section:load")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("swatchsyncd: watch error", "error", err)
			}
		}
	}()
	return nil
}
