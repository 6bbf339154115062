package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tinyland-inc/tinyland-analytics/internal/buffer"
	"github.com/tinyland-inc/tinyland-analytics/internal/config"
	"github.com/tinyland-inc/tinyland-analytics/internal/convert"
	"github.com/tinyland-inc/tinyland-analytics/internal/migrations"
	"github.com/tinyland-inc/tinyland-analytics/internal/records"
	"github.com/tinyland-inc/tinyland-analytics/internal/store"
)

func main() {
	configPath := flag.String("config", "tinyland.yaml", "Path to configuration file")
	startFlag := flag.String("start", "", "Conversion range start (2006-01-02)")
	endFlag := flag.String("end", "", "Conversion range end (2006-01-02)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel())); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	st := store.New(cfg.DataDir, nil, logger)

	var recordStore records.Store
	if cfg.Database.Enabled() {
		adapter, err := records.Open(cfg.Database.Driver, cfg.Database.DSN,
			cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		if err != nil {
			slog.Error("Failed to connect record store", "error", err)
			os.Exit(1)
		}
		defer adapter.Close()

		if err := migrations.RunMigrations(adapter.DB(), cfg.Database.Driver, cfg.Database.AutoMigrate); err != nil {
			slog.Error("Failed to run database migrations", "error", err)
			os.Exit(1)
		}
		recordStore = adapter
	}

	command := flag.Arg(0)
	if command == "" {
		command = "run"
	}

	switch command {
	case "run":
		runDaemon(cfg, st, logger)

	case "convert":
		start, end, err := parseRange(*startFlag, *endFlag)
		if err != nil {
			slog.Error("Invalid conversion range", "error", err)
			os.Exit(1)
		}
		converter := convert.New(st, recordStore, logger)
		written := converter.ConvertAll(context.Background(), start, end)
		for category, paths := range written {
			slog.Info("Converted", "category", category, "documents", len(paths))
		}

	default:
		slog.Error("Unknown command", "command", command)
		os.Exit(1)
	}
}

// runDaemon starts the periodic flush writer and blocks until SIGTERM,
// draining the buffers one last time on the way out.
func runDaemon(cfg *config.Config, st *store.Store, logger *slog.Logger) {
	interval, err := cfg.EffectiveFlushInterval()
	if err != nil {
		slog.Error("Invalid flush interval", "error", err)
		os.Exit(1)
	}

	writer := buffer.NewWriter(st, buffer.Options{
		Dev:      cfg.IsDev,
		Interval: interval,
		Logger:   logger,
	})
	writer.Start()
	slog.Info("Writer running", "data_dir", cfg.DataDir, "interval", interval, "dev", cfg.IsDev)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	slog.Info("Signal received, shutting down...")

	writer.Stop()
	if err := writer.Flush(); err != nil {
		slog.Error("Final flush failed", "error", err)
	}
	slog.Info("Shutdown complete")
}

func parseRange(startStr, endStr string) (time.Time, time.Time, error) {
	if startStr == "" || endStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("both -start and -end are required")
	}
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid -start: %w", err)
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid -end: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("-end is before -start")
	}
	// Include the whole end day.
	return start, end.AddDate(0, 0, 1).Add(-time.Second), nil
}
