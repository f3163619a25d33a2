package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/pushreps/internal/backend"
	"github.com/claude/pushreps/internal/config"
	"github.com/claude/pushreps/internal/importer"
	"github.com/claude/pushreps/internal/progress"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file (local mode)")
	migrationsPath := flag.String("migrations", "migrations", "path to SQL migrations (postgres driver)")
	historyPath := flag.String("file", "", "path to exported workoutHistory JSON (required)")
	serverURL := flag.String("server", "", "send to a running PushReps server instead of writing storage directly")
	apiKey := flag.String("api-key", os.Getenv("PUSHREPS_AUTH_API_KEY"), "API key for -server mode")
	dryRun := flag.Bool("dry-run", false, "report counts without recording sessions")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *historyPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: pushreps-import -file history.json [-config config.yaml | -server URL -api-key KEY] [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	f, err := os.Open(*historyPath)
	if err != nil {
		log.Error("failed to open history file", "path", *historyPath, "error", err)
		os.Exit(1)
	}
	entries, err := importer.Parse(f)
	f.Close()
	if err != nil {
		log.Error("failed to parse history file", "error", err)
		os.Exit(1)
	}
	log.Info("history parsed", "entries", len(entries))

	if *dryRun {
		log.Info("DRY RUN mode, no sessions will be recorded")
	}

	ctx := context.Background()

	var stats *importer.Stats
	if *serverURL != "" {
		stats, err = importer.NewClient(*serverURL, *apiKey).Send(ctx, entries, *dryRun)
	} else {
		stats, err = importLocal(ctx, *configPath, *migrationsPath, entries, *dryRun, log)
	}
	if err != nil {
		log.Error("import failed", "error", err)
		if stats != nil {
			printStats(log, stats)
		}
		os.Exit(1)
	}

	printStats(log, stats)
	log.Info("import complete")
}

func importLocal(ctx context.Context, configPath, migrationsPath string, entries []importer.Entry, dryRun bool, log *slog.Logger) (*importer.Stats, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	be, err := backend.Open(ctx, cfg, migrationsPath, log)
	if err != nil {
		return nil, err
	}
	defer be.Close()

	loc, err := cfg.Tracker.Location()
	if err != nil {
		return nil, fmt.Errorf("resolving timezone: %w", err)
	}
	store, err := progress.Open(ctx, be.Progress, log, progress.Options{Location: loc})
	if err != nil {
		return nil, err
	}
	return importer.New(store, log, dryRun).Import(ctx, entries)
}

func printStats(log *slog.Logger, stats *importer.Stats) {
	log.Info("import stats",
		"entries", stats.Entries,
		"imported", stats.Imported,
		"duplicated", stats.Duplicated,
		"unknown_plan", stats.UnknownPlan,
		"invalid", stats.Invalid,
	)
}
