package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tonearm/tonearm/internal/artwork"
	"github.com/tonearm/tonearm/internal/cache"
	"github.com/tonearm/tonearm/internal/config"
	"github.com/tonearm/tonearm/internal/library"
	"github.com/tonearm/tonearm/internal/logging"
	"github.com/tonearm/tonearm/internal/organize"
	"github.com/tonearm/tonearm/internal/pipeline"
	"github.com/tonearm/tonearm/internal/resolver"
	"github.com/tonearm/tonearm/internal/scanner"
	"github.com/tonearm/tonearm/internal/source"
	"github.com/tonearm/tonearm/internal/source/musicbrainz"
	"github.com/tonearm/tonearm/internal/source/netease"
	"github.com/tonearm/tonearm/internal/source/qqmusic"
	"github.com/tonearm/tonearm/internal/source/spotify"
	"github.com/tonearm/tonearm/internal/tagger"
	"github.com/tonearm/tonearm/internal/version"
	"github.com/tonearm/tonearm/internal/watcher"
)

func main() {
	mode := "tag"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	switch mode {
	case "version":
		fmt.Printf("tonearm %s (%s)\n", version.Version, version.Commit)
		return
	case "tag", "watch":
		if err := run(mode); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "usage: tonearm [tag|watch|version]\n")
		os.Exit(2)
	}
}

func run(mode string) error {
	configPath := os.Getenv("TONEARM_CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Directories.Source == "" {
		return fmt.Errorf("source directory is not configured (directories.source or TONEARM_SOURCE_DIR)")
	}

	logManager, logger := logging.NewManager(logging.Config{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		FilePath:       cfg.Logging.FilePath,
		FileMaxSizeMB:  cfg.Logging.FileMaxSizeMB,
		FileMaxFiles:   cfg.Logging.FileMaxFiles,
		FileMaxAgeDays: cfg.Logging.FileMaxAgeDays,
	})
	defer logManager.Close() //nolint:errcheck
	slog.SetDefault(logger)

	logger.Info("starting",
		slog.String("version", version.Version),
		slog.String("mode", mode))

	resultCache, err := cache.New(cfg.Cache.Dir, cfg.Cache.ExpireDays, logger)
	if err != nil {
		return fmt.Errorf("initializing cache: %w", err)
	}

	db, err := library.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", slog.String("error", err.Error()))
		}
	}()
	tracker := library.NewTracker(db)

	registry := buildRegistry(cfg, logger)
	if len(registry.All()) == 0 {
		return fmt.Errorf("no metadata sources enabled")
	}

	res := resolver.New(registry, resultCache, resolver.Options{
		MinConfidence: cfg.Global.MinConfidence,
		Timeout:       time.Duration(cfg.Global.SearchTimeout) * time.Second,
		Weights:       sourceWeights(cfg),
	}, logger)

	opts := pipeline.Options{
		EmbedCovers: true,
		WriteLyrics: true,
	}
	if cfg.Global.RequireConfirmation {
		opts.Confirm = promptConfirm
	}

	var org pipeline.Organizer
	if cfg.Directories.Target != "" {
		org = organize.New(cfg.Directories.Target, cfg.Directories.DirectoryPattern, logger)
		opts.Organize = true
	}

	pipe := pipeline.New(
		scanner.New(logger),
		res,
		registry,
		tagger.New(logger),
		org,
		artwork.NewDownloader(logger),
		tracker,
		opts,
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if mode == "watch" {
		w := watcher.New(cfg.Directories.Source, func(ctx context.Context, path string) {
			r := pipe.ProcessFile(ctx, path)
			if r.Err != nil {
				logger.Error("processing failed",
					slog.String("path", path),
					slog.String("error", r.Err.Error()))
			}
		}, logger)
		return w.Start(ctx)
	}

	results, summary, err := pipe.ProcessDirectory(ctx, cfg.Directories.Source)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Status == pipeline.StatusFailed && r.Err != nil {
			logger.Error("processing failed",
				slog.String("path", r.Path),
				slog.String("error", r.Err.Error()))
		}
	}
	fmt.Printf("processed %d files: %d tagged, %d skipped, %d without match, %d declined, %d failed\n",
		summary.Total(), summary.Tagged, summary.Skipped, summary.NoMatch, summary.Declined, summary.Failed)
	return nil
}

// buildRegistry registers the enabled source adapters from config. Spotify
// is enabled implicitly when credentials are present.
func buildRegistry(cfg *config.Config, logger *slog.Logger) *source.Registry {
	limiters := source.NewRateLimiterMap()
	registry := source.NewRegistry()

	if cfg.SourceEnabled("musicbrainz") {
		mb := cfg.Source("musicbrainz")
		registry.Register(musicbrainz.New(limiters, logger, mb.AppName, mb.Version, mb.Contact))
	}
	if cfg.SourceEnabled("netease") {
		registry.Register(netease.New(limiters, logger, ""))
	}
	if cfg.SourceEnabled("qqmusic") {
		registry.Register(qqmusic.New(limiters, logger))
	}

	sp := cfg.Source("spotify")
	if cfg.SourceEnabled("spotify") || (sp.ClientID != "" && sp.ClientSecret != "") {
		if sp.ClientID == "" || sp.ClientSecret == "" {
			logger.Warn("spotify enabled without credentials, skipping")
		} else {
			registry.Register(spotify.New(limiters, logger, sp.ClientID, sp.ClientSecret))
		}
	}

	return registry
}

func sourceWeights(cfg *config.Config) resolver.Weights {
	w := make(resolver.Weights, len(cfg.Global.SourceWeights))
	for name, weight := range cfg.Global.SourceWeights {
		w[source.SourceName(name)] = weight
	}
	// Per-source weight overrides win over the global map.
	for name, sc := range cfg.Sources {
		if sc.Weight > 0 {
			w[source.SourceName(name)] = sc.Weight
		}
	}
	return w
}

// promptConfirm asks on stdin whether a match should be applied. An empty
// answer accepts.
func promptConfirm(path string, c *source.Candidate) bool {
	fmt.Printf("%s\n  -> %s (confidence %.1f)\napply? [Y/n] ", path, c, c.Confidence)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "" || answer == "y" || answer == "yes"
}
