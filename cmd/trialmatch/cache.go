package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/trialmatch/internal/app"
	"github.com/kailas-cloud/trialmatch/internal/config"
	dbredis "github.com/kailas-cloud/trialmatch/internal/db/redis"
	"github.com/kailas-cloud/trialmatch/internal/repository/termcache"
)

func cacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and maintain the term cache",
		Subcommands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show entry counts, size and age bounds",
				Action: withCache(cacheStats),
			},
			{
				Name:  "clear",
				Usage: "Remove entries (all, or one type)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Usage: "extraction or enrichment (default: all)"},
				},
				Action: withCache(cacheClear),
			},
			{
				Name:   "cleanup",
				Usage:  "Remove expired entries",
				Action: withCache(cacheCleanup),
			},
		},
	}
}

type cacheAction func(c *cli.Context, cache *termcache.Store) error

// withCache opens the configured cache backend for the duration of fn.
// Redis is only contacted when the cache lives there.
func withCache(fn cacheAction) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, logger, err := setup(c)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		cache, closeFn, err := openCache(c, cfg, logger)
		if err != nil {
			return err
		}
		defer closeFn()
		return fn(c, cache)
	}
}

func openCache(c *cli.Context, cfg config.Config, logger *zap.Logger) (*termcache.Store, func(), error) {
	var store *dbredis.Store
	if cfg.Cache.Backend == termcache.BackendRedis {
		s, err := app.OpenStore(c.Context, cfg)
		if err != nil {
			return nil, nil, err
		}
		store = s
	}
	cache, err := app.OpenCache(c.Context, cfg, store, logger)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, nil, err
	}
	return cache, func() {
		_ = cache.Close()
		if store != nil {
			store.Close()
		}
	}, nil
}

func cacheStats(c *cli.Context, cache *termcache.Store) error {
	info := cache.Info(c.Context)
	w := c.App.Writer
	fmt.Fprintf(w, "Location:    %s\n", info.Location)
	fmt.Fprintf(w, "Max age:     %d days\n", info.MaxAgeDays)
	fmt.Fprintf(w, "Entries:     %d (%d valid, %d expired)\n", info.TotalEntries, info.ValidEntries, info.ExpiredEntries)
	fmt.Fprintf(w, "Extraction:  %d\n", info.ExtractionEntries)
	fmt.Fprintf(w, "Enrichment:  %d\n", info.EnrichmentEntries)
	if info.SizeBytes >= 0 {
		fmt.Fprintf(w, "Size:        %.1f KiB\n", float64(info.SizeBytes)/1024)
	}
	if info.Oldest != nil {
		fmt.Fprintf(w, "Oldest:      %s\n", info.Oldest.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "Newest:      %s\n", info.Newest.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func cacheClear(c *cli.Context, cache *termcache.Store) error {
	tag, err := termcache.ParseTag(c.String("type"))
	if err != nil {
		return err
	}
	n := cache.Clear(c.Context, tag)
	what := "all"
	if tag != "" {
		what = string(tag)
	}
	fmt.Fprintf(c.App.Writer, "Removed %d %s entries\n", n, what)
	return nil
}

func cacheCleanup(c *cli.Context, cache *termcache.Store) error {
	n := cache.Cleanup(c.Context)
	fmt.Fprintf(c.App.Writer, "Removed %d expired entries\n", n)
	return nil
}
