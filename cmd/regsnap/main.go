// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mdhender/regsnap"
	"github.com/mdhender/regsnap/model"
	"github.com/mdhender/regsnap/pipelines/stages"
	store "github.com/mdhender/regsnap/stores/sqlite"
	"github.com/spf13/cobra"
)

func main() {
	addFlags := func(cmd *cobra.Command) error {
		cmd.PersistentFlags().Bool("debug", false, "log debugging information")
		cmd.PersistentFlags().Bool("log-with-default-flags", false, "log with default flags")
		cmd.PersistentFlags().Bool("log-with-shortfile", true, "log with short file name")
		cmd.PersistentFlags().Bool("log-with-timestamp", false, "log with timestamp")
		cmd.PersistentFlags().Bool("quiet", false, "log less information")
		cmd.PersistentFlags().Bool("show-version", false, "show version")
		cmd.PersistentFlags().Bool("verbose", false, "log more information")
		return nil
	}
	var cmdRoot = &cobra.Command{
		Use:   "regsnap",
		Short: "Company registry snapshot pipeline",
		Long:  `Fetch, clean, and shard bulk company registry snapshots`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logWithDefaultFlags, _ := cmd.Flags().GetBool("log-with-default-flags")
			logWithShortFileName, _ := cmd.Flags().GetBool("log-with-shortfile")
			logWithTimestamp, _ := cmd.Flags().GetBool("log-with-timestamp")
			logFlags := 0
			if logWithShortFileName {
				logFlags |= log.Lshortfile
			}
			if logWithTimestamp {
				logFlags |= log.Ltime
			}
			if logWithDefaultFlags || logFlags == 0 {
				logFlags = log.LstdFlags
			}
			log.SetFlags(logFlags)

			if showVersion, _ := cmd.Flags().GetBool("show-version"); showVersion {
				fmt.Printf("regsnap: version %q\n", regsnap.Version().Core())
			}

			return nil
		},
	}
	cmdRoot.AddCommand(cmdFetch())
	cmdRoot.AddCommand(cmdPrepare())
	cmdRoot.AddCommand(cmdPipeline())
	cmdRoot.AddCommand(cmdInspect())
	cmdRoot.AddCommand(cmdInitDB())
	cmdRoot.AddCommand(cmdVersion())
	if err := addFlags(cmdRoot); err != nil {
		log.Fatal(err)
	}

	if err := cmdRoot.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveFeed looks up a feed by name, listing the registry on a miss.
func resolveFeed(name string) (model.Feed, error) {
	feed, ok := model.FindFeed(name)
	if !ok {
		var known []string
		for _, f := range model.Feeds() {
			known = append(known, f.ID)
		}
		return model.Feed{}, fmt.Errorf("unknown feed %q (known: %s)", name, strings.Join(known, ", "))
	}
	return feed, nil
}

// locateArchives resolves the descriptor set for a fetch. With a month
// range it generates descriptors offline; otherwise it scrapes the
// feed's index page for the current snapshot.
func locateArchives(ctx context.Context, feed model.Feed, fromMonth, toMonth string) ([]model.ArchiveDescriptor, error) {
	if fromMonth != "" || toMonth != "" {
		from, err := time.Parse("2006-01", fromMonth)
		if err != nil {
			return nil, fmt.Errorf("bad --from %q: want YYYY-MM", fromMonth)
		}
		to, err := time.Parse("2006-01", toMonth)
		if err != nil {
			return nil, fmt.Errorf("bad --to %q: want YYYY-MM", toMonth)
		}
		return stages.MonthRange(feed, from, to), nil
	}

	svc := stages.NewLocateService(nil)
	snap, descs, err := svc.ResolveSnapshot(ctx, feed)
	if err != nil {
		return nil, err
	}
	log.Printf("found snapshot from %s with %d parts\n", snap.Date, snap.Parts)
	return descs, nil
}

// runFetch fetches the descriptor set and logs per-file progress.
func runFetch(ctx context.Context, feed model.Feed, descs []model.ArchiveDescriptor, cacheDir string, quiet bool) ([]stages.FetchResult, stages.FetchSummary) {
	svc := stages.NewFetchService(nil, feed.BaseURL)
	results, summary := svc.FetchAll(ctx, descs, cacheDir)
	for _, r := range results {
		switch {
		case r.Err != nil:
			log.Printf("failed to download %s: %v\n", r.Descriptor.Filename, r.Err)
		case r.Cached:
			if !quiet {
				log.Printf("skipping %s, already exists\n", r.Descriptor.Filename)
			}
		default:
			if !quiet {
				log.Printf("downloaded %s\n", r.Descriptor.Filename)
			}
		}
	}
	log.Printf("fetch: %s\n", summary)
	return results, summary
}

func cmdFetch() *cobra.Command {
	feedName := "basic-company-data"
	cacheDir := filepath.Join("data", "raw", "ch")
	var fromMonth, toMonth string
	addFlags := func(cmd *cobra.Command) error {
		cmd.Flags().StringVar(&feedName, "feed", feedName, "feed to fetch (name matching ignores case and separators)")
		cmd.Flags().StringVar(&cacheDir, "cache-dir", cacheDir, "archive cache directory")
		cmd.Flags().StringVar(&fromMonth, "from", fromMonth, "first month (YYYY-MM) for monthly feeds")
		cmd.Flags().StringVar(&toMonth, "to", toMonth, "last month (YYYY-MM) for monthly feeds")
		return nil
	}
	var cmd = &cobra.Command{
		Use:          "fetch",
		Short:        "download the feed's archives into the local cache",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			quiet, _ := cmd.Flags().GetBool("quiet")

			feed, err := resolveFeed(feedName)
			if err != nil {
				return err
			}

			descs, err := locateArchives(ctx, feed, fromMonth, toMonth)
			if err != nil {
				var derr *stages.ErrDiscovery
				if errors.As(err, &derr) {
					// Discovery failures are "nothing to do", not fatal.
					log.Printf("%v\n", err)
					log.Printf("no files to download\n")
					return nil
				}
				return err
			}
			if len(descs) == 0 {
				log.Printf("no files to download\n")
				return nil
			}

			_, summary := runFetch(ctx, feed, descs, cacheDir, quiet)
			log.Printf("downloaded %d/%d files successfully\n", summary.Fetched+summary.Cached, len(descs))
			return nil
		},
	}
	if err := addFlags(cmd); err != nil {
		log.Fatal(err)
	}
	return cmd
}

// prepareConfig carries the clean/shard settings shared by the prepare
// and pipeline commands.
type prepareConfig struct {
	inputDir   string
	outDir     string
	shardSize  int
	maxNameLen int
	minDate    string
}

func (cfg *prepareConfig) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&cfg.inputDir, "input-dir", cfg.inputDir, "cached archive directory")
	cmd.Flags().StringVar(&cfg.outDir, "out-dir", cfg.outDir, "cleaned shard output directory")
	cmd.Flags().IntVar(&cfg.shardSize, "shard-size", cfg.shardSize, "maximum rows per shard")
	cmd.Flags().IntVar(&cfg.maxNameLen, "max-name-len", cfg.maxNameLen, "maximum company name length")
	cmd.Flags().StringVar(&cfg.minDate, "min-date", cfg.minDate, "earliest plausible incorporation date (YYYY-MM-DD)")
}

func defaultPrepareConfig() prepareConfig {
	return prepareConfig{
		inputDir:   filepath.Join("data", "raw", "ch"),
		outDir:     filepath.Join("data", "cleaned", "ch"),
		shardSize:  200_000,
		maxNameLen: 80,
		minDate:    "1900-01-01",
	}
}

// runPrepare loads, cleans, and shards the cached archives. Returns nil
// results when there was nothing to do.
func runPrepare(cfg prepareConfig, source string, quiet bool) (model.CleanStats, []model.ShardRange, error) {
	minDate, err := time.Parse("2006-01-02", cfg.minDate)
	if err != nil {
		return model.CleanStats{}, nil, fmt.Errorf("bad --min-date %q: want YYYY-MM-DD", cfg.minDate)
	}

	loader := stages.NewLoadService()
	table, loadSummary, err := loader.LoadAll(cfg.inputDir)
	if err != nil {
		return model.CleanStats{}, nil, err
	}
	if table.Empty() {
		log.Printf("no data files present - run regsnap fetch first\n")
		return model.CleanStats{}, nil, nil
	}
	log.Printf("loaded %d rows from %d archives (%d skipped)\n", table.Len(), loadSummary.Archives, loadSummary.Skipped)

	cleaned, stats := stages.Clean(table, stages.CleanOptions{
		MaxNameLen: cfg.maxNameLen,
		MinDate:    minDate,
		Today:      time.Now().UTC(),
		Source:     source,
	})
	log.Printf("cleaned: %d of %d rows kept (%d date drops, %d name drops)\n",
		stats.OutputRows, stats.InputRows, stats.DroppedDate, stats.DroppedName)

	sharder := stages.NewShardService()
	shards, err := sharder.Write(cleaned, cfg.outDir, cfg.shardSize)
	if err != nil {
		return stats, shards, err
	}
	if !quiet {
		for _, shard := range shards {
			log.Printf("saved rows %d-%d to %s\n", shard.StartRow, shard.EndRow, shard.Dir)
		}
	}
	log.Printf("wrote %d shards to %s\n", len(shards), cfg.outDir)
	return stats, shards, nil
}

func cmdPrepare() *cobra.Command {
	cfg := defaultPrepareConfig()
	feedName := "basic-company-data"
	var cmd = &cobra.Command{
		Use:          "prepare",
		Short:        "clean cached archives and write dataset shards",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			quiet, _ := cmd.Flags().GetBool("quiet")

			feed, err := resolveFeed(feedName)
			if err != nil {
				return err
			}

			_, _, err = runPrepare(cfg, feed.Source, quiet)
			return err
		},
	}
	cfg.addFlags(cmd)
	cmd.Flags().StringVar(&feedName, "feed", feedName, "feed whose provenance tag to stamp")
	return cmd
}

func cmdPipeline() *cobra.Command {
	cfg := defaultPrepareConfig()
	feedName := "basic-company-data"
	var fromMonth, toMonth string
	var dbPath string
	var cmd = &cobra.Command{
		Use:          "pipeline",
		Short:        "fetch, clean, and shard in one pass",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			quiet, _ := cmd.Flags().GetBool("quiet")

			feed, err := resolveFeed(feedName)
			if err != nil {
				return err
			}

			// Optional manifest; the pipeline runs the same without it.
			var manifest *store.Store
			if dbPath != "" {
				manifest, err = store.NewStoreWithConfig(store.StoreConfig{Path: dbPath})
				if err != nil {
					return fmt.Errorf("open manifest: %w", err)
				}
				defer manifest.Close()
			}

			run := &model.Run{
				ID:        uuid.NewString(),
				Feed:      feed.ID,
				StartedAt: time.Now().UTC(),
			}
			if manifest != nil {
				if err := manifest.InsertRun(ctx, run); err != nil {
					return err
				}
				log.Printf("run %s\n", run.ID)
			}

			descs, err := locateArchives(ctx, feed, fromMonth, toMonth)
			if err != nil {
				var derr *stages.ErrDiscovery
				if !errors.As(err, &derr) {
					return err
				}
				log.Printf("%v\n", err)
				descs = nil
			}

			if len(descs) > 0 {
				results, _ := runFetch(ctx, feed, descs, cfg.inputDir, quiet)
				if manifest != nil {
					for _, r := range results {
						ra := &model.RunArchive{
							RunID:     run.ID,
							Filename:  r.Descriptor.Filename,
							Status:    r.Status(),
							PartNo:    r.Descriptor.PartNo,
							PartTotal: r.Descriptor.PartTotal,
						}
						code, msg := "", ""
						if r.Err != nil {
							code, msg = stages.ErrorCode(r.Err), r.Err.Error()
						}
						if err := manifest.InsertRunArchive(ctx, ra, code, msg); err != nil {
							return err
						}
					}
				}
			} else {
				log.Printf("no files to download\n")
			}

			stats, shards, err := runPrepare(cfg, feed.Source, quiet)
			if err != nil {
				return err
			}

			if manifest != nil {
				for _, shard := range shards {
					if err := manifest.InsertRunShard(ctx, run.ID, shard); err != nil {
						return err
					}
				}
				run.RawRows = stats.InputRows
				run.CleanRows = stats.OutputRows
				run.DroppedDate = stats.DroppedDate
				run.DroppedName = stats.DroppedName
				run.ShardCount = len(shards)
				if err := manifest.FinishRun(ctx, run); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cfg.addFlags(cmd)
	cmd.Flags().StringVar(&feedName, "feed", feedName, "feed to process")
	cmd.Flags().StringVar(&fromMonth, "from", fromMonth, "first month (YYYY-MM) for monthly feeds")
	cmd.Flags().StringVar(&toMonth, "to", toMonth, "last month (YYYY-MM) for monthly feeds")
	cmd.Flags().StringVar(&dbPath, "db", dbPath, "record the run in this manifest database")
	return cmd
}

func cmdInspect() *cobra.Command {
	dir := filepath.Join("data", "cleaned", "ch")
	var cmd = &cobra.Command{
		Use:          "inspect [shard-dir]",
		Short:        "print summary statistics for cleaned shards",
		SilenceUsage: true,
		Args:         cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				dir = args[0]
			}

			sharder := stages.NewShardService()

			// A single shard directory holds data.csv directly;
			// otherwise walk the part_* subdirectories in order.
			if table, err := sharder.ReadShard(dir); err == nil {
				stages.Summarize(table).Print(os.Stdout)
				return nil
			}

			entries, err := os.ReadDir(dir)
			if err != nil {
				log.Printf("no data directory found at %s\n", dir)
				return nil
			}
			var parts []string
			for _, entry := range entries {
				if entry.IsDir() && strings.HasPrefix(entry.Name(), "part_") {
					parts = append(parts, entry.Name())
				}
			}
			sort.Strings(parts)
			if len(parts) == 0 {
				log.Printf("no shards found at %s\n", dir)
				return nil
			}

			var combined *model.Table
			for _, part := range parts {
				table, err := sharder.ReadShard(filepath.Join(dir, part))
				if err != nil {
					return err
				}
				if combined == nil {
					combined = table
					continue
				}
				combined.Rows = append(combined.Rows, table.Rows...)
			}
			stages.Summarize(combined).Print(os.Stdout)
			return nil
		},
	}
	return cmd
}

func cmdInitDB() *cobra.Command {
	dbPath := filepath.Join("data", "regsnap.db")
	addFlags := func(cmd *cobra.Command) error {
		cmd.Flags().StringVar(&dbPath, "db", dbPath, "manifest database file to create")
		return nil
	}
	var cmd = &cobra.Command{
		Use:          "init-db",
		Short:        "create and initialize the run manifest database",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.InitDatabase(dbPath); err != nil {
				return err
			}
			log.Printf("created manifest database at %s\n", dbPath)
			return nil
		},
	}
	if err := addFlags(cmd); err != nil {
		log.Fatal(err)
	}
	return cmd
}

func cmdVersion() *cobra.Command {
	showBuildInfo := false
	addFlags := func(cmd *cobra.Command) error {
		cmd.Flags().BoolVar(&showBuildInfo, "build-info", showBuildInfo, "show build information")
		return nil
	}
	var cmd = &cobra.Command{
		Use:   "version",
		Short: "display the application's version number",
		RunE: func(cmd *cobra.Command, args []string) error {
			if showBuildInfo {
				fmt.Println(regsnap.Version().String())
				return nil
			}
			fmt.Println(regsnap.Version().Core())
			return nil
		},
	}
	if err := addFlags(cmd); err != nil {
		log.Fatal(err)
	}
	return cmd
}
