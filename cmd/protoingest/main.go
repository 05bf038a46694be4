// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/poiesic/protoingest"
	"github.com/poiesic/protoingest/agency"
	"github.com/poiesic/protoingest/config"
	"github.com/poiesic/protoingest/ingestion"
	"github.com/poiesic/protoingest/reembed"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "protoingest",
		Usage: "Ingest EMS protocol documents into a searchable chunk store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Replace an agency's stored chunks with freshly embedded ones",
				Action: ingestCommand,
				Flags: append(configFlags(),
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks per embedding request (overrides config)",
					},
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Number of batches processed concurrently (overrides config)",
					},
					&cli.BoolFlag{
						Name:  "progress",
						Usage: "Print batch progress to stderr",
						Value: true,
					},
				),
			},
			{
				Name:   "chunk",
				Usage:  "Show the chunks a run would produce without embedding or storing them",
				Action: chunkCommand,
				Flags: append(configFlags(),
					&cli.BoolFlag{
						Name:  "content",
						Usage: "Print chunk content",
					},
				),
			},
			{
				Name:   "reembed",
				Usage:  "Embed the configured agency's stored chunks again without re-reading documents",
				Action: reembedCommand,
				Flags: append(configFlags(),
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks per embedding request (overrides config)",
					},
					&cli.BoolFlag{
						Name:  "normalize",
						Usage: "Scale vectors to unit length before storing",
					},
				),
			},
			{
				Name:   "count",
				Usage:  "Count stored chunks for the configured agency",
				Action: countCommand,
				Flags:  configFlags(),
			},
			{
				Name:   "profiles",
				Usage:  "List built-in agency profiles",
				Action: profilesCommand,
			},
		},
	}
}

// configFlags are shared by every command that loads a configuration.
func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to YAML configuration file",
		},
		&cli.StringFlag{
			Name:  "env-file",
			Usage: "Dotenv file used to resolve ${VAR} references",
			Value: ".env",
		},
		&cli.StringFlag{
			Name:    "profile",
			Aliases: []string{"p"},
			Usage:   "Agency profile key (overrides config)",
		},
		&cli.StringFlag{
			Name:  "source",
			Usage: "Directory of protocol documents (overrides config)",
		},
		&cli.StringFlag{
			Name:  "snapshot",
			Usage: "JSON metadata snapshot (overrides config)",
		},
		&cli.StringFlag{
			Name:  "file-root",
			Usage: "Directory of downloaded files for a snapshot",
		},
		&cli.StringFlag{
			Name:  "store",
			Usage: "Store type: badger, sqlite or postgrest (overrides config)",
		},
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			Usage:   "Path to the badger directory or sqlite file (overrides config)",
		},
	}
}

// loadConfig reads the configuration file and applies flag overrides.
func loadConfig(c *cli.Context) (*config.AppConfig, error) {
	cfg, err := config.Load(c.String("config"), c.String("env-file"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if c.IsSet("profile") {
		cfg.Agency.Profile = c.String("profile")
	}
	if c.IsSet("source") && c.IsSet("snapshot") {
		return nil, errors.New("--source and --snapshot are mutually exclusive")
	}
	if c.IsSet("source") {
		cfg.Source = config.SourceConfig{Type: config.SourceDirectory, Path: c.String("source")}
	}
	if c.IsSet("snapshot") {
		cfg.Source = config.SourceConfig{Type: config.SourceSnapshot, Path: c.String("snapshot")}
	}
	if c.IsSet("file-root") {
		cfg.Source.FileRoot = c.String("file-root")
	}
	if c.IsSet("store") {
		cfg.Store.Type = c.String("store")
	}
	if c.IsSet("db") {
		cfg.Store.Path = c.String("db")
	}
	if c.IsSet("batch-size") {
		cfg.Ingestion.BatchSize = c.Int("batch-size")
	}
	if c.IsSet("pool-size") {
		cfg.Ingestion.PoolSize = c.Int("pool-size")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ingestCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	profile, err := cfg.Profile()
	if err != nil {
		return err
	}

	src, err := protoingest.OpenSource(cfg.Source)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}

	db, err := protoingest.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	opts := cfg.PipelineOptions()
	if c.Bool("progress") {
		opts = append(opts, ingestion.WithProgress(c.App.ErrWriter))
	}
	pipeline, err := db.NewIngestionPipeline(profile, opts...)
	if err != nil {
		return err
	}
	defer pipeline.Release()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(c.App.ErrWriter, "Agency: %s (%s)\n", profile.Name, profile.Jurisdiction)
	fmt.Fprintf(c.App.ErrWriter, "Source: %s %s\n", cfg.Source.Type, cfg.Source.Path)
	fmt.Fprintf(c.App.ErrWriter, "Store: %s\n", cfg.Store.Type)
	fmt.Fprintln(c.App.ErrWriter)

	summary, runErr := pipeline.Run(ctx, src)
	printSummary(c, summary)
	if runErr != nil {
		return fmt.Errorf("ingestion failed: %w", runErr)
	}
	if summary.ChunksFailed > 0 {
		return cli.Exit(fmt.Sprintf("%d chunks failed", summary.ChunksFailed), 2)
	}
	return nil
}

func printSummary(c *cli.Context, s *ingestion.Summary) {
	if s == nil {
		return
	}
	w := c.App.Writer
	fmt.Fprintf(w, "Run:                 %s\n", s.RunID)
	fmt.Fprintf(w, "Documents seen:      %d\n", s.DocumentsSeen)
	fmt.Fprintf(w, "Documents processed: %d\n", s.DocumentsProcessed)
	fmt.Fprintf(w, "Documents skipped:   %d\n", s.DocumentsSkipped)
	fmt.Fprintf(w, "Chunks created:      %d\n", s.ChunksCreated)
	fmt.Fprintf(w, "Chunks deleted:      %d\n", s.DeletedChunks)
	fmt.Fprintf(w, "Chunks inserted:     %d\n", s.ChunksInserted)
	fmt.Fprintf(w, "Chunks failed:       %d\n", s.ChunksFailed)
	fmt.Fprintf(w, "Elapsed:             %s\n", s.Elapsed.Round(time.Millisecond))
	if s.Cancelled {
		fmt.Fprintln(w, "Run was cancelled; re-run to complete the replacement.")
	}
	for _, be := range s.BatchErrors {
		fmt.Fprintf(w, "  batch %d (%d chunks): %s\n", be.Batch, be.Chunks, be.Message)
	}
}

func chunkCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	profile, err := cfg.Profile()
	if err != nil {
		return err
	}

	src, err := protoingest.OpenSource(cfg.Source)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}

	// Prepare never embeds or writes, so no store or provider is opened.
	pipeline, err := ingestion.NewPipeline(nopRepository{}, nopEmbedder{}, profile, cfg.PipelineOptions()...)
	if err != nil {
		return err
	}
	defer pipeline.Release()

	chunks, summary, err := pipeline.Prepare(c.Context, src)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NUMBER\tCHUNK\tSECTION\tTYPE\tCHARS\tTITLE")
	for _, ch := range chunks {
		fmt.Fprintf(tw, "%s\t%d/%d\t%s\t%s\t%d\t%s\n",
			ch.ProtocolNumber, ch.Ordinal+1, ch.TotalChunks, ch.Section, ch.ProtocolType, len(ch.Content), ch.ProtocolTitle)
		if c.Bool("content") {
			fmt.Fprintf(tw, "\t\t%s\n", strings.ReplaceAll(ch.Content, "\n", " "))
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "\n%d documents, %d skipped, %d chunks\n",
		summary.DocumentsSeen, summary.DocumentsSkipped, summary.ChunksCreated)
	for _, skipped := range summary.SkippedDocuments {
		fmt.Fprintf(c.App.Writer, "  skipped %s: %s\n", skipped.ID, skipped.Reason)
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	profile, err := cfg.Profile()
	if err != nil {
		return err
	}

	db, err := protoingest.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	rcfg := cfg.ReembedConfig()
	rcfg.Normalize = c.Bool("normalize")

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := reembed.NewReembedder(db.ChunkRepository(), db.Embedder(), rcfg, c.App.ErrWriter)
	updated, err := r.Run(ctx, profile.Name)
	if err != nil {
		return fmt.Errorf("reembedding failed after %d chunks: %w", updated, err)
	}
	fmt.Fprintf(c.App.Writer, "%s: %d chunks reembedded\n", profile.Name, updated)
	return nil
}

func countCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	profile, err := cfg.Profile()
	if err != nil {
		return err
	}

	db, err := protoingest.Open(cfg, protoingest.WithProvider(nopProvider{}))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	count, err := db.ChunkRepository().CountAgencyChunks(c.Context, profile.Name)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s: %d chunks\n", profile.Name, count)
	return nil
}

func profilesCommand(c *cli.Context) error {
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tAGENCY\tCHUNK\tOVERLAP\tWHITESPACE\tCATEGORIES\tTYPES")
	for _, key := range agency.Keys() {
		p, err := agency.Lookup(key)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			p.Key, p.Name, p.Chunking.Size, p.Chunking.Overlap, p.Chunking.Normalization, p.Strategy, p.TypeRule)
	}
	return tw.Flush()
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
