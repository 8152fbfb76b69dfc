package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/config"
	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/crawler"
	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/database"
	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/fetch"
	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/log"
	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/pipeline"
	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/report"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the site and package its lessons",
		Long: `Crawl walks the Proyecto Descartes taxonomy (subjects, age bands,
lessons), downloads each lesson's zip package, rebuilds it as a
deterministic archive, and assembles a validated channel tree.

Examples:
  # Full crawl with defaults
  descarteschef crawl

  # Quick dry run: at most 3 lessons per age band
  descarteschef crawl --max-lessons 3

  # JSON report written to a file
  descarteschef crawl --json -o report.json

  # Crawl a mirror without touching the response cache
  descarteschef crawl --base-url http://mirror.example.org --no-cache

Configuration file (.descarteschef) example:
  channel:
    title: "Proyecto Descartes (staging)"
    copyrightHolder: "Proyecto Descartes"
  crawl:
    delay: 1s
    batchSize: 2
    maxLessonsPerBand: 10`,
		Args: cobra.NoArgs,
		RunE: runCrawlCmd,
	}

	// Crawl behavior flags
	cmd.Flags().StringP("base-url", "u", config.DefaultBaseURL,
		"Base URL of the site to crawl")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Connection timeout for each request")
	cmd.Flags().DurationP("delay", "d", config.DefaultCrawlDelay,
		"Politeness delay between uncached requests")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of lessons packaged concurrently")
	cmd.Flags().IntP("max-lessons", "n", 0,
		"Maximum lessons per age band (0 = no limit, useful for dry runs)")

	// Storage flags
	cmd.Flags().String("cache-dir", config.XDGCacheDir(),
		"Directory for the SQLite response cache")
	cmd.Flags().Bool("no-cache", false,
		"Disable the response cache entirely")
	cmd.Flags().String("data-dir", config.XDGDataDir(),
		"Directory for packaged lesson archives")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .descarteschef in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg.Verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runCrawl(ctx, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags and the optional
// override file.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.BaseURL, err = cmd.Flags().GetString("base-url")
	if err != nil {
		return nil, err
	}

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.CrawlDelay, err = cmd.Flags().GetDuration("delay")
	if err != nil {
		return nil, err
	}

	cfg.BatchSize, err = cmd.Flags().GetInt("batch")
	if err != nil {
		return nil, err
	}

	cfg.MaxLessonsPerBand, err = cmd.Flags().GetInt("max-lessons")
	if err != nil {
		return nil, err
	}

	cfg.CacheDir, err = cmd.Flags().GetString("cache-dir")
	if err != nil {
		return nil, err
	}

	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return nil, err
	}
	if noCache {
		cfg.CacheDir = ""
	}

	cfg.DataDir, err = cmd.Flags().GetString("data-dir")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Load the override file. An explicitly given path must exist; the
	// default search locations are optional.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath != "" {
		cfg.Overrides, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.Overrides.Apply(cfg)
	} else if explicitConfigPath {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)

	return cfg, nil
}

// setupLogger creates a structured logger based on verbosity setting.
// Attribute values are clipped so scraped URLs and HTML fragments cannot
// flood the log.
func setupLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(log.NewTruncateHandler(handler, log.DefaultMaxValueLen))
}

// runCrawl executes the crawl.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting crawl",
		"baseURL", cfg.BaseURL,
		"batchSize", cfg.BatchSize,
		"cacheDir", cfg.CacheDir,
	)

	// Open the response cache unless disabled.
	var cache *database.CacheDB
	if cfg.CacheDir != "" {
		var err error
		cache, err = database.Open(cfg.CacheDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open cache database: %w", err)
		}
		defer cache.Close()
		logger.Info("cache opened", "path", cache.Path())
	}

	clientOpts := []fetch.Option{
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithDelay(cfg.CrawlDelay),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithLogger(logger),
	}
	if cache != nil {
		clientOpts = append(clientOpts, fetch.WithCache(cache))
	}
	client := fetch.New(cfg.Timeout, clientOpts...)

	spider, err := crawler.NewSpider(client, cfg.BaseURL, config.CMSPath,
		crawler.WithLogger(logger),
		crawler.WithSubjectBlacklist(cfg.SubjectBlacklist),
		crawler.WithAgeBands(cfg.AgeBands),
		crawler.WithMaxLessonsPerBand(cfg.MaxLessonsPerBand),
	)
	if err != nil {
		return fmt.Errorf("failed to create spider: %w", err)
	}

	packagerOpts := []pipeline.PackagerOption{
		pipeline.WithPackagerLogger(logger),
	}
	if cache != nil {
		packagerOpts = append(packagerOpts, pipeline.WithPackagerCache(cache))
	}
	packager := pipeline.NewPackager(client, filepath.Join(cfg.DataDir, "packages"), packagerOpts...)

	writer, closeOutput, err := buildReportWriter(cfg)
	if err != nil {
		return err
	}
	defer closeOutput()

	p := pipeline.New(pipeline.WithLogger(logger))
	p.AddSteps(
		pipeline.NewCrawlStep(spider, pipeline.WithCrawlLogger(logger)),
		pipeline.NewPackageStep(packager,
			pipeline.WithPackageConcurrency(cfg.BatchSize),
			pipeline.WithPackageLogger(logger),
		),
		pipeline.NewAssembleStep(cfg.Channel, pipeline.WithAssembleLogger(logger)),
		pipeline.NewValidateStep(pipeline.WithValidateLogger(logger)),
		pipeline.NewReportStep(writer, pipeline.WithReportLogger(logger)),
	)

	run := pipeline.NewRun()
	start := time.Now()
	if err := p.Execute(ctx, run); err != nil {
		if errors.Is(err, context.Canceled) {
			return errors.New("crawl cancelled")
		}
		return err
	}

	if run.Summary != nil {
		fmt.Fprintf(os.Stderr, "Packaged %d lessons in %d topics (%d failures) in %s\n",
			run.Summary.LessonCount,
			run.Summary.TopicCount,
			len(run.Summary.Failures),
			time.Since(start).Round(time.Millisecond),
		)
	}
	return nil
}

// buildReportWriter creates the report writer selected by the config,
// writing to the report file or stdout. The returned func closes the
// output file, if any.
func buildReportWriter(cfg *config.Config) (report.Writer, func(), error) {
	var output io.Writer = os.Stdout
	closeOutput := func() {}

	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create output file: %w", err)
		}
		output = f
		closeOutput = func() { _ = f.Close() }
	}

	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(output, report.WithPrettyPrint()), closeOutput, nil
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output), closeOutput, nil
	default:
		return report.NewSimpleWriter(output), closeOutput, nil
	}
}
