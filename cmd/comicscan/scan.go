package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/comicscan/internal/analysis"
	"github.com/nao1215/comicscan/internal/config"
	"github.com/nao1215/comicscan/internal/crawler"
	"github.com/nao1215/comicscan/internal/database"
	"github.com/nao1215/comicscan/internal/fetcher"
	"github.com/nao1215/comicscan/internal/imaging"
	"github.com/nao1215/comicscan/internal/log"
	"github.com/nao1215/comicscan/internal/model"
	"github.com/nao1215/comicscan/internal/pipeline"
	"github.com/nao1215/comicscan/internal/report"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [article-url]",
		Short: "Crawl a comic article and analyze its images",
		Long: `Scan crawls a comic article, filters its content images, and analyzes
each comic panel with a vision model.

The run proceeds in stages:
- Crawl the article's pagination (and the following episodes with --episodes)
- Download candidate images and filter out decorative assets
- Extract characters, events, and quotes from each panel
- Mark low-confidence extractions suspicious and optionally escalate them
  to a stronger model tier (--fallback-model)
- Aggregate the per-image facts into a narrative summary

Examples:
  # Analyze a single article
  comicscan scan https://example.com/archives/123

  # Walk five episodes of a serial and check the title against the story
  comicscan scan --episodes 5 --title "義母の一言が許せない" https://example.com/archives/123

  # Escalate suspicious panels to a stronger tier and estimate the cost
  comicscan scan --fallback-model claude-opus-4-20250514 \
    --input-price 3 --output-price 15 --currency-rate 150 \
    https://example.com/archives/123

  # Output a Markdown report to a file
  comicscan scan --markdown -o report.md https://example.com/archives/123

Configuration file (.comicscan) example:
  sites:
    example.com:
      contentSelectors: ["article .entry-body"]
      nextEpisodeMarkers: ["【次の話】"]
      headers:
        User-Agent: "Mozilla/5.0"`,
		Args: cobra.ExactArgs(1),
		RunE: runScanCmd,
	}

	// Crawl flags
	cmd.Flags().IntP("episodes", "e", config.DefaultEpisodes,
		"Number of episodes to walk (1 = this article only)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each page fetch, image fetch, and analysis call")
	cmd.Flags().Int("min-image-kb", config.DefaultMinImageKB,
		"Minimum download size in KB for an image to count as content")
	cmd.Flags().Int("max-images", config.DefaultMaxImages,
		"Maximum number of images analyzed per run")

	// Preprocessing flags
	cmd.Flags().Int("max-edge", config.DefaultMaxEdge,
		"Longest-edge pixel cap before transmission")
	cmd.Flags().Int("quality", config.DefaultQuality,
		"JPEG re-encode quality (1-100)")

	// Analysis flags
	cmd.Flags().String("api-key", "",
		"Analysis service API key (default: ANTHROPIC_API_KEY)")
	cmd.Flags().String("title", "",
		"Article title; enables the title consistency check")
	cmd.Flags().String("model", config.DefaultModel,
		"Primary extraction model")
	cmd.Flags().String("fallback-model", "",
		"Escalation model for suspicious extractions (empty disables escalation)")
	cmd.Flags().Bool("verify", false,
		"Run a text-only cross-verification pass over the extracted facts")
	cmd.Flags().String("verify-model", "",
		"Model for the cross-verification pass (default: primary model)")
	cmd.Flags().String("summary-model", "",
		"Model for the summarization stage (default: primary model)")
	cmd.Flags().String("consistency-model", "",
		"Model for the title consistency check (default: primary model)")
	cmd.Flags().Int("max-tokens", config.DefaultMaxTokens,
		"Output token budget per extraction call")
	cmd.Flags().Float64("threshold", config.DefaultThreshold,
		"Confidence below which an extraction is marked suspicious")

	// Cost estimation flags
	cmd.Flags().Float64("input-price", 0,
		"Input token price per million tokens (0 disables cost estimation)")
	cmd.Flags().Float64("output-price", 0,
		"Output token price per million tokens")
	cmd.Flags().Float64("currency-rate", 0,
		"Conversion rate applied to the estimated cost (0 = no conversion)")

	// Cache flags
	cmd.Flags().String("cache-dir", "",
		"Directory for the download cache (default: XDG cache directory)")
	cmd.Flags().Duration("cache-ttl", config.DefaultCacheTTL,
		"Absolute expiry for cached image downloads")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Site profile file path (default: .comicscan in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	// Build config from flags
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Set up structured logging with API key redaction
	cfg.Verbose = getVerboseFlag(cmd)
	logger := log.NewSecureLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runScan(ctx, cfg, logger)
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

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.URL = args[0]

	// Get flag values
	var err error

	cfg.Episodes, err = cmd.Flags().GetInt("episodes")
	if err != nil {
		return nil, err
	}

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.MinImageKB, err = cmd.Flags().GetInt("min-image-kb")
	if err != nil {
		return nil, err
	}

	cfg.MaxImages, err = cmd.Flags().GetInt("max-images")
	if err != nil {
		return nil, err
	}

	cfg.MaxEdge, err = cmd.Flags().GetInt("max-edge")
	if err != nil {
		return nil, err
	}

	cfg.Quality, err = cmd.Flags().GetInt("quality")
	if err != nil {
		return nil, err
	}

	apiKey, err := cmd.Flags().GetString("api-key")
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}

	cfg.Title, err = cmd.Flags().GetString("title")
	if err != nil {
		return nil, err
	}

	cfg.Model, err = cmd.Flags().GetString("model")
	if err != nil {
		return nil, err
	}

	cfg.FallbackModel, err = cmd.Flags().GetString("fallback-model")
	if err != nil {
		return nil, err
	}

	cfg.Verify, err = cmd.Flags().GetBool("verify")
	if err != nil {
		return nil, err
	}

	cfg.VerifyModel, err = cmd.Flags().GetString("verify-model")
	if err != nil {
		return nil, err
	}

	cfg.SummaryModel, err = cmd.Flags().GetString("summary-model")
	if err != nil {
		return nil, err
	}

	cfg.ConsistencyModel, err = cmd.Flags().GetString("consistency-model")
	if err != nil {
		return nil, err
	}

	cfg.MaxTokens, err = cmd.Flags().GetInt("max-tokens")
	if err != nil {
		return nil, err
	}

	cfg.Threshold, err = cmd.Flags().GetFloat64("threshold")
	if err != nil {
		return nil, err
	}

	cfg.InputPricePerMTok, err = cmd.Flags().GetFloat64("input-price")
	if err != nil {
		return nil, err
	}

	cfg.OutputPricePerMTok, err = cmd.Flags().GetFloat64("output-price")
	if err != nil {
		return nil, err
	}

	cfg.CurrencyRate, err = cmd.Flags().GetFloat64("currency-rate")
	if err != nil {
		return nil, err
	}

	cfg.CacheDir, err = cmd.Flags().GetString("cache-dir")
	if err != nil {
		return nil, err
	}

	cfg.CacheTTL, err = cmd.Flags().GetDuration("cache-ttl")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Load site profiles from the config file.
	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use empty profiles if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.Profiles, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		// User explicitly specified a config file that doesn't exist
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		// Use empty profiles if no file found and user didn't explicitly specify one
		cfg.Profiles = &config.File{
			Sites: make(map[string]config.SiteProfile),
		}
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

	return cfg, nil
}

// runScan executes the crawl-filter-analyze run.
func runScan(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	target, err := url.Parse(cfg.URL)
	if err != nil {
		return fmt.Errorf("invalid article URL %q: %w", cfg.URL, err)
	}
	profile := cfg.Profiles.ProfileFor(target.Hostname())

	logger.Info("starting scan",
		"url", cfg.URL,
		"episodes", cfg.Episodes,
		"model", cfg.Model,
		"escalation", cfg.EscalationEnabled(),
	)

	// Open the download cache. The cache lives in the session so repeated
	// runs against the same article skip the network.
	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = config.XDGCacheDir()
	}
	downloads, err := database.Open(cacheDir, database.Options{
		TTL:       cfg.CacheTTL,
		EnableWAL: true,
	})
	if err != nil {
		return fmt.Errorf("failed to open download cache: %w", err)
	}
	session := pipeline.NewSession(downloads)
	defer func() {
		if err := session.Close(); err != nil {
			logger.Error("failed to close download cache", "error", err)
		}
	}()
	logger.Info("download cache opened", "path", downloads.Path())

	// Crawl the article chain.
	fetch := fetcher.New(cfg.Timeout,
		fetcher.WithExtraHeaders(profile.Headers),
		fetcher.WithLogger(logger),
	)
	walk, err := crawlArticle(ctx, cfg, profile, fetch, logger)
	if err != nil {
		return err
	}

	// Download and filter the candidates.
	filter := imaging.NewFilter(fetch, session.Downloads,
		imaging.WithMinBytes(cfg.MinImageKB*1024),
		imaging.WithFilterLogger(logger),
	)
	images, err := filter.Filter(ctx, walk.Candidates, cfg.URL)
	if err != nil {
		return fmt.Errorf("image filtering failed: %w", err)
	}
	if len(images) == 0 {
		return errors.New("no content images found; the article may use an unsupported layout")
	}
	fmt.Printf("Found %d content images (%d candidates, %d pages)\n",
		len(images), len(walk.Candidates), walk.PagesFetched)

	// Preprocess for transmission. A panel that cannot be decoded is
	// dropped here rather than sent to the model as garbage.
	images = preprocessImages(images, cfg, logger)
	if len(images) == 0 {
		return errors.New("no images survived preprocessing")
	}

	// Run the analysis pipeline.
	client := analysis.NewClient(cfg.APIKey,
		analysis.WithTimeout(cfg.Timeout),
		analysis.WithClientLogger(logger),
	)

	fmt.Printf("Analyzing %d images with %s...\n", len(images), cfg.Model)
	startTime := time.Now()

	runReport, err := buildPipeline(client, session, cfg, logger).Run(ctx, images)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	runReport.URL = cfg.URL

	elapsed := time.Since(startTime)
	fmt.Printf("Analysis completed in %s\n\n", elapsed.Round(time.Millisecond))

	return outputReport(cfg, runReport)
}

// crawlArticle walks the article's pagination and episode chain.
func crawlArticle(ctx context.Context, cfg *config.Config, profile config.SiteProfile, fetch *fetcher.Client, logger *slog.Logger) (*crawler.WalkResult, error) {
	resolverOpts := []crawler.ResolverOption{crawler.WithResolverLogger(logger)}
	if len(profile.PaginationSelectors) > 0 {
		resolverOpts = append(resolverOpts, crawler.WithPaginationSelectors(profile.PaginationSelectors))
	}

	extractorOpts := []crawler.ExtractorOption{crawler.WithExtractorLogger(logger)}
	if len(profile.ContentSelectors) > 0 {
		extractorOpts = append(extractorOpts, crawler.WithContentSelectors(profile.ContentSelectors))
	}

	markers := crawler.DefaultNextEpisodeMarkers
	if len(profile.NextEpisodeMarkers) > 0 {
		markers = profile.NextEpisodeMarkers
	}

	walker := crawler.NewWalker(fetch,
		crawler.NewResolver(resolverOpts...),
		crawler.NewExtractor(extractorOpts...),
		crawler.WithEpisodes(cfg.Episodes),
		crawler.WithMarkerMatcher(crawler.PhraseMatcher(markers)),
		crawler.WithWalkerLogger(logger),
	)

	fmt.Printf("Crawling %s...\n", cfg.URL)
	walk, err := walker.Walk(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("crawl failed: %w", err)
	}

	if walk.EpisodesWalked < walk.EpisodesRequested {
		fmt.Fprintf(os.Stderr, "Warning: walked %d of %d requested episodes (chain ended early)\n",
			walk.EpisodesWalked, walk.EpisodesRequested)
	}

	return walk, nil
}

// preprocessImages downscales and recompresses each image for transmission,
// dropping any that cannot be decoded.
func preprocessImages(images []model.ContentImage, cfg *config.Config, logger *slog.Logger) []model.ContentImage {
	pre := imaging.NewPreprocessor(cfg.MaxEdge, cfg.Quality,
		imaging.WithPreprocessorLogger(logger),
	)

	kept := images[:0]
	for i := range images {
		if err := pre.Process(&images[i]); err != nil {
			logger.Warn("dropping undecodable image",
				"url", images[i].URL,
				"error", err,
			)
			continue
		}
		kept = append(kept, images[i])
	}
	return kept
}

// buildPipeline assembles the analysis pipeline from the configuration.
func buildPipeline(client *analysis.Client, session *pipeline.Session, cfg *config.Config, logger *slog.Logger) *pipeline.Pipeline {
	opts := []pipeline.Option{
		pipeline.WithMaxImages(cfg.MaxImages),
		pipeline.WithMaxTokens(cfg.MaxTokens),
		pipeline.WithThreshold(cfg.Threshold),
		pipeline.WithPipelineLogger(logger),
	}

	if cfg.Title != "" {
		opts = append(opts, pipeline.WithTitle(cfg.Title))
	}
	if cfg.FallbackModel != "" {
		opts = append(opts, pipeline.WithFallbackModel(cfg.FallbackModel))
	}
	if cfg.Verify {
		opts = append(opts, pipeline.WithVerification(cfg.VerifyModel))
	}
	if cfg.SummaryModel != "" {
		opts = append(opts, pipeline.WithSummaryModel(cfg.SummaryModel))
	}
	if cfg.ConsistencyModel != "" {
		opts = append(opts, pipeline.WithConsistencyModel(cfg.ConsistencyModel))
	}
	if cfg.InputPricePerMTok > 0 || cfg.OutputPricePerMTok > 0 {
		opts = append(opts, pipeline.WithPricing(analysis.Pricing{
			InputPerMTok:  cfg.InputPricePerMTok,
			OutputPerMTok: cfg.OutputPricePerMTok,
			CurrencyRate:  cfg.CurrencyRate,
		}))
	}

	return pipeline.New(client, session, cfg.Model, opts...)
}

// outputReport outputs the run report in the requested format.
func outputReport(cfg *config.Config, runReport *model.RunReport) error {
	// Determine output destination
	var output *os.File
	if cfg.ReportFile != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Create/overwrite the output file with owner-only permissions
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	} else {
		output = os.Stdout
	}

	var writer report.Writer
	switch {
	case cfg.JSONReport:
		writer = report.NewJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		writer = report.NewMarkdownWriter(output)
	default:
		writer = report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}

	_, err := writer.Write(runReport)
	return err
}
