package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values. The heuristic thresholds mirror the values
// the tool was tuned with against real comic article sites; all of them can
// be overridden via CLI flags.
const (
	// DefaultTimeout is the per-request timeout for page and image fetches
	// and for analysis calls. Article hosts and CDNs respond well within
	// 30 seconds; anything slower is treated as a failure (no retry).
	DefaultTimeout = 30 * time.Second

	// DefaultEpisodes is the number of episodes to walk in serial mode.
	// 1 means single-article mode: pagination only, no episode chaining.
	DefaultEpisodes = 1

	// DefaultMinImageKB is the minimum download size for a content image.
	// Decorative assets (icons, banners, avatars) are almost always smaller
	// than 30KB, while comic panels are larger.
	DefaultMinImageKB = 30

	// DefaultMaxImages caps the total number of images analyzed in one run.
	// The cap bounds analysis cost; excess candidates are truncated in
	// discovery order and a warning is recorded.
	DefaultMaxImages = 30

	// DefaultMaxEdge is the longest-edge cap applied by the preprocessor.
	// 1568px matches the largest edge the analysis service uses before
	// downscaling images itself, so larger transmissions only waste tokens.
	DefaultMaxEdge = 1568

	// DefaultQuality is the JPEG re-encode quality for transmitted images.
	DefaultQuality = 80

	// DefaultMaxTokens is the per-call output token budget for extraction.
	DefaultMaxTokens = 1024

	// DefaultSummaryMaxTokens is the output token budget for the
	// summarization and consistency stages, which produce longer prose.
	DefaultSummaryMaxTokens = 2048

	// DefaultThreshold is the confidence level below which an extraction
	// result is marked suspicious and queued for escalation.
	DefaultThreshold = 0.55

	// DefaultModel is the primary extraction tier.
	DefaultModel = "claude-sonnet-4-20250514"

	// DefaultCacheTTL is the absolute expiry for cached image downloads.
	DefaultCacheTTL = time.Hour

	// AppName is the application name used for XDG directory paths.
	AppName = "comicscan"

	// EnvAPIKey is the environment variable consulted when no --api-key
	// flag is given.
	EnvAPIKey = "ANTHROPIC_API_KEY"
)

// Config holds every option for one comicscan run. It is populated from CLI
// flags and passed through the application by dependency injection; there is
// no ambient global configuration.
//
// Design decision: A single flat struct, as the option count is manageable.
// Stage model identifiers stay as plain strings so that an empty string
// uniformly means "stage disabled" (fallback, verify, consistency) or
// "inherit the primary model" (summary).
type Config struct {
	// URL is the target article URL. Required.
	URL string

	// Episodes is the number of episodes to walk. 1 disables chaining.
	Episodes int

	// Title is the optional article title. When set, the pipeline runs the
	// title consistency check after summarization.
	Title string

	// APIKey authenticates against the analysis service.
	APIKey string

	// Timeout applies to each page fetch, image fetch, and analysis call.
	Timeout time.Duration

	// MinImageKB is the minimum content image download size in kilobytes.
	MinImageKB int

	// MaxImages caps the number of images analyzed per run.
	MaxImages int

	// MaxEdge is the preprocessor's longest-edge limit in pixels.
	MaxEdge int

	// Quality is the preprocessor's JPEG re-encode quality (1-100).
	Quality int

	// Model is the primary extraction model identifier.
	Model string

	// FallbackModel is the escalation tier. Empty or equal to Model
	// disables escalation.
	FallbackModel string

	// VerifyModel serves the optional cross-verification pass.
	// Defaults to Model when Verify is enabled and this is empty.
	VerifyModel string

	// SummaryModel serves the aggregation stage. Defaults to Model.
	SummaryModel string

	// ConsistencyModel serves the title consistency check. Defaults to Model.
	ConsistencyModel string

	// MaxTokens is the per-image output token budget.
	MaxTokens int

	// Threshold is the suspicion confidence threshold in [0, 1].
	Threshold float64

	// Verify enables the text-only cross-verification pass.
	Verify bool

	// InputPricePerMTok and OutputPricePerMTok are the analysis service's
	// unit prices per million tokens. Zero disables cost estimation.
	InputPricePerMTok  float64
	OutputPricePerMTok float64

	// CurrencyRate converts the estimated cost from the price currency to
	// the display currency. 0 is treated as 1 (no conversion).
	CurrencyRate float64

	// Verbose enables slog.LevelDebug output, including per-selector and
	// per-image heuristic decisions.
	Verbose bool

	// CacheDir is the directory for the SQLite download cache.
	// Empty means the XDG cache directory.
	CacheDir string

	// CacheTTL is the absolute expiry applied to cached downloads.
	CacheTTL time.Duration

	// ConfigFilePath is an explicit site-profile file path. Empty triggers
	// the standard search (current directory, then home directory).
	ConfigFilePath string

	// Profiles holds per-host site profiles loaded from the config file.
	Profiles *File

	// JSONReport and MarkdownReport select the report format. Both false
	// means the human-readable simple report. Mutually exclusive.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout when set.
	ReportFile string
}

// NewConfig returns a Config populated with defaults. The URL, Title, and
// APIKey fields must be filled by the caller before Validate.
func NewConfig() *Config {
	return &Config{
		Episodes:   DefaultEpisodes,
		Timeout:    DefaultTimeout,
		MinImageKB: DefaultMinImageKB,
		MaxImages:  DefaultMaxImages,
		MaxEdge:    DefaultMaxEdge,
		Quality:    DefaultQuality,
		Model:      DefaultModel,
		MaxTokens:  DefaultMaxTokens,
		Threshold:  DefaultThreshold,
		CacheTTL:   DefaultCacheTTL,
		APIKey:     os.Getenv(EnvAPIKey),
	}
}

// XDGCacheDir returns the XDG cache directory for comicscan.
// On Linux: ~/.cache/comicscan
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// XDGConfigDir returns the XDG config directory for comicscan.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns a sentinel error describing
// the first problem found. It runs once after CLI parsing, before any
// network activity.
func (c *Config) Validate() error {
	if c.URL == "" {
		return ErrNoURL
	}

	if c.APIKey == "" {
		return ErrNoAPIKey
	}

	if c.Episodes < 1 {
		return ErrInvalidEpisodes
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Threshold < 0 || c.Threshold > 1 {
		return ErrInvalidThreshold
	}

	if c.Quality < 1 || c.Quality > 100 {
		return ErrInvalidQuality
	}

	if c.MaxEdge < 1 {
		return ErrInvalidMaxEdge
	}

	if c.MaxImages < 1 {
		return ErrInvalidMaxImages
	}

	if c.MinImageKB < 0 {
		return ErrInvalidMinImageSize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	return nil
}

// StageModel resolves the model identifier for a stage that inherits the
// primary model when unset.
func (c *Config) StageModel(override string) string {
	if override != "" {
		return override
	}
	return c.Model
}

// EscalationEnabled reports whether a distinct fallback tier is configured.
func (c *Config) EscalationEnabled() bool {
	return c.FallbackModel != "" && c.FallbackModel != c.Model
}
