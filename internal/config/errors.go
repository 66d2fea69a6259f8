package config

import "errors"

// Configuration validation errors returned by Config.Validate.
//
// Design decision: Package-level sentinel errors rather than error values
// created inside Validate, so callers can branch with errors.Is while the
// messages stay human-readable.
var (
	// ErrNoURL is returned when no target article URL is supplied.
	ErrNoURL = errors.New("no target URL specified")

	// ErrNoAPIKey is returned when no API key is available from the
	// --api-key flag or the ANTHROPIC_API_KEY environment variable.
	ErrNoAPIKey = errors.New("no API key: set --api-key or ANTHROPIC_API_KEY")

	// ErrInvalidEpisodes is returned when the episode count is below 1.
	ErrInvalidEpisodes = errors.New("invalid episode count: must be at least 1")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidThreshold is returned when the suspicion confidence
	// threshold is outside [0, 1].
	ErrInvalidThreshold = errors.New("invalid threshold: must be between 0 and 1")

	// ErrInvalidQuality is returned when the JPEG quality is outside 1-100.
	ErrInvalidQuality = errors.New("invalid quality: must be between 1 and 100")

	// ErrInvalidMaxEdge is returned when the preprocessing edge cap is not
	// positive.
	ErrInvalidMaxEdge = errors.New("invalid max edge: must be positive")

	// ErrInvalidMaxImages is returned when the image cap is not positive.
	ErrInvalidMaxImages = errors.New("invalid max images: must be positive")

	// ErrInvalidMinImageSize is returned when the minimum image size is
	// negative. Zero disables the size gate.
	ErrInvalidMinImageSize = errors.New("invalid min image size: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
