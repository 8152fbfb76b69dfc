package config

import "errors"

// Configuration validation errors.
// These are returned by Config.Validate and allow callers to branch with
// errors.Is while still carrying human-readable messages.
var (
	// ErrInvalidBaseURL is returned when the base URL does not parse as
	// an absolute URL.
	ErrInvalidBaseURL = errors.New("invalid base URL: must be an absolute http(s) URL")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidLessonCap is returned when the per-band lesson cap is
	// negative. Use 0 for no cap.
	ErrInvalidLessonCap = errors.New("invalid lesson cap: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are requested.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidChannelLanguage is returned when the channel language is
	// not a valid BCP 47 code.
	ErrInvalidChannelLanguage = errors.New("invalid channel language code")

	// ErrNoAgeBands is returned when the age-band taxonomy is empty.
	ErrNoAgeBands = errors.New("no age bands configured")
)
