package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/model"
)

// Default configuration values.
// These mirror the behavior of the site and the import pipeline; the crawl
// settings are deliberately conservative because the chef runs unattended
// against a volunteer-operated server.
const (
	// DefaultBaseURL is the root of the Proyecto Descartes site.
	DefaultBaseURL = "http://proyectodescartes.org"

	// CMSPath is the path prefix of the site's CMS, under which the
	// subject taxonomy lives.
	CMSPath = "/descartescms/"

	// DefaultTimeout is the per-request timeout. The site is served from
	// modest infrastructure and large lesson zips can take a while.
	DefaultTimeout = 120 * time.Second

	// DefaultCrawlDelay is the politeness delay between uncached requests.
	DefaultCrawlDelay = 500 * time.Millisecond

	// DefaultUserAgent identifies the chef in HTTP requests so the site
	// operators can recognize crawler traffic in their logs.
	DefaultUserAgent = "descartes-chef/1.0 (+https://github.com/learningequality/sushi-chef-proyecto-descartes)"

	// DefaultMaxBodySize limits response bodies. Lesson zips routinely
	// reach tens of megabytes; 256MB is a safety stop, not a tuning knob.
	DefaultMaxBodySize = 256 * 1024 * 1024

	// DefaultBatchSize is the number of lessons packaged concurrently.
	DefaultBatchSize = 4

	// PageSize is the number of items per item-list page. This is fixed
	// by the site's CMS, not tunable.
	PageSize = 20

	// ItemListModuleID is the CMS module that serves filtered item lists.
	ItemListModuleID = "282"

	// AppName is the application name used for XDG directory paths.
	AppName = "descartes-chef"
)

// Channel metadata defaults. The YAML override file can replace the title,
// description, language and thumbnail; the source identifiers are fixed.
const (
	// DefaultChannelName is the channel title.
	DefaultChannelName = "Proyecto Descartes"

	// ChannelSourceID uniquely identifies this channel to the importer.
	ChannelSourceID = "sushi-chef-proyecto-descartes-es"

	// ChannelDomain names the content provider.
	ChannelDomain = "proyectodescartes.org"

	// DefaultChannelLanguage is the channel's BCP 47 language code.
	DefaultChannelLanguage = "es"

	// DefaultCopyrightHolder is stamped on every lesson license.
	DefaultCopyrightHolder = "Proyecto Descartes"

	// DefaultChannelDescription describes the channel to importers.
	DefaultChannelDescription = "Asociación non-gubernamental que promueve la renovación y cambio " +
		"metodológico en los procesos de aprendizaje y enseñanza de las Matemáticas y en otras áreas " +
		"de conocimiento. Los recursos digitales interactivos generados en el Proyecto Descartes son " +
		"hechos completamente por profesores, y son appropriados por todos los niveles de escuela " +
		"primaria, secundaria, y bachillerato."
)

// DefaultSubjectBlacklist lists navigation entries on the index page that
// are not subjects and must be skipped.
func DefaultSubjectBlacklist() []string {
	return []string{"", "blog", "plantillas"}
}

// DefaultAgeBands returns the channel's age-band topics in display order.
// Each band maps to the fine-grained age tags the site's item filter
// understands.
func DefaultAgeBands() []model.AgeBand {
	return []model.AgeBand{
		{Label: "10-13 años", Tags: []string{"10 a 11 años", "10 a 12 años", "11 a 12 años", "12 a 13 años"}},
		{Label: "13-14 años", Tags: []string{"13 a 14 años"}},
		{Label: "14-15 años", Tags: []string{"14 a 15 años"}},
		{Label: "15-16 años", Tags: []string{"15 a 16 años"}},
		{Label: "16-17 años", Tags: []string{"16 a 17 años"}},
		{Label: "17-18 años", Tags: []string{"17 a 18 años"}},
		{Label: "18+ años", Tags: []string{"18 años o más"}},
	}
}

// Config holds all configuration options for a chef run.
// It is populated from defaults, the optional YAML file, and CLI flags,
// then passed through the application by value reference rather than
// global state.
type Config struct {
	// BaseURL is the root of the site to crawl.
	BaseURL string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// CrawlDelay is the politeness delay between uncached requests.
	CrawlDelay time.Duration

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// BatchSize is the number of lessons downloaded and packaged
	// concurrently. The archive builder itself stays synchronous per
	// lesson; only the fan-out is concurrent.
	BatchSize int

	// SubjectBlacklist lists index-page entries to skip.
	SubjectBlacklist []string

	// AgeBands is the age-band taxonomy in display order.
	AgeBands []model.AgeBand

	// MaxLessonsPerBand caps lessons fetched per age band.
	// Zero means no cap; small values make dry runs fast.
	MaxLessonsPerBand int

	// CacheDir is the directory holding the SQLite crawl cache.
	// Empty disables caching.
	CacheDir string

	// DataDir is the directory holding packaged lesson archives.
	DataDir string

	// Verbose enables debug-level logging.
	Verbose bool

	// ConfigFilePath is the explicit path of the YAML override file.
	// Empty means search the standard locations.
	ConfigFilePath string

	// Overrides holds the loaded YAML override file, if any.
	Overrides *File

	// JSONReport selects JSON report output. Mutually exclusive with
	// MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown report output. Mutually exclusive
	// with JSONReport.
	MarkdownReport bool

	// ReportFile is the report destination path; empty means stdout.
	ReportFile string

	// Channel holds the effective channel metadata for this run.
	Channel Channel
}

// Channel is the channel-level metadata applied to the tree root.
type Channel struct {
	// Title is the channel title.
	Title string `yaml:"title,omitempty"`

	// Description describes the channel.
	Description string `yaml:"description,omitempty"`

	// Language is the channel's BCP 47 language code.
	Language string `yaml:"language,omitempty"`

	// Thumbnail is an optional channel thumbnail URL.
	Thumbnail string `yaml:"thumbnail,omitempty"`

	// CopyrightHolder is stamped on every lesson license.
	CopyrightHolder string `yaml:"copyrightHolder,omitempty"`
}

// NewConfig creates a Config with default values.
//
// Design decision: We use a constructor rather than relying on zero values
// because nearly every default is non-zero, and the constructor documents
// what the defaults are.
func NewConfig() *Config {
	return &Config{
		BaseURL:          DefaultBaseURL,
		Timeout:          DefaultTimeout,
		CrawlDelay:       DefaultCrawlDelay,
		UserAgent:        DefaultUserAgent,
		MaxBodySize:      DefaultMaxBodySize,
		BatchSize:        DefaultBatchSize,
		SubjectBlacklist: DefaultSubjectBlacklist(),
		AgeBands:         DefaultAgeBands(),
		CacheDir:         XDGCacheDir(),
		DataDir:          XDGDataDir(),
		Channel: Channel{
			Title:           DefaultChannelName,
			Description:     DefaultChannelDescription,
			Language:        DefaultChannelLanguage,
			CopyrightHolder: DefaultCopyrightHolder,
		},
	}
}

// XDGDataDir returns the XDG data directory for the chef.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for the chef.
// The SQLite response cache lives here by default.
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
// It is called once after flag and file merging, before any crawling.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrInvalidBaseURL
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.MaxLessonsPerBand < 0 {
		return ErrInvalidLessonCap
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if !model.ValidLanguage(c.Channel.Language) {
		return ErrInvalidChannelLanguage
	}
	if len(c.AgeBands) == 0 {
		return ErrNoAgeBands
	}
	return nil
}
