package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default override file name.
const DefaultConfigFile = ".descarteschef"

// ErrConfigNotFound is returned when the override file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// Duration wraps time.Duration with YAML support for strings like "2s".
// yaml.v3 has no native time.Duration decoding.
type Duration time.Duration

// UnmarshalYAML decodes a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// File represents the structure of the .descarteschef override file.
// Everything in it is optional; absent fields keep their defaults.
type File struct {
	// Channel overrides channel metadata.
	Channel Channel `yaml:"channel,omitempty"`

	// Crawl overrides crawl behavior.
	Crawl CrawlOverrides `yaml:"crawl,omitempty"`
}

// CrawlOverrides holds optional crawl-behavior overrides.
type CrawlOverrides struct {
	// Delay overrides the politeness delay between requests.
	Delay Duration `yaml:"delay,omitempty"`

	// UserAgent overrides the User-Agent header.
	UserAgent string `yaml:"userAgent,omitempty"`

	// BatchSize overrides the concurrent packaging limit.
	BatchSize int `yaml:"batchSize,omitempty"`

	// MaxLessonsPerBand caps lessons per age band; handy for dry runs.
	MaxLessonsPerBand int `yaml:"maxLessonsPerBand,omitempty"`

	// SubjectBlacklist replaces the default subject blacklist.
	SubjectBlacklist []string `yaml:"subjectBlacklist,omitempty"`
}

// LoadConfigFile loads overrides from a YAML file.
// If the file does not exist it returns ErrConfigNotFound; callers decide
// whether that is fatal based on whether the path was given explicitly.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	return &f, nil
}

// FindConfigFile searches for the override file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .descarteschef in the current directory
// 3. Look for .descarteschef in the user's home directory
//
// Returns the path if found, or empty string if not.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}

// Apply merges the override file into cfg. Only non-zero override fields
// take effect.
func (f *File) Apply(cfg *Config) {
	if f.Channel.Title != "" {
		cfg.Channel.Title = f.Channel.Title
	}
	if f.Channel.Description != "" {
		cfg.Channel.Description = f.Channel.Description
	}
	if f.Channel.Language != "" {
		cfg.Channel.Language = f.Channel.Language
	}
	if f.Channel.Thumbnail != "" {
		cfg.Channel.Thumbnail = f.Channel.Thumbnail
	}
	if f.Channel.CopyrightHolder != "" {
		cfg.Channel.CopyrightHolder = f.Channel.CopyrightHolder
	}
	if f.Crawl.Delay != 0 {
		cfg.CrawlDelay = time.Duration(f.Crawl.Delay)
	}
	if f.Crawl.UserAgent != "" {
		cfg.UserAgent = f.Crawl.UserAgent
	}
	if f.Crawl.BatchSize != 0 {
		cfg.BatchSize = f.Crawl.BatchSize
	}
	if f.Crawl.MaxLessonsPerBand != 0 {
		cfg.MaxLessonsPerBand = f.Crawl.MaxLessonsPerBand
	}
	if len(f.Crawl.SubjectBlacklist) > 0 {
		cfg.SubjectBlacklist = f.Crawl.SubjectBlacklist
	}
}
