// Package config provides configuration structures and utilities for the
// Proyecto Descartes chef. It defines the crawl settings, channel metadata
// defaults, the age-band taxonomy, and the optional YAML override file.
package config
