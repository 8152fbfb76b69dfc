// Package log provides slog handler utilities for the chef.
//
// Crawl logging naturally wants to include URLs, scraped titles and HTML
// fragments, and some of those values are enormous (a lesson description can
// be kilobytes of markup). TruncateHandler wraps any slog.Handler and clips
// oversized string attributes so log output stays readable and log files
// stay bounded, without callers having to trim values at every call site.
package log
