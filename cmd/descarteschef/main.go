// Package main provides the entry point for the descarteschef CLI.
//
// descarteschef crawls the Proyecto Descartes educational site, packages
// each lesson into a normalized archive, and assembles an importable
// channel tree.
//
// Usage:
//
//	descarteschef crawl
//	descarteschef crawl --max-lessons 5 --json -o report.json
//
// See --help for all available options.
package main

// main is the entry point for descarteschef.
func main() {
	Execute()
}
