// Package pipeline orchestrates a full chef run as a sequence of steps:
// crawl the taxonomy, package lesson archives, assemble the content tree,
// validate it, and write the run report.
//
// # Architecture
//
// Steps implement the Step interface and share a Run value that
// accumulates the crawl result, packaged-archive records, the assembled
// tree, and the summary. Steps execute strictly in order; only the package
// step fans out internally, bounding its concurrency with an errgroup.
//
// Design decision: We use an interface rather than function types because:
// 1. It allows steps to carry configuration state
// 2. It provides a Name() method for logging and debugging
// 3. It's more extensible for future features (e.g., retries per step)
package pipeline
