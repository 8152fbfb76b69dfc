// Package database provides SQLite-based storage for the chef.
//
// This package implements the CacheDB, which stores:
//   - Cached HTTP responses, so re-runs skip pages already fetched
//   - Packaged-lesson records keyed by the archive's content hash
//
// The site's content changes rarely, so responses are cached forever (the
// original pipeline used a cache-forever heuristic for the same reason);
// clearing the cache directory is the invalidation mechanism. The package
// table lets a re-run recognize an unchanged lesson by the deterministic
// archive hash and skip re-packaging entirely.
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of a
// directory of cache files because:
// 1. No external dependencies - the cache is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. Atomic writes without inventing a file naming/locking scheme
// 4. WAL mode provides good concurrent read performance
package database
