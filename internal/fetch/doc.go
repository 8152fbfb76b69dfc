// Package fetch provides the HTTP client used for all site access.
//
// The client layers three behaviors over net/http that every caller needs
// and none should reimplement:
//
//   - a politeness delay between uncached requests, shared across
//     goroutines, so concurrent packaging cannot hammer the site
//   - a response cache backed by the SQLite CacheDB; the site's content
//     changes rarely, so cached responses are served forever and clearing
//     the cache directory is the invalidation mechanism
//   - a body-size limit so a misbehaving URL cannot exhaust memory
//
// Page fetches go through Get and are cached. Lesson zip downloads go
// through Download, which streams to a temp file and is deliberately not
// cached in SQLite; the packaged-lesson records in CacheDB make re-downloads
// unnecessary on re-runs instead.
package fetch
