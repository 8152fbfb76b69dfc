// Package crawler walks the site's taxonomy and collects lesson references.
//
// # Architecture
//
// The crawler is built around the Spider type, which coordinates the whole
// traversal: index page → subjects → age bands → paginated item lists →
// lesson pages. It owns no HTTP or HTML logic itself; fetching goes through
// the fetch package (which enforces politeness and caching) and parsing
// through the scrape package.
//
// The traversal shape is fixed by the site rather than configurable: the
// item filter serves 20 items per page and counts are fetched with a
// separate format=count request before paging begins.
//
// Design decision: The Spider returns a fully materialized Result rather
// than streaming lessons through a channel. A full crawl yields a few
// thousand lesson references at most, and the pipeline wants the complete
// taxonomy before packaging starts so the tree can be assembled even when
// individual lessons fail.
package crawler
