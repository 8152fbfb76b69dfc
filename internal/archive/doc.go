// Package archive builds deterministic zip archives from lesson content.
//
// # Why deterministic archives
//
// The chef is re-run regularly against the same site. Most lesson packages
// do not change between runs, and downstream import dedups content by the
// hash of the uploaded artifact. A zip produced by a naive writer embeds the
// current wall-clock time and platform metadata in every entry, so two runs
// over identical content produce different bytes and defeat the dedup.
//
// This package guarantees that the output archive is a pure function of the
// entry names and their byte contents:
//
//   - entries are sorted bytewise lexicographically, removing any dependence
//     on filesystem iteration order
//   - every entry carries the same fixed modification timestamp
//   - every entry is deflate-compressed with an empty comment and a zeroed
//     creator-system byte, regardless of what the running platform would stamp
//
// # Components
//
//   - EntryReader: read capability over an archive source; implemented by
//     DirectoryReader (a directory tree) and ZipReader (an existing zip)
//   - Resolve: maps a filesystem path to the right EntryReader
//   - Build: writes the normalized archive to a fresh temp file
//
// # Usage
//
//	reader, err := archive.Resolve(extractedDir)
//	if err != nil {
//		return err
//	}
//	defer reader.Close()
//	path, err := archive.Build(reader)
package archive
