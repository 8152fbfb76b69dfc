package archive

import (
	"archive/zip"
	"fmt"
	"os"
	"sort"
	"time"
)

// FixedModTime is the modification timestamp stamped on every entry.
// The value is an arbitrary constant; what matters is that it never changes,
// so re-running the chef on unchanged content yields identical bytes.
var FixedModTime = time.Date(2015, time.October, 21, 7, 28, 0, 0, time.UTC)

// tempPattern names the temp files produced by Build.
// The "*" is replaced with a random string by os.CreateTemp, so concurrent
// builds never collide on a destination path.
const tempPattern = "descartes-chef-*.zip"

// Build writes every entry of reader into a fresh zip archive with
// normalized metadata and returns the path to the finished file.
//
// Entries are written in bytewise lexicographic name order, each with the
// fixed modification timestamp, deflate compression, an empty comment, and
// a zeroed creator-system byte. Given unchanged entry names and contents,
// the output byte stream is identical across runs, operating systems, and
// filesystem iteration orders.
//
// The caller owns the returned file and is responsible for removing it.
// On error no usable output exists; an incomplete temp file may remain and
// must not be consumed (temp-directory garbage collection handles it).
//
// Design decision: Build never retries and has no partial-success mode. A
// failed read of any single entry fails the whole build because a lesson
// package missing one asset is broken, and the pipeline retries whole
// lessons, not entries.
func Build(reader EntryReader) (string, error) {
	names := append([]string(nil), reader.Names()...)
	sort.Strings(names)

	out, err := os.CreateTemp("", tempPattern)
	if err != nil {
		return "", fmt.Errorf("failed to create temp archive: %w", err)
	}

	zw := zip.NewWriter(out)
	for _, name := range names {
		data, err := reader.Read(name)
		if err != nil {
			_ = zw.Close()
			_ = out.Close()
			return "", fmt.Errorf("failed to read entry %s: %w", name, err)
		}

		// CreatorVersion's high byte is the creator-system field; leaving it
		// zero stamps "MS-DOS compatible" instead of the running platform.
		header := &zip.FileHeader{
			Name:           name,
			Method:         zip.Deflate,
			Modified:       FixedModTime,
			CreatorVersion: 0,
			Comment:        "",
		}

		w, err := zw.CreateHeader(header)
		if err != nil {
			_ = zw.Close()
			_ = out.Close()
			return "", fmt.Errorf("failed to create entry %s: %w", name, err)
		}
		if _, err := w.Write(data); err != nil {
			_ = zw.Close()
			_ = out.Close()
			return "", fmt.Errorf("failed to write entry %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to close archive: %w", err)
	}

	return out.Name(), nil
}

// BuildFromPath resolves path into an EntryReader, builds the normalized
// archive, and releases the reader. It is the convenience entry point used
// by the packaging pipeline.
func BuildFromPath(path string) (string, error) {
	reader, err := Resolve(path)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	return Build(reader)
}
