package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// InvalidSourceError is returned by Resolve when the given path is neither
// an existing directory nor an existing ".zip" file.
//
// Design decision: We use a named error type rather than a sentinel because
// callers want the offending path in the message, and the pipeline branches
// on this error with errors.As to distinguish "bad input" from I/O failures.
type InvalidSourceError struct {
	// Path is the offending input path.
	Path string

	// Reason describes why the path was rejected.
	Reason string
}

// Error returns the error message.
func (e *InvalidSourceError) Error() string {
	return fmt.Sprintf("invalid archive source %q: %s", e.Path, e.Reason)
}

// EntryReader provides ordered access to the entries of an archive source.
// Entry names use forward-slash separators and are unique within one source.
//
// Design decision: The interface unifies directory trees and existing zip
// archives behind a single read capability so that Build never needs to know
// which kind of input it is packaging. Names returns entries in discovery
// order; Build is responsible for sorting.
type EntryReader interface {
	// Names returns the entry names in discovery order.
	Names() []string

	// Read returns the full byte content of the named entry.
	Read(name string) ([]byte, error)

	// Close releases any resources held by the reader.
	Close() error
}

// Resolve inspects path and returns the appropriate EntryReader.
// Directories yield a DirectoryReader, files ending in ".zip" yield a
// ZipReader, and everything else (including missing paths) yields an
// InvalidSourceError.
func Resolve(path string) (EntryReader, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &InvalidSourceError{Path: path, Reason: "path does not exist"}
	}

	if info.IsDir() {
		return NewDirectoryReader(path)
	}

	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return NewZipReader(path)
	}

	return nil, &InvalidSourceError{Path: path, Reason: "not a directory or .zip file"}
}

// DirectoryReader reads entries from a directory tree.
// Entry names are paths relative to the root with separators normalized
// to "/". Only regular files become entries; directories themselves and
// irregular files (symlinks, devices) are skipped.
type DirectoryReader struct {
	// root is the directory all entry names are relative to.
	root string

	// names holds the discovered entry names in walk order.
	names []string
}

// NewDirectoryReader enumerates all regular files beneath root.
// File contents are read lazily, one entry at a time, when Read is called.
func NewDirectoryReader(root string) (*DirectoryReader, error) {
	r := &DirectoryReader{root: root}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		r.names = append(r.names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate %s: %w", root, err)
	}

	return r, nil
}

// Names returns the entry names in walk order.
func (r *DirectoryReader) Names() []string {
	return r.names
}

// Read returns the content of the file at name, relative to the root.
func (r *DirectoryReader) Read(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(r.root, filepath.FromSlash(name)))
	if err != nil {
		return nil, fmt.Errorf("failed to read entry %s: %w", name, err)
	}
	return data, nil
}

// Close is a no-op; DirectoryReader holds no open handles between reads.
func (r *DirectoryReader) Close() error {
	return nil
}

// ZipReader reads entries from an existing zip archive.
// Member names are used verbatim; nothing is renamed or re-rooted.
type ZipReader struct {
	// rc is the open archive handle, closed by Close.
	rc *zip.ReadCloser

	// members maps entry names to archive members for random access.
	members map[string]*zip.File

	// names holds the member names in archive order.
	names []string
}

// NewZipReader opens the archive at path.
// The caller owns the returned reader and must Close it.
func NewZipReader(path string) (*ZipReader, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}

	r := &ZipReader{
		rc:      rc,
		members: make(map[string]*zip.File, len(rc.File)),
	}
	for _, f := range rc.File {
		r.names = append(r.names, f.Name)
		r.members[f.Name] = f
	}

	return r, nil
}

// Names returns the member names in archive order.
func (r *ZipReader) Names() []string {
	return r.names
}

// Read extracts the content of the named member.
func (r *ZipReader) Read(name string) ([]byte, error) {
	member, ok := r.members[name]
	if !ok {
		return nil, fmt.Errorf("no such entry: %s", name)
	}

	f, err := member.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open entry %s: %w", name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read entry %s: %w", name, err)
	}
	return data, nil
}

// Close closes the underlying archive handle.
func (r *ZipReader) Close() error {
	return r.rc.Close()
}
