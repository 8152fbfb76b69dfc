package pipeline

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/archive"
	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/database"
	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/fetch"
	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/model"
)

// Packager turns one crawled lesson into a normalized archive on disk.
//
// The flow per lesson: download the site's zip, extract it to a scratch
// directory, rename the lesson's entry document to index.html, rebuild the
// content as a normalized archive, and move the result into the output
// directory under the lesson's source ID. Because the rebuild is
// deterministic, the recorded SHA-256 changes only when the lesson's
// content actually changes.
type Packager struct {
	// client downloads the lesson zips.
	client *fetch.Client

	// cache records packaged lessons across runs. Nil disables reuse.
	cache *database.CacheDB

	// outputDir is where finished archives live, one per source ID.
	outputDir string

	// logger for structured logging.
	logger *slog.Logger
}

// PackagerOption configures a Packager.
type PackagerOption func(*Packager)

// WithPackagerCache enables cross-run reuse of packaged archives.
func WithPackagerCache(cache *database.CacheDB) PackagerOption {
	return func(p *Packager) {
		p.cache = cache
	}
}

// WithPackagerLogger sets a custom logger.
func WithPackagerLogger(logger *slog.Logger) PackagerOption {
	return func(p *Packager) {
		p.logger = logger
	}
}

// NewPackager creates a Packager writing finished archives to outputDir.
func NewPackager(client *fetch.Client, outputDir string, opts ...PackagerOption) *Packager {
	p := &Packager{
		client:    client,
		outputDir: outputDir,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Package produces the normalized archive for one lesson and returns its
// record. A cached record is reused when the lesson's zip URL is unchanged
// and the archive still exists on disk.
func (p *Packager) Package(ctx context.Context, lesson model.Lesson) (*database.PackageRecord, error) {
	if p.cache != nil {
		rec, err := p.cache.GetPackage(ctx, lesson.SourceID)
		if err != nil {
			return nil, fmt.Errorf("package lookup failed: %w", err)
		}
		if rec != nil && rec.ZipURL == lesson.ZipURL {
			if _, err := os.Stat(rec.ZipPath); err == nil {
				p.logger.Debug("reusing packaged archive",
					"source_id", lesson.SourceID,
					"path", rec.ZipPath,
				)
				return rec, nil
			}
		}
	}

	download, err := p.client.Download(ctx, lesson.ZipURL)
	if err != nil {
		return nil, err
	}
	defer os.Remove(download)

	workDir, err := os.MkdirTemp("", "descartes-extract-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	if err := extractZip(download, workDir); err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", lesson.ZipURL, err)
	}

	root, err := contentRoot(workDir)
	if err != nil {
		return nil, err
	}

	if err := renameEntryDocument(root, lesson.IndexName); err != nil {
		return nil, err
	}

	built, err := archive.BuildFromPath(root)
	if err != nil {
		return nil, fmt.Errorf("failed to build archive for %s: %w", lesson.SourceID, err)
	}

	sum, err := fileSHA256(built)
	if err != nil {
		_ = os.Remove(built)
		return nil, err
	}

	if err := os.MkdirAll(p.outputDir, 0750); err != nil {
		_ = os.Remove(built)
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	final := filepath.Join(p.outputDir, lesson.SourceID+".zip")
	if err := moveFile(built, final); err != nil {
		return nil, err
	}

	rec := &database.PackageRecord{
		SourceID:  lesson.SourceID,
		ZipURL:    lesson.ZipURL,
		ZipSHA256: sum,
		ZipPath:   final,
	}

	if p.cache != nil {
		if err := p.cache.PutPackage(ctx, rec); err != nil {
			// A failed record write only costs a re-package next run.
			p.logger.Warn("failed to record package",
				"source_id", lesson.SourceID,
				"error", err,
			)
		}
	}

	p.logger.Info("packaged lesson",
		"source_id", lesson.SourceID,
		"sha256", sum,
		"path", final,
	)
	return rec, nil
}

// extractZip extracts src into destDir. Entry names escaping destDir are
// rejected.
func extractZip(src, destDir string) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, f := range zr.File {
		target, err := safeJoin(destDir, f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0750); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
			return err
		}

		if err := extractFile(f, target); err != nil {
			return err
		}
	}

	return nil
}

// extractFile writes one zip member to target.
func extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0640)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// safeJoin joins name under dir and rejects names that escape it.
func safeJoin(dir, name string) (string, error) {
	target := filepath.Join(dir, filepath.FromSlash(name))
	if !strings.HasPrefix(target, filepath.Clean(dir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes extraction directory", name)
	}
	return target, nil
}

// contentRoot returns the directory holding the lesson content. The site's
// zips usually wrap everything in a single top-level directory; when that
// is the case the wrapper becomes the root so archive entry names don't
// carry it.
func contentRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to inspect extraction directory: %w", err)
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dir, entries[0].Name()), nil
	}
	return dir, nil
}

// renameEntryDocument renames the lesson's entry HTML file to index.html
// so the packaged app opens without knowing the original file name. A
// missing entry file is not an error; some lessons already ship an
// index.html and link it under another name.
func renameEntryDocument(root, indexName string) error {
	if indexName == "" || indexName == "index.html" {
		return nil
	}

	src := filepath.Join(root, indexName)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to check entry document: %w", err)
	}

	if err := os.Rename(src, filepath.Join(root, "index.html")); err != nil {
		return fmt.Errorf("failed to rename entry document %s: %w", indexName, err)
	}
	return nil
}

// fileSHA256 returns the hex SHA-256 of the file at path.
func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for hashing: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// moveFile moves src to dst, falling back to copy-and-remove when rename
// crosses filesystems (the temp dir and the output dir often do).
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to move %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("failed to copy to %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("failed to close %s: %w", dst, err)
	}

	return os.Remove(src)
}
