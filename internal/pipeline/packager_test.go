package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/database"
	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/fetch"
	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/model"
)

// lessonZip builds an in-memory zip with the given entries.
func lessonZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("failed to create entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("failed to write entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to finalize zip: %v", err)
	}
	return buf.Bytes()
}

// archiveNames lists the entry names of the zip at path.
func archiveNames(t *testing.T, path string) []string {
	t.Helper()

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("failed to open archive %s: %v", path, err)
	}
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func newZipServer(t *testing.T, body []byte, hits *atomic.Int32) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPackagerPackage(t *testing.T) {
	t.Parallel()

	body := lessonZip(t, map[string]string{
		"leccion/principal.html": "<html>hola</html>",
		"leccion/js/app.js":      "var x = 1;",
	})
	srv := newZipServer(t, body, nil)

	p := NewPackager(fetch.New(5*time.Second), t.TempDir())
	lesson := model.Lesson{
		SourceID:  "leccion-1",
		Title:     "Lección",
		ZipURL:    srv.URL + "/leccion-1.zip",
		IndexName: "principal.html",
	}

	rec, err := p.Package(context.Background(), lesson)
	if err != nil {
		t.Fatalf("failed to package lesson: %v", err)
	}

	if rec.SourceID != "leccion-1" {
		t.Errorf("unexpected source ID: %q", rec.SourceID)
	}
	if len(rec.ZipSHA256) != 64 {
		t.Errorf("expected hex SHA-256, got %q", rec.ZipSHA256)
	}
	if _, err := os.Stat(rec.ZipPath); err != nil {
		t.Fatalf("packaged archive missing: %v", err)
	}

	// The wrapper directory is stripped and the entry document renamed.
	names := archiveNames(t, rec.ZipPath)
	if len(names) != 2 {
		t.Fatalf("expected 2 entries, got %v", names)
	}
	if names[0] != "index.html" || names[1] != "js/app.js" {
		t.Errorf("unexpected entry names: %v", names)
	}
}

func TestPackagerDeterminism(t *testing.T) {
	t.Parallel()

	body := lessonZip(t, map[string]string{
		"a.html": "uno",
		"b.html": "dos",
	})
	srv := newZipServer(t, body, nil)

	client := fetch.New(5 * time.Second)
	lesson := model.Lesson{SourceID: "l", ZipURL: srv.URL + "/l.zip"}

	first, err := NewPackager(client, t.TempDir()).Package(context.Background(), lesson)
	if err != nil {
		t.Fatalf("first package failed: %v", err)
	}
	second, err := NewPackager(client, t.TempDir()).Package(context.Background(), lesson)
	if err != nil {
		t.Fatalf("second package failed: %v", err)
	}

	if first.ZipSHA256 != second.ZipSHA256 {
		t.Errorf("expected identical hashes, got %s and %s", first.ZipSHA256, second.ZipSHA256)
	}
}

func TestPackagerCacheReuse(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	body := lessonZip(t, map[string]string{"index.html": "hola"})
	srv := newZipServer(t, body, &hits)

	cache, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })

	p := NewPackager(fetch.New(5*time.Second), t.TempDir(), WithPackagerCache(cache))
	lesson := model.Lesson{SourceID: "cached-1", ZipURL: srv.URL + "/cached-1.zip"}

	first, err := p.Package(context.Background(), lesson)
	if err != nil {
		t.Fatalf("first package failed: %v", err)
	}
	second, err := p.Package(context.Background(), lesson)
	if err != nil {
		t.Fatalf("second package failed: %v", err)
	}

	if hits.Load() != 1 {
		t.Errorf("expected 1 download, got %d", hits.Load())
	}
	if first.ZipSHA256 != second.ZipSHA256 || first.ZipPath != second.ZipPath {
		t.Errorf("expected reused record, got %+v and %+v", first, second)
	}
}

func TestPackagerDownloadFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	p := NewPackager(fetch.New(5*time.Second), t.TempDir())
	lesson := model.Lesson{SourceID: "missing", ZipURL: srv.URL + "/missing.zip"}

	if _, err := p.Package(context.Background(), lesson); err == nil {
		t.Error("expected error for missing zip")
	}
}

func TestPackagerRejectsEscapingEntries(t *testing.T) {
	t.Parallel()

	body := lessonZip(t, map[string]string{"../escape.html": "nope"})
	srv := newZipServer(t, body, nil)

	p := NewPackager(fetch.New(5*time.Second), t.TempDir())
	lesson := model.Lesson{SourceID: "evil", ZipURL: srv.URL + "/evil.zip"}

	if _, err := p.Package(context.Background(), lesson); err == nil {
		t.Error("expected error for entry escaping the extraction directory")
	}
}
