package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeTree creates a small lesson-like directory tree under dir.
func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
	}
}

// readArchive returns the output archive's entries in stored order.
func readArchive(t *testing.T, path string) []*zip.File {
	t.Helper()
	rc, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("failed to open output archive: %v", err)
	}
	t.Cleanup(func() { rc.Close() })
	return rc.File
}

func TestResolve(t *testing.T) {
	t.Parallel()

	t.Run("directory yields DirectoryReader", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeTree(t, dir, map[string]string{"index.html": "<p>hi</p>"})

		reader, err := Resolve(dir)
		if err != nil {
			t.Fatalf("failed to resolve directory: %v", err)
		}
		defer reader.Close()

		if _, ok := reader.(*DirectoryReader); !ok {
			t.Errorf("expected *DirectoryReader, got %T", reader)
		}
	})

	t.Run("zip file yields ZipReader", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "lesson.zip")
		writeZip(t, path, map[string]string{"index.html": "<p>hi</p>"})

		reader, err := Resolve(path)
		if err != nil {
			t.Fatalf("failed to resolve zip: %v", err)
		}
		defer reader.Close()

		if _, ok := reader.(*ZipReader); !ok {
			t.Errorf("expected *ZipReader, got %T", reader)
		}
	})

	t.Run("rejects invalid sources", func(t *testing.T) {
		t.Parallel()

		txt := filepath.Join(t.TempDir(), "notes.txt")
		if err := os.WriteFile(txt, []byte("not an archive"), 0600); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}

		for _, path := range []string{
			filepath.Join(t.TempDir(), "missing"),
			filepath.Join(t.TempDir(), "missing.zip"),
			txt,
		} {
			_, err := Resolve(path)
			var invalid *InvalidSourceError
			if !errors.As(err, &invalid) {
				t.Errorf("Resolve(%q): expected InvalidSourceError, got %v", path, err)
				continue
			}
			if invalid.Path != path {
				t.Errorf("expected error to name %q, got %q", path, invalid.Path)
			}
		}
	})
}

func TestBuildDeterminism(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"index.html":         "<html><body>lesson</body></html>",
		"js/descartes.js":    "var scene = {};",
		"images/escena.png":  "\x89PNG fake bytes",
		"css/estilo.css":     "body { margin: 0 }",
		"unidades/u1/t1.htm": "<p>tema 1</p>",
	}

	// Two independent copies of the same tree must produce identical bytes.
	var outputs [][]byte
	for n := 0; n < 2; n++ {
		dir := t.TempDir()
		writeTree(t, dir, files)

		path, err := BuildFromPath(dir)
		if err != nil {
			t.Fatalf("failed to build: %v", err)
		}
		t.Cleanup(func() { os.Remove(path) })

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read output: %v", err)
		}
		outputs = append(outputs, data)
	}

	if !bytes.Equal(outputs[0], outputs[1]) {
		t.Error("two builds over identical trees produced different bytes")
	}
}

// stubReader feeds Build a fixed name order, simulating differing
// filesystem enumeration orders.
type stubReader struct {
	names   []string
	entries map[string][]byte
}

func (r *stubReader) Names() []string { return r.names }

func (r *stubReader) Read(name string) ([]byte, error) {
	data, ok := r.entries[name]
	if !ok {
		return nil, errors.New("no such entry")
	}
	return data, nil
}

func (r *stubReader) Close() error { return nil }

func TestBuildOrderIndependence(t *testing.T) {
	t.Parallel()

	entries := map[string][]byte{
		"a/index.html": []byte("<p>A</p>"),
		"b.html":       []byte("<p>B</p>"),
		"z.js":         []byte("var z;"),
	}

	var outputs [][]byte
	for _, order := range [][]string{
		{"a/index.html", "b.html", "z.js"},
		{"z.js", "b.html", "a/index.html"},
	} {
		path, err := Build(&stubReader{names: order, entries: entries})
		if err != nil {
			t.Fatalf("failed to build: %v", err)
		}
		t.Cleanup(func() { os.Remove(path) })

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read output: %v", err)
		}
		outputs = append(outputs, data)
	}

	if !bytes.Equal(outputs[0], outputs[1]) {
		t.Error("entry discovery order leaked into the output bytes")
	}
}

// writeZip creates a zip at path with deliberately messy per-entry metadata.
func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create zip: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range files {
		header := &zip.FileHeader{
			Name:           name,
			Method:         zip.Store,
			Modified:       time.Date(2023, time.March, 14, 1, 59, 26, 0, time.UTC),
			Comment:        "made on a real machine",
			CreatorVersion: 3 << 8, // Unix creator system
		}
		w, err := zw.CreateHeader(header)
		if err != nil {
			t.Fatalf("failed to create entry: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
}

func TestBuildInputKindEquivalence(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"index.html":      "<html>lesson</html>",
		"js/descartes.js": "var scene = {};",
	}

	dir := t.TempDir()
	writeTree(t, dir, files)
	fromDir, err := BuildFromPath(dir)
	if err != nil {
		t.Fatalf("failed to build from directory: %v", err)
	}
	t.Cleanup(func() { os.Remove(fromDir) })

	zipPath := filepath.Join(t.TempDir(), "lesson.zip")
	writeZip(t, zipPath, files)
	fromZip, err := BuildFromPath(zipPath)
	if err != nil {
		t.Fatalf("failed to build from zip: %v", err)
	}
	t.Cleanup(func() { os.Remove(fromZip) })

	dirBytes, err := os.ReadFile(fromDir)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	zipBytes, err := os.ReadFile(fromZip)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}

	if !bytes.Equal(dirBytes, zipBytes) {
		t.Error("directory input and equivalent zip input produced different bytes")
	}
}

func TestBuildRoundTrip(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"b.html":       "<p>B</p>",
		"a/index.html": "<p>A</p>",
	}

	dir := t.TempDir()
	writeTree(t, dir, files)

	path, err := BuildFromPath(dir)
	if err != nil {
		t.Fatalf("failed to build: %v", err)
	}
	t.Cleanup(func() { os.Remove(path) })

	members := readArchive(t, path)
	if len(members) != len(files) {
		t.Fatalf("expected %d entries, got %d", len(files), len(members))
	}

	// "/" sorts before "b", so a/index.html must come first.
	if members[0].Name != "a/index.html" || members[1].Name != "b.html" {
		t.Errorf("unexpected entry order: %q, %q", members[0].Name, members[1].Name)
	}

	for _, member := range members {
		want, ok := files[member.Name]
		if !ok {
			t.Errorf("unexpected entry %q in output", member.Name)
			continue
		}
		rc, err := member.Open()
		if err != nil {
			t.Fatalf("failed to open entry: %v", err)
		}
		var got bytes.Buffer
		if _, err := got.ReadFrom(rc); err != nil {
			t.Fatalf("failed to read entry: %v", err)
		}
		rc.Close()
		if got.String() != want {
			t.Errorf("entry %q: expected %q, got %q", member.Name, want, got.String())
		}
	}
}

func TestBuildMetadataNormalization(t *testing.T) {
	t.Parallel()

	// Source zip carries store compression, a comment, a Unix creator byte
	// and a recent timestamp; none of that may survive normalization.
	zipPath := filepath.Join(t.TempDir(), "lesson.zip")
	writeZip(t, zipPath, map[string]string{
		"index.html": "<html>lesson</html>",
		"main.js":    "var x = 1;",
	})

	out, err := BuildFromPath(zipPath)
	if err != nil {
		t.Fatalf("failed to build: %v", err)
	}
	t.Cleanup(func() { os.Remove(out) })

	for _, member := range readArchive(t, out) {
		if !member.Modified.UTC().Equal(FixedModTime) {
			t.Errorf("entry %q: expected timestamp %v, got %v", member.Name, FixedModTime, member.Modified.UTC())
		}
		if member.Method != zip.Deflate {
			t.Errorf("entry %q: expected deflate, got method %d", member.Name, member.Method)
		}
		if member.Comment != "" {
			t.Errorf("entry %q: expected empty comment, got %q", member.Name, member.Comment)
		}
		if creator := member.CreatorVersion >> 8; creator != 0 {
			t.Errorf("entry %q: expected creator system 0, got %d", member.Name, creator)
		}
	}
}

func TestBuildReadFailure(t *testing.T) {
	t.Parallel()

	reader := &stubReader{
		names:   []string{"index.html", "missing.js"},
		entries: map[string][]byte{"index.html": []byte("<p>hi</p>")},
	}

	if _, err := Build(reader); err == nil {
		t.Error("expected build to fail when an entry cannot be read")
	}
}
