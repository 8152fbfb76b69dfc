package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/config"
	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/crawler"
	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/database"
	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/fetch"
	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/model"
	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/report"
)

func testChannelMeta() config.Channel {
	return config.Channel{
		Title:           "Proyecto Descartes",
		Description:     "Recursos educativos",
		Language:        "es",
		CopyrightHolder: "Proyecto Descartes",
	}
}

// testCrawlResult builds a crawl result with one subject, one band and two
// lessons, plus a placeholder subject.
func testCrawlResult() *crawler.Result {
	return &crawler.Result{
		Subjects: []crawler.SubjectResult{
			{
				Subject: model.Subject{Title: "Matemáticas", URL: "http://example.org/descartescms/matematicas"},
				Bands: []crawler.BandResult{
					{
						Band: model.AgeBand{Label: "13-14 años", Tags: []string{"13 a 14 años"}},
						Lessons: []model.Lesson{
							{SourceID: "ecuaciones-1", Title: "Ecuaciones", ZipURL: "http://example.org/e.zip", Author: "Juan Pérez"},
							{SourceID: "fracciones-2", Title: "Fracciones", ZipURL: "http://example.org/f.zip"},
						},
					},
				},
			},
			{Subject: model.Subject{Title: "Proyectos"}},
		},
		LessonCount:  2,
		SkippedNoZip: 1,
	}
}

// testPackages returns package records for the given source IDs.
func testPackages(ids ...string) map[string]*database.PackageRecord {
	packages := make(map[string]*database.PackageRecord, len(ids))
	for _, id := range ids {
		packages[id] = &database.PackageRecord{
			SourceID:  id,
			ZipSHA256: "deadbeef",
			ZipPath:   "/tmp/" + id + ".zip",
		}
	}
	return packages
}

func TestAssembleStep(t *testing.T) {
	t.Parallel()

	t.Run("builds the channel tree", func(t *testing.T) {
		t.Parallel()

		run := NewRun()
		run.Crawl = testCrawlResult()
		run.Packages = testPackages("ecuaciones-1", "fracciones-2")

		step := NewAssembleStep(testChannelMeta())
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("assemble failed: %v", err)
		}

		root := run.Channel
		if root == nil || root.Kind != model.KindChannel {
			t.Fatalf("expected channel root, got %+v", root)
		}
		// Subject topic plus placeholder topic.
		if len(root.Children) != 2 {
			t.Fatalf("expected 2 subjects, got %d", len(root.Children))
		}

		math := root.Children[0]
		if math.Title != "Matemáticas" || len(math.Children) != 1 {
			t.Fatalf("unexpected subject topic: %+v", math)
		}

		band := math.Children[0]
		if band.Title != "13-14 años" || len(band.Children) != 2 {
			t.Fatalf("unexpected band topic: %+v", band)
		}

		lesson := band.Children[0]
		if lesson.Kind != model.KindHTML5App {
			t.Errorf("expected lesson node, got %q", lesson.Kind)
		}
		if lesson.Author != "Juan Pérez" {
			t.Errorf("unexpected author: %q", lesson.Author)
		}
		if lesson.License == nil || lesson.ZipPath == "" || lesson.ZipSHA256 == "" {
			t.Errorf("lesson node missing packaging metadata: %+v", lesson)
		}
		if lesson.Language != "es" {
			t.Errorf("unexpected lesson language: %q", lesson.Language)
		}

		placeholder := root.Children[1]
		if placeholder.Title != "Proyectos" || len(placeholder.Children) != 0 {
			t.Errorf("unexpected placeholder topic: %+v", placeholder)
		}

		if root.SourceDomain != config.ChannelDomain {
			t.Errorf("unexpected source domain: %q", root.SourceDomain)
		}
	})

	t.Run("nests second-level subjects", func(t *testing.T) {
		t.Parallel()

		band := crawler.BandResult{
			Band:    model.AgeBand{Label: "13-14 años"},
			Lessons: []model.Lesson{{SourceID: "angulos-3", Title: "Ángulos", ZipURL: "http://example.org/a.zip"}},
		}
		run := NewRun()
		run.Crawl = &crawler.Result{
			Subjects: []crawler.SubjectResult{
				{
					Subject: model.Subject{Title: "Matemáticas", URL: "http://example.org/descartescms/matematicas"},
					Bands: []crawler.BandResult{{
						Band:    model.AgeBand{Label: "13-14 años"},
						Lessons: []model.Lesson{{SourceID: "ecuaciones-1", Title: "Ecuaciones", ZipURL: "http://example.org/e.zip"}},
					}},
				},
				{
					Subject: model.Subject{Title: "Geometría", URL: "http://example.org/descartescms/geometria", Nested: true},
					Bands:   []crawler.BandResult{band},
				},
				{
					Subject: model.Subject{Title: "Sin contenido", URL: "http://example.org/descartescms/sin-contenido", Nested: true},
				},
			},
		}
		run.Packages = testPackages("ecuaciones-1", "angulos-3")

		if err := NewAssembleStep(testChannelMeta()).Do(context.Background(), run); err != nil {
			t.Fatalf("assemble failed: %v", err)
		}

		// Geometría belongs under Matemáticas, not beside it; the empty
		// nested entry disappears.
		if len(run.Channel.Children) != 1 {
			t.Fatalf("expected 1 top-level subject, got %d", len(run.Channel.Children))
		}

		math := run.Channel.Children[0]
		if math.Title != "Matemáticas" || len(math.Children) != 2 {
			t.Fatalf("unexpected top-level subject: %+v", math)
		}

		geo := math.Children[1]
		if geo.Title != "Geometría" || geo.Kind != model.KindTopic {
			t.Fatalf("unexpected nested subject: %+v", geo)
		}
		if got := geo.CountByKind(model.KindHTML5App); got != 1 {
			t.Errorf("expected 1 lesson under nested subject, got %d", got)
		}
	})

	t.Run("drops lessons without packages", func(t *testing.T) {
		t.Parallel()

		run := NewRun()
		run.Crawl = testCrawlResult()
		run.Packages = testPackages("ecuaciones-1")

		if err := NewAssembleStep(testChannelMeta()).Do(context.Background(), run); err != nil {
			t.Fatalf("assemble failed: %v", err)
		}
		if got := run.Channel.CountByKind(model.KindHTML5App); got != 1 {
			t.Errorf("expected 1 lesson in tree, got %d", got)
		}
	})

	t.Run("drops empty crawled subjects", func(t *testing.T) {
		t.Parallel()

		run := NewRun()
		run.Crawl = testCrawlResult()
		// No packages at all: the crawled subject empties out, the
		// placeholder stays.
		if err := NewAssembleStep(testChannelMeta()).Do(context.Background(), run); err != nil {
			t.Fatalf("assemble failed: %v", err)
		}
		if len(run.Channel.Children) != 1 {
			t.Fatalf("expected only the placeholder subject, got %d", len(run.Channel.Children))
		}
		if run.Channel.Children[0].Title != "Proyectos" {
			t.Errorf("unexpected surviving subject: %q", run.Channel.Children[0].Title)
		}
	})

	t.Run("requires a crawl result", func(t *testing.T) {
		t.Parallel()

		err := NewAssembleStep(testChannelMeta()).Do(context.Background(), NewRun())
		if !errors.Is(err, ErrNoCrawlResult) {
			t.Errorf("expected ErrNoCrawlResult, got %v", err)
		}
	})
}

func TestValidateStep(t *testing.T) {
	t.Parallel()

	t.Run("accepts a valid tree", func(t *testing.T) {
		t.Parallel()

		run := NewRun()
		run.Crawl = testCrawlResult()
		run.Packages = testPackages("ecuaciones-1", "fracciones-2")
		if err := NewAssembleStep(testChannelMeta()).Do(context.Background(), run); err != nil {
			t.Fatalf("assemble failed: %v", err)
		}

		if err := NewValidateStep().Do(context.Background(), run); err != nil {
			t.Errorf("validation failed on valid tree: %v", err)
		}
	})

	t.Run("rejects a broken tree", func(t *testing.T) {
		t.Parallel()

		run := NewRun()
		run.Channel = model.NewChannel("c", "Canal", "", "not a language")
		run.Channel.AddChild(model.NewTopic("t", "Tema"))

		if err := NewValidateStep().Do(context.Background(), run); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("requires an assembled channel", func(t *testing.T) {
		t.Parallel()

		err := NewValidateStep().Do(context.Background(), NewRun())
		if !errors.Is(err, ErrNoChannel) {
			t.Errorf("expected ErrNoChannel, got %v", err)
		}
	})
}

func TestReportStep(t *testing.T) {
	t.Parallel()

	run := NewRun()
	run.StartedAt = time.Now().Add(-time.Minute)
	run.Crawl = testCrawlResult()
	run.Packages = testPackages("ecuaciones-1", "fracciones-2")
	run.Failures = []model.LessonFailure{
		{SourceID: "roto-3", Title: "Roto", Reason: "download failed"},
	}
	if err := NewAssembleStep(testChannelMeta()).Do(context.Background(), run); err != nil {
		t.Fatalf("assemble failed: %v", err)
	}

	var buf bytes.Buffer
	step := NewReportStep(report.NewJSONWriter(&buf))
	if err := step.Do(context.Background(), run); err != nil {
		t.Fatalf("report failed: %v", err)
	}

	var summary model.RunSummary
	if err := json.Unmarshal(buf.Bytes(), &summary); err != nil {
		t.Fatalf("report output is not valid JSON: %v", err)
	}
	if summary.ChannelTitle != "Proyecto Descartes" {
		t.Errorf("unexpected channel title: %q", summary.ChannelTitle)
	}
	if summary.LessonCount != 2 {
		t.Errorf("unexpected lesson count: %d", summary.LessonCount)
	}
	if summary.SkippedNoZip != 1 {
		t.Errorf("unexpected skipped count: %d", summary.SkippedNoZip)
	}
	if len(summary.Failures) != 1 {
		t.Errorf("expected 1 failure, got %d", len(summary.Failures))
	}
	if summary.Elapsed <= 0 {
		t.Error("expected positive elapsed time")
	}
	if run.Summary == nil {
		t.Error("expected summary stored on the run")
	}
}

func TestPackageStep(t *testing.T) {
	t.Parallel()

	good := lessonZip(t, map[string]string{"index.html": "hola"})
	srv := newZipServer(t, good, nil)

	run := NewRun()
	run.Crawl = &crawler.Result{
		Subjects: []crawler.SubjectResult{
			{
				Subject: model.Subject{Title: "Matemáticas", URL: srv.URL + "/matematicas"},
				Bands: []crawler.BandResult{
					{
						Band: model.AgeBand{Label: "13-14 años"},
						Lessons: []model.Lesson{
							{SourceID: "bueno-1", Title: "Bueno", ZipURL: srv.URL + "/bueno-1.zip"},
							{SourceID: "roto-2", Title: "Roto", ZipURL: "http://127.0.0.1:1/roto-2.zip"},
						},
					},
				},
			},
		},
	}

	packager := NewPackager(fetch.New(5*time.Second), t.TempDir())
	step := NewPackageStep(packager, WithPackageConcurrency(2))

	if err := step.Do(context.Background(), run); err != nil {
		t.Fatalf("package step failed: %v", err)
	}

	if len(run.Packages) != 1 {
		t.Fatalf("expected 1 packaged lesson, got %d", len(run.Packages))
	}
	if _, ok := run.Packages["bueno-1"]; !ok {
		t.Error("expected bueno-1 to be packaged")
	}
	if len(run.Failures) != 1 || run.Failures[0].SourceID != "roto-2" {
		t.Errorf("expected roto-2 failure, got %+v", run.Failures)
	}
}

func TestPackageStepRequiresCrawl(t *testing.T) {
	t.Parallel()

	packager := NewPackager(fetch.New(time.Second), t.TempDir())
	err := NewPackageStep(packager).Do(context.Background(), NewRun())
	if !errors.Is(err, ErrNoCrawlResult) {
		t.Errorf("expected ErrNoCrawlResult, got %v", err)
	}
}
