package crawler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/config"
	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/fetch"
	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/model"
	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/scrape"
)

// Spider crawls the site's taxonomy and collects lesson references.
type Spider struct {
	// client performs all HTTP access.
	client *fetch.Client

	// parser extracts structured data from pages.
	parser *scrape.Parser

	// baseURL is the site root.
	baseURL string

	// cmsPath is the CMS path prefix of the taxonomy.
	cmsPath string

	// blacklist lists index entries that are not subjects.
	blacklist []string

	// ageBands is the age-band taxonomy in display order.
	ageBands []model.AgeBand

	// maxLessonsPerBand caps lessons collected per band; 0 means no cap.
	maxLessonsPerBand int

	// logger for structured logging.
	logger *slog.Logger

	// seen tracks lesson source IDs already collected, because a lesson
	// tagged with several ages appears in several bands and source IDs
	// must stay unique in the assembled tree.
	seen map[string]bool
}

// Option configures a Spider.
type Option func(*Spider)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Spider) {
		s.logger = logger
	}
}

// WithSubjectBlacklist sets the index entries to skip.
func WithSubjectBlacklist(blacklist []string) Option {
	return func(s *Spider) {
		s.blacklist = blacklist
	}
}

// WithAgeBands sets the age-band taxonomy.
func WithAgeBands(bands []model.AgeBand) Option {
	return func(s *Spider) {
		s.ageBands = bands
	}
}

// WithMaxLessonsPerBand caps the lessons collected per age band.
// Useful for dry runs; 0 (the default) means no cap.
func WithMaxLessonsPerBand(n int) Option {
	return func(s *Spider) {
		s.maxLessonsPerBand = n
	}
}

// NewSpider creates a Spider crawling the site at baseURL.
//
// Design decision: We require an external fetch.Client because politeness
// and caching policy belong to the caller; the same client is shared with
// the packaging pipeline so the whole run respects one politeness policy.
func NewSpider(client *fetch.Client, baseURL, cmsPath string, opts ...Option) (*Spider, error) {
	parser, err := scrape.NewParser(baseURL, cmsPath)
	if err != nil {
		return nil, err
	}

	s := &Spider{
		client:  client,
		parser:  parser,
		baseURL: baseURL,
		cmsPath: cmsPath,
		logger:  slog.Default(),
		seen:    make(map[string]bool),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Result is the outcome of a full taxonomy crawl.
type Result struct {
	// Subjects holds the crawled subjects in menu order.
	Subjects []SubjectResult

	// LessonCount is the total number of lessons collected.
	LessonCount int

	// SkippedNoZip counts lesson pages that linked no zip package.
	SkippedNoZip int

	// SkippedDuplicate counts lessons dropped because their source ID
	// was already collected under another band.
	SkippedDuplicate int
}

// SubjectResult is one subject with its age-band contents.
type SubjectResult struct {
	// Subject is the taxonomy record from the index page.
	Subject model.Subject

	// Bands holds the subject's non-empty age bands in display order.
	Bands []BandResult
}

// BandResult is one age band's lessons within a subject.
type BandResult struct {
	// Band is the age-band definition.
	Band model.AgeBand

	// Lessons holds the collected lesson references in site order.
	Lessons []model.Lesson
}

// Crawl walks the whole taxonomy and returns the collected lessons.
// Subjects whose pages lack a lesson filter are dropped; placeholder menu
// entries are kept as bare subjects so the tree mirrors the site's menu.
func (s *Spider) Crawl(ctx context.Context) (*Result, error) {
	indexURL := s.baseURL + s.cmsPath
	resp, err := s.client.Get(ctx, indexURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch index page: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("index page returned status %d", resp.StatusCode)
	}

	subjects, err := s.parser.Subjects(bytes.NewReader(resp.Body), s.blacklist)
	if err != nil {
		return nil, err
	}
	s.logger.Info("discovered subjects", "count", len(subjects))

	result := &Result{}
	for _, subject := range subjects {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		sr, ok, err := s.crawlSubject(ctx, subject, result)
		if err != nil {
			return result, err
		}
		if ok {
			result.Subjects = append(result.Subjects, sr)
		}
	}

	return result, nil
}

// crawlSubject crawls one subject's age bands. The second return value is
// false when the subject should be dropped from the tree.
func (s *Spider) crawlSubject(ctx context.Context, subject model.Subject, result *Result) (SubjectResult, bool, error) {
	s.logger.Info("processing subject", "subject", subject.Title)

	sr := SubjectResult{Subject: subject}

	// Placeholder entries have no page of their own; they stay as bare
	// topics.
	if subject.URL == "" {
		return sr, true, nil
	}

	resp, err := s.client.Get(ctx, subject.URL)
	if err != nil {
		return sr, false, fmt.Errorf("failed to fetch subject %s: %w", subject.Title, err)
	}
	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("subject page unavailable", "subject", subject.Title, "status", resp.StatusCode)
		return sr, false, nil
	}

	category, ok, err := s.parser.SelectedCategory(bytes.NewReader(resp.Body))
	if err != nil {
		return sr, false, err
	}
	if !ok {
		// No filter form means no lesson list behind this subject.
		s.logger.Debug("subject has no lesson filter", "subject", subject.Title)
		return sr, false, nil
	}

	for _, band := range s.ageBands {
		br, err := s.crawlBand(ctx, subject, category, band, result)
		if err != nil {
			return sr, false, err
		}
		if len(br.Lessons) > 0 {
			sr.Bands = append(sr.Bands, br)
		}
	}

	return sr, true, nil
}

// crawlBand pages through one age band's item list within a subject.
func (s *Spider) crawlBand(ctx context.Context, subject model.Subject, category string, band model.AgeBand, result *Result) (BandResult, error) {
	br := BandResult{Band: band}
	filterURL := subject.URL + "/itemlist/filter"

	countResp, err := s.client.Get(ctx, filterURL+"?"+s.filterParams(category, band, true, 0).Encode())
	if err != nil {
		return br, fmt.Errorf("failed to fetch count for %s / %s: %w", subject.Title, band.Label, err)
	}
	if countResp.StatusCode != http.StatusOK {
		s.logger.Warn("count request failed", "subject", subject.Title, "band", band.Label, "status", countResp.StatusCode)
		return br, nil
	}

	count, err := scrape.ParseCount(countResp.Body)
	if err != nil {
		s.logger.Warn("unparseable count response", "subject", subject.Title, "band", band.Label, "error", err)
		return br, nil
	}
	if count == 0 {
		return br, nil
	}

	s.logger.Info("processing topic", "subject", subject.Title, "band", band.Label, "items", count)

	totalPages := (count + config.PageSize - 1) / config.PageSize
	for page := 0; page < totalPages; page++ {
		if s.capReached(&br) {
			break
		}

		listURL := filterURL + "?" + s.filterParams(category, band, false, page*config.PageSize).Encode()
		resp, err := s.client.Get(ctx, listURL)
		if err != nil {
			return br, fmt.Errorf("failed to fetch item list for %s / %s: %w", subject.Title, band.Label, err)
		}
		if resp.StatusCode != http.StatusOK {
			s.logger.Warn("item list unavailable", "url", listURL, "status", resp.StatusCode)
			continue
		}

		links, err := s.parser.ItemLinks(bytes.NewReader(resp.Body))
		if err != nil {
			return br, err
		}

		for _, link := range links {
			if s.capReached(&br) {
				break
			}
			lesson, ok, err := s.crawlLesson(ctx, link, result)
			if err != nil {
				return br, err
			}
			if ok {
				br.Lessons = append(br.Lessons, lesson)
				result.LessonCount++
			}
		}
	}

	return br, nil
}

// capReached reports whether the per-band lesson cap has been hit.
func (s *Spider) capReached(br *BandResult) bool {
	return s.maxLessonsPerBand > 0 && len(br.Lessons) >= s.maxLessonsPerBand
}

// crawlLesson fetches one lesson page and builds its reference record.
// The second return value is false when the lesson is skipped.
func (s *Spider) crawlLesson(ctx context.Context, link scrape.Link, result *Result) (model.Lesson, bool, error) {
	sourceID := link.URL
	if i := strings.LastIndex(sourceID, "/"); i >= 0 {
		sourceID = sourceID[i+1:]
	}

	if s.seen[sourceID] {
		s.logger.Debug("skipping duplicate lesson", "source_id", sourceID)
		result.SkippedDuplicate++
		return model.Lesson{}, false, nil
	}

	resp, err := s.client.Get(ctx, link.URL)
	if err != nil {
		return model.Lesson{}, false, fmt.Errorf("failed to fetch lesson page %s: %w", link.URL, err)
	}
	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("lesson page unavailable", "url", link.URL, "status", resp.StatusCode)
		return model.Lesson{}, false, nil
	}

	page, err := s.parser.Lesson(bytes.NewReader(resp.Body))
	if err != nil {
		return model.Lesson{}, false, err
	}

	if page.ZipURL == "" {
		s.logger.Info("lesson has no zip package", "url", link.URL)
		result.SkippedNoZip++
		return model.Lesson{}, false, nil
	}

	s.seen[sourceID] = true
	return model.Lesson{
		SourceID:     sourceID,
		Title:        link.Title,
		PageURL:      link.URL,
		Author:       page.Author,
		ThumbnailURL: page.ThumbnailURL,
		ZipURL:       page.ZipURL,
		IndexName:    page.IndexName,
	}, true, nil
}

// filterParams builds the item-filter query parameters.
// withCount selects the count response instead of the item list; start is
// the pagination offset for list requests.
func (s *Spider) filterParams(category string, band model.AgeBand, withCount bool, start int) url.Values {
	params := url.Values{}
	params.Set("category", category)
	params.Set("moduleId", config.ItemListModuleID)
	if withCount {
		params.Set("format", "count")
	} else {
		params.Set("start", strconv.Itoa(start))
	}
	for i, tag := range band.Tags {
		params.Set(fmt.Sprintf("taga[%d]", i), tag)
	}
	return params
}
