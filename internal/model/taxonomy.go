package model

// Subject is one subject area discovered on the site's index page.
// Subjects form at most two levels: top-level subjects and nested
// sub-subjects listed under them in the navigation menu.
type Subject struct {
	// Title is the subject name as shown in the navigation menu.
	Title string `json:"title"`

	// URL is the subject's index page. Placeholder menu entries
	// (javascript links) leave this empty; such subjects become bare
	// topics with no lessons fetched.
	URL string `json:"url,omitempty"`

	// Nested marks subjects that appear under the preceding top-level
	// subject in the menu rather than at the top level.
	Nested bool `json:"nested,omitempty"`
}

// AgeBand groups the site's fine-grained age tags into the bands the
// channel presents as topics.
type AgeBand struct {
	// Label is the topic title, e.g. "13-14 años".
	Label string `json:"label"`

	// Tags are the site tag values the band covers, passed as taga[n]
	// filter parameters.
	Tags []string `json:"tags"`
}

// Lesson is one lesson reference scraped from an item list.
// It carries everything needed to fetch, package and attach the lesson.
type Lesson struct {
	// SourceID is the last segment of the lesson page URL.
	SourceID string `json:"source_id"`

	// Title is the lesson title from the item list.
	Title string `json:"title"`

	// PageURL is the absolute URL of the lesson's detail page.
	PageURL string `json:"page_url"`

	// Author is the scraped author, empty when the page has none of the
	// known author markers.
	Author string `json:"author,omitempty"`

	// ThumbnailURL is the absolute URL of the lesson thumbnail.
	ThumbnailURL string `json:"thumbnail_url,omitempty"`

	// ZipURL is the absolute URL of the lesson's zip package.
	ZipURL string `json:"zip_url"`

	// IndexName is the file name of the lesson's entry HTML document.
	// When it is not "index.html" the packager renames it before
	// building the archive.
	IndexName string `json:"index_name,omitempty"`
}
