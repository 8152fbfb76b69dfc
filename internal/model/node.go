package model

import (
	"golang.org/x/text/language"
)

// NodeKind identifies the role of a node in the content tree.
type NodeKind string

// Node kinds understood by the downstream importer.
const (
	// KindChannel is the tree root carrying channel-level metadata.
	KindChannel NodeKind = "channel"

	// KindTopic is a folder node: a subject or an age band.
	KindTopic NodeKind = "topic"

	// KindHTML5App is a leaf lesson backed by a packaged zip archive.
	KindHTML5App NodeKind = "html5_app"
)

// ContentNode is one node of the importable content tree.
//
// Design decision: We use a single struct with a Kind discriminator rather
// than an interface with one type per kind. The importer treats nodes
// uniformly, the per-kind differences are a handful of optional fields, and
// a flat struct keeps JSON serialization of the whole tree trivial.
type ContentNode struct {
	// SourceID uniquely identifies the node within the channel.
	// For lessons this is the last segment of the lesson page URL.
	SourceID string `json:"source_id"`

	// Kind is the node's role in the tree.
	Kind NodeKind `json:"kind"`

	// Title is the human-readable node title.
	Title string `json:"title"`

	// Description is an optional longer description. Only the channel
	// node carries one today.
	Description string `json:"description,omitempty"`

	// SourceDomain names the content provider's domain. Only set on the
	// channel node.
	SourceDomain string `json:"source_domain,omitempty"`

	// Language is the BCP 47 language code of the node's content.
	Language string `json:"language,omitempty"`

	// Author is the lesson author as scraped from the lesson page.
	Author string `json:"author,omitempty"`

	// Thumbnail is the URL of the node's thumbnail image.
	Thumbnail string `json:"thumbnail,omitempty"`

	// License describes the content license. Required on lesson nodes.
	License *License `json:"license,omitempty"`

	// ZipPath is the filesystem path of the packaged lesson archive.
	// Only set on KindHTML5App nodes.
	ZipPath string `json:"zip_path,omitempty"`

	// ZipSHA256 is the hex SHA-256 of the packaged archive, used for
	// deduplication across runs.
	ZipSHA256 string `json:"zip_sha256,omitempty"`

	// Children holds the node's children in insertion order.
	Children []*ContentNode `json:"children,omitempty"`
}

// NewChannel creates the root channel node.
func NewChannel(sourceID, title, description, lang string) *ContentNode {
	return &ContentNode{
		SourceID:    sourceID,
		Kind:        KindChannel,
		Title:       title,
		Description: description,
		Language:    lang,
	}
}

// NewTopic creates a folder node for a subject or age band.
func NewTopic(sourceID, title string) *ContentNode {
	return &ContentNode{
		SourceID: sourceID,
		Kind:     KindTopic,
		Title:    title,
	}
}

// NewHTML5App creates a leaf lesson node.
func NewHTML5App(sourceID, title string) *ContentNode {
	return &ContentNode{
		SourceID: sourceID,
		Kind:     KindHTML5App,
		Title:    title,
	}
}

// AddChild appends child to the node's children.
func (n *ContentNode) AddChild(child *ContentNode) {
	n.Children = append(n.Children, child)
}

// Walk visits the node and all descendants depth-first in insertion order.
// The walk stops early when fn returns false.
func (n *ContentNode) Walk(fn func(node *ContentNode) bool) bool {
	if !fn(n) {
		return false
	}
	for _, child := range n.Children {
		if !child.Walk(fn) {
			return false
		}
	}
	return true
}

// CountByKind returns the number of descendant nodes (including n itself)
// of the given kind.
func (n *ContentNode) CountByKind(kind NodeKind) int {
	count := 0
	n.Walk(func(node *ContentNode) bool {
		if node.Kind == kind {
			count++
		}
		return true
	})
	return count
}

// ValidLanguage reports whether code parses as a BCP 47 language tag.
// The channel's "es" and any per-lesson overrides pass through here before
// the tree is accepted.
func ValidLanguage(code string) bool {
	if code == "" {
		return false
	}
	_, err := language.Parse(code)
	return err == nil
}
