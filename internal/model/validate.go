package model

import (
	"errors"
	"fmt"
)

// Tree validation errors.
// These mirror the checks the downstream importer performs on upload, so a
// broken tree fails locally instead of after a full crawl and upload.
var (
	// ErrNotChannel is returned when the tree root is not a channel node.
	ErrNotChannel = errors.New("tree root must be a channel node")

	// ErrEmptyChannel is returned when the channel has no content at all.
	ErrEmptyChannel = errors.New("channel contains no content nodes")

	// ErrInvalidLanguage is returned when a node carries a language code
	// that does not parse as BCP 47.
	ErrInvalidLanguage = errors.New("invalid language code")

	// ErrDuplicateSourceID is returned when two nodes share a source ID.
	ErrDuplicateSourceID = errors.New("duplicate source ID")

	// ErrMissingLicense is returned when a lesson node has no license.
	ErrMissingLicense = errors.New("lesson node missing license")

	// ErrMissingArchive is returned when a lesson node has no packaged zip.
	ErrMissingArchive = errors.New("lesson node missing packaged archive")

	// ErrTopicWithArchive is returned when a folder node carries a zip.
	ErrTopicWithArchive = errors.New("topic node must not carry an archive")
)

// ValidateTree checks a fully assembled channel tree.
// It returns the first problem found, wrapped with the offending node's
// source ID.
func ValidateTree(root *ContentNode) error {
	if root.Kind != KindChannel {
		return ErrNotChannel
	}
	if len(root.Children) == 0 {
		return ErrEmptyChannel
	}
	if !ValidLanguage(root.Language) {
		return fmt.Errorf("channel %s: %w: %q", root.SourceID, ErrInvalidLanguage, root.Language)
	}

	seen := make(map[string]bool)
	var firstErr error

	root.Walk(func(node *ContentNode) bool {
		if seen[node.SourceID] {
			firstErr = fmt.Errorf("node %s: %w", node.SourceID, ErrDuplicateSourceID)
			return false
		}
		seen[node.SourceID] = true

		switch node.Kind {
		case KindHTML5App:
			if node.License == nil {
				firstErr = fmt.Errorf("node %s: %w", node.SourceID, ErrMissingLicense)
				return false
			}
			if node.ZipPath == "" {
				firstErr = fmt.Errorf("node %s: %w", node.SourceID, ErrMissingArchive)
				return false
			}
			if node.Language != "" && !ValidLanguage(node.Language) {
				firstErr = fmt.Errorf("node %s: %w: %q", node.SourceID, ErrInvalidLanguage, node.Language)
				return false
			}
		case KindChannel, KindTopic:
			if node.ZipPath != "" {
				firstErr = fmt.Errorf("node %s: %w", node.SourceID, ErrTopicWithArchive)
				return false
			}
		}
		return true
	})

	return firstErr
}
