package model

import (
	"errors"
	"testing"
)

func TestValidateTree(t *testing.T) {
	t.Parallel()

	t.Run("accepts a well-formed tree", func(t *testing.T) {
		t.Parallel()

		if err := ValidateTree(buildTestChannel()); err != nil {
			t.Errorf("expected valid tree, got %v", err)
		}
	})

	t.Run("rejects non-channel root", func(t *testing.T) {
		t.Parallel()

		if err := ValidateTree(NewTopic("t", "Topic")); !errors.Is(err, ErrNotChannel) {
			t.Errorf("expected ErrNotChannel, got %v", err)
		}
	})

	t.Run("rejects empty channel", func(t *testing.T) {
		t.Parallel()

		channel := NewChannel("c", "Channel", "", "es")
		if err := ValidateTree(channel); !errors.Is(err, ErrEmptyChannel) {
			t.Errorf("expected ErrEmptyChannel, got %v", err)
		}
	})

	t.Run("rejects bad channel language", func(t *testing.T) {
		t.Parallel()

		channel := buildTestChannel()
		channel.Language = "???"
		if err := ValidateTree(channel); !errors.Is(err, ErrInvalidLanguage) {
			t.Errorf("expected ErrInvalidLanguage, got %v", err)
		}
	})

	t.Run("rejects duplicate source IDs", func(t *testing.T) {
		t.Parallel()

		channel := buildTestChannel()
		dup := NewTopic("Matemáticas", "Matemáticas otra vez")
		channel.AddChild(dup)
		if err := ValidateTree(channel); !errors.Is(err, ErrDuplicateSourceID) {
			t.Errorf("expected ErrDuplicateSourceID, got %v", err)
		}
	})

	t.Run("rejects lesson without license", func(t *testing.T) {
		t.Parallel()

		channel := buildTestChannel()
		lesson := channel.Children[0].Children[0].Children[0]
		lesson.License = nil
		if err := ValidateTree(channel); !errors.Is(err, ErrMissingLicense) {
			t.Errorf("expected ErrMissingLicense, got %v", err)
		}
	})

	t.Run("rejects lesson without archive", func(t *testing.T) {
		t.Parallel()

		channel := buildTestChannel()
		lesson := channel.Children[0].Children[0].Children[0]
		lesson.ZipPath = ""
		if err := ValidateTree(channel); !errors.Is(err, ErrMissingArchive) {
			t.Errorf("expected ErrMissingArchive, got %v", err)
		}
	})

	t.Run("rejects topic carrying an archive", func(t *testing.T) {
		t.Parallel()

		channel := buildTestChannel()
		channel.Children[0].ZipPath = "/tmp/oops.zip"
		if err := ValidateTree(channel); !errors.Is(err, ErrTopicWithArchive) {
			t.Errorf("expected ErrTopicWithArchive, got %v", err)
		}
	})
}
