package model

import "testing"

func buildTestChannel() *ContentNode {
	channel := NewChannel("sushi-chef-proyecto-descartes-es", "Proyecto Descartes", "Recursos interactivos", "es")

	subject := NewTopic("Matemáticas", "Matemáticas")
	channel.AddChild(subject)

	band := NewTopic("13-14 años", "13-14 años")
	subject.AddChild(band)

	lesson := NewHTML5App("ecuaciones-1", "Ecuaciones de primer grado")
	lesson.License = CCBYNCSA("Proyecto Descartes")
	lesson.Language = "es"
	lesson.ZipPath = "/tmp/descartes-chef-123.zip"
	band.AddChild(lesson)

	return channel
}

func TestWalk(t *testing.T) {
	t.Parallel()

	channel := buildTestChannel()

	var order []string
	channel.Walk(func(node *ContentNode) bool {
		order = append(order, node.SourceID)
		return true
	})

	want := []string{"sushi-chef-proyecto-descartes-es", "Matemáticas", "13-14 años", "ecuaciones-1"}
	if len(order) != len(want) {
		t.Fatalf("expected %d nodes, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("walk position %d: expected %q, got %q", i, want[i], order[i])
		}
	}
}

func TestCountByKind(t *testing.T) {
	t.Parallel()

	channel := buildTestChannel()

	if got := channel.CountByKind(KindTopic); got != 2 {
		t.Errorf("expected 2 topics, got %d", got)
	}
	if got := channel.CountByKind(KindHTML5App); got != 1 {
		t.Errorf("expected 1 lesson, got %d", got)
	}
}

func TestValidLanguage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code string
		want bool
	}{
		{"es", true},
		{"es-ES", true},
		{"en", true},
		{"", false},
		{"not a language", false},
	}

	for _, tt := range tests {
		if got := ValidLanguage(tt.code); got != tt.want {
			t.Errorf("ValidLanguage(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}
