package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"matrix-quest-service/internal/domain"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	if c.Len() != 10 {
		t.Fatalf("expected 10 questions, got %d", c.Len())
	}
	q, ok := c.Question(1)
	if !ok || q.Answer != "red" {
		t.Fatalf("expected first answer red, got %+v", q)
	}
	if q.Hint == "" {
		t.Fatalf("expected a hint on question 1")
	}
	if _, ok := c.Question(11); ok {
		t.Fatalf("question 11 should not exist")
	}
	if _, ok := c.Question(0); ok {
		t.Fatalf("question 0 should not exist")
	}
}

func TestNewSortsAndValidates(t *testing.T) {
	c, err := New([]domain.Question{
		{ID: 2, Text: "b", Answer: "two"},
		{ID: 1, Text: "a", Answer: "one"},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if qs := c.Questions(); qs[0].ID != 1 || qs[1].ID != 2 {
		t.Fatalf("expected ordered ids, got %+v", qs)
	}

	cases := map[string][]domain.Question{
		"empty":     nil,
		"gap":       {{ID: 1, Answer: "a"}, {ID: 3, Answer: "c"}},
		"zero-id":   {{ID: 0, Answer: "a"}},
		"duplicate": {{ID: 1, Answer: "a"}, {ID: 1, Answer: "b"}},
		"no-answer": {{ID: 1, Text: "?"}},
	}
	for name, qs := range cases {
		if _, err := New(qs); !errors.Is(err, domain.ErrInvalidCatalog) {
			t.Fatalf("%s: expected ErrInvalidCatalog, got %v", name, err)
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.yaml")
	data := []byte("questions:\n  - id: 1\n    text: \"Pick a pill\"\n    answer: red\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 question, got %d", c.Len())
	}
}

func TestLoadFromLoader(t *testing.T) {
	c, err := Load(context.Background(), NewStaticLoader([]domain.Question{{ID: 1, Text: "q", Answer: "a"}}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 question, got %d", c.Len())
	}
}
