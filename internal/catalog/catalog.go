package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sort"

	"matrix-quest-service/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed questions.yaml
var defaultQuestionsYAML []byte

// Loader fetches questions from a backing store (e.g., the hosted questions table).
type Loader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// Catalog is the immutable ordered list of questions, loaded once at startup.
type Catalog struct {
	questions []domain.Question
}

type document struct {
	Questions []domain.Question `yaml:"questions"`
}

// New validates and orders questions. IDs must form the sequence 1..n.
func New(questions []domain.Question) (*Catalog, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no questions", domain.ErrInvalidCatalog)
	}
	qs := make([]domain.Question, len(questions))
	copy(qs, questions)
	sort.Slice(qs, func(i, j int) bool { return qs[i].ID < qs[j].ID })

	for i, q := range qs {
		if q.ID != i+1 {
			return nil, fmt.Errorf("%w: expected id %d, got %d", domain.ErrInvalidCatalog, i+1, q.ID)
		}
		if q.Answer == "" {
			return nil, fmt.Errorf("%w: question %d has no answer", domain.ErrInvalidCatalog, q.ID)
		}
	}
	return &Catalog{questions: qs}, nil
}

// Default returns the embedded ten-question catalog.
func Default() *Catalog {
	c, err := Parse(defaultQuestionsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// Parse decodes a YAML document with a top-level "questions" list.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(doc.Questions)
}

// LoadFile reads a YAML catalog from path.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Load builds a catalog from a Loader.
func Load(ctx context.Context, loader Loader) (*Catalog, error) {
	qs, err := loader.LoadQuestions(ctx)
	if err != nil {
		return nil, err
	}
	return New(qs)
}

// Len is the total number of questions.
func (c *Catalog) Len() int {
	return len(c.questions)
}

// Question returns the question with the given 1-based id.
func (c *Catalog) Question(id int) (domain.Question, bool) {
	if id < 1 || id > len(c.questions) {
		return domain.Question{}, false
	}
	return c.questions[id-1], true
}

// Questions returns a copy of the ordered question list.
func (c *Catalog) Questions() []domain.Question {
	out := make([]domain.Question, len(c.questions))
	copy(out, c.questions)
	return out
}

// StaticLoader serves a fixed question list (useful for tests/demos).
type StaticLoader struct {
	questions []domain.Question
}

func NewStaticLoader(questions []domain.Question) *StaticLoader {
	return &StaticLoader{questions: questions}
}

func (l *StaticLoader) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	out := make([]domain.Question, len(l.questions))
	copy(out, l.questions)
	return out, nil
}
