package redis

import (
	"context"
	"testing"
	"time"

	"matrix-quest-service/internal/catalog"
	"matrix-quest-service/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestCatalogCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{
		Loader: catalog.NewStaticLoader(sampleQuestions()),
	}
	cache := NewCatalogCache(client, loader, time.Minute)

	qs, err := cache.LoadQuestions(context.Background())
	if err != nil {
		t.Fatalf("load questions: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if len(qs) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(qs))
	}

	// Second call should hit cache, loader not incremented.
	qs, err = cache.LoadQuestions(context.Background())
	if err != nil {
		t.Fatalf("load questions: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if qs[0].ID != 1 || qs[0].Answer != "red" || qs[1].Hint != "Named after a Babylonian king..." {
		t.Fatalf("cached questions lost content: %+v", qs)
	}
	if mr.TTL(catalogKey) <= 0 {
		t.Fatalf("expected catalog key to expire")
	}

	// The cached copy must still build a valid catalog.
	if _, err := catalog.Load(context.Background(), cache); err != nil {
		t.Fatalf("catalog from cache: %v", err)
	}
}

type countingLoader struct {
	catalog.Loader
	calls int
}

func (l *countingLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	l.calls++
	return l.Loader.LoadQuestions(ctx)
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: 1, Text: "What color pill did Neo take in The Matrix?", Answer: "red", Hint: "The opposite of blue..."},
		{ID: 2, Text: "What is the name of the ship captained by Morpheus?", Answer: "nebuchadnezzar", Hint: "Named after a Babylonian king..."},
	}
}
