package redis

import (
	"context"
	"sync"
	"testing"

	"matrix-quest-service/internal/app"
	"matrix-quest-service/internal/domain"
	"matrix-quest-service/internal/infra/storetest"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestProgressStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) app.ProgressStore {
		mr := miniredis.RunT(t)
		return NewProgressStore(newClient(mr))
	})
}

func TestProgressStoreLayout(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewProgressStore(newClient(mr))
	ctx := context.Background()
	rec := domain.NewProgressRecord("neo_01", "neo_01")
	rec.LoggedIn = true
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.IncrementAttempt(ctx, "neo_01", 1); err != nil {
		t.Fatalf("increment: %v", err)
	}

	if got := mr.HGet("trivia:progress:neo_01", "current_question"); got != "1" {
		t.Fatalf("expected current_question 1, got %q", got)
	}
	if got := mr.HGet("trivia:attempts:neo_01", "1"); got != "1" {
		t.Fatalf("expected attempts 1, got %q", got)
	}
	if ok, _ := mr.SIsMember("trivia:users", "neo_01"); !ok {
		t.Fatalf("expected user to be indexed")
	}
}

func TestIncrementAttemptIsAtomic(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewProgressStore(newClient(mr))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.IncrementAttempt(ctx, "neo_01", 3); err != nil {
				t.Errorf("increment: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := mr.HGet("trivia:attempts:neo_01", "3"); got != "20" {
		t.Fatalf("expected 20 attempts, got %q", got)
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
