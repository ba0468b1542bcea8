// Package storetest holds the behaviour every app.ProgressStore must share.
package storetest

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"matrix-quest-service/internal/app"
	"matrix-quest-service/internal/domain"
)

// Factory returns an empty store for one subtest.
type Factory func(t *testing.T) app.ProgressStore

// Run exercises the ProgressStore contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("GetMissing", func(t *testing.T) {
		store := newStore(t)
		if _, err := store.Get(context.Background(), "nobody"); !errors.Is(err, domain.ErrProgressNotFound) {
			t.Fatalf("expected ErrProgressNotFound, got %v", err)
		}
	})

	t.Run("SaveAndGet", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		want := sampleRecord("neo_01")
		if err := store.Save(ctx, want); err != nil {
			t.Fatalf("save: %v", err)
		}
		got, err := store.Get(ctx, "neo_01")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		assertRecord(t, got, want)
	})

	t.Run("SaveIsIdempotent", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		rec := sampleRecord("trinity_07")
		for i := 0; i < 2; i++ {
			if err := store.Save(ctx, rec); err != nil {
				t.Fatalf("save %d: %v", i, err)
			}
		}
		got, err := store.Get(ctx, "trinity_07")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		assertRecord(t, got, rec)
	})

	t.Run("IncrementAttempt", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		rec := domain.NewProgressRecord("morpheus_66", "morpheus_66")
		rec.LoggedIn = true
		if err := store.Save(ctx, rec); err != nil {
			t.Fatalf("save: %v", err)
		}
		for want := 1; want <= 3; want++ {
			got, err := store.IncrementAttempt(ctx, "morpheus_66", 1)
			if err != nil {
				t.Fatalf("increment: %v", err)
			}
			if got != want {
				t.Fatalf("expected count %d, got %d", want, got)
			}
		}
		if got, err := store.IncrementAttempt(ctx, "morpheus_66", 2); err != nil || got != 1 {
			t.Fatalf("expected independent counter for q2, got %d (%v)", got, err)
		}
		loaded, err := store.Get(ctx, "morpheus_66")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if loaded.AttemptsFor(1) != 3 || loaded.AttemptsFor(2) != 1 {
			t.Fatalf("unexpected attempts %+v", loaded.Attempts)
		}
	})

	t.Run("SaveKeepsIncrementedCounts", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		rec := domain.NewProgressRecord("oracle_42", "oracle_42")
		rec.LoggedIn = true
		if err := store.Save(ctx, rec); err != nil {
			t.Fatalf("save: %v", err)
		}
		n, err := store.IncrementAttempt(ctx, "oracle_42", 1)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		rec.Attempts[1] = n
		rec.CurrentQuestion = 2
		if err := store.Save(ctx, rec); err != nil {
			t.Fatalf("save: %v", err)
		}
		got, err := store.Get(ctx, "oracle_42")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.CurrentQuestion != 2 || got.AttemptsFor(1) != 1 {
			t.Fatalf("unexpected record %+v", got)
		}
	})

	t.Run("ReturnedRecordIsACopy", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		if err := store.Save(ctx, sampleRecord("agent_smith")); err != nil {
			t.Fatalf("save: %v", err)
		}
		got, err := store.Get(ctx, "agent_smith")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		got.Attempts[1] = 99
		again, err := store.Get(ctx, "agent_smith")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if again.AttemptsFor(1) == 99 {
			t.Fatalf("store shares attempts map with callers")
		}
	})

	t.Run("List", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		for _, key := range []string{"neo_01", "trinity_07", "oracle_42"} {
			if err := store.Save(ctx, sampleRecord(key)); err != nil {
				t.Fatalf("save %s: %v", key, err)
			}
		}
		records, err := store.List(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		keys := make([]string, 0, len(records))
		for _, r := range records {
			keys = append(keys, r.UserKey)
			if r.AttemptsFor(1) != 2 {
				t.Fatalf("expected attempts to be listed for %s, got %+v", r.UserKey, r.Attempts)
			}
		}
		sort.Strings(keys)
		if len(keys) != 3 || keys[0] != "neo_01" || keys[1] != "oracle_42" || keys[2] != "trinity_07" {
			t.Fatalf("unexpected keys %v", keys)
		}
	})
}

func sampleRecord(key string) domain.ProgressRecord {
	completedAt := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	rec := domain.NewProgressRecord(key, key)
	rec.CurrentQuestion = 11
	rec.LoggedIn = true
	rec.Completed = true
	rec.CompletedAt = &completedAt
	rec.Attempts[1] = 2
	rec.Attempts[10] = 1
	return rec
}

func assertRecord(t *testing.T, got, want domain.ProgressRecord) {
	t.Helper()
	if got.UserKey != want.UserKey || got.Username != want.Username {
		t.Fatalf("identity mismatch: got %s/%s want %s/%s", got.UserKey, got.Username, want.UserKey, want.Username)
	}
	if got.CurrentQuestion != want.CurrentQuestion || got.LoggedIn != want.LoggedIn || got.Completed != want.Completed {
		t.Fatalf("state mismatch: got %+v want %+v", got, want)
	}
	if (got.CompletedAt == nil) != (want.CompletedAt == nil) {
		t.Fatalf("completedAt presence mismatch: got %v want %v", got.CompletedAt, want.CompletedAt)
	}
	if got.CompletedAt != nil && !got.CompletedAt.Equal(*want.CompletedAt) {
		t.Fatalf("completedAt mismatch: got %v want %v", got.CompletedAt, want.CompletedAt)
	}
	if len(got.Attempts) != len(want.Attempts) {
		t.Fatalf("attempts mismatch: got %v want %v", got.Attempts, want.Attempts)
	}
	for q, n := range want.Attempts {
		if got.Attempts[q] != n {
			t.Fatalf("attempts[%d] = %d, want %d", q, got.Attempts[q], n)
		}
	}
}
