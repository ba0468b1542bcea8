package memory

import (
	"context"
	"sort"
	"sync"

	"matrix-quest-service/internal/domain"
)

// ProgressStore is an in-memory implementation of app.ProgressStore. Attempt
// counters are kept beside the records, the same split the hosted tables use.
type ProgressStore struct {
	mu       sync.RWMutex
	records  map[string]domain.ProgressRecord
	attempts map[string]map[int]int
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		records:  make(map[string]domain.ProgressRecord),
		attempts: make(map[string]map[int]int),
	}
}

func (s *ProgressStore) Get(_ context.Context, userKey string) (domain.ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[userKey]
	if !ok {
		return domain.ProgressRecord{}, domain.ErrProgressNotFound
	}
	return s.mergeLocked(record), nil
}

func (s *ProgressStore) Save(_ context.Context, record domain.ProgressRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := record.Clone()
	counters := stored.Attempts
	stored.Attempts = nil
	s.records[record.UserKey] = stored
	s.attempts[record.UserKey] = counters
	return nil
}

// IncrementAttempt bumps one counter under the store lock.
func (s *ProgressStore) IncrementAttempt(_ context.Context, userKey string, questionID int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counters, ok := s.attempts[userKey]
	if !ok {
		counters = make(map[int]int)
		s.attempts[userKey] = counters
	}
	counters[questionID]++
	return counters[questionID], nil
}

func (s *ProgressStore) List(_ context.Context) ([]domain.ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ProgressRecord, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, s.mergeLocked(record))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserKey < out[j].UserKey })
	return out, nil
}

func (s *ProgressStore) mergeLocked(record domain.ProgressRecord) domain.ProgressRecord {
	out := record.Clone()
	for q, n := range s.attempts[record.UserKey] {
		out.Attempts[q] = n
	}
	return out
}
