package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"matrix-quest-service/internal/catalog"
	"matrix-quest-service/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Leaderboard ranks every stored record and pushes fresh snapshots to subscribers.
type Leaderboard struct {
	catalog *catalog.Catalog
	store   ProgressStore
	logger  *zap.Logger
	now     func() time.Time
	sf      singleflight.Group

	scanTimeout time.Duration
	refreshes   sync.WaitGroup
	refreshMu   sync.Mutex

	mu          sync.Mutex
	closed      bool
	subscribers map[chan domain.Leaderboard]struct{}
}

// ErrLeaderboardClosed is returned by Subscribe after Close.
var ErrLeaderboardClosed = errors.New("leaderboard closed")

func NewLeaderboard(cat *catalog.Catalog, store ProgressStore, logger *zap.Logger) *Leaderboard {
	return NewLeaderboardWithClock(cat, store, logger, time.Now)
}

// NewLeaderboardWithClock is test-only for deterministic timestamps.
func NewLeaderboardWithClock(cat *catalog.Catalog, store ProgressStore, logger *zap.Logger, now func() time.Time) *Leaderboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Leaderboard{
		catalog:     cat,
		store:       store,
		logger:      logger,
		now:         now,
		scanTimeout: 5 * time.Second,
		subscribers: make(map[chan domain.Leaderboard]struct{}),
	}
}

// ListRanked scans all records and ranks them. Concurrent callers share one scan,
// which runs on its own deadline so one caller giving up does not fail the others.
func (l *Leaderboard) ListRanked(ctx context.Context) (domain.Leaderboard, error) {
	ch := l.sf.DoChan("scan", func() (interface{}, error) {
		scanCtx, cancel := context.WithTimeout(context.Background(), l.scanTimeout)
		defer cancel()
		return l.scan(scanCtx)
	})
	select {
	case <-ctx.Done():
		return domain.Leaderboard{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.Leaderboard{}, res.Err
		}
		return res.Val.(domain.Leaderboard), nil
	}
}

func (l *Leaderboard) scan(ctx context.Context) (domain.Leaderboard, error) {
	records, err := l.store.List(ctx)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("list progress: %w", err)
	}
	return Rank(records, l.catalog.Len(), l.now()), nil
}

// Subscribe returns a channel that receives the current snapshot, then every refresh.
// The caller must invoke the returned cancel function to avoid leaks.
func (l *Leaderboard) Subscribe(ctx context.Context) (<-chan domain.Leaderboard, func(), error) {
	// Registering under refreshMu means no refresh lands between the initial scan
	// and the subscription.
	l.refreshMu.Lock()
	initial, err := l.scan(ctx)
	if err != nil {
		l.refreshMu.Unlock()
		return nil, nil, err
	}

	ch := make(chan domain.Leaderboard, 8)
	ch <- initial

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.refreshMu.Unlock()
		return nil, nil, ErrLeaderboardClosed
	}
	l.subscribers[ch] = struct{}{}
	l.mu.Unlock()
	l.refreshMu.Unlock()

	cancel := func() {
		l.mu.Lock()
		if _, ok := l.subscribers[ch]; ok {
			delete(l.subscribers, ch)
			close(ch)
		}
		l.mu.Unlock()
	}
	return ch, cancel, nil
}

// Refresh recomputes the ranking and broadcasts it. It never joins a scan already
// in flight, since that scan may predate the change being published. Refreshes are
// serialized so snapshots reach subscribers in scan order.
func (l *Leaderboard) Refresh(ctx context.Context) error {
	l.refreshMu.Lock()
	defer l.refreshMu.Unlock()

	lb, err := l.scan(ctx)
	if err != nil {
		return err
	}
	l.broadcast(lb)
	return nil
}

// ProgressChanged schedules a refresh without holding up the caller.
func (l *Leaderboard) ProgressChanged(_ domain.ProgressRecord) {
	l.refreshes.Add(1)
	go func() {
		defer l.refreshes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), l.scanTimeout)
		defer cancel()
		if err := l.Refresh(ctx); err != nil {
			l.logger.Error("leaderboard refresh failed", zap.Error(err))
		}
	}()
}

// Close ends every subscription by closing its channel. Streams relying on the
// channel shut down; later Subscribe calls fail.
func (l *Leaderboard) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	for ch := range l.subscribers {
		delete(l.subscribers, ch)
		close(ch)
	}
}

// Wait blocks until scheduled refreshes have finished.
func (l *Leaderboard) Wait() {
	l.refreshes.Wait()
}

func (l *Leaderboard) broadcast(lb domain.Leaderboard) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ch := range l.subscribers {
		select {
		case ch <- lb:
		default:
			// Drop the oldest snapshot so a slow reader never blocks the broadcast.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}

// ProgressPercent is floor((current-1)/total*100) clamped to [0, 100].
func ProgressPercent(currentQuestion, total int) int {
	if total <= 0 || currentQuestion <= 1 {
		return 0
	}
	pct := (currentQuestion - 1) * 100 / total
	if pct > 100 {
		return 100
	}
	return pct
}

// Rank orders records: completed runs first (earliest finisher wins), then by
// current question descending, then username ascending.
func Rank(records []domain.ProgressRecord, total int, now time.Time) domain.Leaderboard {
	entries := make([]domain.LeaderboardEntry, 0, len(records))
	for _, r := range records {
		completed := r.Completed || (total > 0 && r.CurrentQuestion > total)
		solved := r.CurrentQuestion - 1
		if solved < 0 {
			solved = 0
		}
		if total > 0 && solved > total {
			solved = total
		}
		entries = append(entries, domain.LeaderboardEntry{
			Username:        r.Username,
			CurrentQuestion: r.CurrentQuestion,
			Solved:          solved,
			Completed:       completed,
			CompletedAt:     r.CompletedAt,
			ProgressPercent: ProgressPercent(r.CurrentQuestion, total),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Completed != b.Completed {
			return a.Completed
		}
		if a.Completed {
			switch {
			case a.CompletedAt != nil && b.CompletedAt != nil && !a.CompletedAt.Equal(*b.CompletedAt):
				return a.CompletedAt.Before(*b.CompletedAt)
			case a.CompletedAt != nil && b.CompletedAt == nil:
				return true
			case a.CompletedAt == nil && b.CompletedAt != nil:
				return false
			}
		}
		if a.CurrentQuestion != b.CurrentQuestion {
			return a.CurrentQuestion > b.CurrentQuestion
		}
		return a.Username < b.Username
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return domain.Leaderboard{
		TotalQuestions: total,
		Entries:        entries,
		UpdatedAt:      now,
	}
}
