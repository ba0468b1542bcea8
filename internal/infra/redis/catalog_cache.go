package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"matrix-quest-service/internal/catalog"
	"matrix-quest-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// CatalogCache caches question content in Redis and falls back to a loader on a miss,
// so a fleet of instances starting together hits the backing table once.
// Questions are stored as: HSET trivia:catalog {questionID} {json}
type CatalogCache struct {
	client *redis.Client
	loader catalog.Loader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

const catalogKey = "trivia:catalog"

func NewCatalogCache(client *redis.Client, loader catalog.Loader, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CatalogCache) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	if qs, ok := c.cached(ctx); ok {
		return qs, nil
	}

	result, err, _ := c.sf.Do(catalogKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if qs, ok := c.cached(ctx); ok {
			return qs, nil
		}

		qs, err := c.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}

		pipe := c.client.TxPipeline()
		pipe.Del(ctx, catalogKey)
		for _, q := range qs {
			raw, err := json.Marshal(cachedQuestion(q))
			if err != nil {
				return nil, fmt.Errorf("encode question %d: %w", q.ID, err)
			}
			pipe.HSet(ctx, catalogKey, strconv.Itoa(q.ID), raw)
		}
		if ttl := c.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, catalogKey, ttl)
		}
		// best-effort: a failed fill only costs the next caller a reload
		_, _ = pipe.Exec(ctx)

		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// cachedQuestion keeps the answer, which domain.Question hides from JSON.
type cachedQuestion struct {
	ID     int    `json:"id"`
	Text   string `json:"text"`
	Answer string `json:"answer"`
	Hint   string `json:"hint,omitempty"`
}

func (c *CatalogCache) cached(ctx context.Context) ([]domain.Question, bool) {
	entries, err := c.client.HGetAll(ctx, catalogKey).Result()
	if err != nil || len(entries) == 0 {
		return nil, false
	}
	qs := make([]domain.Question, 0, len(entries))
	for _, raw := range entries {
		var cq cachedQuestion
		if err := json.Unmarshal([]byte(raw), &cq); err != nil {
			return nil, false
		}
		qs = append(qs, domain.Question{ID: cq.ID, Text: cq.Text, Answer: cq.Answer, Hint: cq.Hint})
	}
	sort.Slice(qs, func(i, j int) bool { return qs[i].ID < qs[j].ID })
	return qs, true
}

func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
