package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"matrix-quest-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ProgressStore is a Redis implementation of app.ProgressStore.
// Layout:
//   - HSET trivia:progress:{userKey} username|current_question|logged_in|completed|completed_at
//   - HSET trivia:attempts:{userKey} {questionID} {count}  (HINCRBY makes increments atomic)
//   - SADD trivia:users {userKey}  (scan index for the leaderboard)
type ProgressStore struct {
	client *redis.Client
}

func NewProgressStore(client *redis.Client) *ProgressStore {
	return &ProgressStore{client: client}
}

const usersKey = "trivia:users"

func progressKey(userKey string) string {
	return "trivia:progress:" + userKey
}

func attemptsKey(userKey string) string {
	return "trivia:attempts:" + userKey
}

func (s *ProgressStore) Get(ctx context.Context, userKey string) (domain.ProgressRecord, error) {
	var fields, attempts *redis.MapStringStringCmd
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		fields = pipe.HGetAll(ctx, progressKey(userKey))
		attempts = pipe.HGetAll(ctx, attemptsKey(userKey))
		return nil
	})
	if err != nil {
		return domain.ProgressRecord{}, fmt.Errorf("get progress: %w", err)
	}
	if len(fields.Val()) == 0 {
		return domain.ProgressRecord{}, domain.ErrProgressNotFound
	}
	return decodeRecord(userKey, fields.Val(), attempts.Val())
}

func (s *ProgressStore) Save(ctx context.Context, record domain.ProgressRecord) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		key := progressKey(record.UserKey)
		pipe.HSet(ctx, key,
			"username", record.Username,
			"current_question", record.CurrentQuestion,
			"logged_in", boolField(record.LoggedIn),
			"completed", boolField(record.Completed),
		)
		if record.CompletedAt != nil {
			pipe.HSet(ctx, key, "completed_at", record.CompletedAt.UTC().Format(time.RFC3339Nano))
		} else {
			pipe.HDel(ctx, key, "completed_at")
		}
		if len(record.Attempts) > 0 {
			values := make([]interface{}, 0, 2*len(record.Attempts))
			for q, n := range record.Attempts {
				values = append(values, strconv.Itoa(q), n)
			}
			pipe.HSet(ctx, attemptsKey(record.UserKey), values...)
		}
		pipe.SAdd(ctx, usersKey, record.UserKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

func (s *ProgressStore) IncrementAttempt(ctx context.Context, userKey string, questionID int) (int, error) {
	n, err := s.client.HIncrBy(ctx, attemptsKey(userKey), strconv.Itoa(questionID), 1).Result()
	if err != nil {
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	return int(n), nil
}

func (s *ProgressStore) List(ctx context.Context) ([]domain.ProgressRecord, error) {
	keys, err := s.client.SMembers(ctx, usersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	sort.Strings(keys)

	fields := make([]*redis.MapStringStringCmd, len(keys))
	attempts := make([]*redis.MapStringStringCmd, len(keys))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			fields[i] = pipe.HGetAll(ctx, progressKey(key))
			attempts[i] = pipe.HGetAll(ctx, attemptsKey(key))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}

	out := make([]domain.ProgressRecord, 0, len(keys))
	for i, key := range keys {
		if len(fields[i].Val()) == 0 {
			continue
		}
		record, err := decodeRecord(key, fields[i].Val(), attempts[i].Val())
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, nil
}

func decodeRecord(userKey string, fields, attempts map[string]string) (domain.ProgressRecord, error) {
	current, err := strconv.Atoi(fields["current_question"])
	if err != nil {
		return domain.ProgressRecord{}, fmt.Errorf("decode current_question for %s: %w", userKey, err)
	}
	record := domain.ProgressRecord{
		UserKey:         userKey,
		Username:        fields["username"],
		CurrentQuestion: current,
		LoggedIn:        fields["logged_in"] == "1",
		Completed:       fields["completed"] == "1",
		Attempts:        make(map[int]int, len(attempts)),
	}
	if raw := fields["completed_at"]; raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return domain.ProgressRecord{}, fmt.Errorf("decode completed_at for %s: %w", userKey, err)
		}
		record.CompletedAt = &t
	}
	for q, n := range attempts {
		qid, err := strconv.Atoi(q)
		if err != nil {
			return domain.ProgressRecord{}, errors.New("decode attempts: non-numeric question id " + q)
		}
		count, err := strconv.Atoi(n)
		if err != nil {
			return domain.ProgressRecord{}, fmt.Errorf("decode attempts for question %d: %w", qid, err)
		}
		record.Attempts[qid] = count
	}
	return record, nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
