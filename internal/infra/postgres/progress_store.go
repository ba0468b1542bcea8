package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"matrix-quest-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ProgressStore is the hosted app.ProgressStore: one user_progress row per user
// plus one question_attempts row per attempted question.
type ProgressStore struct {
	pool *pgxpool.Pool
	tx   *Transactor
}

func NewProgressStore(pool *pgxpool.Pool) *ProgressStore {
	return &ProgressStore{pool: pool, tx: NewTransactor(pool)}
}

const selectProgress = `
	SELECT p.user_id,
	       COALESCE(NULLIF(p.username, ''), pr.username, ''),
	       p.current_question, p.completed, p.completed_at, p.logged_in
	FROM user_progress p
	LEFT JOIN profiles pr ON pr.id = p.user_id
`

func (s *ProgressStore) Get(ctx context.Context, userKey string) (domain.ProgressRecord, error) {
	record, err := scanProgress(s.pool.QueryRow(ctx, selectProgress+` WHERE p.user_id = $1`, userKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ProgressRecord{}, domain.ErrProgressNotFound
		}
		return domain.ProgressRecord{}, fmt.Errorf("get progress: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT question_id, attempts FROM question_attempts WHERE user_id = $1`, userKey)
	if err != nil {
		return domain.ProgressRecord{}, fmt.Errorf("get attempts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var qid, n int
		if err := rows.Scan(&qid, &n); err != nil {
			return domain.ProgressRecord{}, fmt.Errorf("scan attempts: %w", err)
		}
		record.Attempts[qid] = n
	}
	return record, rows.Err()
}

// Save upserts the record and its counters in one transaction. Stored values never
// move backwards: current_question and attempts keep the larger value, and a
// completion time once written is kept.
func (s *ProgressStore) Save(ctx context.Context, record domain.ProgressRecord) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO user_progress (user_id, username, current_question, completed, completed_at, logged_in, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
			ON CONFLICT (user_id) DO UPDATE SET
				username = EXCLUDED.username,
				current_question = GREATEST(user_progress.current_question, EXCLUDED.current_question),
				completed = user_progress.completed OR EXCLUDED.completed,
				completed_at = COALESCE(user_progress.completed_at, EXCLUDED.completed_at),
				logged_in = EXCLUDED.logged_in,
				updated_at = now()
		`, record.UserKey, record.Username, record.CurrentQuestion, record.Completed, record.CompletedAt, record.LoggedIn)
		if err != nil {
			return fmt.Errorf("upsert progress: %w", err)
		}
		if len(record.Attempts) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for qid, n := range record.Attempts {
			batch.Queue(`
				INSERT INTO question_attempts (user_id, question_id, attempts, updated_at)
				VALUES ($1, $2, $3, now())
				ON CONFLICT (user_id, question_id) DO UPDATE SET
					attempts = GREATEST(question_attempts.attempts, EXCLUDED.attempts),
					updated_at = now()
			`, record.UserKey, qid, n)
		}
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("upsert attempts: %w", err)
			}
		}
		return br.Close()
	})
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// IncrementAttempt is a single upsert, so concurrent submissions cannot under-count.
func (s *ProgressStore) IncrementAttempt(ctx context.Context, userKey string, questionID int) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO question_attempts (user_id, question_id, attempts, updated_at)
		VALUES ($1, $2, 1, now())
		ON CONFLICT (user_id, question_id) DO UPDATE SET
			attempts = question_attempts.attempts + 1,
			updated_at = now()
		RETURNING attempts
	`, userKey, questionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	return n, nil
}

func (s *ProgressStore) List(ctx context.Context) ([]domain.ProgressRecord, error) {
	rows, err := s.pool.Query(ctx, selectProgress+` ORDER BY p.user_id`)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	var records []domain.ProgressRecord
	index := make(map[string]int)
	for rows.Next() {
		record, err := scanProgress(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		index[record.UserKey] = len(records)
		records = append(records, record)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	attempts, err := s.pool.Query(ctx, `SELECT user_id, question_id, attempts FROM question_attempts`)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer attempts.Close()
	for attempts.Next() {
		var c domain.AttemptCounter
		if err := attempts.Scan(&c.UserKey, &c.QuestionID, &c.Attempts); err != nil {
			return nil, fmt.Errorf("scan attempts: %w", err)
		}
		if i, ok := index[c.UserKey]; ok {
			records[i].Attempts[c.QuestionID] = c.Attempts
		}
	}
	return records, attempts.Err()
}

func scanProgress(row pgx.Row) (domain.ProgressRecord, error) {
	var (
		record      domain.ProgressRecord
		completedAt *time.Time
	)
	err := row.Scan(
		&record.UserKey,
		&record.Username,
		&record.CurrentQuestion,
		&record.Completed,
		&completedAt,
		&record.LoggedIn,
	)
	if err != nil {
		return domain.ProgressRecord{}, err
	}
	if completedAt != nil {
		t := completedAt.UTC()
		record.CompletedAt = &t
	}
	record.Attempts = make(map[int]int)
	return record, nil
}
