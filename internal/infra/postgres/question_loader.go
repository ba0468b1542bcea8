package postgres

import (
	"context"
	"fmt"

	"matrix-quest-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionLoader loads the catalog from the questions table.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, text, answer, COALESCE(hint, '') FROM questions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var qs []domain.Question
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.Text, &q.Answer, &q.Hint); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		qs = append(qs, q)
	}
	return qs, rows.Err()
}

// SeedQuestions upserts questions by id.
func (l *QuestionLoader) SeedQuestions(ctx context.Context, qs []domain.Question) error {
	batch := &pgx.Batch{}
	for _, q := range qs {
		batch.Queue(`
			INSERT INTO questions (id, text, answer, hint) VALUES ($1, $2, $3, NULLIF($4, ''))
			ON CONFLICT (id) DO UPDATE SET text = EXCLUDED.text, answer = EXCLUDED.answer, hint = EXCLUDED.hint
		`, q.ID, q.Text, q.Answer, q.Hint)
	}
	br := l.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("seed question: %w", err)
		}
	}
	return nil
}
