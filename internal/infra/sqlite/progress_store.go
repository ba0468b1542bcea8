package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"matrix-quest-service/internal/domain"
	_ "github.com/mattn/go-sqlite3"
)

const keyPrefix = "matrix_quest_"

// ProgressStore keeps each record as one JSON value in an on-device key-value table.
type ProgressStore struct {
	db *sql.DB
}

// Open creates the database file if needed and initializes the table.
func Open(path string) (*ProgressStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// One writer at a time; read-modify-write below relies on it.
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if err = createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &ProgressStore{db: db}, nil
}

// Close closes the database connection
func (s *ProgressStore) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	return err
}

func (s *ProgressStore) Get(ctx context.Context, userKey string) (domain.ProgressRecord, error) {
	return get(ctx, s.db, userKey)
}

func (s *ProgressStore) Save(ctx context.Context, record domain.ProgressRecord) error {
	return put(ctx, s.db, record)
}

// IncrementAttempt reads, bumps and rewrites the record inside one transaction.
func (s *ProgressStore) IncrementAttempt(ctx context.Context, userKey string, questionID int) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	record, err := get(ctx, tx, userKey)
	if err != nil {
		return 0, err
	}
	record.Attempts[questionID]++
	if err := put(ctx, tx, record); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit attempt: %w", err)
	}
	return record.Attempts[questionID], nil
}

func (s *ProgressStore) List(ctx context.Context) ([]domain.ProgressRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT value FROM kv WHERE key GLOB ? ORDER BY key`, keyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()

	var out []domain.ProgressRecord
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		record, err := decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func get(ctx context.Context, q queryer, userKey string) (domain.ProgressRecord, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, keyPrefix+userKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ProgressRecord{}, domain.ErrProgressNotFound
	}
	if err != nil {
		return domain.ProgressRecord{}, fmt.Errorf("get progress: %w", err)
	}
	return decode(raw)
}

func put(ctx context.Context, q queryer, record domain.ProgressRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		keyPrefix+record.UserKey, string(raw),
	)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

func decode(raw string) (domain.ProgressRecord, error) {
	var record domain.ProgressRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return domain.ProgressRecord{}, fmt.Errorf("decode progress: %w", err)
	}
	if record.Attempts == nil {
		record.Attempts = make(map[int]int)
	}
	return record, nil
}
