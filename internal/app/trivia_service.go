package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"matrix-quest-service/internal/catalog"
	"matrix-quest-service/internal/domain"
	"go.uber.org/zap"
)

// ProgressStore abstracts where progress records live (in-memory, on-device, Redis, Postgres).
// Save must be idempotent: saving the same record twice leaves the same stored state.
type ProgressStore interface {
	Get(ctx context.Context, userKey string) (domain.ProgressRecord, error)
	Save(ctx context.Context, record domain.ProgressRecord) error
	IncrementAttempt(ctx context.Context, userKey string, questionID int) (int, error)
	List(ctx context.Context) ([]domain.ProgressRecord, error)
}

// CredentialStore validates logins. Every failure to match is domain.ErrInvalidCredentials.
type CredentialStore interface {
	Authenticate(ctx context.Context, username, password string) (domain.User, error)
}

// Notifier announces progress milestones. Implementations used by the engine must not block.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// ProgressObserver is told whenever a record is created or advances.
type ProgressObserver interface {
	ProgressChanged(record domain.ProgressRecord)
}

// TriviaService is the trivia engine: login, answer checking and advancement.
type TriviaService struct {
	catalog     *catalog.Catalog
	credentials CredentialStore
	progress    ProgressStore
	notifier    Notifier
	observers   []ProgressObserver
	logger      *zap.Logger
	now         func() time.Time
}

// Option customizes a TriviaService.
type Option func(*TriviaService)

// WithNotifier sets the milestone notifier.
func WithNotifier(n Notifier) Option {
	return func(s *TriviaService) { s.notifier = n }
}

// WithObserver registers a progress observer (e.g., the leaderboard feed).
func WithObserver(o ProgressObserver) Option {
	return func(s *TriviaService) { s.observers = append(s.observers, o) }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *TriviaService) { s.logger = l }
}

// WithClock is test-only for deterministic completion timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *TriviaService) { s.now = now }
}

func NewTriviaService(cat *catalog.Catalog, credentials CredentialStore, progress ProgressStore, opts ...Option) *TriviaService {
	s := &TriviaService{
		catalog:     cat,
		credentials: credentials,
		progress:    progress,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TotalQuestions is the catalog size.
func (s *TriviaService) TotalQuestions() int {
	return s.catalog.Len()
}

// Login validates credentials and loads or creates the caller's record, marking it logged in.
func (s *TriviaService) Login(ctx context.Context, username, password string) (domain.Session, error) {
	user, err := s.credentials.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			s.logger.Info("login denied", zap.String("username", username))
			return domain.Session{}, domain.ErrInvalidCredentials
		}
		return domain.Session{}, fmt.Errorf("authenticate: %w", err)
	}

	record, err := s.progress.Get(ctx, user.Key)
	created := false
	switch {
	case errors.Is(err, domain.ErrProgressNotFound):
		record = domain.NewProgressRecord(user.Key, user.Username)
		created = true
	case err != nil:
		return domain.Session{}, fmt.Errorf("load progress: %w", err)
	}

	record.LoggedIn = true
	if record.Username == "" {
		record.Username = user.Username
	}
	if err := s.progress.Save(ctx, record); err != nil {
		return domain.Session{}, fmt.Errorf("save progress: %w", err)
	}
	if created {
		s.publish(record)
	}

	s.logger.Info("login", zap.String("username", user.Username), zap.Int("currentQuestion", record.CurrentQuestion))
	return domain.Session{
		UserKey:  user.Key,
		Username: user.Username,
		IssuedAt: s.now(),
	}, nil
}

// Logout clears the logged-in flag. Progress is kept.
func (s *TriviaService) Logout(ctx context.Context, userKey string) error {
	record, err := s.progress.Get(ctx, userKey)
	if errors.Is(err, domain.ErrProgressNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load progress: %w", err)
	}
	if !record.LoggedIn {
		return nil
	}
	record.LoggedIn = false
	if err := s.progress.Save(ctx, record); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// Progress returns the caller's record as stored.
func (s *TriviaService) Progress(ctx context.Context, userKey string) (domain.ProgressRecord, error) {
	return s.progress.Get(ctx, userKey)
}

// GetCurrentQuestion returns the question the user is on. ok is false when the record is
// absent, the user is logged out, or every question has been answered.
func (s *TriviaService) GetCurrentQuestion(ctx context.Context, userKey string) (domain.Question, bool, error) {
	_, q, ok, err := s.active(ctx, userKey)
	return q, ok, err
}

// SubmitAnswer counts the attempt, checks the answer and advances on success.
// With no current question it returns a zero result and touches nothing.
func (s *TriviaService) SubmitAnswer(ctx context.Context, userKey, raw string) (domain.AnswerResult, error) {
	record, q, ok, err := s.active(ctx, userKey)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	if !ok {
		return domain.AnswerResult{
			CurrentQuestion: record.CurrentQuestion,
			Completed:       s.complete(record),
		}, nil
	}

	count, err := s.progress.IncrementAttempt(ctx, userKey, q.ID)
	if err != nil {
		return domain.AnswerResult{}, fmt.Errorf("increment attempts: %w", err)
	}
	record.Attempts[q.ID] = count

	result := domain.AnswerResult{
		QuestionID:      q.ID,
		Attempts:        count,
		CurrentQuestion: record.CurrentQuestion,
	}
	if !q.Matches(raw) {
		result.Hint, result.HintVisible = q.HintFor(count)
		return result, nil
	}

	record.CurrentQuestion++
	if record.CurrentQuestion > s.catalog.Len() {
		completedAt := s.now().UTC()
		record.Completed = true
		record.CompletedAt = &completedAt
	}
	if err := s.progress.Save(ctx, record); err != nil {
		return domain.AnswerResult{}, fmt.Errorf("save progress: %w", err)
	}

	result.Correct = true
	result.CurrentQuestion = record.CurrentQuestion
	result.Completed = record.Completed
	if next, ok := s.catalog.Question(record.CurrentQuestion); ok {
		result.Hint, result.HintVisible = next.HintFor(record.AttemptsFor(next.ID))
	}

	s.notify(ctx, record)
	s.publish(record)
	return result, nil
}

// GetAttemptsForCurrentQuestion is read-only; zero when there is no record.
func (s *TriviaService) GetAttemptsForCurrentQuestion(ctx context.Context, userKey string) (int, error) {
	record, err := s.progress.Get(ctx, userKey)
	if errors.Is(err, domain.ErrProgressNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load progress: %w", err)
	}
	return record.AttemptsFor(record.CurrentQuestion), nil
}

// IsComplete reports whether currentQuestion has moved past the last question.
func (s *TriviaService) IsComplete(ctx context.Context, userKey string) (bool, error) {
	record, err := s.progress.Get(ctx, userKey)
	if errors.Is(err, domain.ErrProgressNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load progress: %w", err)
	}
	return s.complete(record), nil
}

func (s *TriviaService) complete(record domain.ProgressRecord) bool {
	return record.CurrentQuestion > s.catalog.Len()
}

func (s *TriviaService) active(ctx context.Context, userKey string) (domain.ProgressRecord, domain.Question, bool, error) {
	record, err := s.progress.Get(ctx, userKey)
	if errors.Is(err, domain.ErrProgressNotFound) {
		return domain.ProgressRecord{}, domain.Question{}, false, nil
	}
	if err != nil {
		return domain.ProgressRecord{}, domain.Question{}, false, fmt.Errorf("load progress: %w", err)
	}
	if record.Attempts == nil {
		record.Attempts = make(map[int]int)
	}
	if !record.LoggedIn {
		return record, domain.Question{}, false, nil
	}
	q, ok := s.catalog.Question(record.CurrentQuestion)
	return record, q, ok, nil
}

func (s *TriviaService) notify(ctx context.Context, record domain.ProgressRecord) {
	if s.notifier == nil {
		return
	}
	number := record.CurrentQuestion
	if number > s.catalog.Len() {
		number = s.catalog.Len()
	}
	err := s.notifier.Notify(ctx, domain.Notification{
		Username:       record.Username,
		QuestionNumber: number,
		Finished:       record.Completed,
	})
	if err != nil {
		s.logger.Warn("progress notification failed", zap.String("username", record.Username), zap.Error(err))
	}
}

func (s *TriviaService) publish(record domain.ProgressRecord) {
	for _, o := range s.observers {
		o.ProgressChanged(record)
	}
}
