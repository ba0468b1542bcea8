package domain

import (
	"strings"
	"time"
)

// HintThreshold is the number of attempts on one question after which its hint is shown.
const HintThreshold = 3

// Question is a single trivia item. IDs are 1-based and dense within a catalog.
type Question struct {
	ID     int    `json:"id" yaml:"id"`
	Text   string `json:"text" yaml:"text"`
	Answer string `json:"-" yaml:"answer"`
	Hint   string `json:"hint,omitempty" yaml:"hint,omitempty"`
}

// Matches compares a raw submission against the canonical answer. Only the
// submission is trimmed; both sides are compared case-insensitively.
func (q Question) Matches(raw string) bool {
	return strings.ToLower(strings.TrimSpace(raw)) == strings.ToLower(q.Answer)
}

// HintFor returns the hint once attempts reach HintThreshold.
func (q Question) HintFor(attempts int) (string, bool) {
	if q.Hint == "" || attempts < HintThreshold {
		return "", false
	}
	return q.Hint, true
}

// Credential is a username/password pair. Password may be plain text or a bcrypt hash.
type Credential struct {
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
}

// User is an authenticated identity. Key is the progress-store key: the username
// for static credentials, the profile id for hosted ones.
type User struct {
	Key      string
	Username string
}

// Session is the explicit handle a caller holds after login.
type Session struct {
	UserKey   string    `json:"userKey"`
	Username  string    `json:"username"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ProgressRecord is the persisted state of one user's run.
type ProgressRecord struct {
	UserKey         string      `json:"userKey"`
	Username        string      `json:"username"`
	CurrentQuestion int         `json:"currentQuestion"`
	Attempts        map[int]int `json:"attempts"`
	LoggedIn        bool        `json:"isLoggedIn"`
	Completed       bool        `json:"completed"`
	CompletedAt     *time.Time  `json:"completedAt,omitempty"`
}

// NewProgressRecord returns the record created on a user's first login.
func NewProgressRecord(userKey, username string) ProgressRecord {
	return ProgressRecord{
		UserKey:         userKey,
		Username:        username,
		CurrentQuestion: 1,
		Attempts:        make(map[int]int),
	}
}

// Clone returns a deep copy so stores never share the attempts map with callers.
func (p ProgressRecord) Clone() ProgressRecord {
	out := p
	out.Attempts = make(map[int]int, len(p.Attempts))
	for k, v := range p.Attempts {
		out.Attempts[k] = v
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// AttemptsFor returns the attempt count for a question, zero if never attempted.
func (p ProgressRecord) AttemptsFor(questionID int) int {
	return p.Attempts[questionID]
}

// AttemptCounter mirrors one attempts map entry as a row in the hosted store.
type AttemptCounter struct {
	UserKey    string
	QuestionID int
	Attempts   int
}

// AnswerResult summarizes the outcome of a submission.
type AnswerResult struct {
	Correct         bool   `json:"correct"`
	QuestionID      int    `json:"questionId,omitempty"`
	Attempts        int    `json:"attempts"`
	CurrentQuestion int    `json:"currentQuestion"`
	Completed       bool   `json:"completed"`
	HintVisible     bool   `json:"hintVisible"`
	Hint            string `json:"hint,omitempty"`
}

// Notification is the payload handed to a Notifier when a user advances.
type Notification struct {
	Username       string `json:"username"`
	QuestionNumber int    `json:"questionNumber"`
	Finished       bool   `json:"finished"`
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Rank            int        `json:"rank"`
	Username        string     `json:"username"`
	CurrentQuestion int        `json:"currentQuestion"`
	Solved          int        `json:"solved"`
	Completed       bool       `json:"completed"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	ProgressPercent int        `json:"progressPercent"`
}

// Leaderboard captures a ranked snapshot.
type Leaderboard struct {
	TotalQuestions int                `json:"totalQuestions"`
	Entries        []LeaderboardEntry `json:"entries"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}
