// Package audit persists generation attempts. Only attempt metadata is
// stored; rule content never reaches the database.
package audit

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/solatis/rulesmith/internal/conversation"
	"github.com/solatis/rulesmith/internal/core/db"
	"github.com/solatis/rulesmith/internal/types"
)

// maxErrorLength bounds stored error text; model errors can echo whole responses.
const maxErrorLength = 1024

// Store records and lists attempts through the named audit queries.
type Store struct {
	queries *db.Queries
}

var _ conversation.Recorder = (*Store)(nil)

// NewStore wraps loaded queries.
func NewStore(q *db.Queries) *Store {
	return &Store{queries: q}
}

type attemptRow struct {
	AttemptID    string `db:"attempt_id"`
	SessionID    string `db:"session_id"`
	Phase        string `db:"phase"`
	Outcome      string `db:"outcome"`
	ErrorMessage string `db:"error_message"`
	Model        string `db:"model"`
	RuleCount    int    `db:"rule_count"`
	DurationMs   int64  `db:"duration_ms"`
	CreatedAt    string `db:"created_at"`
}

// RecordAttempt inserts one attempt.
func (s *Store) RecordAttempt(ctx context.Context, a conversation.Attempt) error {
	msg := truncate(a.Error, maxErrorLength)
	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err := s.queries.Exec(ctx, "insert-attempt",
		string(a.ID),
		string(a.SessionID),
		string(a.Phase),
		string(a.Outcome),
		msg,
		a.Model,
		a.RuleCount,
		a.Duration.Milliseconds(),
		created.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to record attempt %s: %w", a.ID, err)
	}
	return nil
}

// ListBySession returns a session's attempts oldest first.
func (s *Store) ListBySession(ctx context.Context, id types.SessionID) ([]conversation.Attempt, error) {
	var rows []attemptRow
	if err := s.queries.Select(ctx, "list-attempts-by-session", &rows, string(id)); err != nil {
		return nil, fmt.Errorf("failed to list attempts for session %s: %w", id, err)
	}
	return toAttempts(rows)
}

// Recent returns up to limit attempts, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]conversation.Attempt, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	var rows []attemptRow
	if err := s.queries.Select(ctx, "list-recent-attempts", &rows, limit); err != nil {
		return nil, fmt.Errorf("failed to list recent attempts: %w", err)
	}
	return toAttempts(rows)
}

// OutcomeCounts tallies attempts by outcome.
func (s *Store) OutcomeCounts(ctx context.Context) (map[conversation.Outcome]int, error) {
	var rows []struct {
		Outcome  string `db:"outcome"`
		Attempts int    `db:"attempts"`
	}
	if err := s.queries.Select(ctx, "count-attempts-by-outcome", &rows); err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}
	out := make(map[conversation.Outcome]int, len(rows))
	for _, r := range rows {
		out[conversation.Outcome(r.Outcome)] = r.Attempts
	}
	return out, nil
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func toAttempts(rows []attemptRow) ([]conversation.Attempt, error) {
	out := make([]conversation.Attempt, 0, len(rows))
	for _, r := range rows {
		created, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("attempt %s: invalid created_at %q: %w", r.AttemptID, r.CreatedAt, err)
		}
		out = append(out, conversation.Attempt{
			ID:        types.AttemptID(r.AttemptID),
			SessionID: types.SessionID(r.SessionID),
			Phase:     conversation.Phase(r.Phase),
			Outcome:   conversation.Outcome(r.Outcome),
			Error:     r.ErrorMessage,
			Model:     r.Model,
			RuleCount: r.RuleCount,
			Duration:  time.Duration(r.DurationMs) * time.Millisecond,
			CreatedAt: created,
		})
	}
	return out, nil
}
