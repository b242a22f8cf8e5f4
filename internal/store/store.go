// Package store manages conversation persistence: sessions, messages,
// feedback and request logs in PostgreSQL.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/uovfts/faculty-assistant/internal/log"
)

// foreignKeyViolation is the PostgreSQL error code for FK failures.
const foreignKeyViolation = "23503"

// DB is the subset of pgxpool.Pool the store depends on.
// Consumer-defined so tests can substitute a fake.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Store persists sessions, messages and feedback.
// Safe for concurrent use.
type Store struct {
	db     DB
	logger log.Logger
}

// New creates a Store.
func New(db DB, logger log.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// EnsureSession creates the session if it does not exist yet. Chat requests
// may carry a client-generated session id before any row exists for it.
func (s *Store) EnsureSession(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO sessions (id) VALUES ($1)
		ON CONFLICT (id) DO NOTHING`, id)
	if err != nil {
		return fmt.Errorf("ensuring session %s: %w", id, err)
	}
	return nil
}

// GetSession fetches one session by id.
func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	var sess Session
	err := s.db.QueryRow(ctx, `
		SELECT id, created_at, updated_at FROM sessions WHERE id = $1`, id).
		Scan(&sess.ID, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting session %s: %w", id, err)
	}
	return &sess, nil
}

// SaveMessage appends one turn to a session and bumps the session's
// updated_at. Citations may be nil for user messages.
func (s *Store) SaveMessage(ctx context.Context, sessionID uuid.UUID, role, content string, citations []Citation) (*Message, error) {
	if citations == nil {
		citations = []Citation{}
	}
	citationsJSON, err := json.Marshal(citations)
	if err != nil {
		return nil, fmt.Errorf("marshaling citations: %w", err)
	}

	msg := Message{SessionID: sessionID, Role: role, Content: content, Citations: citations}
	err = s.db.QueryRow(ctx, `
		INSERT INTO messages (session_id, role, content, citations)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		sessionID, role, content, citationsJSON).
		Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("saving %s message: %w", role, err)
	}

	if _, err := s.db.Exec(ctx, `
		UPDATE sessions SET updated_at = now() WHERE id = $1`, sessionID); err != nil {
		// The message is saved; a stale updated_at is not worth failing for.
		s.logger.Warn("failed to bump session updated_at", "session_id", sessionID, "error", err)
	}

	return &msg, nil
}

// GetMessages returns up to limit most recent messages of a session in
// chronological order. limit <= 0 means no limit.
func (s *Store) GetMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]Message, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, session_id, role, content, citations, created_at
		FROM (
			SELECT id, session_id, role, content, citations, created_at
			FROM messages
			WHERE session_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC`
	if limit <= 0 {
		limit = 1 << 30
	}

	rows, err := s.db.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing messages for %s: %w", sessionID, err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var (
			m             Message
			citationsJSON []byte
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &citationsJSON, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		if err := json.Unmarshal(citationsJSON, &m.Citations); err != nil {
			return nil, fmt.Errorf("unmarshaling citations for message %s: %w", m.ID, err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading messages for %s: %w", sessionID, err)
	}
	return messages, nil
}

// SaveFeedback records a rating for one assistant message. The message must
// belong to the given session; nothing is written otherwise.
func (s *Store) SaveFeedback(ctx context.Context, f Feedback) error {
	if f.Rating != RatingUp && f.Rating != RatingDown {
		return fmt.Errorf("%w: %q", ErrInvalidRating, f.Rating)
	}

	tag, err := s.db.Exec(ctx, `
		INSERT INTO feedback (session_id, message_id, rating, comment)
		SELECT $1, $2, $3, NULLIF($4, '')
		WHERE EXISTS (
			SELECT 1 FROM messages WHERE id = $2 AND session_id = $1
		)`,
		f.SessionID, f.MessageID, f.Rating, f.Comment)
	if err != nil {
		return fmt.Errorf("saving feedback for message %s: %w", f.MessageID, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetSession(ctx, f.SessionID); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrMessageNotFound, f.MessageID)
	}
	return nil
}

// LogRequest writes one request log row. Logging must never fail the request
// being logged, so errors land in the application log only.
func (s *Store) LogRequest(ctx context.Context, rl RequestLog) {
	var sessionID any
	if rl.SessionID != uuid.Nil {
		sessionID = rl.SessionID
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO request_logs (endpoint, session_id, latency_ms, status_code, error)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))`,
		rl.Endpoint, sessionID, rl.LatencyMS, rl.StatusCode, rl.Error)
	if err != nil {
		s.logger.Warn("failed to write request log", "endpoint", rl.Endpoint, "error", err)
	}
}

// Ping verifies database connectivity for the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("pinging session store: %w", err)
	}
	return nil
}
