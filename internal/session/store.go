package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pokescout/internal/domain"
)

// ErrNotFound is returned when a session ID does not exist.
var ErrNotFound = errors.New("session: not found")

// newID is the session ID generator; tests may replace it for determinism.
var newID = uuid.NewString

// Store persists chat sessions and their messages in the chat_sessions and
// messages tables. Session IDs are UUIDs assigned at creation.
type Store struct {
	db  *sql.DB
	now func() time.Time // injectable for timestamp tests
}

// NewStore returns a session store over db. db must not be nil.
func NewStore(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("session store: db must not be nil")
	}
	return &Store{db: db, now: time.Now}, nil
}

// Create inserts a new session with the given title and returns it.
// An empty title gets the default "New Chat".
func (s *Store) Create(ctx context.Context, title string) (*domain.ChatSession, error) {
	if title == "" {
		title = "New Chat"
	}
	sess := &domain.ChatSession{
		SessionID:  newID(),
		Title:      title,
		CreatedAt:  s.now().UTC(),
		LastActive: s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (session_id, title, created_at, last_active) VALUES (?, ?, ?, ?)`,
		sess.SessionID, sess.Title, sess.CreatedAt, sess.LastActive)
	if err != nil {
		return nil, fmt.Errorf("session create: %w", err)
	}
	return sess, nil
}

// Get returns the session with the given ID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, sessionID string) (*domain.ChatSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, title, created_at, last_active FROM chat_sessions WHERE session_id = ?`,
		sessionID)
	var sess domain.ChatSession
	if err := row.Scan(&sess.SessionID, &sess.Title, &sess.CreatedAt, &sess.LastActive); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
		}
		return nil, fmt.Errorf("session get: %w", err)
	}
	return &sess, nil
}

// List returns all sessions, most recently active first.
func (s *Store) List(ctx context.Context) ([]domain.ChatSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, title, created_at, last_active FROM chat_sessions ORDER BY last_active DESC`)
	if err != nil {
		return nil, fmt.Errorf("session list: %w", err)
	}
	defer rows.Close()

	sessions := make([]domain.ChatSession, 0)
	for rows.Next() {
		var sess domain.ChatSession
		if err := rows.Scan(&sess.SessionID, &sess.Title, &sess.CreatedAt, &sess.LastActive); err != nil {
			return nil, fmt.Errorf("session list scan: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// Touch bumps a session's last_active timestamp.
func (s *Store) Touch(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chat_sessions SET last_active = ? WHERE session_id = ?`,
		s.now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("session touch: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return nil
}

// AppendMessage stores a message in a session and bumps its activity. The
// session must exist. Metadata, when present, is stored as JSON.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, role domain.MessageRole, content string, metadata map[string]any) (*domain.ChatMessage, error) {
	if _, err := s.Get(ctx, sessionID); err != nil {
		return nil, err
	}

	var metaJSON sql.NullString
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("session message metadata: %w", err)
		}
		metaJSON = sql.NullString{String: string(raw), Valid: true}
	}

	ts := s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (session_id, role, content, timestamp, metadata) VALUES (?, ?, ?, ?, ?)`,
		sessionID, string(role), content, ts, metaJSON)
	if err != nil {
		return nil, fmt.Errorf("session message insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("session message id: %w", err)
	}
	if err := s.Touch(ctx, sessionID); err != nil {
		return nil, err
	}

	return &domain.ChatMessage{
		ID:        id,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: ts,
		Metadata:  metadata,
	}, nil
}

// Messages returns a session's messages in chronological order. The session
// must exist; a session with no messages returns an empty slice.
func (s *Store) Messages(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	if _, err := s.Get(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, timestamp, metadata FROM messages WHERE session_id = ? ORDER BY id`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("session messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]domain.ChatMessage, 0)
	for rows.Next() {
		var (
			msg      domain.ChatMessage
			role     string
			metaJSON sql.NullString
		)
		if err := rows.Scan(&msg.ID, &msg.SessionID, &role, &msg.Content, &msg.Timestamp, &metaJSON); err != nil {
			return nil, fmt.Errorf("session messages scan: %w", err)
		}
		msg.Role = domain.MessageRole(role)
		if metaJSON.Valid && metaJSON.String != "" {
			if err := json.Unmarshal([]byte(metaJSON.String), &msg.Metadata); err != nil {
				// Corrupt metadata is dropped, not fatal.
				msg.Metadata = nil
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// Delete removes a session and its messages.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("session delete begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("session delete messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM chat_sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return tx.Commit()
}
