package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store manages session and message persistence.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a session Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// CreateSession starts a new conversation. An empty title is stored as NULL.
func (s *Store) CreateSession(ctx context.Context, title string) (*Session, error) {
	var titlePtr *string
	if title != "" {
		titlePtr = &title
	}

	var sess Session
	var storedTitle *string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO sessions (title)
		 VALUES ($1)
		 RETURNING id, title, created_at, updated_at`,
		titlePtr,
	).Scan(&sess.ID, &storedTitle, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	if storedTitle != nil {
		sess.Title = *storedTitle
	}

	s.logger.Debug("created session", "id", sess.ID, "title", sess.Title)
	return &sess, nil
}

// GetSession retrieves a session by ID.
func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	var sess Session
	var title *string
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, created_at, updated_at FROM sessions WHERE id = $1`,
		id,
	).Scan(&sess.ID, &title, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting session %s: %w", id, err)
	}
	if title != nil {
		sess.Title = *title
	}
	return &sess, nil
}

// ListSessions returns sessions most recently updated first.
func (s *Store) ListSessions(ctx context.Context, limit, offset int) ([]*Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, created_at, updated_at
		 FROM sessions
		 ORDER BY updated_at DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var sess Session
		var title *string
		if err := rows.Scan(&sess.ID, &title, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		if title != nil {
			sess.Title = *title
		}
		sessions = append(sessions, &sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading session rows: %w", err)
	}
	return sessions, nil
}

// DeleteSession removes a session and all its messages.
func (s *Store) DeleteSession(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

// appendRetries bounds retries when concurrent appends race for the same
// sequence number.
const appendRetries = 3

// AppendMessage adds one turn to a session's transcript and bumps the
// session's updated_at. Two concurrent appends to the same session can
// compute the same next sequence number; the loser hits the unique
// constraint and the insert is retried.
func (s *Store) AppendMessage(ctx context.Context, sessionID uuid.UUID, role, content, route string) (*Message, error) {
	if role != RoleUser && role != RoleAssistant {
		return nil, fmt.Errorf("invalid role %q", role)
	}

	for attempt := 0; ; attempt++ {
		msg, err := s.appendOnce(ctx, sessionID, role, content, route)
		if err == nil {
			return msg, nil
		}
		if attempt < appendRetries && isUniqueViolation(err) {
			s.logger.Debug("sequence collision, retrying append",
				"session_id", sessionID, "attempt", attempt+1)
			continue
		}
		return nil, err
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func (s *Store) appendOnce(ctx context.Context, sessionID uuid.UUID, role, content, route string) (*Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	var routePtr *string
	if route != "" {
		routePtr = &route
	}

	msg := Message{SessionID: sessionID, Role: role, Content: content, Route: route}
	err = tx.QueryRow(ctx,
		`INSERT INTO messages (session_id, role, content, route, sequence)
		 VALUES ($1, $2, $3, $4,
		         (SELECT COALESCE(MAX(sequence), 0) + 1 FROM messages WHERE session_id = $1))
		 RETURNING id, sequence, created_at`,
		sessionID, role, content, routePtr,
	).Scan(&msg.ID, &msg.Sequence, &msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("appending message: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE sessions SET updated_at = now() WHERE id = $1`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("touching session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing message: %w", err)
	}
	return &msg, nil
}

// Messages returns a session's transcript in turn order.
func (s *Store) Messages(ctx context.Context, sessionID uuid.UUID) ([]*Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, role, content, route, sequence, created_at
		 FROM messages
		 WHERE session_id = $1
		 ORDER BY sequence`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var msg Message
		var route *string
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content,
			&route, &msg.Sequence, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		if route != nil {
			msg.Route = *route
		}
		msgs = append(msgs, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading message rows: %w", err)
	}
	return msgs, nil
}
