package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tarotdesk/relay-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS profiles (
	id           TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	avatar_url   TEXT NOT NULL DEFAULT '',
	role         TEXT NOT NULL DEFAULT 'client',
	active       BOOLEAN NOT NULL DEFAULT 1,
	last_seen_at DATETIME,
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'active',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS session_participants (
	session_id TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	PRIMARY KEY (session_id, user_id),
	FOREIGN KEY (session_id) REFERENCES sessions(id),
	FOREIGN KEY (user_id) REFERENCES profiles(id)
);

CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	sender_id  TEXT NOT NULL,
	kind       TEXT NOT NULL DEFAULT 'text',
	content    TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(id),
	FOREIGN KEY (sender_id) REFERENCES profiles(id)
);

CREATE TABLE IF NOT EXISTS message_reactions (
	message_id TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	symbol     TEXT NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (message_id, user_id),
	FOREIGN KEY (message_id) REFERENCES messages(id),
	FOREIGN KEY (user_id) REFERENCES profiles(id)
);

CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at DESC);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== ProfileStore implementation ====

// GetProfile retrieves a profile by user ID.
func (s *SQLiteStore) GetProfile(ctx context.Context, id string) (*store.Profile, error) {
	query := `
		SELECT id, display_name, avatar_url, role, active, last_seen_at, created_at
		FROM profiles
		WHERE id = ?
	`
	var p store.Profile
	var lastSeen sql.NullTime
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.DisplayName, &p.AvatarURL, &p.Role, &p.Active, &lastSeen, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select profile: %w", err)
	}
	if lastSeen.Valid {
		p.LastSeenAt = &lastSeen.Time
	}
	return &p, nil
}

// TouchLastSeen updates the user's last-seen timestamp.
func (s *SQLiteStore) TouchLastSeen(ctx context.Context, id string, ts time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET last_seen_at = ? WHERE id = ?`, ts.UTC(), id)
	if err != nil {
		return fmt.Errorf("update last seen: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ==== SessionStore implementation ====

// GetSession retrieves a session and its authorized participant set.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*store.Session, error) {
	var sess store.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT id, status, created_at FROM sessions WHERE id = ?`, id).
		Scan(&sess.ID, &sess.Status, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM session_participants WHERE session_id = ? ORDER BY user_id`, id)
	if err != nil {
		return nil, fmt.Errorf("select participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		sess.Participants = append(sess.Participants, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}
	return &sess, nil
}

// ==== MessageStore implementation ====

// SaveMessage persists a message, assigning an ID when the caller left it empty.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) (string, error) {
	id := msg.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, sender_id, kind, content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, msg.SessionID, msg.SenderID, msg.Kind, msg.Content, msg.CreatedAt.UTC())
	if err != nil {
		return "", fmt.Errorf("insert message: %w", err)
	}
	msg.ID = id
	return id, nil
}

// ==== ReactionStore implementation ====

// SaveReaction upserts a reaction keyed on (message_id, user_id), so a
// second reaction from the same user replaces the first.
func (s *SQLiteStore) SaveReaction(ctx context.Context, r *store.Reaction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO message_reactions (message_id, user_id, symbol, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(message_id, user_id)
		 DO UPDATE SET symbol = excluded.symbol, updated_at = excluded.updated_at`,
		r.MessageID, r.UserID, r.Symbol, r.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert reaction: %w", err)
	}
	return nil
}

// ==== SeedStore implementation ====

// CreateProfile inserts a profile record.
func (s *SQLiteStore) CreateProfile(ctx context.Context, p *store.Profile) error {
	role := p.Role
	if role == "" {
		role = store.RoleClient
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, display_name, avatar_url, role, active)
		 VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.DisplayName, p.AvatarURL, role, p.Active)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

// CreateSession inserts a session record with its participants.
func (s *SQLiteStore) CreateSession(ctx context.Context, sess *store.Session) error {
	status := sess.Status
	if status == "" {
		status = store.SessionActive
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, status) VALUES (?, ?)`, sess.ID, status); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	for _, userID := range sess.Participants {
		if err := s.AddParticipant(ctx, sess.ID, userID); err != nil {
			return err
		}
	}
	return nil
}

// AddParticipant adds a user to a session's authorized set.
func (s *SQLiteStore) AddParticipant(ctx context.Context, sessionID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO session_participants (session_id, user_id) VALUES (?, ?)`,
		sessionID, userID)
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

// SetSessionStatus updates a session's status.
func (s *SQLiteStore) SetSessionStatus(ctx context.Context, sessionID string, status store.SessionStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ? WHERE id = ?`, status, sessionID)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
