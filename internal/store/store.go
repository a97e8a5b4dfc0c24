package store

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/batalabs/gramd/internal/config"
	"github.com/batalabs/gramd/internal/domain"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database recording relayed traffic. It backs the
// /status counters and gives operators an audit trail of what the bot did.
type Store struct {
	db *sql.DB
}

// Direction values for logged messages.
const (
	DirInbound  = "inbound"
	DirOutbound = "outbound"
)

// LogEntry is one recorded message.
type LogEntry struct {
	ID        string
	ChatID    int64
	UserID    int64
	ChatType  string
	Direction string
	Text      string
	ToolCalls int
	InTokens  int
	OutTokens int
	ErrText   string
	CreatedAt time.Time
}

// Stats summarizes logged traffic for /status.
type Stats struct {
	Relayed      int64
	Failed       int64
	LastActivity time.Time
}

// OpenStore opens (or creates) the SQLite database in the gramd data
// directory.
func OpenStore() (*Store, error) {
	dir, err := config.DataDir()
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	dsn := filepath.Join(dir, "gramd.db")

	db, err := sql.Open("sqlite", dsn+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewFromDB creates a Store from an existing *sql.DB and runs migrations.
// This is useful for testing with an in-memory database.
func NewFromDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			chat_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			chat_type TEXT NOT NULL DEFAULT 'private',
			direction TEXT NOT NULL,
			content TEXT NOT NULL,
			tool_calls INTEGER NOT NULL DEFAULT 0,
			input_tokens INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			error_text TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		);
	`); err != nil {
		return err
	}

	_, err := s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_messages_errors ON messages(error_text) WHERE error_text != '';
	`)
	return err
}

// LogMessage inserts one traffic record. Logging failures are returned to
// the caller but should never abort message handling.
func (s *Store) LogMessage(e LogEntry) error {
	if e.ID == "" {
		e.ID = domain.NewUUID()
	}
	_, err := s.db.Exec(
		`INSERT INTO messages (id, chat_id, user_id, chat_type, direction, content, tool_calls, input_tokens, output_tokens, error_text)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ChatID, e.UserID, e.ChatType, e.Direction, e.Text, e.ToolCalls, e.InTokens, e.OutTokens, e.ErrText,
	)
	return err
}

// Stats returns totals over all outbound traffic.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	var last sql.NullString
	err := s.db.QueryRow(`
		SELECT
			COUNT(CASE WHEN direction = ? AND error_text = '' THEN 1 END),
			COUNT(CASE WHEN error_text != '' THEN 1 END),
			MAX(created_at)
		FROM messages`, DirOutbound,
	).Scan(&st.Relayed, &st.Failed, &last)
	if err != nil {
		return Stats{}, err
	}
	if last.Valid {
		if t, perr := time.Parse("2006-01-02 15:04:05", last.String); perr == nil {
			st.LastActivity = t.UTC()
		}
	}
	return st, nil
}

// RecentErrors returns the most recent failed relays, newest first.
func (s *Store) RecentErrors(limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`
		SELECT id, chat_id, user_id, chat_type, direction, content, tool_calls, input_tokens, output_tokens, error_text, created_at
		FROM messages
		WHERE error_text != ''
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		var created string
		if err := rows.Scan(&e.ID, &e.ChatID, &e.UserID, &e.ChatType, &e.Direction, &e.Text,
			&e.ToolCalls, &e.InTokens, &e.OutTokens, &e.ErrText, &created); err != nil {
			return nil, err
		}
		if t, perr := time.Parse("2006-01-02 15:04:05", created); perr == nil {
			e.CreatedAt = t.UTC()
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
