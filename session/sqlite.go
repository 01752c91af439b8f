package session

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SqliteStore persists conversations in SQLite. Appends run in a
// transaction, so a batch of messages lands atomically.
type SqliteStore struct {
	db        *sql.DB
	tableName string
}

var _ Store = (*SqliteStore)(nil)

// SqliteOptions configuration for the SQLite database.
type SqliteOptions struct {
	Path      string
	TableName string // default "messages"
}

// NewSqliteStore opens the database and ensures the schema exists.
func NewSqliteStore(opts SqliteOptions) (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "messages"
	}

	store := &SqliteStore{db: db, tableName: tableName}
	if err := store.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SqliteStore) initSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_session_id ON %s (session_id, created_at);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Get loads the conversation ordered by insertion time.
func (s *SqliteStore) Get(ctx context.Context, sessionID string) (*Conversation, error) {
	query := fmt.Sprintf(`
		SELECT id, role, content, created_at
		FROM %s
		WHERE session_id = ?
		ORDER BY created_at, id
	`, s.tableName)

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	defer rows.Close()

	c := &Conversation{ID: sessionID}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		c.Messages = append(c.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session rows: %w", err)
	}
	if len(c.Messages) > 0 {
		c.CreatedAt = c.Messages[0].CreatedAt
		c.UpdatedAt = c.Messages[len(c.Messages)-1].CreatedAt
	}
	return c, nil
}

// Append inserts messages in one transaction.
func (s *SqliteStore) Append(ctx context.Context, sessionID string, messages ...Message) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (id, session_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, s.tableName)

	for _, m := range messages {
		if _, err := tx.ExecContext(ctx, query, m.ID, sessionID, m.Role, m.Content, m.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit append: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}
