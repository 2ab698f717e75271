package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/comigor/interview-bot/internal/logger"
)

// SQLiteStore persists one conversation as rows of the messages table,
// keyed by conversation id. No rows is an empty conversation.
type SQLiteStore struct {
	db             *sql.DB
	conversationID string
	prompt         string
}

// OpenSQLite opens (or creates) the database at path and ensures the
// messages table exists.
func OpenSQLite(path, conversationID, systemPrompt string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(10000)")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if _, err = db.Exec(`CREATE TABLE IF NOT EXISTS messages (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        conversation_id TEXT NOT NULL,
        role TEXT NOT NULL,
        content TEXT NOT NULL,
        created_at DATETIME
    );`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	logger.L.Info("sqlite history DB initialized", "path", path, "conversation", conversationID)
	return &SQLiteStore{db: db, conversationID: conversationID, prompt: systemPrompt}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Load returns the conversation's messages in insertion order.
func (s *SQLiteStore) Load(ctx context.Context) (Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT role, content FROM messages WHERE conversation_id = ? ORDER BY id ASC;`, s.conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var conv Conversation
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptData, err)
		}
		conv = append(conv, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if len(conv) == 0 {
		return Bootstrap(s.prompt), nil
	}
	if err := conv.Validate(); err != nil {
		return nil, err
	}
	return conv, nil
}

// Save replaces the conversation's rows in a single transaction.
func (s *SQLiteStore) Save(ctx context.Context, conv Conversation) error {
	if err := conv.Validate(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?;`, s.conversationID); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	now := time.Now().UTC()
	for _, m := range conv {
		if _, err := tx.ExecContext(ctx, `INSERT INTO messages (conversation_id, role, content, created_at) VALUES (?,?,?,?);`, s.conversationID, string(m.Role), m.Content, now); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}
