package db

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/lakshmanmandapati/tensora/internal/models"
	_ "modernc.org/sqlite"
)

// Open opens (and migrates) an archive database at the given path.
func Open(dbPath string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// single connection so the foreign_keys pragma holds for every query
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if _, err := conn.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = conn.Close()
		return nil, err
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS chats (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			conversation_id TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT NOT NULL,
			chat_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			role TEXT NOT NULL,
			type TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (chat_id, id),
			FOREIGN KEY(chat_id) REFERENCES chats(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chats_updated_at ON chats(updated_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat_id ON messages(chat_id, position);`,
	}
	for _, stmt := range schema {
		if _, err := conn.Exec(stmt); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	return conn, nil
}

// OpenDefault opens the archive in the user config directory.
func OpenDefault() (*sql.DB, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, herr := os.UserHomeDir()
		if herr != nil {
			return nil, err
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	dir := filepath.Join(configDir, "tensora")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return Open(filepath.Join(dir, "history.db"))
}

// SaveChat archives a chat snapshot, replacing any earlier archive of the
// same chat. Placeholder messages are never persisted.
func SaveChat(conn *sql.DB, c models.Chat) error {
	tx, err := conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO chats(id, title, conversation_id, created_at, updated_at) VALUES(?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title = excluded.title, conversation_id = excluded.conversation_id, updated_at = excluded.updated_at`,
		c.ID, c.Title, c.ConversationID, c.CreatedAt.Unix(), c.UpdatedAt.Unix(),
	)
	if err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM messages WHERE chat_id = ?", c.ID); err != nil {
		return err
	}
	for i, m := range c.Messages {
		if m.IsPlaceholder() {
			continue
		}
		_, err := tx.Exec(
			"INSERT INTO messages(id, chat_id, position, role, type, content, created_at) VALUES(?, ?, ?, ?, ?, ?, ?)",
			m.ID, c.ID, i, m.Role, m.Type, m.Content, m.Timestamp.Unix(),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentChats lists archived chats, most recently updated first.
func RecentChats(conn *sql.DB, limit, offset int) (int, []models.ChatListItem, error) {
	var count int
	if err := conn.QueryRow("SELECT COUNT(*) FROM chats").Scan(&count); err != nil {
		return 0, nil, err
	}

	rows, err := conn.Query(
		"SELECT id, title, updated_at FROM chats ORDER BY updated_at DESC LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	items := make([]models.ChatListItem, 0, limit)
	for rows.Next() {
		var it models.ChatListItem
		if err := rows.Scan(&it.ID, &it.Title, &it.UpdatedAtUnix); err != nil {
			return 0, nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}
	return count, items, nil
}

// LoadChat rebuilds a chat from the archive.
func LoadChat(conn *sql.DB, chatID string) (models.Chat, error) {
	var c models.Chat
	var created, updated int64
	err := conn.QueryRow(
		"SELECT id, title, conversation_id, created_at, updated_at FROM chats WHERE id = ?",
		chatID,
	).Scan(&c.ID, &c.Title, &c.ConversationID, &created, &updated)
	if err != nil {
		return models.Chat{}, err
	}
	c.CreatedAt = time.Unix(created, 0)
	c.UpdatedAt = time.Unix(updated, 0)

	rows, err := conn.Query(
		"SELECT id, role, type, content, created_at FROM messages WHERE chat_id = ? ORDER BY position ASC",
		chatID,
	)
	if err != nil {
		return models.Chat{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var m models.Message
		var ts int64
		if err := rows.Scan(&m.ID, &m.Role, &m.Type, &m.Content, &ts); err != nil {
			return models.Chat{}, err
		}
		m.Timestamp = time.Unix(ts, 0)
		c.Messages = append(c.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return models.Chat{}, err
	}
	return c, nil
}

// DeleteChat removes a chat and its messages from the archive.
func DeleteChat(conn *sql.DB, chatID string) error {
	_, err := conn.Exec("DELETE FROM chats WHERE id = ?", chatID)
	return err
}
