package chat

import (
	"database/sql"

	"github.com/akgaur12/converse/pkg/plugin"
)

// migrations returns the chat module's database migrations.
func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create conversations and turns tables",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE chat_conversations (
						id            TEXT PRIMARY KEY,
						user_id       TEXT NOT NULL,
						title         TEXT NOT NULL DEFAULT 'New Chat',
						message_count INTEGER NOT NULL DEFAULT 0,
						created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX idx_chat_conversations_user ON chat_conversations(user_id, updated_at)`,
					`CREATE TABLE chat_turns (
						id             INTEGER PRIMARY KEY AUTOINCREMENT,
						chat_id        TEXT NOT NULL REFERENCES chat_conversations(id) ON DELETE CASCADE,
						seq            INTEGER NOT NULL,
						user_text      TEXT NOT NULL,
						assistant_text TEXT NOT NULL,
						input_tokens   INTEGER NOT NULL DEFAULT 0,
						output_tokens  INTEGER NOT NULL DEFAULT 0,
						response_time  REAL NOT NULL DEFAULT 0,
						created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE UNIQUE INDEX idx_chat_turns_seq ON chat_turns(chat_id, seq)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
