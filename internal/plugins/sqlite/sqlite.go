// Package sqlite persists room message logs in an embedded SQLite file.
package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	room_id   TEXT NOT NULL,
	id        TEXT NOT NULL,
	author    TEXT NOT NULL,
	role      TEXT NOT NULL,
	content   TEXT NOT NULL DEFAULT '',
	user_type TEXT NOT NULL DEFAULT '',
	seq       INTEGER NOT NULL,
	PRIMARY KEY (room_id, id)
);

CREATE INDEX IF NOT EXISTS messages_room_seq ON messages (room_id, seq);
`

// New opens (creating if needed) the database at path and applies the schema.
func New(ctx context.Context, path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer keeps per-room upserts ordered
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return db, nil
}
