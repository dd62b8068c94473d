package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	full_name     TEXT NOT NULL,
	role          TEXT NOT NULL,
	department    TEXT NOT NULL DEFAULT '',
	active        BOOLEAN NOT NULL DEFAULT TRUE,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS memos (
	id                        TEXT PRIMARY KEY,
	memo_number               TEXT NOT NULL UNIQUE,
	title                     TEXT NOT NULL,
	memo_type                 TEXT NOT NULL,
	department                TEXT NOT NULL,
	body                      TEXT NOT NULL,
	priority                  TEXT NOT NULL,
	signature                 TEXT NOT NULL DEFAULT '',
	date_of_issue             DATE NOT NULL,
	tags                      TEXT[] NOT NULL DEFAULT '{}',
	attachments               JSONB NOT NULL DEFAULT '[]',
	status                    TEXT NOT NULL,
	recipients                TEXT[] NOT NULL DEFAULT '{}',
	created_by                TEXT NOT NULL,
	created_by_name           TEXT NOT NULL DEFAULT '',
	desk_head_id              TEXT,
	desk_head_name            TEXT,
	desk_head_comment         TEXT,
	desk_head_reviewed_at     TIMESTAMPTZ,
	leo_id                    TEXT,
	leo_name                  TEXT,
	leo_comment               TEXT,
	leo_reviewed_at           TIMESTAMPTZ,
	submitted_to_desk_head_at TIMESTAMPTZ,
	submitted_to_leo_at       TIMESTAMPTZ,
	approved_at               TIMESTAMPTZ,
	version                   INTEGER NOT NULL DEFAULT 1,
	created_at                TIMESTAMPTZ NOT NULL,
	updated_at                TIMESTAMPTZ NOT NULL,
	deleted_at                TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_memos_status ON memos (status) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_memos_department ON memos (department) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_memos_recipients ON memos USING GIN (recipients);

CREATE TABLE IF NOT EXISTS memo_workflow_history (
	id          TEXT PRIMARY KEY,
	memo_id     TEXT NOT NULL REFERENCES memos (id),
	sequence    INTEGER NOT NULL,
	action      TEXT NOT NULL,
	from_status TEXT,
	to_status   TEXT NOT NULL,
	actor_id    TEXT NOT NULL,
	actor_role  TEXT NOT NULL,
	actor_name  TEXT NOT NULL DEFAULT '',
	comment     TEXT,
	created_at  TIMESTAMPTZ NOT NULL,
	UNIQUE (memo_id, sequence)
);
`

// EnsureSchema creates the memo tables when they do not exist yet.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
