package storage

import (
	"context"

	"github.com/jmoiron/sqlx"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS articles (
		id                   BIGSERIAL PRIMARY KEY,
		type                 TEXT NOT NULL DEFAULT '',
		source               TEXT NOT NULL DEFAULT '',
		title                TEXT NOT NULL DEFAULT '',
		date                 TEXT NOT NULL DEFAULT '',
		url                  TEXT NOT NULL UNIQUE,
		detail_time          TEXT,
		click_num            BIGINT,
		content              TEXT,
		total_content        TEXT,
		attachments          TEXT,
		attachment_downloads BIGINT,
		raw_html             TEXT NOT NULL DEFAULT '',
		created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS platforms (
		id   BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS subscribers (
		id             BIGSERIAL PRIMARY KEY,
		email          TEXT NOT NULL UNIQUE,
		all_platforms  BOOLEAN NOT NULL DEFAULT TRUE,
		send_frequency INT NOT NULL DEFAULT 24,
		last_sent_at   TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS subscriber_platform (
		subscriber_id BIGINT NOT NULL REFERENCES subscribers (id) ON DELETE CASCADE,
		platform_id   BIGINT NOT NULL REFERENCES platforms (id),
		PRIMARY KEY (subscriber_id, platform_id)
	)`,
	`CREATE TABLE IF NOT EXISTS email_stats (
		id                BIGSERIAL PRIMARY KEY,
		total_emails_sent BIGINT NOT NULL DEFAULT 0
	)`,
}

// InitSchema creates the tables when they do not exist yet.
func InitSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}
