package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// migration is one schema version. Versions are applied once, in order,
// at startup; the schema is never probed at request time.
type migration struct {
	version     int
	description string
	statements  []string
}

var migrations = []migration{
	{
		version:     1,
		description: "initial schema",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS pending_approvals (
				token TEXT PRIMARY KEY,
				user_id TEXT NOT NULL DEFAULT '',
				sender_name TEXT NOT NULL DEFAULT '',
				incoming_msg TEXT NOT NULL DEFAULT '',
				ai_suggestion TEXT NOT NULL DEFAULT '',
				language TEXT NOT NULL DEFAULT '',
				message_type TEXT NOT NULL DEFAULT 'unknown',
				urgency TEXT NOT NULL DEFAULT 'medium',
				confidence INTEGER NOT NULL DEFAULT 0,
				action TEXT NOT NULL DEFAULT 'queue_approval',
				reason TEXT NOT NULL DEFAULT '',
				escalate_to TEXT NOT NULL DEFAULT '',
				is_group INTEGER NOT NULL DEFAULT 0,
				chat_id TEXT NOT NULL DEFAULT '',
				chat_title TEXT NOT NULL DEFAULT '',
				topic_id TEXT NOT NULL DEFAULT '',
				topic_name TEXT NOT NULL DEFAULT '',
				source_language TEXT NOT NULL DEFAULT '',
				translated_message TEXT NOT NULL DEFAULT '',
				original_message TEXT NOT NULL DEFAULT '',
				created_at INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_pending_approvals_created ON pending_approvals(created_at)`,

			`CREATE TABLE IF NOT EXISTS outbound_jobs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				recipient_id TEXT NOT NULL DEFAULT '',
				message TEXT NOT NULL,
				chat_id TEXT NOT NULL DEFAULT '',
				topic_id TEXT NOT NULL DEFAULT '',
				is_group INTEGER NOT NULL DEFAULT 0,
				target_language TEXT NOT NULL DEFAULT '',
				original_message TEXT NOT NULL DEFAULT '',
				sender_identity TEXT NOT NULL DEFAULT 'human',
				category TEXT NOT NULL DEFAULT 'response',
				created_at INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_outbound_jobs_sender ON outbound_jobs(sender_identity, created_at)`,

			`CREATE TABLE IF NOT EXISTS message_corrections (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id TEXT NOT NULL DEFAULT '',
				user_name TEXT NOT NULL DEFAULT '',
				incoming_message TEXT NOT NULL,
				ai_suggestion TEXT NOT NULL,
				your_edit TEXT NOT NULL,
				language TEXT NOT NULL DEFAULT '',
				is_group INTEGER NOT NULL DEFAULT 0,
				chat_title TEXT NOT NULL DEFAULT '',
				created_at INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_corrections_language ON message_corrections(language, created_at)`,

			`CREATE TABLE IF NOT EXISTS user_languages (
				user_id TEXT PRIMARY KEY,
				language TEXT NOT NULL,
				language_name TEXT NOT NULL,
				auto_translate INTEGER NOT NULL DEFAULT 1,
				updated_at INTEGER NOT NULL
			)`,

			`CREATE TABLE IF NOT EXISTS translation_cache (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				original_text TEXT NOT NULL,
				source_lang TEXT NOT NULL DEFAULT '',
				target_lang TEXT NOT NULL,
				translated_text TEXT NOT NULL,
				created_at INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_translation_cache_key ON translation_cache(original_text, target_lang)`,

			`CREATE TABLE IF NOT EXISTS translation_markers (
				message_id TEXT PRIMARY KEY,
				chat_id TEXT NOT NULL DEFAULT '',
				topic_id TEXT NOT NULL DEFAULT '',
				original_text TEXT NOT NULL DEFAULT '',
				language TEXT NOT NULL DEFAULT '',
				sent_at INTEGER NOT NULL
			)`,

			`CREATE TABLE IF NOT EXISTS group_messages (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				chat_id TEXT NOT NULL,
				topic_id TEXT NOT NULL DEFAULT '',
				message_id TEXT NOT NULL DEFAULT '',
				sender_id TEXT NOT NULL DEFAULT '',
				sender_name TEXT NOT NULL DEFAULT '',
				text TEXT NOT NULL,
				created_at INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_group_messages_chat ON group_messages(chat_id, topic_id, created_at)`,

			`CREATE TABLE IF NOT EXISTS interactions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id TEXT NOT NULL DEFAULT '',
				incoming_message TEXT NOT NULL DEFAULT '',
				ai_suggestion TEXT NOT NULL DEFAULT '',
				final_message TEXT NOT NULL DEFAULT '',
				was_approved INTEGER NOT NULL DEFAULT 0,
				was_edited INTEGER NOT NULL DEFAULT 0,
				confidence INTEGER NOT NULL DEFAULT 0,
				created_at INTEGER NOT NULL
			)`,

			`CREATE TABLE IF NOT EXISTS decision_log (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				message_id TEXT NOT NULL DEFAULT '',
				chat_id TEXT NOT NULL DEFAULT '',
				is_group INTEGER NOT NULL DEFAULT 0,
				message_type TEXT NOT NULL DEFAULT '',
				urgency TEXT NOT NULL DEFAULT '',
				confidence INTEGER NOT NULL DEFAULT 0,
				action TEXT NOT NULL DEFAULT '',
				reason TEXT NOT NULL DEFAULT '',
				created_at INTEGER NOT NULL
			)`,
		},
	},
	{
		version:     2,
		description: "outbound retry and dead letters",
		statements: []string{
			`ALTER TABLE outbound_jobs ADD COLUMN attempts INTEGER NOT NULL DEFAULT 0`,
			`ALTER TABLE outbound_jobs ADD COLUMN available_at INTEGER NOT NULL DEFAULT 0`,
			`CREATE TABLE IF NOT EXISTS outbound_dead_letters (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				job_id INTEGER NOT NULL,
				sender_identity TEXT NOT NULL DEFAULT '',
				category TEXT NOT NULL DEFAULT '',
				recipient_id TEXT NOT NULL DEFAULT '',
				chat_id TEXT NOT NULL DEFAULT '',
				message TEXT NOT NULL DEFAULT '',
				reason TEXT NOT NULL DEFAULT '',
				attempts INTEGER NOT NULL DEFAULT 0,
				failed_at INTEGER NOT NULL
			)`,
		},
	},
	{
		version:     3,
		description: "business directory",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS projects (
				project_key TEXT PRIMARY KEY,
				project_id TEXT NOT NULL DEFAULT '',
				customer_name TEXT NOT NULL DEFAULT '',
				customer_primary TEXT NOT NULL DEFAULT '',
				customer_id TEXT NOT NULL DEFAULT '',
				address TEXT NOT NULL DEFAULT '',
				project_type TEXT NOT NULL DEFAULT '',
				start_date TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT '',
				specs TEXT NOT NULL DEFAULT '{}',
				contact_preference TEXT NOT NULL DEFAULT '',
				special_notes TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE TABLE IF NOT EXISTS customers (
				customer_id TEXT PRIMARY KEY,
				name TEXT NOT NULL DEFAULT '',
				partner TEXT NOT NULL DEFAULT '',
				phone TEXT NOT NULL DEFAULT '',
				email TEXT NOT NULL DEFAULT '',
				primary_contact TEXT NOT NULL DEFAULT '',
				language TEXT NOT NULL DEFAULT '',
				availability TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE TABLE IF NOT EXISTS schedule_entries (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				date TEXT NOT NULL,
				worker TEXT NOT NULL DEFAULT '',
				project TEXT NOT NULL DEFAULT '',
				task TEXT NOT NULL DEFAULT '',
				time TEXT NOT NULL DEFAULT '',
				duration TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE TABLE IF NOT EXISTS past_issues (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				issue_type TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				solution TEXT NOT NULL DEFAULT '',
				project TEXT NOT NULL DEFAULT '',
				cost REAL NOT NULL DEFAULT 0,
				success INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE TABLE IF NOT EXISTS workers (
				name TEXT PRIMARY KEY,
				role TEXT NOT NULL DEFAULT '',
				specialty TEXT NOT NULL DEFAULT '',
				language TEXT NOT NULL DEFAULT '',
				availability TEXT NOT NULL DEFAULT ''
			)`,
		},
	},
}

// migrate applies every migration newer than the stored schema version
func (s *Store) migrate(ctx context.Context) error {
	_, err := s.exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	for _, m := range migrations {
		applied := false
		err := s.inTx(ctx, func(tx *sql.Tx) error {
			var n int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, m.version).Scan(&n); err != nil {
				return err
			}
			if n > 0 {
				applied = false
				return nil
			}
			for _, stmt := range m.statements {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("%s: %w", m.description, err)
				}
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
				m.version, time.Now().Unix()); err != nil {
				return err
			}
			applied = true
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", m.version, err)
		}
		if applied {
			s.logger.Info("applied migration", zap.Int("version", m.version), zap.String("description", m.description))
		}
	}
	return nil
}

// SchemaVersion returns the newest applied migration version
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return int(v.Int64), nil
}
