package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/relaydesk/relay/internal/biz/domain"
	"github.com/relaydesk/relay/internal/biz/repo"
)

// ========== Translation cache ==========

type translationCache struct {
	store *Store
}

// NewTranslationCache creates a translation cache on SQLite
func NewTranslationCache(store *Store) repo.TranslationCacheRepo {
	return &translationCache{store: store}
}

// Lookup returns the newest cached translation for (text, target)
func (c *translationCache) Lookup(ctx context.Context, text, target string) (string, bool, error) {
	var translated string
	err := c.store.db.QueryRowContext(ctx, `
		SELECT translated_text FROM translation_cache
		WHERE original_text = ? AND target_lang = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, text, target).Scan(&translated)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query translation cache: %w", err)
	}
	return translated, true, nil
}

// Store records a translation
func (c *translationCache) Store(ctx context.Context, text, source, target, translated string) error {
	_, err := c.store.exec(ctx, `
		INSERT INTO translation_cache (original_text, source_lang, target_lang, translated_text, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, text, source, target, translated, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store translation: %w", err)
	}
	return nil
}

// ========== Sent-translation markers ==========

type markerRepo struct {
	store *Store
}

// NewMarkerRepo creates a marker repository
func NewMarkerRepo(store *Store) repo.MarkerRepo {
	return &markerRepo{store: store}
}

// Mark records a sent translation. Re-marking the same message is a no-op.
func (r *markerRepo) Mark(ctx context.Context, m *domain.TranslationMarker) error {
	if m.SentAt.IsZero() {
		m.SentAt = time.Now()
	}
	_, err := r.store.exec(ctx, `
		INSERT OR REPLACE INTO translation_markers (message_id, chat_id, topic_id, original_text, language, sent_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.MessageID, m.ChatID, m.TopicID, m.OriginalText, m.Language, m.SentAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to write translation marker: %w", err)
	}
	return nil
}

// IsMarked reports whether a message was produced by the translation broadcast
func (r *markerRepo) IsMarked(ctx context.Context, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}
	var n int
	err := r.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM translation_markers WHERE message_id = ?`, messageID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query translation marker: %w", err)
	}
	return n > 0, nil
}

// Purge deletes markers sent before the cutoff
func (r *markerRepo) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.store.exec(ctx, `DELETE FROM translation_markers WHERE sent_at < ?`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge translation markers: %w", err)
	}
	return res.RowsAffected()
}

// ========== Language preferences ==========

type languageRepo struct {
	store *Store
}

// NewLanguageRepo creates a language preference repository
func NewLanguageRepo(store *Store) repo.LanguageRepo {
	return &languageRepo{store: store}
}

// Get returns nil when the user has no stored preference
func (r *languageRepo) Get(ctx context.Context, userID string) (*domain.LanguagePreference, error) {
	var (
		code, name string
		auto       int
	)
	err := r.store.db.QueryRowContext(ctx, `
		SELECT language, language_name, auto_translate FROM user_languages WHERE user_id = ?
	`, userID).Scan(&code, &name, &auto)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query language preference: %w", err)
	}
	return &domain.LanguagePreference{
		UserID:        userID,
		Language:      domain.Language{Code: code, Name: name},
		AutoTranslate: auto == 1,
	}, nil
}

// Set upserts a preference
func (r *languageRepo) Set(ctx context.Context, pref *domain.LanguagePreference) error {
	name := pref.Language.Name
	if name == "" {
		name = domain.LanguageName(pref.Language.Code)
	}
	_, err := r.store.exec(ctx, `
		INSERT INTO user_languages (user_id, language, language_name, auto_translate, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			language = excluded.language,
			language_name = excluded.language_name,
			auto_translate = excluded.auto_translate,
			updated_at = excluded.updated_at
	`, pref.UserID, pref.Language.Code, name, boolInt(pref.AutoTranslate), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save language preference: %w", err)
	}
	return nil
}
