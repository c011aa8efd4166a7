package repo

import (
	"context"
	"time"

	"github.com/relaydesk/relay/internal/biz/domain"
)

// TranslationCacheRepo caches translations keyed by (original text, target language)
type TranslationCacheRepo interface {
	// Lookup returns the newest cached translation
	Lookup(ctx context.Context, text, target string) (string, bool, error)

	Store(ctx context.Context, text, source, target, translated string) error
}

// MarkerRepo stores sent-translation markers
type MarkerRepo interface {
	Mark(ctx context.Context, m *domain.TranslationMarker) error
	IsMarked(ctx context.Context, messageID string) (bool, error)
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// LanguageRepo stores per-user language preferences
type LanguageRepo interface {
	// Get returns nil when the user has no preference
	Get(ctx context.Context, userID string) (*domain.LanguagePreference, error)
	Set(ctx context.Context, pref *domain.LanguagePreference) error
}
