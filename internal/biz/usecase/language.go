package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/relaydesk/relay/internal/biz/domain"
	"github.com/relaydesk/relay/internal/biz/repo"
)

// LanguageUsecase manages language preferences
type LanguageUsecase struct {
	languages  repo.LanguageRepo
	operatorID string
	fallback   domain.Language
	logger     *zap.Logger
}

// NewLanguageUsecase creates a new language usecase. defaultCode is the
// operator language used until a preference is stored.
func NewLanguageUsecase(languages repo.LanguageRepo, operatorID, defaultCode string, logger *zap.Logger) *LanguageUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	fallback, ok := domain.LookupLanguage(defaultCode)
	if !ok {
		fallback = domain.English
	}
	return &LanguageUsecase{languages: languages, operatorID: operatorID, fallback: fallback, logger: logger}
}

// OperatorLanguage returns the operator's language
func (uc *LanguageUsecase) OperatorLanguage(ctx context.Context) domain.Language {
	return uc.UserLanguage(ctx, uc.operatorID)
}

// UserLanguage returns a user's preferred language or the default
func (uc *LanguageUsecase) UserLanguage(ctx context.Context, userID string) domain.Language {
	if userID == "" {
		return uc.fallback
	}
	pref, err := uc.languages.Get(ctx, userID)
	if err != nil {
		uc.logger.Warn("failed to load language preference", zap.String("user_id", userID), zap.Error(err))
		return uc.fallback
	}
	if pref == nil {
		return uc.fallback
	}
	return pref.Language
}

// SetLanguage stores a user's language preference
func (uc *LanguageUsecase) SetLanguage(ctx context.Context, userID, code string) (domain.Language, error) {
	lang, ok := domain.LookupLanguage(code)
	if !ok {
		return domain.Language{}, fmt.Errorf("unsupported language: %s", code)
	}
	err := uc.languages.Set(ctx, &domain.LanguagePreference{UserID: userID, Language: lang, AutoTranslate: true})
	if err != nil {
		return domain.Language{}, fmt.Errorf("save language preference: %w", err)
	}
	return lang, nil
}
