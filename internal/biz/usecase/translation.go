package usecase

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/relaydesk/relay/internal/biz/domain"
	"github.com/relaydesk/relay/internal/biz/repo"
)

// SourceAuto asks Translate to detect the source language
const SourceAuto = "auto"

// TranslationConfig contains translation configuration
type TranslationConfig struct {
	Timeout time.Duration // bound for each external call
}

// DefaultTranslationConfig returns default translation configuration
func DefaultTranslationConfig() TranslationConfig {
	return TranslationConfig{Timeout: 30 * time.Second}
}

// TranslationResult is the outcome of a translation. On failure Text holds
// the original text and Failed is set.
type TranslationResult struct {
	Text   string
	Source string
	Target string
	Cached bool
	Failed bool
	Error  string
}

// TranslationUsecase wraps detection and translation behind a cache
type TranslationUsecase struct {
	translator repo.TranslatorRepo
	cache      repo.TranslationCacheRepo
	config     TranslationConfig
	logger     *zap.Logger
}

// NewTranslationUsecase creates a new translation usecase
func NewTranslationUsecase(
	translator repo.TranslatorRepo,
	cache repo.TranslationCacheRepo,
	config TranslationConfig,
	logger *zap.Logger,
) *TranslationUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TranslationUsecase{
		translator: translator,
		cache:      cache,
		config:     config,
		logger:     logger,
	}
}

// Detect identifies the language of text. Very short text and failed calls
// yield English with confidence 0.
func (uc *TranslationUsecase) Detect(ctx context.Context, text string) domain.Detection {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < 3 {
		return domain.Detection{Language: domain.English, Confidence: 0}
	}

	callCtx, cancel := uc.withTimeout(ctx)
	defer cancel()

	det, err := uc.translator.Detect(callCtx, text)
	if err != nil || det == nil {
		uc.logger.Warn("language detection failed, assuming English", zap.Error(err))
		return domain.Detection{Language: domain.English, Confidence: 0}
	}

	if lang, ok := domain.LookupLanguage(det.Language.Code); ok {
		det.Language = lang
	} else if det.Language.Code == "" {
		det.Language = domain.English
	}
	det.Confidence = domain.ClampConfidence(det.Confidence)
	return *det
}

// Translate translates text into target. source may be a language code or
// SourceAuto. Failures never escape: the original text is returned, marked failed.
func (uc *TranslationUsecase) Translate(ctx context.Context, text, target, source, hint string) TranslationResult {
	res := TranslationResult{Text: text, Source: source, Target: target}
	if strings.TrimSpace(text) == "" {
		return res
	}

	targetLang, ok := domain.LookupLanguage(target)
	if !ok {
		res.Failed = true
		res.Error = "unsupported target language: " + target
		return res
	}
	res.Target = targetLang.Code

	// Same language is the identity: no cache, no call
	if source != SourceAuto && strings.EqualFold(source, targetLang.Code) {
		res.Source = targetLang.Code
		return res
	}

	if cached, hit, err := uc.cache.Lookup(ctx, text, targetLang.Code); err != nil {
		uc.logger.Warn("translation cache lookup failed", zap.Error(err))
	} else if hit {
		res.Text = cached
		res.Cached = true
		return res
	}

	var sourceLang domain.Language
	if source == SourceAuto || source == "" {
		sourceLang = uc.Detect(ctx, text).Language
	} else if l, ok := domain.LookupLanguage(source); ok {
		sourceLang = l
	} else {
		sourceLang = domain.Language{Code: source, Name: source}
	}
	res.Source = sourceLang.Code

	if sourceLang.Code == targetLang.Code {
		return res
	}

	callCtx, cancel := uc.withTimeout(ctx)
	defer cancel()

	translated, err := uc.translator.Translate(callCtx, text, sourceLang, targetLang, hint)
	if err != nil {
		uc.logger.Warn("translation failed, keeping original text",
			zap.String("source", sourceLang.Code),
			zap.String("target", targetLang.Code),
			zap.Error(err))
		res.Failed = true
		res.Error = err.Error()
		return res
	}

	translated = stripQuotes(translated)
	if translated == "" {
		res.Failed = true
		res.Error = "empty translation"
		return res
	}
	res.Text = translated

	if err := uc.cache.Store(ctx, text, sourceLang.Code, targetLang.Code, translated); err != nil {
		uc.logger.Warn("failed to cache translation", zap.Error(err))
	}
	return res
}

func (uc *TranslationUsecase) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if uc.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, uc.config.Timeout)
}

// stripQuotes removes quotes the model sometimes wraps around its output
func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	for _, pair := range [][2]string{{`"`, `"`}, {"'", "'"}, {"“", "”"}, {"„", "“"}} {
		if len(s) >= len(pair[0])+len(pair[1]) && strings.HasPrefix(s, pair[0]) && strings.HasSuffix(s, pair[1]) {
			s = strings.TrimSpace(s[len(pair[0]) : len(s)-len(pair[1])])
		}
	}
	return s
}
