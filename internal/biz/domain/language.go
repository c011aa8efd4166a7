package domain

import "strings"

// Language is a supported language
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Detection is the result of language detection
type Detection struct {
	Language   Language
	Confidence int
}

// English is the default language when detection is impossible
var English = Language{Code: "en", Name: "English"}

var supportedLanguages = []Language{
	{Code: "hi", Name: "Hindi"},
	{Code: "en", Name: "English"},
	{Code: "de", Name: "German"},
	{Code: "pl", Name: "Polish"},
	{Code: "ru", Name: "Russian"},
	{Code: "es", Name: "Spanish"},
	{Code: "fr", Name: "French"},
	{Code: "it", Name: "Italian"},
	{Code: "pt", Name: "Portuguese"},
	{Code: "nl", Name: "Dutch"},
}

// SupportedLanguages returns the supported languages in display order
func SupportedLanguages() []Language {
	out := make([]Language, len(supportedLanguages))
	copy(out, supportedLanguages)
	return out
}

// LookupLanguage finds a supported language by code (case-insensitive)
func LookupLanguage(code string) (Language, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, l := range supportedLanguages {
		if l.Code == code {
			return l, true
		}
	}
	return Language{}, false
}

// LanguageName returns the display name for a code, or the code itself if unknown
func LanguageName(code string) string {
	if l, ok := LookupLanguage(code); ok {
		return l.Name
	}
	return code
}

// LanguagePreference is a per-user language setting
type LanguagePreference struct {
	UserID        string
	Language      Language
	AutoTranslate bool
}
