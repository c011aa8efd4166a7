package domain

import "time"

// TranslationMarker records that a platform message was produced by the
// translation broadcast, so its echo is not processed as new input.
type TranslationMarker struct {
	MessageID    string
	ChatID       string
	TopicID      string
	OriginalText string
	Language     string
	SentAt       time.Time
}

// FormatBroadcast renders a translation broadcast line
func FormatBroadcast(lang Language, translated string) string {
	return lang.Name + ":\n" + translated
}
