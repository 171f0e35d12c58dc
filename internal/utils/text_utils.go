package utils

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// ellipsis marks text shortened for display
const ellipsis = "…"

// TextProcessor cleans up text read from uploads and shortens it for display
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	return &TextProcessor{
		logger: logger,
	}
}

// Truncate shortens text to at most maxRunes runes, ellipsis included.
// maxRunes <= 0 disables truncation.
func (tp *TextProcessor) Truncate(text string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	if maxRunes == 1 {
		return ellipsis
	}

	runes := []rune(text)
	return string(runes[:maxRunes-1]) + ellipsis
}

// SanitizeUTF8 drops bytes that are not part of a valid UTF-8 sequence
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}

	sanitized := strings.ToValidUTF8(text, "")
	tp.logger.Debug("Dropped invalid UTF-8 bytes",
		zap.Int("original_size", len(text)),
		zap.Int("sanitized_size", len(sanitized)))

	return sanitized
}

// CountCandidates counts LF or CRLF terminated lines containing '@'. A lone CR does not
// end a line. It is an estimate for display only.
func (tp *TextProcessor) CountCandidates(text string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, "@") {
			n++
		}
	}
	return n
}
