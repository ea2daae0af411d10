// Package question validates user questions and classifies their language.
// The language is detected once per request and then passed explicitly to
// every prompt and response builder.
package question

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// MaxLength is the maximum question length in characters. Longer questions
// are rejected, never truncated.
const MaxLength = 1000

var (
	// ErrEmpty is returned for empty or whitespace-only questions.
	ErrEmpty = errors.New("question: valid question is required")
	// ErrTooLong is returned when a question exceeds MaxLength characters.
	ErrTooLong = errors.New("question: question is too long (max 1000 characters)")
)

// Validate checks q against the request invariants.
func Validate(q string) error {
	if strings.TrimSpace(q) == "" {
		return ErrEmpty
	}
	if utf8.RuneCountInString(q) > MaxLength {
		return ErrTooLong
	}
	return nil
}

// Language is the prompt language selected for a question.
type Language int

const (
	// English is used for every question without Hangul.
	English Language = iota
	// Korean is used when the question contains any Hangul code point.
	Korean
)

// String returns the lowercase language name used in logs.
func (l Language) String() string {
	if l == Korean {
		return "korean"
	}
	return "english"
}

// DetectLanguage returns Korean if q contains a Hangul syllable, Jamo, or
// compatibility Jamo rune, and English otherwise.
func DetectLanguage(q string) Language {
	for _, r := range q {
		if isHangul(r) {
			return Korean
		}
	}
	return English
}

// isHangul reports whether r is in U+AC00–U+D7AF, U+1100–U+11FF or
// U+3130–U+318F.
func isHangul(r rune) bool {
	switch {
	case r >= 0xAC00 && r <= 0xD7AF:
		return true
	case r >= 0x1100 && r <= 0x11FF:
		return true
	case r >= 0x3130 && r <= 0x318F:
		return true
	}
	return false
}
