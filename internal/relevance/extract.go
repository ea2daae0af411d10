package relevance

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoStructuredData is returned when a model response holds no complete,
// valid JSON object (absent, truncated, or malformed).
var ErrNoStructuredData = errors.New("relevance: no structured data in response")

// ExtractJSONObject returns the first balanced, valid JSON object embedded in
// text. Model replies often wrap JSON in markdown fences or add commentary
// around it; brace depth is tracked outside string literals so braces inside
// reasons do not end the object early. When a balanced span fails to decode
// the search resumes at the next opening brace.
func ExtractJSONObject(text string) (string, error) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		end := matchBrace(text, start)
		if end < 0 {
			break
		}
		candidate := text[start : end+1]
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", ErrNoStructuredData
}

// matchBrace returns the index of the brace closing the one at start, or -1
// when the text ends first.
func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
