package ai

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// Violation reasons reported by shape checks.
const (
	ReasonRequired     = "required"
	ReasonInvalidValue = "invalid_value"
	ReasonOutOfRange   = "out_of_range"
	ReasonTypeMismatch = "type_mismatch"
)

// FieldViolation is a single failed shape check.
type FieldViolation struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

func (v FieldViolation) String() string {
	return v.Path + ": " + v.Reason
}

// StripFence trims text and removes an enclosing markdown code fence, with or
// without a language tag. Text without a fence is returned trimmed.
func StripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	body := strings.TrimPrefix(text, "```")
	if tag := fenceTag(body); tag > 0 {
		body = body[tag:]
	} else if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		// A tag line with unusual characters, e.g. "language=json".
		if line := strings.TrimSpace(body[:nl]); !strings.ContainsAny(line, "{[\"") {
			body = body[nl+1:]
		}
	}
	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(body, "```")
	return strings.TrimSpace(body)
}

// fenceTag returns the length of a language tag at the start of body: a run
// of word characters followed by whitespace. Zero when there is none, which
// keeps bare literals such as ```true``` intact.
func fenceTag(body string) int {
	n := strings.IndexFunc(body, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("_+-.#", r))
	})
	if n <= 0 || !unicode.IsSpace(rune(body[n])) {
		return 0
	}
	return n
}

// Validate parses raw model output into T and applies check. A parse
// failure or any reported violation is a retryable SCHEMA_VIOLATION.
func Validate[T any](raw string, check func(*T) []FieldViolation) (*T, error) {
	body := StripFence(raw)
	if body == "" {
		return nil, SchemaViolation("empty response", nil, nil)
	}

	var v T
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return nil, SchemaViolation("response is not valid JSON", nil, err)
	}

	if check != nil {
		if violations := check(&v); len(violations) > 0 {
			return nil, SchemaViolation(
				fmt.Sprintf("response failed %d shape check(s), first: %s", len(violations), violations[0]),
				violations, nil)
		}
	}
	return &v, nil
}
