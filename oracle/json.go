package oracle

import (
	"encoding/json"
	"errors"
	"strings"
)

// DecodeJSON extracts a JSON object from generated text and decodes it into
// v. The object may be bare, wrapped in prose, or inside a ```json fence.
// Failures are reported as ErrMalformedOutput.
func DecodeJSON(text string, v any) error {
	raw := ExtractJSON(text)
	if raw == "" {
		return &Error{Kind: ErrMalformedOutput, Err: errors.New("no JSON object in output")}
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return &Error{Kind: ErrMalformedOutput, Err: err}
	}
	return nil
}

// ExtractJSON returns the first fenced JSON block, or the span from the first
// '{' to the last '}', or "" when neither exists.
func ExtractJSON(text string) string {
	for _, fence := range []string{"```json", "```"} {
		if _, after, ok := strings.Cut(text, fence); ok {
			body, _, _ := strings.Cut(after, "```")
			body = strings.TrimSpace(body)
			if strings.HasPrefix(body, "{") {
				return body
			}
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return ""
	}
	return text[start : end+1]
}
