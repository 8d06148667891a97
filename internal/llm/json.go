package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var codeFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ExtractJSON pulls a JSON object out of a model response that may wrap it
// in prose or a markdown code fence. Returns nil when no valid object is
// found.
func ExtractJSON(text string) []byte {
	trimmed := strings.TrimSpace(text)
	if json.Valid([]byte(trimmed)) && strings.HasPrefix(trimmed, "{") {
		return []byte(trimmed)
	}

	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		if json.Valid([]byte(m[1])) {
			return []byte(m[1])
		}
	}

	// Last resort: widest brace-delimited span.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		candidate := text[start : end+1]
		if json.Valid([]byte(candidate)) {
			return []byte(candidate)
		}
	}
	return nil
}
