package llm

import (
	"encoding/json"
	"strings"

	"github.com/quiby-ai/review-compare/internal/apperr"
)

// ExtractJSON pulls the outermost brace-delimited JSON object out of a
// model response that may be wrapped in prose or markdown code fences,
// and unmarshals it into v.
func ExtractJSON(text string, v any) error {
	span, err := jsonSpan(text)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(span), v); err != nil {
		return apperr.Wrap(apperr.KindInvalidModelResponse, "model response is not valid JSON", err)
	}

	return nil
}

// jsonSpan strips code fences and returns the outermost balanced
// brace-delimited span of the cleaned text.
func jsonSpan(text string) (string, error) {
	cleaned := strings.ReplaceAll(text, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "{")
	if start == -1 {
		return "", apperr.New(apperr.KindInvalidModelResponse, "no JSON object found in model response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(cleaned); i++ {
		c := cleaned[i]
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
				return cleaned[start : i+1], nil
			}
		}
	}

	return "", apperr.New(apperr.KindInvalidModelResponse, "unbalanced JSON object in model response")
}
