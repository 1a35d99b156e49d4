// Package extract recovers structured records from free-form LLM output,
// either as a JSON object buried in prose or via regex-driven text
// conversion rules.
package extract

import (
	"encoding/json"
	"strings"
)

const previewLimit = 200

// ExtractionError indicates that no JSON object could be recovered from the
// text. Preview holds the start of the original text so callers can surface
// what the model actually said.
type ExtractionError struct {
	Preview string
}

func (e *ExtractionError) Error() string {
	return "no JSON object found in model output: " + e.Preview
}

// JSON recovers a JSON object from model output that may be wrapped in
// markdown fences or surrounded by explanatory prose. Three escalating
// strategies, first success wins: direct parse, fence stripping, then
// extracting the first { through the last }.
func JSON(text string) (map[string]any, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, &ExtractionError{Preview: preview(text)}
	}

	if v, err := parseObject(trimmed); err == nil {
		return v, nil
	}

	if stripped := stripFences(trimmed); stripped != trimmed {
		if v, err := parseObject(stripped); err == nil {
			return v, nil
		}
	}

	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			if v, err := parseObject(trimmed[start : end+1]); err == nil {
				return v, nil
			}
		}
	}

	return nil, &ExtractionError{Preview: preview(text)}
}

func parseObject(text string) (map[string]any, error) {
	var result map[string]any
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, err
	}
	return result, nil
}

// stripFences removes a leading ```json (or bare ```) fence and its
// closing marker. Returns the input unchanged when no fence is present.
func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	endIdx := len(lines)
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[1:endIdx], "\n"))
}

func preview(s string) string {
	if len(s) > previewLimit {
		return s[:previewLimit]
	}
	return s
}
