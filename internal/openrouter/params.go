package openrouter

import (
	"math"
	"strings"
)

// OnlineSuffix marks a model id as the provider's web-search-enabled
// variant. It is the only mechanism for enabling live search; no separate
// boolean field exists in the request body.
const OnlineSuffix = ":online"

// reasoningModelHints identify models that accept reasoning parameters.
// Other models would reject or ignore them unpredictably.
var reasoningModelHints = []string{"o1", "o3", "o4", "deepseek-r1", "reasoning", "qwq"}

// Parameters is the sparse, user-tunable request shaping configuration.
// Nil/zero fields are omitted from requests after normalization.
type Parameters struct {
	Temperature       *float64 `yaml:"temperature"`
	MaxTokens         *float64 `yaml:"max_tokens"`
	ResponseFormat    string   `yaml:"response_format"`
	TopP              *float64 `yaml:"top_p"`
	FrequencyPenalty  *float64 `yaml:"frequency_penalty"`
	PresencePenalty   *float64 `yaml:"presence_penalty"`
	Reasoning         string   `yaml:"reasoning"`
	IncludeReasoning  bool     `yaml:"include_reasoning"`
	Stop              []string `yaml:"stop"`
	Seed              *float64 `yaml:"seed"`
	TopK              *float64 `yaml:"top_k"`
	MinP              *float64 `yaml:"min_p"`
	RepetitionPenalty *float64 `yaml:"repetition_penalty"`
}

// ModelSupportsReasoning reports whether the model id matches a known
// reasoning-capable model.
func ModelSupportsReasoning(modelID string) bool {
	if modelID == "" {
		return false
	}
	normalized := strings.ToLower(modelID)
	for _, hint := range reasoningModelHints {
		if strings.Contains(normalized, hint) {
			return true
		}
	}
	return false
}

// EnsureOnline appends the online suffix to a model id when missing.
func EnsureOnline(modelID string) string {
	if strings.Contains(modelID, OnlineSuffix) {
		return modelID
	}
	return modelID + OnlineSuffix
}

// Normalize maps Parameters onto the exact field set the API accepts for
// the given model. Invalid and unsupported values are dropped rather than
// passed through:
//   - non-finite numbers never survive
//   - response_format json_object is excluded on online models, where JSON
//     mode and live web search are mutually exclusive
//   - reasoning fields are suppressed for non-reasoning models
//
// Temperature and the penalty fields pass through unclamped; the API is
// the authority on valid ranges.
func Normalize(p *Parameters, modelID string) map[string]any {
	normalized := make(map[string]any)
	if p == nil {
		return normalized
	}

	isOnline := strings.Contains(modelID, OnlineSuffix)

	if finite(p.Temperature) {
		normalized["temperature"] = *p.Temperature
	}
	if finite(p.MaxTokens) && *p.MaxTokens > 0 {
		normalized["max_tokens"] = int(math.Floor(*p.MaxTokens))
	}
	if p.ResponseFormat == "json_object" && !isOnline {
		normalized["response_format"] = map[string]string{"type": "json_object"}
	}
	if finite(p.TopP) && *p.TopP > 0 {
		normalized["top_p"] = *p.TopP
	}
	if finite(p.FrequencyPenalty) {
		normalized["frequency_penalty"] = *p.FrequencyPenalty
	}
	if finite(p.PresencePenalty) {
		normalized["presence_penalty"] = *p.PresencePenalty
	}

	var stop []string
	for _, s := range p.Stop {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			stop = append(stop, trimmed)
		}
	}
	if len(stop) > 0 {
		normalized["stop"] = stop
	}

	if finite(p.Seed) && *p.Seed == math.Trunc(*p.Seed) && *p.Seed >= 0 {
		normalized["seed"] = int(*p.Seed)
	}
	if finite(p.TopK) && *p.TopK > 0 {
		normalized["top_k"] = int(math.Floor(*p.TopK))
	}
	if finite(p.MinP) && *p.MinP > 0 {
		normalized["min_p"] = *p.MinP
	}
	if finite(p.RepetitionPenalty) {
		normalized["repetition_penalty"] = *p.RepetitionPenalty
	}

	if ModelSupportsReasoning(modelID) {
		if p.Reasoning != "" {
			normalized["reasoning"] = map[string]string{"effort": p.Reasoning}
		}
		if p.IncludeReasoning {
			normalized["include_reasoning"] = true
		}
	}

	return normalized
}

func finite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}
