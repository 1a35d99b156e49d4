package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// FieldRule extracts one named field from a story segment.
type FieldRule struct {
	Pattern  string `json:"pattern"`
	Flags    string `json:"flags,omitempty"`
	Group    int    `json:"group,omitempty"` // capture group, default 1
	Fallback any    `json:"fallback,omitempty"`
	Type     string `json:"type,omitempty"` // "string" (default) or "number"
	Required bool   `json:"required,omitempty"`
	Trim     *bool  `json:"trim,omitempty"` // overrides Rules.TrimValues
}

// StoryPattern locates story segments by regex match.
type StoryPattern struct {
	Pattern string `json:"pattern"`
	Flags   string `json:"flags,omitempty"`
	Group   int    `json:"group,omitempty"` // default 0, the whole match
}

// Delimiter splits text into story segments, either on a literal string
// or on a regex pattern.
type Delimiter struct {
	Literal string
	Pattern *StoryPattern
}

func (d *Delimiter) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		d.Literal = s
		return nil
	}
	var p StoryPattern
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Pattern == "" {
		return errors.New("storyDelimiter object must carry a pattern")
	}
	d.Pattern = &p
	return nil
}

func (d *Delimiter) MarshalJSON() ([]byte, error) {
	if d.Pattern != nil {
		return json.Marshal(d.Pattern)
	}
	return json.Marshal(d.Literal)
}

// Rules is a declarative text-to-story conversion configuration: how to
// split free text into story segments and which regexes extract each field.
type Rules struct {
	StoryDelimiter *Delimiter           `json:"storyDelimiter,omitempty"`
	StoryPattern   *StoryPattern        `json:"storyPattern,omitempty"`
	Fields         map[string]FieldRule `json:"fields"`
	RequiredFields []string             `json:"requiredFields,omitempty"`
	TrimValues     *bool                `json:"trimValues,omitempty"` // default true
}

// ParseRules decodes and validates a JSON rule set.
func ParseRules(raw string) (*Rules, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("conversion rules cannot be empty")
	}

	var rules Rules
	if err := json.Unmarshal([]byte(raw), &rules); err != nil {
		return nil, fmt.Errorf("invalid conversion rules: %w", err)
	}
	if len(rules.Fields) == 0 {
		return nil, errors.New("conversion rules must define at least one field")
	}
	for name, field := range rules.Fields {
		if field.Pattern == "" {
			return nil, fmt.Errorf("field %q is missing a regex pattern", name)
		}
		if _, err := compilePattern(field.Pattern, field.Flags); err != nil {
			return nil, fmt.Errorf("invalid regex for field %q: %w", name, err)
		}
	}
	return &rules, nil
}

// Convert splits text into story segments and extracts the configured
// fields from each. Segments missing a required field are rejected and
// counted rather than failing the whole conversion.
func (r *Rules) Convert(text string) (stories []map[string]any, rejected int, err error) {
	if strings.TrimSpace(text) == "" {
		return nil, 0, errors.New("empty response to convert")
	}

	segments, err := r.segments(text)
	if err != nil {
		return nil, 0, err
	}
	if len(segments) == 0 {
		return nil, 0, errors.New("no stories were detected using the conversion rules")
	}

	globalTrim := r.TrimValues == nil || *r.TrimValues
	required := make(map[string]bool, len(r.RequiredFields))
	for _, name := range r.RequiredFields {
		required[name] = true
	}
	for name, field := range r.Fields {
		if field.Required {
			required[name] = true
		}
	}

	// Deterministic field order; extractors are independent of each other.
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, segment := range segments {
		story := make(map[string]any, len(names))
		missing := false

		for _, name := range names {
			field := r.Fields[name]
			value, ok := extractField(segment, field, required[name], globalTrim)
			if !ok {
				missing = true
				break
			}
			story[name] = value
		}

		if missing {
			rejected++
			continue
		}
		stories = append(stories, story)
	}

	if len(stories) == 0 {
		return nil, rejected, errors.New("conversion produced zero valid stories; adjust the conversion rules or model output format")
	}
	return stories, rejected, nil
}

// extractField applies one rule to a segment. ok is false only when a
// required value is missing with no fallback to cover it.
func extractField(segment string, field FieldRule, required, globalTrim bool) (any, bool) {
	re, err := compilePattern(field.Pattern, field.Flags)
	if err != nil {
		return nil, false
	}

	group := field.Group
	if group == 0 {
		group = 1
	}

	var value any
	if m := re.FindStringSubmatch(segment); m != nil && group < len(m) {
		value = m[group]
	}

	trim := globalTrim
	if field.Trim != nil {
		trim = *field.Trim
	}
	if s, ok := value.(string); ok && trim {
		value = strings.TrimSpace(s)
	}

	missing := value == nil
	if s, ok := value.(string); ok && s == "" {
		missing = true
	}

	if missing {
		switch {
		case field.Fallback != nil:
			value = field.Fallback
		case required:
			return nil, false
		default:
			value = nil
		}
	}

	if field.Type == "number" {
		value = coerceNumber(value, field.Fallback)
	}
	return value, true
}

// coerceNumber forces a value to a finite number, falling back through the
// rule's fallback before settling on 0.
func coerceNumber(value, fallback any) float64 {
	if n, ok := toFloat(value); ok {
		return n
	}
	if n, ok := toFloat(fallback); ok {
		return n
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func (r *Rules) segments(text string) ([]string, error) {
	trimmed := strings.TrimSpace(text)

	if r.StoryPattern != nil {
		re, err := compilePattern(r.StoryPattern.Pattern, r.StoryPattern.Flags)
		if err != nil {
			return nil, fmt.Errorf("invalid storyPattern regex: %w", err)
		}
		var segments []string
		for _, m := range re.FindAllStringSubmatch(trimmed, -1) {
			value := m[0]
			if r.StoryPattern.Group > 0 && r.StoryPattern.Group < len(m) {
				value = m[r.StoryPattern.Group]
			}
			if s := strings.TrimSpace(value); s != "" {
				segments = append(segments, s)
			}
		}
		return segments, nil
	}

	if d := r.StoryDelimiter; d != nil {
		if d.Pattern != nil {
			re, err := compilePattern(d.Pattern.Pattern, d.Pattern.Flags)
			if err != nil {
				return nil, fmt.Errorf("invalid storyDelimiter regex: %w", err)
			}
			return cleanSegments(re.Split(trimmed, -1)), nil
		}
		if d.Literal != "" {
			return cleanSegments(strings.Split(trimmed, d.Literal)), nil
		}
	}

	if trimmed == "" {
		return nil, nil
	}
	return []string{trimmed}, nil
}

func cleanSegments(parts []string) []string {
	var segments []string
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// compilePattern translates a rule pattern with JS-style flags into a Go
// regexp. i, m, and s map to inline flags; g is implicit in FindAll usage.
func compilePattern(pattern, flags string) (*regexp.Regexp, error) {
	var inline string
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			inline += string(f)
		}
	}
	if inline != "" {
		pattern = "(?" + inline + ")" + pattern
	}
	return regexp.Compile(pattern)
}

// DefaultRules matches the line-oriented story format the default search
// instructions used before JSON output became the norm:
//
//	Title: ...
//	Summary: ...
//	---
func DefaultRules() *Rules {
	yes := true
	return &Rules{
		StoryDelimiter: &Delimiter{Literal: "\n---\n"},
		TrimValues:     &yes,
		RequiredFields: []string{"title", "summary"},
		Fields: map[string]FieldRule{
			"title":    {Pattern: `^Title:\s*(.+)`, Flags: "mi", Required: true},
			"summary":  {Pattern: `^Summary:\s*(.+)`, Flags: "mi", Required: true},
			"category": {Pattern: `^Category:\s*(.+)`, Flags: "mi", Fallback: "Uncategorized"},
			"rating":   {Pattern: `^Rating:\s*(\d+(?:\.\d+)?)`, Flags: "mi", Type: "number", Fallback: 0.0},
			"source":   {Pattern: `^Source:\s*(.+)`, Flags: "mi"},
			"url":      {Pattern: `^URL:\s*(.+)`, Flags: "mi"},
			"date":     {Pattern: `^Date:\s*(.+)`, Flags: "mi"},
		},
	}
}
