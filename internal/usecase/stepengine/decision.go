package stepengine

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"task-agent/internal/domain/entity"
)

// ParseDecision decodes a model answer. A surrounding ``` fence (optionally
// tagged json) is stripped and raw control characters inside strings are
// tolerated. Anything that is not a JSON object is rejected with
// entity.ErrDecode.
func ParseDecision(answer string) (*entity.Decision, error) {
	body := stripFence(strings.TrimSpace(answer))
	if body == "" {
		return nil, fmt.Errorf("%w: empty answer", entity.ErrDecode)
	}

	obj, err := decodeObject(body)
	if err != nil {
		// chatty models wrap the object in prose
		start, end := strings.Index(body, "{"), strings.LastIndex(body, "}")
		if start < 0 || end <= start {
			return nil, err
		}
		if obj, err = decodeObject(body[start : end+1]); err != nil {
			return nil, err
		}
	}

	return decisionFromObject(obj), nil
}

func decodeObject(body string) (map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(escapeControlChars(body)), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrDecode, err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: answer is %T, not an object", entity.ErrDecode, v)
	}
	return obj, nil
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
		s = s[4:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// escapeControlChars escapes raw control characters that appear inside JSON
// string literals. Structure outside strings is left untouched.
func escapeControlChars(s string) string {
	var (
		b        strings.Builder
		inString bool
		escaped  bool
	)
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size

		if !inString {
			if r == '"' {
				inString = true
			}
			b.WriteRune(r)
			continue
		}

		switch {
		case escaped:
			escaped = false
			b.WriteRune(r)
		case r == '\\':
			escaped = true
			b.WriteRune(r)
		case r == '"':
			inString = false
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20:
			fmt.Fprintf(&b, `\u%04x`, r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// decisionFromObject reads the known fields and ignores values of the wrong
// shape, so a malformed ability ends up as an invalid name, not a crash.
func decisionFromObject(obj map[string]any) *entity.Decision {
	d := &entity.Decision{}

	if raw, ok := obj["thoughts"].(map[string]any); ok {
		d.Thoughts = &entity.Thoughts{
			Text:      asString(raw["text"]),
			Reasoning: asString(raw["reasoning"]),
			Plan:      raw["plan"],
			Criticism: asString(raw["criticism"]),
			Speak:     asString(raw["speak"]),
		}
	}

	if raw, ok := obj["ability"].(map[string]any); ok {
		ability := &entity.Ability{Name: asString(raw["name"])}
		if args, ok := raw["args"].(map[string]any); ok {
			ability.Args = args
		}
		d.Ability = ability
	}

	return d
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
