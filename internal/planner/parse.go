package planner

import (
	"encoding/json"
	"strings"
)

// parsePlanObject recovers a JSON object from untrusted model output. It
// tries the whole text first, then the first balanced object embedded in
// surrounding prose, then reassembly of a newline-delimited chunk stream.
func parsePlanObject(raw string) (map[string]any, bool) {
	if obj, ok := decodeObject(raw); ok {
		return obj, true
	}
	if inner, ok := firstBalancedObject(raw); ok {
		if obj, ok := decodeObject(inner); ok {
			return obj, true
		}
	}
	if joined, ok := joinChunkStream(raw); ok {
		if obj, ok := decodeObject(joined); ok {
			return obj, true
		}
		if inner, ok := firstBalancedObject(joined); ok {
			if obj, ok := decodeObject(inner); ok {
				return obj, true
			}
		}
	}
	return nil, false
}

func decodeObject(text string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// firstBalancedObject scans for the first brace-balanced substring,
// ignoring braces inside JSON strings.
func firstBalancedObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
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
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// joinChunkStream concatenates the response fields of a newline-delimited
// completion chunk stream.
func joinChunkStream(raw string) (string, bool) {
	var parts []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var chunk struct {
			Response string `json:"response"`
		}
		if err := json.Unmarshal([]byte(line), &chunk); err != nil || chunk.Response == "" {
			continue
		}
		parts = append(parts, chunk.Response)
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, ""), true
}
