package agent

import (
	"regexp"
	"strings"

	"github.com/AaksharGarg/autorfp-crawler/internal/rfp"
)

// Placeholders form a closed grammar: a whole-string value of the form
// {action_id} or {action_id.path.to.field}. Anything else is a literal.
var placeholderRE = regexp.MustCompile(`^\{([A-Za-z0-9_-]+(?:\.[A-Za-z0-9_-]+)*)\}$`)

// resolveArgs substitutes placeholder values against the result map of
// already-completed actions. An unresolved reference becomes an explicit
// nil, never the literal placeholder string.
func resolveArgs(args map[string]any, results map[string]rfp.ActionResult) map[string]any {
	if args == nil {
		return map[string]any{}
	}
	resolved := make(map[string]any, len(args))
	for key, value := range args {
		resolved[key] = resolveValue(value, results)
	}
	return resolved
}

func resolveValue(value any, results map[string]rfp.ActionResult) any {
	switch v := value.(type) {
	case string:
		m := placeholderRE.FindStringSubmatch(v)
		if m == nil {
			return v
		}
		out, _ := lookupReference(m[1], results)
		return out
	case map[string]any:
		nested := make(map[string]any, len(v))
		for k, inner := range v {
			nested[k] = resolveValue(inner, results)
		}
		return nested
	case []any:
		nested := make([]any, len(v))
		for i, inner := range v {
			nested[i] = resolveValue(inner, results)
		}
		return nested
	default:
		return value
	}
}

// lookupReference walks the dotted path through the referenced action's
// result envelope. The bare form {id} yields the whole envelope.
func lookupReference(ref string, results map[string]rfp.ActionResult) (any, bool) {
	segments := strings.Split(ref, ".")
	result, ok := results[segments[0]]
	if !ok {
		return nil, false
	}
	var current any = envelope(result)
	for _, segment := range segments[1:] {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func envelope(result rfp.ActionResult) map[string]any {
	return map[string]any{
		"status": string(result.Status),
		"result": result.Result,
		"error":  result.Error,
	}
}
