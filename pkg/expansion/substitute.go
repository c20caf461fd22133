package expansion

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/3leaps/sbatchman/pkg/apperrors"
)

var substTokenPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)(\.[0-9]+|\[[^\]]*\])?\}`)

// Substitute implements spec §4.1 Phase VI: it replaces `{var}`,
// `{map[literal]}`, `{map[$var]}`, and `{tuple.N}` tokens. Only a variable
// whose whole value is a `{{ expr }}` block goes through the evaluator
// (resolveScope); a `{{ ... }}` embedded in a command or other field is not
// evaluated, and only the single-brace tokens above are replaced inside it.
//
// Tuple indexing is 0-based (documented Open Question decision, DESIGN.md).
func Substitute(text string, bindings map[string]any) (string, error) {
	var firstErr error
	result := substTokenPattern.ReplaceAllStringFunc(text, func(tok string) string {
		if firstErr != nil {
			return tok
		}
		m := substTokenPattern.FindStringSubmatch(tok)
		name, suffix := m[1], m[2]

		val, ok := bindings[name]
		if !ok {
			firstErr = apperrors.New(apperrors.KindConfigUnresolved, "Substitute", name, fmt.Errorf("unresolved variable reference"))
			return tok
		}

		switch {
		case suffix == "":
			s, err := renderScalarOrJoin(val)
			if err != nil {
				firstErr = err
				return tok
			}
			return s

		case strings.HasPrefix(suffix, "."):
			idxStr := strings.TrimPrefix(suffix, ".")
			idx, err := strconv.Atoi(idxStr)
			if err != nil {
				firstErr = apperrors.New(apperrors.KindConfigParse, "Substitute", tok, err)
				return tok
			}
			list, ok := val.([]any)
			if !ok {
				firstErr = apperrors.New(apperrors.KindConfigUnresolved, "Substitute", name, fmt.Errorf("%q is not a tuple", name))
				return tok
			}
			if idx < 0 || idx >= len(list) {
				firstErr = apperrors.New(apperrors.KindConfigKey, "Substitute", tok, fmt.Errorf("tuple index %d out of range (len=%d)", idx, len(list)))
				return tok
			}
			return fmt.Sprint(list[idx])

		default: // "[...]"
			keyExpr := strings.TrimSuffix(strings.TrimPrefix(suffix, "["), "]")
			m, ok := val.(map[string]any)
			if !ok {
				firstErr = apperrors.New(apperrors.KindConfigUnresolved, "Substitute", name, fmt.Errorf("%q is not a mapping", name))
				return tok
			}
			key := keyExpr
			if strings.HasPrefix(keyExpr, "$") {
				refName := strings.TrimPrefix(keyExpr, "$")
				refVal, ok := bindings[refName]
				if !ok {
					firstErr = apperrors.New(apperrors.KindConfigUnresolved, "Substitute", refName, fmt.Errorf("unresolved variable reference"))
					return tok
				}
				key = fmt.Sprint(refVal)
			}
			v, ok := m[key]
			if !ok {
				firstErr = apperrors.New(apperrors.KindConfigKey, "Substitute", tok, fmt.Errorf("key %q not found in %q", key, name))
				return tok
			}
			return fmt.Sprint(v)
		}
	})
	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// renderScalarOrJoin implements "List-typed variable substituted into a
// string ⇒ join members with single spaces" (spec §4.1 Phase VI).
func renderScalarOrJoin(val any) (string, error) {
	switch v := val.(type) {
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, " "), nil
	case map[string]any:
		return "", apperrors.New(apperrors.KindConfigUnresolved, "renderScalarOrJoin", "", fmt.Errorf("cannot substitute a mapping directly; use {name[key]}"))
	default:
		return fmt.Sprint(v), nil
	}
}
