package harness

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var refPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_-]+)((?:\.[A-Za-z0-9_-]+)*)\}`)

// refsIn returns the step names referenced anywhere in v.
func refsIn(v any) []string {
	var out []string
	walkStrings(v, func(s string) {
		for _, m := range refPattern.FindAllStringSubmatch(s, -1) {
			out = append(out, m[1])
		}
	})
	return out
}

func walkStrings(v any, fn func(string)) {
	switch val := v.(type) {
	case string:
		fn(val)
	case map[string]any:
		for _, e := range val {
			walkStrings(e, fn)
		}
	case []any:
		for _, e := range val {
			walkStrings(e, fn)
		}
	}
}

// resolve returns a copy of v with every reference replaced. A string that
// is exactly one reference takes the referenced value with its type; a
// reference embedded in a longer string must point at a scalar.
func resolve(v any, outputs map[string]any) (any, error) {
	switch val := v.(type) {
	case string:
		return resolveString(val, outputs)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			r, err := resolve(e, outputs)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			r, err := resolve(e, outputs)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = r
		}
		return out, nil
	default:
		return v, nil
	}
}

func resolveString(s string, outputs map[string]any) (any, error) {
	if m := refPattern.FindStringSubmatch(s); m != nil && m[0] == s {
		return lookupRef(m, outputs)
	}
	var firstErr error
	out := refPattern.ReplaceAllStringFunc(s, func(ref string) string {
		v, err := lookupRef(refPattern.FindStringSubmatch(ref), outputs)
		if err == nil {
			switch v.(type) {
			case map[string]any, []any, nil:
				err = fmt.Errorf("%s is not a scalar", ref)
			}
		}
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return ref
		}
		return scalarString(v)
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func lookupRef(m []string, outputs map[string]any) (any, error) {
	cur, ok := outputs[m[1]]
	if !ok {
		return nil, fmt.Errorf("${%s...}: step has no output", m[1])
	}
	if m[2] == "" {
		return cur, nil
	}
	for _, seg := range strings.Split(strings.TrimPrefix(m[2], "."), ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, fmt.Errorf("%s: no field %q", m[0], seg)
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("%s: index %q out of range", m[0], seg)
			}
			cur = node[i]
		default:
			return nil, fmt.Errorf("%s: cannot descend into %T at %q", m[0], cur, seg)
		}
	}
	return cur, nil
}

func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
