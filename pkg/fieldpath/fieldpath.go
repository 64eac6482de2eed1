// Package fieldpath resolves dotted field paths against plain profile maps.
package fieldpath

import "strings"

// Prefix is the namespace some rule authors put in front of profile fields.
// It is accepted but never required.
const Prefix = "system_profile."

// Resolve walks data along a dotted path such as
// "bias_examination_report.covers_health_safety".
//
// It returns nil when an intermediate value is not a map, a key is absent,
// or the value found is nil. Only nested map traversal is supported.
func Resolve(data map[string]any, path string) any {
	path = strings.TrimPrefix(path, Prefix)

	var current any = data
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(current)
		if !ok {
			return nil
		}
		current, ok = m[part]
		if !ok || current == nil {
			return nil
		}
	}
	return current
}

// VarName is the variable name a path binds to in evaluation logic: its last
// segment.
func VarName(path string) string {
	path = strings.TrimPrefix(path, Prefix)
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// ResolveAll resolves every path and keys the values by VarName.
// Unresolvable paths map to nil so callers can tell "asked for" from
// "never asked".
func ResolveAll(data map[string]any, paths []string) map[string]any {
	out := make(map[string]any, len(paths))
	for _, p := range paths {
		out[VarName(p)] = Resolve(data, p)
	}
	return out
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, m != nil
	default:
		return nil, false
	}
}
