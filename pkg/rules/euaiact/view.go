package euaiact

import (
	"fmt"
	"reflect"
	"strings"
)

// view reads a plain profile map with the truthiness rules of the documents
// it was decoded from: absent keys, null, false, zero, "" and empty
// collections are all false.
//
// Accessors panic on values that have no length or are not strings where
// one is required. The evaluator turns such a panic into manual_review.
type view map[string]any

func (v view) flag(key string) bool {
	return truthy(v[key])
}

// flagOr applies def only when the key is absent.
func (v view) flagOr(key string, def bool) bool {
	val, ok := v[key]
	if !ok {
		return def
	}
	return truthy(val)
}

func (v view) length(key string) int {
	val, ok := v[key]
	if !ok {
		return 0
	}
	return sizeOf(key, val)
}

func (v view) extra() view {
	val, ok := v["extra"]
	if !ok {
		return view{}
	}
	m, ok := val.(map[string]any)
	if !ok {
		panic(fmt.Sprintf("extra: expected mapping, got %T", val))
	}
	return view(m)
}

// anyContains reports whether any string in the list at key contains one of
// the needles, case-insensitively.
func (v view) anyContains(key string, needles ...string) bool {
	val, ok := v[key]
	if !ok {
		return false
	}
	for _, item := range listOf(key, val) {
		s, ok := item.(string)
		if !ok {
			panic(fmt.Sprintf("%s: expected string item, got %T", key, item))
		}
		s = strings.ToLower(s)
		for _, n := range needles {
			if strings.Contains(s, n) {
				return true
			}
		}
	}
	return false
}

func truthy(val any) bool {
	switch t := val.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case []string:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	}
	return true
}

func sizeOf(key string, val any) int {
	switch t := val.(type) {
	case string:
		return len([]rune(t))
	case []any:
		return len(t)
	case []string:
		return len(t)
	case map[string]any:
		return len(t)
	}
	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len()
	}
	panic(fmt.Sprintf("%s: value of type %T has no length", key, val))
}

func listOf(key string, val any) []any {
	switch t := val.(type) {
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	}
	panic(fmt.Sprintf("%s: expected list, got %T", key, val))
}
