package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrInvalidExtra is returned when an extra value is not a bool, a string or
// a list of strings.
var ErrInvalidExtra = errors.New("profile: extra values must be bool, string or list of strings")

// Kind identifies which member of the Value union is set.
type Kind int

const (
	KindBool Kind = iota + 1
	KindString
	KindList
)

// Value is one entry of the extension map: a bool, a string or a string list.
type Value struct {
	kind Kind
	b    bool
	s    string
	list []string
}

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// List returns a string-list Value.
func List(items ...string) Value {
	if items == nil {
		items = []string{}
	}
	return Value{kind: KindList, list: items}
}

// Kind reports which member is set. The zero Value has kind 0.
func (v Value) Kind() Kind { return v.kind }

// AsBool returns the boolean member.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsString returns the string member.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsList returns the list member.
func (v Value) AsList() ([]string, bool) { return v.list, v.kind == KindList }

// Interface returns the plain Go value: bool, string or []string.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindString:
		return v.s
	case KindList:
		return v.list
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == 0 {
		return nil, ErrInvalidExtra
	}
	return json.Marshal(v.Interface())
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := valueFrom(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (v Value) MarshalYAML() (any, error) {
	if v.kind == 0 {
		return nil, ErrInvalidExtra
	}
	return v.Interface(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := valueFrom(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*v = parsed
	return nil
}

func valueFrom(raw any) (Value, error) {
	switch t := raw.(type) {
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case []any:
		items := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return Value{}, fmt.Errorf("%w: list item %v (%T)", ErrInvalidExtra, e, e)
			}
			items = append(items, s)
		}
		return List(items...), nil
	default:
		return Value{}, fmt.Errorf("%w: got %T", ErrInvalidExtra, raw)
	}
}

// Extra is the typed extension map for rule-specific evidence flags.
type Extra map[string]Value

// Flag reports a boolean flag and whether it was set as a bool.
func (e Extra) Flag(key string) (value, ok bool) {
	v, present := e[key]
	if !present {
		return false, false
	}
	return v.AsBool()
}

// Keys returns the keys in sorted order.
func (e Extra) Keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
