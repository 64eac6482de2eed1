package fieldpath

import (
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// nest builds a map in which keys[0].keys[1]...keys[n-1] resolves to leaf.
func nest(keys []string, leaf string) map[string]any {
	var v any = leaf
	for i := len(keys) - 1; i >= 0; i-- {
		v = map[string]any{keys[i]: v}
	}
	m, _ := v.(map[string]any)
	return m
}

func TestResolve_Properties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	keys := gen.SliceOfN(3, gen.Identifier())

	properties.Property("resolution is idempotent", prop.ForAll(
		func(ks []string, leaf string) bool {
			data := nest(ks, leaf)
			path := strings.Join(ks, ".")
			return reflect.DeepEqual(Resolve(data, path), Resolve(data, path))
		},
		keys, gen.AlphaString(),
	))

	properties.Property("system_profile prefix is transparent", prop.ForAll(
		func(ks []string, leaf string) bool {
			data := nest(ks, leaf)
			path := strings.Join(ks, ".")
			return reflect.DeepEqual(Resolve(data, Prefix+path), Resolve(data, path))
		},
		keys, gen.AlphaString(),
	))

	properties.Property("full path reaches the leaf", prop.ForAll(
		func(ks []string, leaf string) bool {
			return Resolve(nest(ks, leaf), strings.Join(ks, ".")) == leaf
		},
		keys, gen.AlphaString(),
	))

	properties.TestingRun(t)
}
