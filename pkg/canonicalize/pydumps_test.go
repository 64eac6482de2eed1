package canonicalize

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Expected strings were produced by CPython's json.dumps(v, sort_keys=True).
func TestSortedJSON_MatchesPython(t *testing.T) {
	v := map[string]any{
		"b": []any{1, 2.5, "é"},
		"a": map[string]any{"z": nil, "y": true},
		"c": 1e16,
		"d": 0.0001,
		"e": 1e-5,
		"f": "𝄞\n\"q\"\x7f",
		"g": []any{},
		"h": map[string]any{},
		"i": math.Copysign(0, -1),
		"j": 123.0,
		"k": math.NaN(),
		"l": math.Inf(-1),
	}

	got, err := SortedJSON(v)
	require.NoError(t, err)
	assert.Equal(t,
		`{"a": {"y": true, "z": null}, "b": [1, 2.5, "\u00e9"], "c": 1e+16, "d": 0.0001, "e": 1e-05, `+
			`"f": "\ud834\udd1e\n\"q\"\u007f", "g": [], "h": {}, "i": -0.0, "j": 123.0, "k": NaN, "l": -Infinity}`,
		got)
}

func TestSortedJSON_StringList(t *testing.T) {
	got, err := SortedJSON([]string{"RPT-1", "x"})
	require.NoError(t, err)
	assert.Equal(t, `["RPT-1", "x"]`, got)

	got, err = SortedJSON([]string(nil))
	require.NoError(t, err)
	assert.Equal(t, `[]`, got)
}

func TestSortedJSON_JSONNumbers(t *testing.T) {
	got, err := SortedJSON(map[string]any{
		"int":   json.Number("42"),
		"float": json.Number("1.50"),
		"exp":   json.Number("1E3"),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"exp": 1000.0, "float": 1.5, "int": 42}`, got)
}

func TestSortedJSON_StructsAndFallbacks(t *testing.T) {
	type inner struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	ts := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)

	got, err := SortedJSON(map[string]any{
		"s":    inner{Name: "x", Count: 2},
		"when": ts,
		"ptr":  (*inner)(nil),
		"u":    uint16(7),
	})
	require.NoError(t, err)
	assert.Equal(t,
		`{"ptr": null, "s": {"count": 2, "name": "x"}, "u": 7, "when": "2025-03-01 12:30:00+00:00"}`,
		got)
}

func TestPyFloat(t *testing.T) {
	cases := map[float64]string{
		0:        "0.0",
		1:        "1.0",
		0.1:      "0.1",
		70:       "70.0",
		66.7:     "66.7",
		1e15:     "1000000000000000.0",
		1e16:     "1e+16",
		1.5e-5:   "1.5e-05",
		1.23e100: "1.23e+100",
		-2.5:     "-2.5",
	}
	for in, want := range cases {
		assert.Equal(t, want, PyFloat(in), "PyFloat(%v)", in)
	}
}
