package canonicalize

import (
	"encoding/json"
	"testing"
)

func FuzzJCS(f *testing.F) {
	f.Add([]byte(`{"a":1,"b":2}`))
	f.Add([]byte(`{"z":{"y":"foo","x":"bar"},"a":1}`))
	f.Add([]byte(`{"num":123.456,"bool":true,"null":null}`))
	f.Add([]byte(`{"unicode":"こんにちは","emoji":"🚀"}`))
	f.Add([]byte(`{"escape":"line1\nline2\ttab"}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			t.Skip("invalid JSON input")
		}

		b1, err := JCS(v)
		if err != nil {
			return
		}
		b2, err := JCS(v)
		if err != nil {
			t.Fatal("JCS returned error on second call but not first")
		}
		if string(b1) != string(b2) {
			t.Errorf("JCS non-deterministic:\n  first:  %s\n  second: %s", b1, b2)
		}

		var check any
		if err := json.Unmarshal(b1, &check); err != nil {
			t.Errorf("JCS output is not valid JSON: %s", string(b1))
		}
	})
}

func FuzzSortedJSON(f *testing.F) {
	f.Add([]byte(`{"b":[1,2.5,"x"],"a":{"z":null}}`))
	f.Add([]byte(`["é","𝄞"]`))
	f.Add([]byte(`{"n":1e300,"m":-0.0}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		v, err := decodeNumbers(data)
		if err != nil {
			t.Skip("invalid JSON input")
		}

		s, err := SortedJSON(v)
		if err != nil {
			t.Fatalf("SortedJSON failed on valid JSON: %v", err)
		}
		for i := 0; i < len(s); i++ {
			if s[i] > 0x7e {
				t.Fatalf("non-ASCII byte in output %q", s)
			}
		}
		var check any
		if err := json.Unmarshal([]byte(s), &check); err != nil {
			t.Errorf("SortedJSON output is not valid JSON: %s", s)
		}
	})
}
