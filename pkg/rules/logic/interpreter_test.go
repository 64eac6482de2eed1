package logic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const overrideExpr = `!is_high_risk ? "not_applicable" : (human_can_override ? "pass" : "fail")`

func TestCELInterpreter_Eval(t *testing.T) {
	in := NewCELInterpreter()
	ctx := context.Background()

	tests := []struct {
		name string
		vars map[string]any
		want string
	}{
		{"pass", map[string]any{"is_high_risk": true, "human_can_override": true}, "pass"},
		{"fail", map[string]any{"is_high_risk": true, "human_can_override": false}, "fail"},
		{"not applicable", map[string]any{"is_high_risk": false, "human_can_override": true}, "not_applicable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := in.Eval(ctx, overrideExpr, tt.vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Len(t, in.prgCache, 1)
}

func TestCELInterpreter_Lists(t *testing.T) {
	got, err := NewCELInterpreter().Eval(context.Background(),
		`size(robustness_measures) >= 2 ? "pass" : "fail"`,
		map[string]any{"robustness_measures": []any{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, "pass", got)
}

func TestCELInterpreter_Errors(t *testing.T) {
	in := NewCELInterpreter()
	ctx := context.Background()

	_, err := in.Eval(ctx, "if not is_high_risk: result='not_applicable'", map[string]any{"is_high_risk": true})
	assert.True(t, errors.Is(err, ErrCompile), "python pseudocode: %v", err)

	_, err = in.Eval(ctx, overrideExpr, map[string]any{"is_high_risk": true})
	assert.True(t, errors.Is(err, ErrCompile), "undeclared variable: %v", err)

	_, err = in.Eval(ctx, `is_high_risk ? "pass" : "fail"`, map[string]any{"is_high_risk": nil})
	assert.True(t, errors.Is(err, ErrEval), "null condition: %v", err)

	_, err = in.Eval(ctx, `is_high_risk`, map[string]any{"is_high_risk": true})
	assert.True(t, errors.Is(err, ErrNotString), "bool result: %v", err)
}
