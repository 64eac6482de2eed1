package compliance

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	tests := []struct {
		passed, failed int
		want           float64
	}{
		{0, 0, 0},
		{0, 5, 0},
		{5, 0, 100},
		{40, 11, 78.4},
		{2, 1, 66.7},
		{1, 2, 33.3},
		{7, 3, 70},
		{1, 7, 12.5},
		{1, 15, 6.2},
		{3, 13, 18.8},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Score(tt.passed, tt.failed), "%d/%d", tt.passed, tt.passed+tt.failed)
	}
}

func TestVerdict(t *testing.T) {
	assert.Equal(t, Compliant, Verdict(90, 0))
	assert.Equal(t, Compliant, Verdict(100, 0))
	assert.Equal(t, PartialCompliance, Verdict(100, 1))
	assert.Equal(t, PartialCompliance, Verdict(89.9, 0))
	assert.Equal(t, PartialCompliance, Verdict(60, 0))
	assert.Equal(t, PartialCompliance, Verdict(70, 2))
	assert.Equal(t, NonCompliant, Verdict(59.9, 0))
	assert.Equal(t, NonCompliant, Verdict(0, 0))
}

func TestScore_Properties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 500
	properties := gopter.NewProperties(params)

	counts := gen.IntRange(0, 400)

	properties.Property("score is within one rounding step of the exact ratio", prop.ForAll(
		func(passed, failed int) bool {
			got := Score(passed, failed)
			if passed+failed == 0 {
				return got == 0
			}
			exact := float64(passed) / float64(passed+failed) * 100
			return math.Abs(got-exact) <= 0.05+1e-9
		},
		counts, counts,
	))

	properties.Property("score is bounded and has one decimal", prop.ForAll(
		func(passed, failed int) bool {
			got := Score(passed, failed)
			tenths := got * 10
			return got >= 0 && got <= 100 && math.Abs(tenths-math.Round(tenths)) < 1e-6
		},
		counts, counts,
	))

	properties.Property("critical gaps never yield compliant", prop.ForAll(
		func(passed, failed, critical int) bool {
			return Verdict(Score(passed, failed), critical+1) != Compliant
		},
		counts, counts, gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}
