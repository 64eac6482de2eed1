package compliance

import (
	"math"
	"strconv"
)

// Score returns passed/(passed+failed) as a percentage rounded to one
// decimal place, ties to even on the exact binary value. It is 0 when no
// rule was applicable.
func Score(passed, failed int) float64 {
	applicable := passed + failed
	if applicable <= 0 {
		return 0
	}
	return round1(float64(passed) / float64(applicable) * 100)
}

func round1(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	r, _ := strconv.ParseFloat(strconv.FormatFloat(x, 'f', 1, 64), 64)
	return r
}

// Verdict derives the overall verdict. A report with a critical gap is never
// compliant, but it can still be partially compliant when the score is 60
// or more.
func Verdict(score float64, criticalGaps int) OverallVerdict {
	switch {
	case score >= 90 && criticalGaps == 0:
		return Compliant
	case score >= 60:
		return PartialCompliance
	default:
		return NonCompliant
	}
}
