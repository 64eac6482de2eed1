package compliance

import (
	"context"

	"github.com/Mindburn-Labs/regcoder/pkg/rules"
)

// TestCaseFailure is an embedded test case whose verdict did not match.
type TestCaseFailure struct {
	RuleID      string        `json:"rule_id"`
	TestCaseID  string        `json:"test_case_id"`
	Description string        `json:"description"`
	Expected    rules.Verdict `json:"expected"`
	Got         rules.Verdict `json:"got"`
}

// SelfCheck summarises a run of the catalogue's embedded test cases.
type SelfCheck struct {
	RegulationID string            `json:"regulation_id"`
	Version      string            `json:"version"`
	Total        int               `json:"total"`
	Passed       int               `json:"passed"`
	Failures     []TestCaseFailure `json:"failures"`
}

// OK reports whether every case matched.
func (s *SelfCheck) OK() bool { return len(s.Failures) == 0 }

// CheckTestCases runs every rule's embedded test cases through the
// evaluator, exactly as a profile would be evaluated.
func (e *Evaluator) CheckTestCases(ctx context.Context) *SelfCheck {
	out := &SelfCheck{
		RegulationID: e.catalogue.Regulation().ID,
		Version:      e.catalogue.Version().String(),
		Failures:     []TestCaseFailure{},
	}
	for _, rule := range e.catalogue.Rules() {
		for _, tc := range rule.TestCases {
			out.Total++
			input := tc.InputData
			if input == nil {
				input = map[string]any{}
			}
			got := e.EvaluateRule(ctx, rule, input).Verdict
			if got == tc.ExpectedResult {
				out.Passed++
				continue
			}
			out.Failures = append(out.Failures, TestCaseFailure{
				RuleID:      rule.ID,
				TestCaseID:  tc.ID,
				Description: tc.Description,
				Expected:    tc.ExpectedResult,
				Got:         got,
			})
		}
	}
	return out
}
