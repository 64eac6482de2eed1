package pipeline

import (
	"context"
	"fmt"

	"github.com/Mindburn-Labs/regcoder/pkg/audit"
	"github.com/Mindburn-Labs/regcoder/pkg/compliance"
)

// Self-test verdicts recorded on judge entries.
const (
	SelfTestPass = "pass"
	SelfTestFail = "fail"
)

// SelfTest runs every catalogue test case against its predicate and records
// the outcome as a judge entry.
func (r *Runner) SelfTest(ctx context.Context) (check *compliance.SelfCheck, err error) {
	ctx, done := r.telemetry.TrackOperation(ctx, "pipeline.selftest")
	defer func() { done(err) }()

	check = r.evaluator.CheckTestCases(ctx)
	verdict := SelfTestPass
	if !check.OK() {
		verdict = SelfTestFail
	}

	failed := make([]string, 0, len(check.Failures))
	for _, f := range check.Failures {
		failed = append(failed, f.TestCaseID)
	}
	_, err = r.chain.Append(ctx, audit.Record{
		Action:    audit.ActionJudge,
		Stage:     StageJudging,
		TargetIDs: []string{check.RegulationID + "@" + check.Version},
		Details: map[string]any{
			"total":        check.Total,
			"passed":       check.Passed,
			"failed_cases": failed,
		},
		Verdict: verdict,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: audit selftest: %w", err)
	}
	if !check.OK() {
		r.logger.WarnContext(ctx, "catalogue self-test failed", "failures", len(check.Failures))
	}
	return check, nil
}
