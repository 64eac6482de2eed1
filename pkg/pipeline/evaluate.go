package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Mindburn-Labs/regcoder/pkg/audit"
	"github.com/Mindburn-Labs/regcoder/pkg/canonicalize"
	"github.com/Mindburn-Labs/regcoder/pkg/compliance"
	"github.com/Mindburn-Labs/regcoder/pkg/observability"
	"github.com/Mindburn-Labs/regcoder/pkg/profile"
)

// Evaluate checks one profile and records an evaluate entry carrying the
// profile and report content hashes.
func (r *Runner) Evaluate(ctx context.Context, p *profile.Profile) (report *compliance.Report, err error) {
	if p == nil {
		return nil, ErrNilProfile
	}
	reg := r.Catalogue().Regulation().ID
	ctx, done := r.telemetry.TrackOperation(ctx, "pipeline.evaluate", observability.EvaluationAttrs(reg, p.SystemName)...)
	defer func() { done(err) }()

	report, err = r.evaluator.Evaluate(ctx, p)
	if err != nil {
		return nil, err
	}
	inputHash, err := p.Hash()
	if err != nil {
		return nil, fmt.Errorf("pipeline: hash profile: %w", err)
	}
	outputHash, err := canonicalize.CanonicalHash(report)
	if err != nil {
		return nil, fmt.Errorf("pipeline: hash report: %w", err)
	}

	r.telemetry.RecordRuleVerdicts(ctx, verdictCounts(report), observability.AttrRegulation.String(reg))
	observability.AddSpanEvent(ctx, "report.ready",
		observability.ReportAttrs(report.ID, string(report.OverallVerdict), report.Score())...)

	_, err = r.chain.Append(ctx, audit.Record{
		Action:     audit.ActionEvaluate,
		Stage:      StageEvaluation,
		TargetIDs:  []string{report.ID, p.SystemName},
		InputHash:  inputHash,
		OutputHash: outputHash,
		Details: map[string]any{
			"regulation_id":      report.RegulationID,
			"regulation_version": report.RegulationVersion,
			"total_rules":        report.Summary.TotalRules,
			"passed":             report.Summary.Passed,
			"failed":             report.Summary.Failed,
			"not_applicable":     report.Summary.NotApplicable,
			"manual_review":      report.Summary.ManualReview,
			"compliance_score":   report.Summary.ComplianceScore,
			"critical_gaps":      len(report.CriticalGaps),
		},
		Verdict: string(report.OverallVerdict),
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: audit evaluate: %w", err)
	}
	return report, nil
}

// EvaluateBatch evaluates profiles concurrently, bounded by the configured
// concurrency. Reports keep the input order. The first failure cancels the
// remaining evaluations; entries already appended stay in the log.
func (r *Runner) EvaluateBatch(ctx context.Context, profiles []*profile.Profile) ([]*compliance.Report, error) {
	ctx, done := r.telemetry.TrackOperation(ctx, "pipeline.evaluate_batch",
		observability.AttrBatchSize.Int(len(profiles)))

	reports := make([]*compliance.Report, len(profiles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, p := range profiles {
		g.Go(func() error {
			report, err := r.Evaluate(gctx, p)
			if err != nil {
				return fmt.Errorf("pipeline: profile %d: %w", i, err)
			}
			reports[i] = report
			return nil
		})
	}
	err := g.Wait()
	done(err)
	if err != nil {
		return nil, err
	}
	r.logger.InfoContext(ctx, "batch evaluated", "profiles", len(profiles))
	return reports, nil
}

// Scorecard builds the per-article breakdown of a report.
func (r *Runner) Scorecard(report *compliance.Report) (*compliance.Scorecard, error) {
	return r.scorecards.Build(report)
}

func verdictCounts(report *compliance.Report) map[string]int64 {
	counts := make(map[string]int64, 4)
	for _, res := range report.RuleResults {
		counts[string(res.Verdict)]++
	}
	return counts
}
