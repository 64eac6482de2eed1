// Package compliance evaluates AI system profiles against a rule catalogue
// and scores the outcome.
package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/regcoder/pkg/fieldpath"
	"github.com/Mindburn-Labs/regcoder/pkg/profile"
	"github.com/Mindburn-Labs/regcoder/pkg/rules"
	"github.com/Mindburn-Labs/regcoder/pkg/rules/logic"
)

// ErrNoCatalogue is returned when an evaluator is built without rules.
var ErrNoCatalogue = errors.New("compliance: no rule catalogue")

// Evaluator runs every rule of a catalogue against a profile. It performs no
// I/O and is safe for concurrent use.
type Evaluator struct {
	catalogue *rules.Catalogue
	fallback  logic.Interpreter
	logger    *slog.Logger
	clock     func() time.Time
	newID     func() string
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// WithClock overrides the clock used for evaluation dates and report ids.
func WithClock(clock func() time.Time) Option {
	return func(e *Evaluator) { e.clock = clock }
}

// WithFallback sets the interpreter for rules without a native predicate.
// A nil interpreter sends such rules to manual review.
func WithFallback(in logic.Interpreter) Option {
	return func(e *Evaluator) { e.fallback = in }
}

// NewEvaluator creates an evaluator over a built catalogue.
func NewEvaluator(cat *rules.Catalogue, opts ...Option) (*Evaluator, error) {
	if cat == nil {
		return nil, ErrNoCatalogue
	}
	e := &Evaluator{
		catalogue: cat,
		fallback:  logic.NewCELInterpreter(),
		logger:    slog.Default().With("component", "compliance"),
		clock:     time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Catalogue returns the catalogue the evaluator runs.
func (e *Evaluator) Catalogue() *rules.Catalogue { return e.catalogue }

// Evaluate checks a typed profile.
func (e *Evaluator) Evaluate(ctx context.Context, p *profile.Profile) (*Report, error) {
	if p == nil {
		return nil, fmt.Errorf("compliance: nil profile")
	}
	data, err := p.ToMap()
	if err != nil {
		return nil, fmt.Errorf("compliance: profile to map: %w", err)
	}
	return e.EvaluateMap(ctx, p.SystemName, p.ProviderName, data), nil
}

// EvaluateMap checks a plain profile map. Rules run in catalogue order.
func (e *Evaluator) EvaluateMap(ctx context.Context, systemName, providerName string, data map[string]any) *Report {
	all := e.catalogue.Rules()
	results := make([]RuleResult, 0, len(all))
	var critical, high, medium []Gap
	var sum Summary

	for _, rule := range all {
		res := e.EvaluateRule(ctx, rule, data)
		results = append(results, res)

		switch res.Verdict {
		case rules.VerdictPass:
			sum.Passed++
		case rules.VerdictFail:
			sum.Failed++
			gap := gapFor(rule, res)
			switch rule.Severity {
			case rules.SeverityCritical:
				critical = append(critical, gap)
			case rules.SeverityHigh:
				high = append(high, gap)
			default:
				medium = append(medium, gap)
			}
		case rules.VerdictNotApplicable:
			sum.NotApplicable++
		case rules.VerdictManualReview:
			sum.ManualReview++
		}
	}
	sum.TotalRules = len(results)
	sum.ComplianceScore = Score(sum.Passed, sum.Failed)

	now := e.clock().UTC()
	reg := e.catalogue.Regulation()
	report := &Report{
		ID:                e.reportID(reg.ID, now),
		RegulationID:      reg.ID,
		RegulationVersion: e.catalogue.Version().String(),
		SystemName:        systemName,
		ProviderName:      providerName,
		EvaluationDate:    now,
		Summary:           sum,
		RuleResults:       results,
		CriticalGaps:      orEmpty(critical),
		HighGaps:          orEmpty(high),
		MediumGaps:        orEmpty(medium),
		OverallVerdict:    Verdict(sum.ComplianceScore, len(critical)),
		Disclaimer:        Disclaimer,
	}

	e.logger.InfoContext(ctx, "evaluation complete",
		"system", systemName,
		"verdict", report.OverallVerdict,
		"score", sum.ComplianceScore,
		"critical_gaps", len(critical),
	)
	return report
}

// EvaluateRule runs a single rule. It never fails: errors and panics from
// the rule's logic become manual_review.
func (e *Evaluator) EvaluateRule(ctx context.Context, rule rules.Rule, data map[string]any) RuleResult {
	res := RuleResult{
		RuleID:        rule.ID,
		RequirementID: rule.RequirementID,
		Title:         rule.Title,
		Severity:      rule.Severity,
		ArticleRef:    rule.ArticleRef(),
		Citations:     orEmpty(rule.Citations),
	}

	if rule.RuleType == rules.RuleTypeManual {
		res.Verdict = rules.VerdictManualReview
		res.Details = ManualAssessment
		return res
	}

	raw, err := e.execute(ctx, rule, data)
	if err != nil {
		e.logger.WarnContext(ctx, "rule evaluation failed", "rule_id", rule.ID, "error", err)
		raw = string(rules.VerdictManualReview)
	}

	res.Verdict = rules.ParseVerdict(raw)
	res.Details = rule.Description
	res.Remediation = rule.Remediation
	return res
}

func (e *Evaluator) execute(ctx context.Context, rule rules.Rule, data map[string]any) (verdict string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("predicate panic: %v", r)
		}
	}()

	if pred, ok := e.catalogue.EvaluationFunction(rule.ID); ok {
		return pred(data), nil
	}
	if e.fallback == nil || rule.EvaluationLogic == "" {
		return string(rules.VerdictManualReview), nil
	}
	vars := fieldpath.ResolveAll(data, rule.InputsNeeded)
	return e.fallback.Eval(ctx, rule.EvaluationLogic, vars)
}

func (e *Evaluator) reportID(regulationID string, now time.Time) string {
	suffix := e.newID()
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("RPT-%s-%s-%s", regulationID, now.Format("20060102150405"), suffix)
}

func gapFor(rule rules.Rule, res RuleResult) Gap {
	desc := res.Details
	if desc == "" {
		desc = rule.Title
	}
	return Gap{
		RuleID:        rule.ID,
		RequirementID: rule.RequirementID,
		Description:   desc,
		Severity:      rule.Severity,
		Remediation:   rule.Remediation,
		ArticleRef:    res.ArticleRef,
		Citations:     orEmpty(rule.Citations),
	}
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
