package compliance

import (
	"time"

	"github.com/Mindburn-Labs/regcoder/pkg/rules"
)

// Disclaimer accompanies every report.
const Disclaimer = "DISCLAIMER: This report is an engineering interpretation of regulatory requirements. " +
	"It does not constitute legal advice. Consult qualified legal professionals for " +
	"authoritative compliance determinations."

// ManualAssessment is the detail text of rules that are never automated.
const ManualAssessment = "Requires manual assessment"

// OverallVerdict summarises a report.
type OverallVerdict string

const (
	Compliant         OverallVerdict = "compliant"
	PartialCompliance OverallVerdict = "partial_compliance"
	NonCompliant      OverallVerdict = "non_compliant"
)

// RuleResult is the outcome of one rule.
type RuleResult struct {
	RuleID        string           `json:"rule_id"`
	RequirementID string           `json:"requirement_id"`
	Title         string           `json:"title"`
	Verdict       rules.Verdict    `json:"verdict"`
	Severity      rules.Severity   `json:"severity"`
	Details       string           `json:"details"`
	Remediation   string           `json:"remediation"`
	ArticleRef    string           `json:"article_ref"`
	Citations     []rules.Citation `json:"citations"`
}

// Gap is a failed rule, carried into the report's severity buckets.
type Gap struct {
	RuleID        string           `json:"rule_id"`
	RequirementID string           `json:"requirement_id"`
	Description   string           `json:"description"`
	Severity      rules.Severity   `json:"severity"`
	Remediation   string           `json:"remediation"`
	ArticleRef    string           `json:"article_ref"`
	Citations     []rules.Citation `json:"citations"`
}

// Summary holds verdict counts and the compliance score.
type Summary struct {
	TotalRules      int     `json:"total_rules"`
	Passed          int     `json:"passed"`
	Failed          int     `json:"failed"`
	NotApplicable   int     `json:"not_applicable"`
	ManualReview    int     `json:"manual_review"`
	ComplianceScore float64 `json:"compliance_score"`
}

// Report is the full evaluation of one profile against one catalogue.
type Report struct {
	ID                string         `json:"id"`
	RegulationID      string         `json:"regulation_id"`
	RegulationVersion string         `json:"regulation_version"`
	SystemName        string         `json:"system_name"`
	ProviderName      string         `json:"provider_name"`
	EvaluationDate    time.Time      `json:"evaluation_date"`
	Summary           Summary        `json:"summary"`
	RuleResults       []RuleResult   `json:"rule_results"`
	CriticalGaps      []Gap          `json:"critical_gaps"`
	HighGaps          []Gap          `json:"high_gaps"`
	MediumGaps        []Gap          `json:"medium_gaps"`
	OverallVerdict    OverallVerdict `json:"overall_verdict"`
	Disclaimer        string         `json:"disclaimer"`
}

// Score is the report's compliance score.
func (r *Report) Score() float64 { return r.Summary.ComplianceScore }

// Gaps returns every gap, most severe bucket first.
func (r *Report) Gaps() []Gap {
	out := make([]Gap, 0, len(r.CriticalGaps)+len(r.HighGaps)+len(r.MediumGaps))
	out = append(out, r.CriticalGaps...)
	out = append(out, r.HighGaps...)
	return append(out, r.MediumGaps...)
}

// Result returns the result for a rule id.
func (r *Report) Result(ruleID string) (RuleResult, bool) {
	for _, res := range r.RuleResults {
		if res.RuleID == ruleID {
			return res, true
		}
	}
	return RuleResult{}, false
}
