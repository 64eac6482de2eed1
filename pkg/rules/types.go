// Package rules defines the regulatory data model (clauses, requirements,
// rules) and the versioned catalogue the compliance evaluator consumes.
package rules

import "strings"

// RuleType is the automation level of a rule.
type RuleType string

const (
	RuleTypeAutomated     RuleType = "automated"
	RuleTypeSemiAutomated RuleType = "semi_automated"
	RuleTypeManual        RuleType = "manual"
)

// Severity ranks the impact of a failing rule.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Modality is the deontic force of a requirement.
type Modality string

const (
	ModalityMust      Modality = "must"
	ModalityMustNot   Modality = "must_not"
	ModalityShould    Modality = "should"
	ModalityShouldNot Modality = "should_not"
	ModalityMay       Modality = "may"
)

// Verdict is the outcome of one rule against one profile.
type Verdict string

const (
	VerdictPass          Verdict = "pass"
	VerdictFail          Verdict = "fail"
	VerdictNotApplicable Verdict = "not_applicable"
	VerdictManualReview  Verdict = "manual_review"
)

// ParseVerdict maps a raw predicate outcome onto the closed Verdict set.
// Anything unrecognised becomes manual_review.
func ParseVerdict(s string) Verdict {
	switch v := Verdict(strings.TrimSpace(s)); v {
	case VerdictPass, VerdictFail, VerdictNotApplicable, VerdictManualReview:
		return v
	default:
		return VerdictManualReview
	}
}

// Citation points a requirement or rule back at its source clause.
type Citation struct {
	ClauseID      string `json:"clause_id" yaml:"clause_id" validate:"required"`
	ArticleRef    string `json:"article_ref" yaml:"article_ref" validate:"required"`
	ParagraphRef  string `json:"paragraph_ref,omitempty" yaml:"paragraph_ref,omitempty"`
	SubsectionRef string `json:"subsection_ref,omitempty" yaml:"subsection_ref,omitempty"`
	PageNumber    int    `json:"page_number,omitempty" yaml:"page_number,omitempty"`
	ExactQuote    string `json:"exact_quote" yaml:"exact_quote"`
}

// Clause is one addressable unit of regulatory text.
type Clause struct {
	ID               string `json:"id" yaml:"id" validate:"required"`
	RegulationID     string `json:"regulation_id" yaml:"regulation_id"`
	DocumentVersion  string `json:"document_version" yaml:"document_version"`
	ArticleNumber    int    `json:"article_number" yaml:"article_number" validate:"gt=0"`
	ParagraphNumber  int    `json:"paragraph_number,omitempty" yaml:"paragraph_number,omitempty"`
	SubsectionLetter string `json:"subsection_letter,omitempty" yaml:"subsection_letter,omitempty"`
	Text             string `json:"text" yaml:"text" validate:"required"`
	Language         string `json:"language" yaml:"language"`
	PageRef          int    `json:"page_ref,omitempty" yaml:"page_ref,omitempty"`
	ParentClauseID   string `json:"parent_clause_id,omitempty" yaml:"parent_clause_id,omitempty"`
}

// Condition qualifies when a requirement applies, or when it does not.
type Condition struct {
	Description     string `json:"description" yaml:"description" validate:"required"`
	ClauseReference string `json:"clause_reference,omitempty" yaml:"clause_reference,omitempty"`
}

// Requirement is a structured obligation extracted from a clause.
type Requirement struct {
	ID             string      `json:"id" yaml:"id" validate:"required"`
	ClauseID       string      `json:"clause_id" yaml:"clause_id" validate:"required"`
	Modality       Modality    `json:"modality" yaml:"modality" validate:"oneof=must must_not should should_not may"`
	Subject        string      `json:"subject" yaml:"subject" validate:"required"`
	Action         string      `json:"action" yaml:"action" validate:"required"`
	Object         string      `json:"object,omitempty" yaml:"object,omitempty"`
	Conditions     []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty" validate:"dive"`
	Exceptions     []Condition `json:"exceptions,omitempty" yaml:"exceptions,omitempty" validate:"dive"`
	Scope          string      `json:"scope,omitempty" yaml:"scope,omitempty"`
	Jurisdiction   string      `json:"jurisdiction" yaml:"jurisdiction"`
	Confidence     float64     `json:"confidence" yaml:"confidence" validate:"gte=0,lte=1"`
	AmbiguityNotes string      `json:"ambiguity_notes,omitempty" yaml:"ambiguity_notes,omitempty"`
	Citations      []Citation  `json:"citations" yaml:"citations" validate:"dive"`
}

// TestCase is a literal profile fragment with the verdict a rule must give.
type TestCase struct {
	ID             string         `json:"id" yaml:"id" validate:"required"`
	Description    string         `json:"description" yaml:"description"`
	InputData      map[string]any `json:"input_data" yaml:"input_data"`
	ExpectedResult Verdict        `json:"expected_result" yaml:"expected_result" validate:"oneof=pass fail not_applicable manual_review"`
}

// Rule is a machine-checkable check derived from one requirement. The
// registered predicate is authoritative; EvaluationLogic documents it and
// feeds the fallback interpreter.
type Rule struct {
	ID              string     `json:"id" yaml:"id" validate:"required"`
	RequirementID   string     `json:"requirement_id" yaml:"requirement_id" validate:"required"`
	RuleType        RuleType   `json:"rule_type" yaml:"rule_type" validate:"oneof=automated semi_automated manual"`
	Title           string     `json:"title" yaml:"title" validate:"required"`
	Description     string     `json:"description" yaml:"description"`
	InputsNeeded    []string   `json:"inputs_needed" yaml:"inputs_needed"`
	EvaluationLogic string     `json:"evaluation_logic" yaml:"evaluation_logic"`
	Severity        Severity   `json:"severity" yaml:"severity" validate:"oneof=critical high medium low info"`
	Remediation     string     `json:"remediation" yaml:"remediation"`
	TestCases       []TestCase `json:"test_cases" yaml:"test_cases" validate:"dive"`
	Citations       []Citation `json:"citations" yaml:"citations" validate:"dive"`
}

// ArticleRef is the first citation's article reference, or "".
func (r Rule) ArticleRef() string {
	if len(r.Citations) == 0 {
		return ""
	}
	return r.Citations[0].ArticleRef
}

// Regulation is the metadata of one regulatory instrument.
type Regulation struct {
	ID              string `json:"id" yaml:"id" validate:"required"`
	Title           string `json:"title" yaml:"title" validate:"required"`
	ShortName       string `json:"short_name" yaml:"short_name"`
	DocumentVersion string `json:"document_version" yaml:"document_version" validate:"required"`
	Jurisdiction    string `json:"jurisdiction" yaml:"jurisdiction"`
	Language        string `json:"language" yaml:"language"`
	SourceURL       string `json:"source_url,omitempty" yaml:"source_url,omitempty" validate:"omitempty,url"`
	TotalArticles   int    `json:"total_articles" yaml:"total_articles"`
	TotalClauses    int    `json:"total_clauses" yaml:"total_clauses"`
}

// Predicate is a native rule implementation. It receives the plain profile
// map and returns a raw verdict string.
type Predicate func(profile map[string]any) string
