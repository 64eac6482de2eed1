// Package profile models the declarative description of an AI system that
// the compliance evaluator checks against a rule catalogue.
package profile

import (
	"encoding/json"
	"fmt"

	"github.com/Mindburn-Labs/regcoder/pkg/canonicalize"
)

// DefaultSystemVersion is applied when a profile omits system_version.
const DefaultSystemVersion = "1.0.0"

// BiasExaminationReport documents the dataset bias examination (Article 10(2)(f)).
type BiasExaminationReport struct {
	CoversHealthSafety             bool     `json:"covers_health_safety" yaml:"covers_health_safety"`
	CoversFundamentalRights        bool     `json:"covers_fundamental_rights" yaml:"covers_fundamental_rights"`
	CoversProhibitedDiscrimination bool     `json:"covers_prohibited_discrimination" yaml:"covers_prohibited_discrimination"`
	DatasetsExamined               []string `json:"datasets_examined" yaml:"datasets_examined"`
	ExaminationDate                string   `json:"examination_date,omitempty" yaml:"examination_date,omitempty"` // YYYY-MM-DD
	Methodology                    string   `json:"methodology" yaml:"methodology"`
	FindingsSummary                string   `json:"findings_summary" yaml:"findings_summary"`
}

// Profile describes one AI system under evaluation. Field names double as
// the dotted paths rules ask for.
type Profile struct {
	// Identity
	SystemName           string `json:"system_name" yaml:"system_name"`
	ProviderName         string `json:"provider_name" yaml:"provider_name"`
	ProviderJurisdiction string `json:"provider_jurisdiction" yaml:"provider_jurisdiction"`
	SystemVersion        string `json:"system_version" yaml:"system_version"`
	IntendedPurpose      string `json:"intended_purpose" yaml:"intended_purpose"`

	// Risk classification
	IsHighRisk       bool   `json:"is_high_risk" yaml:"is_high_risk"`
	HighRiskCategory string `json:"high_risk_category" yaml:"high_risk_category"`
	AnnexIIISection  string `json:"annex_iii_section" yaml:"annex_iii_section"`

	// Article 10: data and data governance
	UsesTrainingData                  bool                   `json:"uses_training_data" yaml:"uses_training_data"`
	DatasetNames                      []string               `json:"dataset_names" yaml:"dataset_names"`
	BiasExaminationReport             *BiasExaminationReport `json:"bias_examination_report" yaml:"bias_examination_report"`
	DataGovernancePracticesDocumented bool                   `json:"data_governance_practices_documented" yaml:"data_governance_practices_documented"`
	TrainingDataRelevanceDocumented   bool                   `json:"training_data_relevance_documented" yaml:"training_data_relevance_documented"`
	DataCollectionProcessDocumented   bool                   `json:"data_collection_process_documented" yaml:"data_collection_process_documented"`

	// Article 11: technical documentation
	TechnicalDocumentationExists bool   `json:"technical_documentation_exists" yaml:"technical_documentation_exists"`
	TechnicalDocumentationURL    string `json:"technical_documentation_url" yaml:"technical_documentation_url"`

	// Article 12: record-keeping
	AutomaticLoggingEnabled bool     `json:"automatic_logging_enabled" yaml:"automatic_logging_enabled"`
	LoggingCapabilities     []string `json:"logging_capabilities" yaml:"logging_capabilities"`

	// Article 13: transparency
	InstructionsForUseProvided bool `json:"instructions_for_use_provided" yaml:"instructions_for_use_provided"`
	IntendedPurposeDocumented  bool `json:"intended_purpose_documented" yaml:"intended_purpose_documented"`
	LimitationsDocumented      bool `json:"limitations_documented" yaml:"limitations_documented"`

	// Article 14: human oversight
	HumanOversightMeasures   []string `json:"human_oversight_measures" yaml:"human_oversight_measures"`
	HumanCanOverride         bool     `json:"human_can_override" yaml:"human_can_override"`
	HumanCanInterrupt        bool     `json:"human_can_interrupt" yaml:"human_can_interrupt"`
	AutomationBiasSafeguards []string `json:"automation_bias_safeguards" yaml:"automation_bias_safeguards"`

	// Article 15: accuracy, robustness and cybersecurity
	AccuracyMetricsDocumented       bool     `json:"accuracy_metrics_documented" yaml:"accuracy_metrics_documented"`
	AccuracyLevelsDeclared          string   `json:"accuracy_levels_declared" yaml:"accuracy_levels_declared"`
	DisaggregatedPerformanceMetrics bool     `json:"disaggregated_performance_metrics" yaml:"disaggregated_performance_metrics"`
	RobustnessMeasures              []string `json:"robustness_measures" yaml:"robustness_measures"`
	CybersecurityMeasures           []string `json:"cybersecurity_measures" yaml:"cybersecurity_measures"`
	AdversarialTestingPerformed     bool     `json:"adversarial_testing_performed" yaml:"adversarial_testing_performed"`

	// Article 9: risk management
	RiskManagementSystemEstablished bool     `json:"risk_management_system_established" yaml:"risk_management_system_established"`
	RiskManagementContinuous        bool     `json:"risk_management_continuous" yaml:"risk_management_continuous"`
	ResidualRisksDocumented         bool     `json:"residual_risks_documented" yaml:"residual_risks_documented"`
	RiskMitigationMeasures          []string `json:"risk_mitigation_measures" yaml:"risk_mitigation_measures"`
	TestingProceduresDocumented     bool     `json:"testing_procedures_documented" yaml:"testing_procedures_documented"`

	// Rule-specific flags not promoted to fields.
	Extra Extra `json:"extra" yaml:"extra"`
}

// Normalized returns a copy with defaults applied: system_version falls back
// to DefaultSystemVersion and nil lists become empty lists, so the plain
// form never carries null where a list is expected.
func (p *Profile) Normalized() *Profile {
	c := *p
	if c.SystemVersion == "" {
		c.SystemVersion = DefaultSystemVersion
	}
	c.DatasetNames = orEmpty(c.DatasetNames)
	c.LoggingCapabilities = orEmpty(c.LoggingCapabilities)
	c.HumanOversightMeasures = orEmpty(c.HumanOversightMeasures)
	c.AutomationBiasSafeguards = orEmpty(c.AutomationBiasSafeguards)
	c.RobustnessMeasures = orEmpty(c.RobustnessMeasures)
	c.CybersecurityMeasures = orEmpty(c.CybersecurityMeasures)
	c.RiskMitigationMeasures = orEmpty(c.RiskMitigationMeasures)
	if c.BiasExaminationReport != nil {
		b := *c.BiasExaminationReport
		b.DatasetsExamined = orEmpty(b.DatasetsExamined)
		c.BiasExaminationReport = &b
	}
	if c.Extra == nil {
		c.Extra = Extra{}
	}
	return &c
}

// ToMap serializes the profile to the plain key/value form rule predicates
// and the field resolver consume. Lists decode as []any.
func (p *Profile) ToMap() (map[string]any, error) {
	raw, err := json.Marshal(p.Normalized())
	if err != nil {
		return nil, fmt.Errorf("profile: marshal: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("profile: decode plain form: %w", err)
	}
	return out, nil
}

// Hash is the RFC 8785 content hash of the normalized profile.
func (p *Profile) Hash() (string, error) {
	return canonicalize.CanonicalHash(p.Normalized())
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
