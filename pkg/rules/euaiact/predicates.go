package euaiact

import "github.com/Mindburn-Labs/regcoder/pkg/rules"

const (
	pass          = string(rules.VerdictPass)
	fail          = string(rules.VerdictFail)
	notApplicable = string(rules.VerdictNotApplicable)
)

// check is a pass/fail condition over a high-risk system's profile.
type check func(p view) bool

// highRisk scopes a check to high-risk systems.
func highRisk(c check) rules.Predicate {
	return func(profile map[string]any) string {
		p := view(profile)
		if !p.flag("is_high_risk") {
			return notApplicable
		}
		return verdict(c(p))
	}
}

// trainingData scopes a check to high-risk systems trained on data.
func trainingData(c check) rules.Predicate {
	return func(profile map[string]any) string {
		p := view(profile)
		if !p.flag("is_high_risk") || !p.flag("uses_training_data") {
			return notApplicable
		}
		return verdict(c(p))
	}
}

// whenExtra scopes a check to high-risk systems that declare an extra flag.
func whenExtra(key string, c check) rules.Predicate {
	return func(profile map[string]any) string {
		p := view(profile)
		if !p.flag("is_high_risk") || !p.extra().flag(key) {
			return notApplicable
		}
		return verdict(c(p))
	}
}

func verdict(ok bool) string {
	if ok {
		return pass
	}
	return fail
}

func field(key string) check {
	return func(p view) bool { return p.flag(key) }
}

func extraFlag(key string) check {
	return func(p view) bool { return p.extra().flag(key) }
}

func atLeast(key string, n int) check {
	return func(p view) bool { return p.length(key) >= n }
}

func mentions(key string, needles ...string) check {
	return func(p view) bool { return p.anyContains(key, needles...) }
}

// documented requires technical documentation to exist before an extra
// attestation is consulted. Attestations default to true when absent.
func documented(extraKey string) check {
	return func(p view) bool {
		if !p.flag("technical_documentation_exists") {
			return false
		}
		return p.extra().flagOr(extraKey, true)
	}
}

func biasReportComplete(p view) bool {
	report := p["bias_examination_report"]
	if !truthy(report) {
		return false
	}
	m, ok := report.(map[string]any)
	if !ok {
		return false
	}
	r := view(m)
	return r.flag("covers_health_safety") &&
		r.flag("covers_fundamental_rights") &&
		r.flag("covers_prohibited_discrimination")
}

const rulePrefix = "RULE-EU-AI-ACT-"

var predicates = map[string]rules.Predicate{
	// Article 9: risk management system.
	rulePrefix + "009-01-001": highRisk(field("risk_management_system_established")),
	rulePrefix + "009-02-001": highRisk(field("risk_management_continuous")),
	rulePrefix + "009-02A-001": highRisk(func(p view) bool {
		return p.flag("residual_risks_documented") && p.length("risk_mitigation_measures") > 0
	}),
	rulePrefix + "009-02B-001": highRisk(extraFlag("foreseeable_misuse_documented")),
	rulePrefix + "009-02C-001": highRisk(atLeast("risk_mitigation_measures", 2)),
	rulePrefix + "009-03-001":  highRisk(extraFlag("risk_measures_interaction_assessed")),
	rulePrefix + "009-05-001":  highRisk(field("testing_procedures_documented")),
	rulePrefix + "009-06-001":  highRisk(extraFlag("testing_metrics_defined")),

	// Article 10: data and data governance.
	rulePrefix + "010-01-001":  trainingData(atLeast("dataset_names", 1)),
	rulePrefix + "010-02-001":  trainingData(field("data_governance_practices_documented")),
	rulePrefix + "010-02A-001": trainingData(field("data_collection_process_documented")),
	rulePrefix + "010-02B-001": trainingData(extraFlag("data_preprocessing_documented")),
	rulePrefix + "010-02F-001": trainingData(biasReportComplete),
	rulePrefix + "010-03-001":  trainingData(field("training_data_relevance_documented")),
	rulePrefix + "010-04-001":  trainingData(extraFlag("data_representativeness_documented")),
	rulePrefix + "010-05-001":  whenExtra("processes_special_category_data", extraFlag("special_data_safeguards_in_place")),

	// Article 11: technical documentation.
	rulePrefix + "011-01-001":  highRisk(field("technical_documentation_exists")),
	rulePrefix + "011-01-002":  highRisk(documented("technical_documentation_up_to_date")),
	rulePrefix + "011-01A-001": highRisk(documented("techdoc_demonstrates_compliance")),
	rulePrefix + "011-01B-001": highRisk(documented("techdoc_available_to_authorities")),
	rulePrefix + "011-01C-001": highRisk(extraFlag("techdoc_contains_annex_iv_elements")),
	rulePrefix + "011-01D-001": highRisk(documented("techdoc_clear_and_comprehensive")),
	rulePrefix + "011-01-003": highRisk(func(p view) bool {
		return p.flag("technical_documentation_exists") && p.flag("technical_documentation_url")
	}),

	// Article 12: record-keeping.
	rulePrefix + "012-01-001":  highRisk(field("automatic_logging_enabled")),
	rulePrefix + "012-02-001":  highRisk(mentions("logging_capabilities", "risk", "incident")),
	rulePrefix + "012-03-001":  highRisk(extraFlag("logging_conforms_to_standards")),
	rulePrefix + "012-04-001":  highRisk(atLeast("logging_capabilities", 2)),
	rulePrefix + "012-04A-001": highRisk(mentions("logging_capabilities", "monitor", "operation")),
	rulePrefix + "012-04B-001": highRisk(extraFlag("post_market_monitoring_supported")),
	rulePrefix + "012-04C-001": highRisk(mentions("logging_capabilities", "usage", "period", "session")),

	// Article 13: transparency and information to deployers.
	rulePrefix + "013-01-001":  highRisk(extraFlag("system_operation_transparent")),
	rulePrefix + "013-02-001":  highRisk(field("instructions_for_use_provided")),
	rulePrefix + "013-03A-001": highRisk(field("provider_name")),
	rulePrefix + "013-03B-001": highRisk(field("limitations_documented")),
	rulePrefix + "013-03B-002": highRisk(field("accuracy_levels_declared")),
	rulePrefix + "013-03D-001": highRisk(func(p view) bool {
		return p.length("human_oversight_measures") > 0 && p.extra().flagOr("oversight_documented_in_instructions", true)
	}),
	rulePrefix + "013-03E-001": highRisk(field("intended_purpose_documented")),

	// Article 14: human oversight.
	rulePrefix + "014-01-001": highRisk(atLeast("human_oversight_measures", 1)),
	rulePrefix + "014-02-001": highRisk(atLeast("human_oversight_measures", 2)),
	rulePrefix + "014-04A-001": highRisk(func(p view) bool {
		return p.flag("limitations_documented") && p.flag("instructions_for_use_provided")
	}),
	rulePrefix + "014-04B-001": highRisk(atLeast("automation_bias_safeguards", 1)),
	rulePrefix + "014-04C-001": highRisk(extraFlag("output_interpretation_tools")),
	rulePrefix + "014-04D-001": highRisk(field("human_can_override")),
	rulePrefix + "014-04E-001": highRisk(field("human_can_interrupt")),
	rulePrefix + "014-05-001":  highRisk(mentions("human_oversight_measures", "monitor")),

	// Article 15: accuracy, robustness and cybersecurity.
	rulePrefix + "015-01-001":  highRisk(field("accuracy_metrics_documented")),
	rulePrefix + "015-02-001":  highRisk(field("accuracy_levels_declared")),
	rulePrefix + "015-02A-001": highRisk(field("disaggregated_performance_metrics")),
	rulePrefix + "015-03-001":  highRisk(atLeast("robustness_measures", 1)),
	rulePrefix + "015-03A-001": highRisk(atLeast("robustness_measures", 2)),
	rulePrefix + "015-04-001":  highRisk(field("adversarial_testing_performed")),
	rulePrefix + "015-04A-001": highRisk(atLeast("cybersecurity_measures", 2)),
	rulePrefix + "015-05-001":  whenExtra("continuous_learning", extraFlag("feedback_loop_mitigation")),
}
