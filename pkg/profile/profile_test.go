package profile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalJSON = `{
  "system_name": "Chat Helper",
  "provider_name": "Acme",
  "intended_purpose": "Customer support drafting",
  "extra": {"continuous_learning": true, "notes": "pilot", "regions": ["EU", "UK"]}
}`

func TestParse_JSONAppliesDefaults(t *testing.T) {
	p, err := Parse([]byte(minimalJSON), FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, "Chat Helper", p.SystemName)
	assert.Equal(t, DefaultSystemVersion, p.SystemVersion)
	assert.NotNil(t, p.DatasetNames)
	assert.Nil(t, p.BiasExaminationReport)

	flag, ok := p.Extra.Flag("continuous_learning")
	assert.True(t, ok)
	assert.True(t, flag)

	s, ok := p.Extra["notes"].AsString()
	assert.True(t, ok)
	assert.Equal(t, "pilot", s)

	list, ok := p.Extra["regions"].AsList()
	assert.True(t, ok)
	assert.Equal(t, []string{"EU", "UK"}, list)
}

func TestParse_YAML(t *testing.T) {
	doc := `
system_name: Triage
provider_name: Hospital AI Ltd
intended_purpose: Emergency triage support
is_high_risk: true
logging_capabilities:
  - risk event logging
bias_examination_report:
  covers_health_safety: true
  examination_date: 2025-01-15
extra:
  post_market_monitoring_supported: false
  review_date: 2025-03-01
  audit_dates: [2024-11-30, "2025-02-01"]
`
	p, err := Parse([]byte(doc), FormatYAML)
	require.NoError(t, err)

	assert.True(t, p.IsHighRisk)
	assert.Equal(t, []string{"risk event logging"}, p.LoggingCapabilities)
	require.NotNil(t, p.BiasExaminationReport)
	assert.True(t, p.BiasExaminationReport.CoversHealthSafety)
	assert.Equal(t, "2025-01-15", p.BiasExaminationReport.ExaminationDate)
	assert.Equal(t, []string{"audit_dates", "post_market_monitoring_supported", "review_date"}, p.Extra.Keys())

	s, ok := p.Extra["review_date"].AsString()
	assert.True(t, ok)
	assert.Equal(t, "2025-03-01", s)

	list, ok := p.Extra["audit_dates"].AsList()
	assert.True(t, ok)
	assert.Equal(t, []string{"2024-11-30", "2025-02-01"}, list)
}

func TestParse_YAMLEmptyDocument(t *testing.T) {
	_, err := Parse([]byte(""), FormatYAML)
	assert.ErrorIs(t, err, ErrInvalidProfile)
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing required", `{"system_name": "x", "provider_name": "y"}`},
		{"wrong type", `{"system_name": "x", "provider_name": "y", "intended_purpose": "z", "is_high_risk": "yes"}`},
		{"unknown field", `{"system_name": "x", "provider_name": "y", "intended_purpose": "z", "is_high_rsik": true}`},
		{"numeric extra", `{"system_name": "x", "provider_name": "y", "intended_purpose": "z", "extra": {"n": 3}}`},
		{"mixed list extra", `{"system_name": "x", "provider_name": "y", "intended_purpose": "z", "extra": {"l": ["a", 1]}}`},
		{"not json", `{`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc), FormatJSON)
			assert.ErrorIs(t, err, ErrInvalidProfile)
		})
	}
}

func TestParse_UnsupportedFormat(t *testing.T) {
	_, err := Parse([]byte(minimalJSON), Format("toml"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoad_FixtureRoundTrip(t *testing.T) {
	p, err := Load(filepath.Join("..", "..", "testdata", "talentscreen_profile.json"))
	require.NoError(t, err)

	assert.Equal(t, "TalentScreen AI", p.SystemName)
	assert.Equal(t, "TalentTech GmbH", p.ProviderName)
	assert.Len(t, p.DatasetNames, 3)
	require.NotNil(t, p.BiasExaminationReport)
	assert.True(t, p.BiasExaminationReport.CoversProhibitedDiscrimination)

	flag, ok := p.Extra.Flag("techdoc_contains_annex_iv_elements")
	assert.True(t, ok)
	assert.False(t, flag)
}

func TestLoad_ByExtension(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "p.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("system_name: a\nprovider_name: b\nintended_purpose: c\n"), 0o600))

	p, err := Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "a", p.SystemName)

	_, err = Load(filepath.Join(dir, "p.txt"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestToMap_PlainForm(t *testing.T) {
	p := &Profile{
		SystemName:             "x",
		IsHighRisk:             true,
		HumanOversightMeasures: []string{"review"},
		Extra:                  Extra{"continuous_learning": Bool(true), "tags": List("a")},
	}

	m, err := p.ToMap()
	require.NoError(t, err)

	assert.Equal(t, true, m["is_high_risk"])
	assert.Equal(t, "1.0.0", m["system_version"])
	assert.Equal(t, []any{"review"}, m["human_oversight_measures"])
	assert.Equal(t, []any{}, m["robustness_measures"])
	assert.Nil(t, m["bias_examination_report"])
	assert.Equal(t, map[string]any{"continuous_learning": true, "tags": []any{"a"}}, m["extra"])
}

func TestHash_StableAcrossEquivalentProfiles(t *testing.T) {
	a := &Profile{SystemName: "x"}
	b := &Profile{SystemName: "x", SystemVersion: DefaultSystemVersion, DatasetNames: []string{}}

	ha, err := a.Hash()
	require.NoError(t, err)
	hb, err := b.Hash()
	require.NoError(t, err)
	assert.Equal(t, ha, hb)

	b.IsHighRisk = true
	hc, err := b.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, ha, hc)
}

func TestValue_JSONRoundTrip(t *testing.T) {
	e := Extra{"b": Bool(false), "s": String("v"), "l": List()}
	raw, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"b": false, "s": "v", "l": []}`, string(raw))

	var back Extra
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, e, back)

	_, err = json.Marshal(Extra{"zero": {}})
	assert.Error(t, err)

	err = json.Unmarshal([]byte(`{"n": null}`), &back)
	assert.ErrorIs(t, err, ErrInvalidExtra)
}
