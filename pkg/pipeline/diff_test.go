package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/regcoder/pkg/artifacts"
	"github.com/Mindburn-Labs/regcoder/pkg/audit"
	"github.com/Mindburn-Labs/regcoder/pkg/rules"
)

func versionedCatalogue(version, clauseText string) rules.Loader {
	return func() (*rules.Catalogue, error) {
		return rules.NewBuilder(rules.Regulation{
			ID:              "toy-act",
			Title:           "Toy Act",
			DocumentVersion: version,
		}, version).
			AddClauses(rules.Clause{ID: "toy-art1", ArticleNumber: 1, Text: clauseText}).
			AddRequirements(rules.Requirement{
				ID:       "REQ-TOY-1",
				ClauseID: "toy-art1",
				Modality: rules.ModalityMust,
				Subject:  "Provider",
				Action:   "keep logs",
			}).
			AddRule(rules.Rule{
				ID:            "TOY-1",
				RequirementID: "REQ-TOY-1",
				RuleType:      rules.RuleTypeManual,
				Title:         "Logs kept",
				Severity:      rules.SeverityHigh,
			}, nil).
			Build()
	}
}

func toyRegistry(t *testing.T) *rules.Registry {
	t.Helper()
	reg := rules.NewRegistry()
	require.NoError(t, reg.Register("toy-act", "1.0.0", versionedCatalogue("1.0.0", "Providers shall keep logs.")))
	require.NoError(t, reg.Register("toy-act", "1.1.0", versionedCatalogue("1.1.0", "Providers shall keep logs for six months.")))
	return reg
}

func TestDiff_RecordsEntry(t *testing.T) {
	cfg := testConfig(t)
	cfg.Regulation = "toy-act"
	r, err := New(context.Background(), cfg, WithRegistry(toyRegistry(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close(context.Background()) })

	d, err := r.Diff(context.Background(), "1.0.0", "")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", d.OldVersion)
	assert.Equal(t, "1.1.0", d.NewVersion)
	require.Len(t, d.Changes, 1)
	assert.Equal(t, rules.ChangeModified, d.Changes[0].ChangeType)
	assert.Equal(t, 1, d.ImpactCount(rules.ItemRule))

	log := entries(t, r)
	require.Len(t, log, 1)
	e := log[0]
	assert.Equal(t, audit.ActionDiff, e.Action)
	assert.Equal(t, StageDiff, e.Stage)
	assert.Equal(t, []string{"toy-act@1.0.0", "toy-act@1.1.0"}, e.TargetIDs)
	assert.Equal(t, json.Number("1"), e.Details["modified"])

	ref, err := r.ExportDiff(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, artifacts.KindDiff, ref.Kind)
	data, err := r.Store().Get(context.Background(), ref)
	require.NoError(t, err)

	var stored rules.CatalogueDiff
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, d.Impacted, stored.Impacted)
	assert.True(t, r.Verify().Valid)
}

func TestDiff_UnknownVersion(t *testing.T) {
	cfg := testConfig(t)
	cfg.Regulation = "toy-act"
	r, err := New(context.Background(), cfg, WithRegistry(toyRegistry(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close(context.Background()) })

	_, err = r.Diff(context.Background(), "9.0.0", "")
	assert.ErrorIs(t, err, rules.ErrVersionNotFound)
	assert.Empty(t, entries(t, r))
}
