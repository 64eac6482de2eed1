package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Mindburn-Labs/regcoder/pkg/artifacts"
	"github.com/Mindburn-Labs/regcoder/pkg/audit"
	"github.com/Mindburn-Labs/regcoder/pkg/canonicalize"
	"github.com/Mindburn-Labs/regcoder/pkg/compliance"
	"github.com/Mindburn-Labs/regcoder/pkg/config"
	"github.com/Mindburn-Labs/regcoder/pkg/observability"
	"github.com/Mindburn-Labs/regcoder/pkg/profile"
	"github.com/Mindburn-Labs/regcoder/pkg/rules"
)

var fixedNow = time.Date(2025, 3, 4, 10, 20, 30, 123456000, time.UTC)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		DataDir:     dir,
		AuditLog:    filepath.Join(dir, "audit", "audit.jsonl"),
		Regulation:  "eu-ai-act",
		LogLevel:    "INFO",
		Concurrency: 3,
		Artifacts: artifacts.Config{
			Type: artifacts.StoreTypeFS,
			Dir:  filepath.Join(dir, "artifacts"),
		},
	}
}

func newRunner(t *testing.T, opts ...Option) *Runner {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	r, err := New(context.Background(), testConfig(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	return r
}

func loadTalentScreen(t *testing.T) *profile.Profile {
	t.Helper()
	p, err := profile.Load("../../testdata/talentscreen_profile.json")
	require.NoError(t, err)
	return p
}

func entries(t *testing.T, r *Runner) []audit.Entry {
	t.Helper()
	all, err := audit.LoadAll(r.Chain().Path())
	require.NoError(t, err)
	return all
}

func TestEvaluate_RecordsEntry(t *testing.T) {
	r := newRunner(t)
	p := loadTalentScreen(t)

	report, err := r.Evaluate(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, compliance.PartialCompliance, report.OverallVerdict)
	assert.Equal(t, 78.4, report.Score())

	log := entries(t, r)
	require.Len(t, log, 1)
	e := log[0]
	assert.Equal(t, audit.ActionEvaluate, e.Action)
	assert.Equal(t, StageEvaluation, e.Stage)
	assert.Equal(t, "system", e.Actor)
	assert.Equal(t, []string{report.ID, "TalentScreen AI"}, e.TargetIDs)
	assert.Equal(t, "partial_compliance", e.Verdict)
	assert.Equal(t, audit.GenesisHash, e.PreviousHash)

	wantIn, err := p.Hash()
	require.NoError(t, err)
	wantOut, err := canonicalize.CanonicalHash(report)
	require.NoError(t, err)
	assert.Equal(t, wantIn, e.InputHash)
	assert.Equal(t, wantOut, e.OutputHash)
	assert.Equal(t, json.Number("53"), e.Details["total_rules"])

	res := r.Verify()
	assert.True(t, res.Valid, res.Errors)
	assert.Equal(t, 1, res.Entries)
}

func TestEvaluate_NilProfile(t *testing.T) {
	r := newRunner(t)
	_, err := r.Evaluate(context.Background(), nil)
	require.ErrorIs(t, err, ErrNilProfile)
	assert.Empty(t, entries(t, r))
}

func TestEvaluateBatch_KeepsOrder(t *testing.T) {
	r := newRunner(t)
	base := loadTalentScreen(t)

	profiles := make([]*profile.Profile, 6)
	for i := range profiles {
		p := *base
		p.SystemName = base.SystemName + " " + string(rune('A'+i))
		if i%2 == 1 {
			p.IsHighRisk = false
		}
		profiles[i] = &p
	}

	reports, err := r.EvaluateBatch(context.Background(), profiles)
	require.NoError(t, err)
	require.Len(t, reports, len(profiles))
	for i, rep := range reports {
		assert.Equal(t, profiles[i].SystemName, rep.SystemName)
		if i%2 == 1 {
			assert.Equal(t, 53, rep.Summary.NotApplicable)
		}
	}

	assert.Len(t, entries(t, r), len(profiles))
	res := r.Verify()
	assert.True(t, res.Valid, res.Errors)
}

func TestEvaluateBatch_Error(t *testing.T) {
	r := newRunner(t)
	_, err := r.EvaluateBatch(context.Background(), []*profile.Profile{loadTalentScreen(t), nil})
	require.ErrorIs(t, err, ErrNilProfile)
	assert.Contains(t, err.Error(), "profile 1")
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t)
	report, err := r.Evaluate(ctx, loadTalentScreen(t))
	require.NoError(t, err)

	ref, err := r.Export(ctx, report)
	require.NoError(t, err)
	assert.Equal(t, artifacts.KindReport, ref.Kind)
	assert.Equal(t, "json", ref.Ext)

	data, err := r.Store().Get(ctx, ref)
	require.NoError(t, err)
	var back compliance.Report
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, report.ID, back.ID)

	log := entries(t, r)
	require.Len(t, log, 2)
	e := log[1]
	assert.Equal(t, audit.ActionExport, e.Action)
	assert.Equal(t, StageExport, e.Stage)
	assert.Equal(t, ref.Hash, e.OutputHash)
	assert.Equal(t, []string{report.ID, ref.Key()}, e.TargetIDs)
	assert.Equal(t, log[0].EntryHash, e.PreviousHash)
}

func TestExportScorecard(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t)
	report, err := r.Evaluate(ctx, loadTalentScreen(t))
	require.NoError(t, err)

	card, ref, err := r.ExportScorecard(ctx, report)
	require.NoError(t, err)
	assert.Equal(t, artifacts.KindScorecard, ref.Kind)
	require.Len(t, card.Articles, 7)
	assert.Equal(t, "Record-Keeping", card.Articles[3].Title)

	log := entries(t, r)
	require.Len(t, log, 2)
	assert.Equal(t, card.ContentHash, log[1].Details["content_hash"])
}

func TestExportEvidence(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t)
	_, err := r.Evaluate(ctx, loadTalentScreen(t))
	require.NoError(t, err)

	ref, err := r.ExportEvidence(ctx, audit.ExportRequest{})
	require.NoError(t, err)
	assert.Equal(t, artifacts.KindEvidence, ref.Kind)

	pack, err := r.Store().Get(ctx, ref)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(pack), int64(len(pack)))
	require.NoError(t, err)

	files := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		files[f.Name] = body
	}
	require.Contains(t, files, "events.json")
	require.Contains(t, files, "manifest.json")

	var events []audit.Entry
	require.NoError(t, json.Unmarshal(files["events.json"], &events))
	assert.Len(t, events, 1, "the export entry is appended after packing")

	var manifest audit.Manifest
	require.NoError(t, json.Unmarshal(files["manifest.json"], &manifest))
	assert.True(t, manifest.Verification.Valid)
	assert.Equal(t, events[0].EntryHash, manifest.ChainHead)

	log := entries(t, r)
	require.Len(t, log, 2)
	assert.Equal(t, ref.Hash, log[1].Details["checksum"])
}

func TestSnapshotLog(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t)
	_, err := r.Evaluate(ctx, loadTalentScreen(t))
	require.NoError(t, err)
	head := r.Chain().LastHash()

	ref, err := r.SnapshotLog(ctx)
	require.NoError(t, err)
	assert.Equal(t, artifacts.KindLog, ref.Kind)

	data, err := r.Store().Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, 1, bytes.Count(data, []byte("\n")))

	log := entries(t, r)
	require.Len(t, log, 2)
	assert.Equal(t, head, log[1].Details["chain_head"])
}

func TestSelfTest(t *testing.T) {
	r := newRunner(t)
	check, err := r.SelfTest(context.Background())
	require.NoError(t, err)
	assert.True(t, check.OK())
	assert.Equal(t, 103, check.Total)

	log := entries(t, r)
	require.Len(t, log, 1)
	assert.Equal(t, audit.ActionJudge, log[0].Action)
	assert.Equal(t, StageJudging, log[0].Stage)
	assert.Equal(t, SelfTestPass, log[0].Verdict)
	assert.Equal(t, []string{"eu-ai-act@1.0.0"}, log[0].TargetIDs)
}

func TestNew_CatalogueSelection(t *testing.T) {
	cfg := testConfig(t)
	cfg.Regulation = "gdpr"
	_, err := New(context.Background(), cfg)
	require.ErrorIs(t, err, rules.ErrUnknownRegulation)

	cfg = testConfig(t)
	cfg.RegulationVersion = "^2.0"
	_, err = New(context.Background(), cfg)
	require.ErrorIs(t, err, rules.ErrVersionNotFound)

	cfg = testConfig(t)
	cfg.RegulationVersion = "~1.0"
	r, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", r.Catalogue().Version().String())
}

func TestNew_ResumesChain(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	first, err := New(ctx, cfg)
	require.NoError(t, err)
	_, err = first.Evaluate(ctx, loadTalentScreen(t))
	require.NoError(t, err)

	second, err := New(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, first.Chain().LastHash(), second.Chain().LastHash())
	_, err = second.SelfTest(ctx)
	require.NoError(t, err)

	res := second.Verify()
	assert.True(t, res.Valid, res.Errors)
	assert.Equal(t, 2, res.Entries)
}

func TestTelemetryCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	tel, err := observability.NewWithMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)

	r := newRunner(t, WithTelemetry(tel))
	_, err = r.Evaluate(context.Background(), loadTalentScreen(t))
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					totals[m.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(53), totals["regcoder.rules.evaluated"])
	assert.Equal(t, int64(1), totals["regcoder.audit.appends"])
	assert.Equal(t, int64(1), totals["regcoder.operations.total"])
}
