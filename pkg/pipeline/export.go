package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Mindburn-Labs/regcoder/pkg/artifacts"
	"github.com/Mindburn-Labs/regcoder/pkg/audit"
	"github.com/Mindburn-Labs/regcoder/pkg/compliance"
	"github.com/Mindburn-Labs/regcoder/pkg/observability"
)

// Export stores the report JSON and records an export entry.
func (r *Runner) Export(ctx context.Context, report *compliance.Report) (artifacts.Ref, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return artifacts.Ref{}, fmt.Errorf("pipeline: marshal report: %w", err)
	}
	return r.put(ctx, artifacts.KindReport, "json", data, []string{report.ID}, nil)
}

// ExportScorecard builds, stores and records the report's scorecard.
func (r *Runner) ExportScorecard(ctx context.Context, report *compliance.Report) (*compliance.Scorecard, artifacts.Ref, error) {
	card, err := r.Scorecard(report)
	if err != nil {
		return nil, artifacts.Ref{}, err
	}
	data, err := json.MarshalIndent(card, "", "  ")
	if err != nil {
		return nil, artifacts.Ref{}, fmt.Errorf("pipeline: marshal scorecard: %w", err)
	}
	ref, err := r.put(ctx, artifacts.KindScorecard, "json", data,
		[]string{card.ScorecardID, report.ID},
		map[string]any{"content_hash": card.ContentHash})
	if err != nil {
		return nil, artifacts.Ref{}, err
	}
	return card, ref, nil
}

// ExportEvidence packs the audit log entries selected by req, stores the
// archive and records an export entry. The pack reflects the log as it was
// before that entry.
func (r *Runner) ExportEvidence(ctx context.Context, req audit.ExportRequest) (artifacts.Ref, error) {
	pack, sum, err := audit.NewExporter(r.chain.Path()).WithClock(r.clock).GeneratePack(ctx, req)
	if err != nil {
		return artifacts.Ref{}, fmt.Errorf("pipeline: evidence pack: %w", err)
	}
	ref, err := r.put(ctx, artifacts.KindEvidence, "zip", pack, nil, map[string]any{"checksum": sum})
	if err != nil {
		return artifacts.Ref{}, err
	}
	return ref, nil
}

// SnapshotLog stores the raw audit log file.
func (r *Runner) SnapshotLog(ctx context.Context) (artifacts.Ref, error) {
	data, err := os.ReadFile(r.chain.Path())
	if err != nil {
		return artifacts.Ref{}, fmt.Errorf("pipeline: read audit log: %w", err)
	}
	return r.put(ctx, artifacts.KindLog, "jsonl", data, nil,
		map[string]any{"chain_head": r.chain.LastHash()})
}

func (r *Runner) put(ctx context.Context, kind artifacts.Kind, ext string, data []byte, targets []string, extra map[string]any) (ref artifacts.Ref, err error) {
	ctx, done := r.telemetry.TrackOperation(ctx, "pipeline.export", observability.AttrArtifactKind.String(string(kind)))
	defer func() { done(err) }()

	ref, err = r.store.Put(ctx, kind, ext, data)
	if err != nil {
		return artifacts.Ref{}, fmt.Errorf("pipeline: store %s: %w", kind, err)
	}

	details := map[string]any{
		"kind": string(kind),
		"key":  ref.Key(),
		"size": len(data),
	}
	for k, v := range extra {
		details[k] = v
	}
	_, err = r.chain.Append(ctx, audit.Record{
		Action:     audit.ActionExport,
		Stage:      StageExport,
		TargetIDs:  append(targets, ref.Key()),
		OutputHash: ref.Hash,
		Details:    details,
	})
	if err != nil {
		return artifacts.Ref{}, fmt.Errorf("pipeline: audit export: %w", err)
	}
	r.logger.InfoContext(ctx, "artifact exported", "key", ref.Key(), "bytes", len(data))
	return ref, nil
}
