package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Mindburn-Labs/regcoder/pkg/artifacts"
	"github.com/Mindburn-Labs/regcoder/pkg/audit"
	"github.com/Mindburn-Labs/regcoder/pkg/canonicalize"
	"github.com/Mindburn-Labs/regcoder/pkg/observability"
	"github.com/Mindburn-Labs/regcoder/pkg/rules"
)

// Diff compares two registered versions of the runner's regulation and
// records a diff entry. Each version is a semver constraint; an empty
// constraint selects the latest version.
func (r *Runner) Diff(ctx context.Context, from, to string) (d *rules.CatalogueDiff, err error) {
	reg := r.Catalogue().Regulation().ID
	ctx, done := r.telemetry.TrackOperation(ctx, "pipeline.diff", observability.AttrRegulation.String(reg))
	defer func() { done(err) }()

	old, err := r.registry.Resolve(reg, from)
	if err != nil {
		return nil, fmt.Errorf("pipeline: diff from: %w", err)
	}
	cur, err := r.registry.Resolve(reg, to)
	if err != nil {
		return nil, fmt.Errorf("pipeline: diff to: %w", err)
	}
	d, err = rules.DiffCatalogues(old, cur)
	if err != nil {
		return nil, err
	}
	outputHash, err := canonicalize.CanonicalHash(d)
	if err != nil {
		return nil, fmt.Errorf("pipeline: hash diff: %w", err)
	}

	_, err = r.chain.Append(ctx, audit.Record{
		Action:     audit.ActionDiff,
		Stage:      StageDiff,
		TargetIDs:  []string{reg + "@" + d.OldVersion, reg + "@" + d.NewVersion},
		InputHash:  old.Digest(),
		OutputHash: outputHash,
		Details: map[string]any{
			"regulation_id":         reg,
			"old_version":           d.OldVersion,
			"new_version":           d.NewVersion,
			"total_changes":         d.TotalChanges(),
			"added":                 d.Count(rules.ChangeAdded),
			"deleted":               d.Count(rules.ChangeDeleted),
			"modified":              d.Count(rules.ChangeModified),
			"impacted_requirements": d.ImpactCount(rules.ItemRequirement),
			"impacted_rules":        d.ImpactCount(rules.ItemRule),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: audit diff: %w", err)
	}
	r.logger.InfoContext(ctx, "catalogue diff",
		"regulation", reg,
		"from", d.OldVersion,
		"to", d.NewVersion,
		"changes", d.TotalChanges(),
	)
	return d, nil
}

// ExportDiff stores the diff JSON and records an export entry.
func (r *Runner) ExportDiff(ctx context.Context, d *rules.CatalogueDiff) (artifacts.Ref, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return artifacts.Ref{}, fmt.Errorf("pipeline: marshal diff: %w", err)
	}
	return r.put(ctx, artifacts.KindDiff, "json", data,
		[]string{d.RegulationID + "@" + d.OldVersion, d.RegulationID + "@" + d.NewVersion}, nil)
}
