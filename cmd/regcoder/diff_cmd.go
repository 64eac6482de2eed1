package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/lipgloss"

	"github.com/Mindburn-Labs/regcoder/pkg/pipeline"
	"github.com/Mindburn-Labs/regcoder/pkg/rules"
)

type diffOutput struct {
	*rules.CatalogueDiff
	Artifact string `json:"artifact,omitempty"`
}

// runDiffCmd implements `regcoder diff`: clause-level changes between two
// catalogue versions and the requirements and rules they touch.
//
// Exit codes:
//
//	0 = diff computed
//	2 = usage or runtime error
func runDiffCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("diff", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		configPath string
		from       string
		to         string
		outPath    string
		export     bool
		jsonOutput bool
	)

	cmd.StringVar(&configPath, "config", "", "Path to a YAML config file")
	cmd.StringVar(&from, "from", "", "Old catalogue version or constraint (REQUIRED)")
	cmd.StringVar(&to, "to", "", "New catalogue version or constraint (default: latest)")
	cmd.StringVar(&outPath, "out", "", "Write the diff JSON to this file")
	cmd.BoolVar(&export, "export", false, "Store the diff as an artifact")
	cmd.BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	if err := cmd.Parse(args); err != nil {
		return exitUsage
	}
	if from == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --from is required")
		return exitUsage
	}

	return withRunner(configPath, stderr, func(ctx context.Context, r *pipeline.Runner) int {
		d, err := r.Diff(ctx, from, to)
		if err != nil {
			return reportError(stderr, err)
		}
		out := diffOutput{CatalogueDiff: d}
		if export {
			ref, err := r.ExportDiff(ctx, d)
			if err != nil {
				return reportError(stderr, err)
			}
			out.Artifact = ref.Key()
		}
		if outPath != "" {
			if err := writeDiffFile(outPath, d); err != nil {
				return reportError(stderr, err)
			}
		}

		if jsonOutput {
			if err := writeJSON(stdout, out); err != nil {
				return reportError(stderr, err)
			}
			return exitOK
		}
		printDiff(newPrinter(stdout), d)
		if out.Artifact != "" {
			newPrinter(stdout).field("Stored", out.Artifact)
		}
		return exitOK
	})
}

func writeDiffFile(path string, d *rules.CatalogueDiff) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func printDiff(p *printer, d *rules.CatalogueDiff) {
	p.heading(fmt.Sprintf("Diff %s %s -> %s", d.RegulationID, d.OldVersion, d.NewVersion))
	p.field("Total changes", d.TotalChanges())
	p.field("Added", d.Count(rules.ChangeAdded))
	p.field("Deleted", d.Count(rules.ChangeDeleted))
	p.field("Modified", d.Count(rules.ChangeModified))
	p.field("Requirements", d.ImpactCount(rules.ItemRequirement))
	p.field("Rules", d.ImpactCount(rules.ItemRule))

	if d.TotalChanges() == 0 {
		p.blank()
		p.line("%s", p.muted.Render("No clause changes."))
		return
	}

	p.sectionTitle("Clause changes")
	var rows [][]string
	for _, c := range d.Changes {
		if c.ChangeType == rules.ChangeUnchanged {
			continue
		}
		rows = append(rows, []string{c.ClauseID, string(c.ChangeType)})
	}
	p.table([]string{"CLAUSE", "CHANGE"}, rows, func(col int, cell string) lipgloss.Style {
		if col != 1 {
			return p.plain
		}
		switch rules.ChangeType(cell) {
		case rules.ChangeAdded:
			return p.ok
		case rules.ChangeDeleted:
			return p.bad
		default:
			return p.warn
		}
	})

	if len(d.Impacted) == 0 {
		return
	}
	p.sectionTitle("Impacted")
	rows = rows[:0]
	for _, it := range d.Impacted {
		rows = append(rows, []string{it.ItemID, it.ItemType, it.Priority, strconv.FormatBool(it.NeedsRegeneration)})
	}
	p.table([]string{"ITEM", "TYPE", "PRIORITY", "REGENERATE"}, rows, func(col int, cell string) lipgloss.Style {
		if col == 2 && cell == rules.PriorityHigh {
			return p.bad
		}
		return p.plain
	})
}
