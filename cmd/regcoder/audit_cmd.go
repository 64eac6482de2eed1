package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Mindburn-Labs/regcoder/pkg/artifacts"
	"github.com/Mindburn-Labs/regcoder/pkg/audit"
	"github.com/Mindburn-Labs/regcoder/pkg/config"
	"github.com/Mindburn-Labs/regcoder/pkg/pipeline"
)

// auditLogPath picks --log when given, otherwise the configured log.
func auditLogPath(configPath, logPath string, stderr io.Writer) (string, bool) {
	if logPath != "" {
		return logPath, true
	}
	cfg, _, err := setup(configPath, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return "", false
	}
	return cfg.AuditLog, true
}

// runVerifyCmd implements `regcoder verify`.
//
// Exit codes:
//
//	0 = chain intact
//	1 = chain broken, unreadable or missing
//	2 = usage error
func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		configPath string
		logPath    string
		jsonOutput bool
	)

	cmd.StringVar(&configPath, "config", "", "Path to a YAML config file")
	cmd.StringVar(&logPath, "log", "", "Audit log to verify (defaults to the configured log)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	if err := cmd.Parse(args); err != nil {
		return exitUsage
	}
	path, ok := auditLogPath(configPath, logPath, stderr)
	if !ok {
		return exitUsage
	}

	res := audit.VerifyFile(path)

	if jsonOutput {
		if err := writeJSON(stdout, res); err != nil {
			return reportError(stderr, err)
		}
	} else {
		p := newPrinter(stdout)
		p.field("Audit log", res.Path)
		p.field("Entries", res.Entries)
		if res.ChainHead != "" {
			p.field("Chain head", res.ChainHead)
		}
		if res.Valid {
			p.line("%s", p.ok.Render("Hash chain integrity verified successfully."))
		} else {
			p.line("%s", p.bad.Render(fmt.Sprintf("Found %d integrity errors:", len(res.Errors))))
			for _, e := range res.Errors {
				p.line("  - %s", e)
			}
		}
	}

	if !res.Valid {
		return exitFailure
	}
	return exitOK
}

// runAuditCmd implements `regcoder audit <list|show>`.
func runAuditCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stderr, "Usage: regcoder audit <list|show> [flags]")
		return exitUsage
	}
	switch args[0] {
	case "list", "ls":
		return runAuditListCmd(args[1:], stdout, stderr)
	case "show":
		return runAuditShowCmd(args[1:], stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown audit subcommand: %s\n", args[0])
		return exitUsage
	}
}

func runAuditListCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("audit list", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		configPath string
		logPath    string
		action     string
		limit      int
		jsonOutput bool
	)

	cmd.StringVar(&configPath, "config", "", "Path to a YAML config file")
	cmd.StringVar(&logPath, "log", "", "Audit log to read (defaults to the configured log)")
	cmd.StringVar(&action, "action", "", "Only show entries with this action")
	cmd.IntVar(&limit, "limit", 0, "Only show the newest N entries (0 = all)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	if err := cmd.Parse(args); err != nil {
		return exitUsage
	}
	var filter audit.Action
	if action != "" {
		a, err := audit.ParseAction(action)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitUsage
		}
		filter = a
	}
	path, ok := auditLogPath(configPath, logPath, stderr)
	if !ok {
		return exitUsage
	}

	entries, err := audit.LoadAll(path)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	selected := make([]audit.Entry, 0, len(entries))
	for _, e := range entries {
		if filter == "" || e.Action == filter {
			selected = append(selected, e)
		}
	}
	if limit > 0 && len(selected) > limit {
		selected = selected[len(selected)-limit:]
	}

	if jsonOutput {
		if err := writeJSON(stdout, selected); err != nil {
			return reportError(stderr, err)
		}
		return exitOK
	}

	p := newPrinter(stdout)
	if len(selected) == 0 {
		p.line("%s", p.muted.Render("No audit entries."))
		return exitOK
	}
	rows := make([][]string, 0, len(selected))
	for _, e := range selected {
		rows = append(rows, []string{
			audit.FormatTimestamp(e.Timestamp),
			string(e.Action),
			e.Stage,
			e.Verdict,
			shortHash(e.EntryHash),
			e.ID,
		})
	}
	p.table([]string{"TIMESTAMP", "ACTION", "STAGE", "VERDICT", "HASH", "ID"}, rows, func(col int, cell string) lipgloss.Style {
		if col == 3 {
			return p.verdictStyle(cell)
		}
		return p.plain
	})
	return exitOK
}

func runAuditShowCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("audit show", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		configPath string
		logPath    string
	)

	cmd.StringVar(&configPath, "config", "", "Path to a YAML config file")
	cmd.StringVar(&logPath, "log", "", "Audit log to read (defaults to the configured log)")

	if err := cmd.Parse(args); err != nil {
		return exitUsage
	}
	if cmd.NArg() != 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: regcoder audit show [flags] <entry-id>")
		return exitUsage
	}
	id := cmd.Arg(0)
	path, ok := auditLogPath(configPath, logPath, stderr)
	if !ok {
		return exitUsage
	}

	entries, err := audit.LoadAll(path)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	for _, e := range entries {
		if e.ID == id {
			if err := writeJSON(stdout, e); err != nil {
				return reportError(stderr, err)
			}
			return exitOK
		}
	}
	_, _ = fmt.Fprintf(stderr, "Error: no audit entry with id %s\n", id)
	return exitFailure
}

// runExportCmd implements `regcoder export`: an evidence pack of the audit
// log filtered by period and action, stored as an artifact.
func runExportCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("export", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		configPath string
		start      string
		end        string
		actions    string
		outPath    string
		snapshot   bool
		jsonOutput bool
	)

	cmd.StringVar(&configPath, "config", "", "Path to a YAML config file")
	cmd.StringVar(&start, "start", "", "Period start, RFC 3339 (default: epoch)")
	cmd.StringVar(&end, "end", "", "Period end, RFC 3339 (default: now)")
	cmd.StringVar(&actions, "action", "", "Comma-separated actions to include (default: all)")
	cmd.StringVar(&outPath, "out", "", "Also write the evidence zip to this file")
	cmd.BoolVar(&snapshot, "snapshot", false, "Also store a raw snapshot of the audit log")
	cmd.BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	if err := cmd.Parse(args); err != nil {
		return exitUsage
	}

	req := audit.ExportRequest{StartTime: time.Unix(0, 0).UTC(), EndTime: time.Now().UTC()}
	var err error
	if start != "" {
		if req.StartTime, err = time.Parse(time.RFC3339, start); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: --start: %v\n", err)
			return exitUsage
		}
	}
	if end != "" {
		if req.EndTime, err = time.Parse(time.RFC3339, end); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: --end: %v\n", err)
			return exitUsage
		}
	}
	if actions != "" {
		for _, s := range strings.Split(actions, ",") {
			a, err := audit.ParseAction(strings.TrimSpace(s))
			if err != nil {
				_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
				return exitUsage
			}
			req.Actions = append(req.Actions, a)
		}
	}

	return withRunner(configPath, stderr, func(ctx context.Context, r *pipeline.Runner) int {
		ref, err := r.ExportEvidence(ctx, req)
		if err != nil {
			return reportError(stderr, err)
		}
		keys := []string{ref.Key()}

		if outPath != "" {
			data, err := r.Store().Get(ctx, ref)
			if err != nil {
				return reportError(stderr, err)
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return reportError(stderr, err)
			}
		}
		if snapshot {
			snap, err := r.SnapshotLog(ctx)
			if err != nil {
				return reportError(stderr, err)
			}
			keys = append(keys, snap.Key())
		}

		if jsonOutput {
			out := map[string]any{"artifacts": keys, "checksum": ref.Hash}
			if outPath != "" {
				out["out"] = outPath
			}
			if err := writeJSON(stdout, out); err != nil {
				return reportError(stderr, err)
			}
			return exitOK
		}
		p := newPrinter(stdout)
		p.line("%s", p.ok.Render("Evidence pack exported"))
		p.field("SHA-256", ref.Hash)
		for _, k := range keys {
			p.field("Stored", k)
		}
		if outPath != "" {
			p.field("Written", outPath)
		}
		return exitOK
	})
}

// configuredStorage describes where artifacts land, for `version` and
// error messages.
func configuredStorage(cfg *config.Config) string {
	switch cfg.Artifacts.Type {
	case artifacts.StoreTypeS3:
		return "s3://" + cfg.Artifacts.S3.Bucket + "/" + cfg.Artifacts.S3.Prefix
	case artifacts.StoreTypeGCS:
		return "gs://" + cfg.Artifacts.GCS.Bucket + "/" + cfg.Artifacts.GCS.Prefix
	default:
		return cfg.Artifacts.Dir
	}
}
