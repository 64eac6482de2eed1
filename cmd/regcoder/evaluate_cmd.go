package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Mindburn-Labs/regcoder/pkg/compliance"
	"github.com/Mindburn-Labs/regcoder/pkg/pipeline"
	"github.com/Mindburn-Labs/regcoder/pkg/profile"
)

// failPolicy decides which overall verdicts make evaluate exit 1.
type failPolicy string

const (
	failNone         failPolicy = "none"
	failNonCompliant failPolicy = "non_compliant"
	failPartial      failPolicy = "partial"
)

func parseFailPolicy(s string) (failPolicy, error) {
	switch p := failPolicy(s); p {
	case failNone, failNonCompliant, failPartial:
		return p, nil
	}
	return "", fmt.Errorf("--fail-on must be one of none, non_compliant, partial (got %q)", s)
}

func (f failPolicy) fails(v compliance.OverallVerdict) bool {
	switch f {
	case failNonCompliant:
		return v == compliance.NonCompliant
	case failPartial:
		return v != compliance.Compliant
	}
	return false
}

type evaluateOutput struct {
	Report    *compliance.Report    `json:"report"`
	Scorecard *compliance.Scorecard `json:"scorecard,omitempty"`
	Artifacts []string              `json:"artifacts,omitempty"`
}

// runEvaluateCmd implements `regcoder evaluate`.
//
// Exit codes:
//
//	0 = evaluated, verdict below the --fail-on threshold
//	1 = evaluated, verdict at or above the --fail-on threshold
//	2 = usage or runtime error
func runEvaluateCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		configPath  string
		profilePath string
		outPath     string
		jsonOutput  bool
		export      bool
		scorecard   bool
		failOn      string
	)

	cmd.StringVar(&configPath, "config", "", "Path to a YAML config file")
	cmd.StringVar(&profilePath, "profile", "", "Path to the system profile (.json, .yaml) (REQUIRED)")
	cmd.StringVar(&outPath, "out", "", "Also write the report JSON to this file")
	cmd.BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	cmd.BoolVar(&export, "export", false, "Store the report (and scorecard) in the artifact store")
	cmd.BoolVar(&scorecard, "scorecard", false, "Include the per-article scorecard")
	cmd.StringVar(&failOn, "fail-on", string(failNonCompliant), "Exit 1 on: none, non_compliant, partial")

	if err := cmd.Parse(args); err != nil {
		return exitUsage
	}
	if profilePath == "" && cmd.NArg() > 0 {
		profilePath = cmd.Arg(0)
	}
	if profilePath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --profile is required")
		return exitUsage
	}
	policy, err := parseFailPolicy(failOn)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	p, err := profile.Load(profilePath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	return withRunner(configPath, stderr, func(ctx context.Context, r *pipeline.Runner) int {
		report, err := r.Evaluate(ctx, p)
		if err != nil {
			return reportError(stderr, err)
		}
		out := evaluateOutput{Report: report}

		if outPath != "" {
			if err := writeReportFile(outPath, report); err != nil {
				return reportError(stderr, err)
			}
		}

		if export {
			ref, err := r.Export(ctx, report)
			if err != nil {
				return reportError(stderr, err)
			}
			out.Artifacts = append(out.Artifacts, ref.Key())
		}
		switch {
		case export && scorecard:
			card, ref, err := r.ExportScorecard(ctx, report)
			if err != nil {
				return reportError(stderr, err)
			}
			out.Scorecard = card
			out.Artifacts = append(out.Artifacts, ref.Key())
		case scorecard:
			if out.Scorecard, err = r.Scorecard(report); err != nil {
				return reportError(stderr, err)
			}
		}

		if jsonOutput {
			if err := writeJSON(stdout, out); err != nil {
				return reportError(stderr, err)
			}
		} else {
			printReport(newPrinter(stdout), out, outPath)
		}

		if policy.fails(report.OverallVerdict) {
			return exitFailure
		}
		return exitOK
	})
}

func writeReportFile(path string, report *compliance.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func printReport(p *printer, out evaluateOutput, savedTo string) {
	report := out.Report
	s := report.Summary

	p.blank()
	p.heading("Compliance Report: " + report.SystemName)
	p.field("Provider", report.ProviderName)
	p.field("Regulation", report.RegulationID+"@"+report.RegulationVersion)
	p.field("Report ID", report.ID)
	p.field("Evaluated", report.EvaluationDate.Format("2006-01-02 15:04:05 MST"))

	p.sectionTitle("Summary")
	p.field("Total rules", s.TotalRules)
	p.field("Passed", p.ok.Render(strconv.Itoa(s.Passed)))
	p.field("Failed", p.bad.Render(strconv.Itoa(s.Failed)))
	p.field("Not applicable", p.muted.Render(strconv.Itoa(s.NotApplicable)))
	if s.ManualReview > 0 {
		p.field("Manual review", p.warn.Render(strconv.Itoa(s.ManualReview)))
	}
	p.field("Score", fmt.Sprintf("%.1f%%", s.ComplianceScore))

	if gaps := report.Gaps(); len(gaps) > 0 {
		p.sectionTitle(fmt.Sprintf("Gaps (%d)", len(gaps)))
		rows := make([][]string, 0, len(gaps))
		for _, g := range gaps {
			rows = append(rows, []string{string(g.Severity), g.RuleID, g.ArticleRef, g.Description})
		}
		p.table([]string{"SEVERITY", "RULE", "ARTICLE", "DESCRIPTION"}, rows, func(col int, cell string) lipgloss.Style {
			if col == 0 {
				return p.verdictStyle(cell)
			}
			return p.plain
		})
	}

	if out.Scorecard != nil {
		printScorecard(p, out.Scorecard)
	}

	p.blank()
	p.line("  %s %s", p.bold.Render("Overall verdict:"), p.verdict(string(report.OverallVerdict)))
	if savedTo != "" {
		p.line("  %s %s", p.bold.Render("Report saved:"), savedTo)
	}
	for _, key := range out.Artifacts {
		p.line("  %s %s", p.bold.Render("Stored:"), key)
	}
	p.blank()
	p.line("%s", p.muted.Render(report.Disclaimer))
}

func printScorecard(p *printer, card *compliance.Scorecard) {
	p.sectionTitle("Scorecard")
	rows := make([][]string, 0, len(card.Articles))
	for _, a := range card.Articles {
		rows = append(rows, []string{
			strconv.Itoa(a.Article),
			a.Title,
			strconv.Itoa(a.Passed),
			strconv.Itoa(a.Failed),
			strconv.Itoa(a.NotApplicable),
			fmt.Sprintf("%.1f", a.Score),
			string(a.Verdict),
		})
	}
	p.table([]string{"ART", "TITLE", "PASS", "FAIL", "N/A", "SCORE", "VERDICT"}, rows, func(col int, cell string) lipgloss.Style {
		if col == 6 {
			return p.verdictStyle(cell)
		}
		return p.plain
	})
	p.field("Content hash", card.ContentHash)
}

type batchSummary struct {
	ReportID     string                    `json:"report_id"`
	SystemName   string                    `json:"system_name"`
	Profile      string                    `json:"profile"`
	Score        float64                   `json:"compliance_score"`
	Verdict      compliance.OverallVerdict `json:"overall_verdict"`
	CriticalGaps int                       `json:"critical_gaps"`
}

// runBatchCmd implements `regcoder batch`. Profiles come from positional
// arguments and/or every .json/.yaml/.yml file in --dir.
func runBatchCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("batch", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		configPath string
		dir        string
		jsonOutput bool
		failOn     string
	)

	cmd.StringVar(&configPath, "config", "", "Path to a YAML config file")
	cmd.StringVar(&dir, "dir", "", "Directory of profiles to evaluate")
	cmd.BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	cmd.StringVar(&failOn, "fail-on", string(failNonCompliant), "Exit 1 if any profile hits: none, non_compliant, partial")

	if err := cmd.Parse(args); err != nil {
		return exitUsage
	}
	policy, err := parseFailPolicy(failOn)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	paths := cmd.Args()
	if dir != "" {
		found, err := profilesIn(dir)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitUsage
		}
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		_, _ = fmt.Fprintln(stderr, "Error: no profiles given (pass paths or --dir)")
		return exitUsage
	}

	profiles := make([]*profile.Profile, 0, len(paths))
	for _, path := range paths {
		p, err := profile.Load(path)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitUsage
		}
		profiles = append(profiles, p)
	}

	return withRunner(configPath, stderr, func(ctx context.Context, r *pipeline.Runner) int {
		reports, err := r.EvaluateBatch(ctx, profiles)
		if err != nil {
			return reportError(stderr, err)
		}

		code := exitOK
		summaries := make([]batchSummary, len(reports))
		for i, rep := range reports {
			summaries[i] = batchSummary{
				ReportID:     rep.ID,
				SystemName:   rep.SystemName,
				Profile:      paths[i],
				Score:        rep.Score(),
				Verdict:      rep.OverallVerdict,
				CriticalGaps: len(rep.CriticalGaps),
			}
			if policy.fails(rep.OverallVerdict) {
				code = exitFailure
			}
		}

		if jsonOutput {
			if err := writeJSON(stdout, summaries); err != nil {
				return reportError(stderr, err)
			}
			return code
		}

		p := newPrinter(stdout)
		p.blank()
		p.heading(fmt.Sprintf("Evaluated %d profiles", len(summaries)))
		rows := make([][]string, 0, len(summaries))
		for _, s := range summaries {
			rows = append(rows, []string{
				s.SystemName,
				fmt.Sprintf("%.1f", s.Score),
				string(s.Verdict),
				strconv.Itoa(s.CriticalGaps),
				s.ReportID,
			})
		}
		p.table([]string{"SYSTEM", "SCORE", "VERDICT", "CRITICAL", "REPORT"}, rows, func(col int, cell string) lipgloss.Style {
			if col == 2 {
				return p.verdictStyle(cell)
			}
			return p.plain
		})
		p.blank()
		return code
	})
}

func profilesIn(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".yaml", ".yml":
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
