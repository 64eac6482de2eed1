package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Mindburn-Labs/regcoder/pkg/pipeline"
	"github.com/Mindburn-Labs/regcoder/pkg/rules"
	"github.com/Mindburn-Labs/regcoder/pkg/rules/euaiact"
)

// loadCatalogue resolves the configured catalogue without opening the audit
// log; browsing rules leaves no trail.
func loadCatalogue(configPath string, stderr io.Writer) (*rules.Catalogue, map[int]string, error) {
	cfg, _, err := setup(configPath, stderr)
	if err != nil {
		return nil, nil, err
	}
	reg, err := pipeline.DefaultRegistry()
	if err != nil {
		return nil, nil, err
	}
	cat, err := reg.Resolve(cfg.Regulation, cfg.RegulationVersion)
	if err != nil {
		return nil, nil, err
	}
	titles := map[int]string{}
	if cat.Regulation().ID == euaiact.RegulationID {
		if titles, err = euaiact.ArticleTitles(); err != nil {
			return nil, nil, err
		}
	}
	return cat, titles, nil
}

// runRulesCmd implements `regcoder rules <list|show|article>`.
func runRulesCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stderr, "Usage: regcoder rules <list|show|article> [flags]")
		return exitUsage
	}
	switch args[0] {
	case "list", "ls":
		return runRulesListCmd("rules list", args[1:], 0, stdout, stderr)
	case "article":
		if len(args) < 2 {
			_, _ = fmt.Fprintln(stderr, "Usage: regcoder rules article <number> [flags]")
			return exitUsage
		}
		n, err := strconv.Atoi(strings.TrimPrefix(strings.ToLower(args[1]), "art"))
		if err != nil || n <= 0 {
			_, _ = fmt.Fprintf(stderr, "Error: invalid article number %q\n", args[1])
			return exitUsage
		}
		return runRulesListCmd("rules article", args[2:], n, stdout, stderr)
	case "show":
		return runRulesShowCmd(args[1:], stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown rules subcommand: %s\n", args[0])
		return exitUsage
	}
}

func runRulesListCmd(name string, args []string, article int, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet(name, flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		configPath string
		severity   string
		jsonOutput bool
	)

	cmd.StringVar(&configPath, "config", "", "Path to a YAML config file")
	cmd.StringVar(&severity, "severity", "", "Only list rules of this severity")
	cmd.BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	if article == 0 {
		cmd.IntVar(&article, "article", 0, "Only list rules implementing this article")
	}

	if err := cmd.Parse(args); err != nil {
		return exitUsage
	}
	cat, titles, err := loadCatalogue(configPath, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	var selected []rules.Rule
	if article > 0 {
		for _, id := range cat.RulesForArticle(article) {
			if r, ok := cat.Rule(id); ok {
				selected = append(selected, r)
			}
		}
	} else {
		selected = cat.Rules()
	}
	if severity != "" {
		filtered := selected[:0:0]
		for _, r := range selected {
			if string(r.Severity) == severity {
				filtered = append(filtered, r)
			}
		}
		selected = filtered
	}

	if jsonOutput {
		if selected == nil {
			selected = []rules.Rule{}
		}
		if err := writeJSON(stdout, selected); err != nil {
			return reportError(stderr, err)
		}
		return exitOK
	}

	p := newPrinter(stdout)
	reg := cat.Regulation()
	switch {
	case article > 0 && titles[article] != "":
		p.heading(fmt.Sprintf("Article %d: %s", article, titles[article]))
	case article > 0:
		p.heading(fmt.Sprintf("Article %d", article))
	default:
		p.heading(fmt.Sprintf("%s (catalogue %s)", reg.Title, cat.Version()))
	}
	if len(selected) == 0 {
		p.line("%s", p.muted.Render("No rules."))
		return exitOK
	}
	rows := make([][]string, 0, len(selected))
	for _, r := range selected {
		rows = append(rows, []string{
			r.ID,
			strconv.Itoa(cat.ArticleOf(r.ID)),
			string(r.Severity),
			string(r.RuleType),
			r.Title,
		})
	}
	p.table([]string{"RULE", "ART", "SEVERITY", "TYPE", "TITLE"}, rows, func(col int, cell string) lipgloss.Style {
		if col == 2 {
			return p.verdictStyle(cell)
		}
		return p.plain
	})
	p.blank()
	p.line("%s", p.muted.Render(fmt.Sprintf("%d rules", len(selected))))
	return exitOK
}

func runRulesShowCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("rules show", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		configPath string
		jsonOutput bool
	)

	cmd.StringVar(&configPath, "config", "", "Path to a YAML config file")
	cmd.BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	if err := cmd.Parse(args); err != nil {
		return exitUsage
	}
	if cmd.NArg() != 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: regcoder rules show [flags] <rule-id>")
		return exitUsage
	}
	cat, titles, err := loadCatalogue(configPath, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	rule, ok := cat.Rule(cmd.Arg(0))
	if !ok {
		_, _ = fmt.Fprintf(stderr, "Error: unknown rule %s\n", cmd.Arg(0))
		return exitFailure
	}

	if jsonOutput {
		if err := writeJSON(stdout, rule); err != nil {
			return reportError(stderr, err)
		}
		return exitOK
	}

	p := newPrinter(stdout)
	p.heading(rule.ID + ": " + rule.Title)
	art := cat.ArticleOf(rule.ID)
	p.field("Article", strings.TrimSpace(fmt.Sprintf("%d %s", art, titles[art])))
	p.field("Requirement", rule.RequirementID)
	p.field("Severity", p.verdictStyle(string(rule.Severity)).Render(string(rule.Severity)))
	p.field("Type", rule.RuleType)
	p.field("Inputs", strings.Join(rule.InputsNeeded, ", "))
	if rule.Description != "" {
		p.sectionTitle("Description")
		p.line("  %s", rule.Description)
	}
	if rule.EvaluationLogic != "" {
		p.sectionTitle("Logic")
		p.line("  %s", rule.EvaluationLogic)
	}
	if rule.Remediation != "" {
		p.sectionTitle("Remediation")
		p.line("  %s", rule.Remediation)
	}
	if len(rule.Citations) > 0 {
		p.sectionTitle("Citations")
		for _, c := range rule.Citations {
			ref := c.ArticleRef
			if c.ParagraphRef != "" {
				ref += ", " + c.ParagraphRef
			}
			p.line("  - %s %s", p.bold.Render(ref), p.muted.Render(strconv.Quote(c.ExactQuote)))
		}
	}
	p.field("Test cases", len(rule.TestCases))
	return exitOK
}

// runSelfTestCmd implements `regcoder selftest`: every embedded test case
// runs through the evaluator and the outcome is recorded as a judge entry.
//
// Exit codes:
//
//	0 = all cases matched
//	1 = at least one case failed
//	2 = runtime error
func runSelfTestCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("selftest", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		configPath string
		jsonOutput bool
	)

	cmd.StringVar(&configPath, "config", "", "Path to a YAML config file")
	cmd.BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	if err := cmd.Parse(args); err != nil {
		return exitUsage
	}

	return withRunner(configPath, stderr, func(ctx context.Context, r *pipeline.Runner) int {
		check, err := r.SelfTest(ctx)
		if err != nil {
			return reportError(stderr, err)
		}

		if jsonOutput {
			if err := writeJSON(stdout, check); err != nil {
				return reportError(stderr, err)
			}
		} else {
			p := newPrinter(stdout)
			p.heading(fmt.Sprintf("Self-test %s@%s", check.RegulationID, check.Version))
			p.field("Test cases", check.Total)
			p.field("Passed", p.ok.Render(strconv.Itoa(check.Passed)))
			if check.OK() {
				p.line("%s", p.ok.Render("All test cases passed."))
			} else {
				p.line("%s", p.bad.Render(fmt.Sprintf("%d test cases failed:", len(check.Failures))))
				for _, f := range check.Failures {
					p.line("  - %s/%s: expected %s, got %s", f.RuleID, f.TestCaseID, f.Expected, f.Got)
				}
			}
		}

		if !check.OK() {
			return exitFailure
		}
		return exitOK
	})
}
