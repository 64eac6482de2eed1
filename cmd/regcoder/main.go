// Command regcoder evaluates AI system profiles against the EU AI Act rule
// catalogue and keeps a hash-chained audit trail of every evaluation.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Mindburn-Labs/regcoder/pkg/config"
	"github.com/Mindburn-Labs/regcoder/pkg/observability"
	"github.com/Mindburn-Labs/regcoder/pkg/pipeline"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return exitUsage
	}

	switch args[1] {
	case "evaluate", "eval":
		return runEvaluateCmd(args[2:], stdout, stderr)
	case "batch":
		return runBatchCmd(args[2:], stdout, stderr)
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "audit":
		return runAuditCmd(args[2:], stdout, stderr)
	case "export":
		return runExportCmd(args[2:], stdout, stderr)
	case "rules":
		return runRulesCmd(args[2:], stdout, stderr)
	case "selftest":
		return runSelfTestCmd(args[2:], stdout, stderr)
	case "diff":
		return runDiffCmd(args[2:], stdout, stderr)
	case "version", "--version":
		return runVersionCmd(stdout)
	case "help", "--help", "-h":
		printUsage(stdout)
		return exitOK
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return exitUsage
	}
}

func printUsage(w io.Writer) {
	p := newPrinter(w)
	p.blank()
	p.heading("regcoder " + version)
	p.line("%s", p.muted.Render("EU AI Act compliance checks with a tamper-evident audit trail."))
	p.blank()
	p.line("%s", p.bold.Render("USAGE:"))
	p.line("  regcoder <command> [flags]")

	printSection(p, "EVALUATION")
	printCommand(p, "evaluate", "Evaluate one system profile (--profile, --json, --export)")
	printCommand(p, "batch", "Evaluate several profiles concurrently")
	printCommand(p, "rules", "Browse the rule catalogue (list/show/article)")
	printCommand(p, "selftest", "Run every rule's embedded test cases")
	printCommand(p, "diff", "Compare two catalogue versions (--from, --to)")

	printSection(p, "AUDIT TRAIL")
	printCommand(p, "verify", "Verify the audit log hash chain (--log, --json)")
	printCommand(p, "audit", "Inspect audit entries (list/show)")
	printCommand(p, "export", "Build an evidence pack from the audit log")

	printSection(p, "UTILITIES")
	printCommand(p, "version", "Show version information")
	printCommand(p, "help", "Show this help")
	p.blank()
	p.line("%s", p.muted.Render("Every command accepts --config <file.yaml>; REGCODER_* variables override it."))
	p.blank()
}

func printSection(p *printer, title string) {
	p.blank()
	p.line("%s", p.section.Render(title+":"))
}

func printCommand(p *printer, name, desc string) {
	p.line("  %s %s", p.ok.Render(fmt.Sprintf("%-10s", name)), desc)
}

// setup resolves configuration and installs the process logger. Logs go to
// stderr so stdout stays machine-readable.
func setup(configPath string, stderr io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Resolve(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// newRunner wires the pipeline. Telemetry is exported only when enabled in
// configuration.
func newRunner(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline.Runner, error) {
	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	if cfg.OTel.Enabled {
		oc := observability.DefaultConfig()
		oc.ServiceVersion = version
		oc.Insecure = cfg.OTel.Insecure
		if cfg.OTel.Endpoint != "" {
			oc.OTLPEndpoint = cfg.OTel.Endpoint
		}
		tel, err := observability.New(ctx, oc)
		if err != nil {
			return nil, fmt.Errorf("telemetry: %w", err)
		}
		opts = append(opts, pipeline.WithTelemetry(tel))
	}
	return pipeline.New(ctx, cfg, opts...)
}

// withRunner runs fn against a freshly wired pipeline and closes it after.
// A setup failure is a runtime error (exit 2).
func withRunner(configPath string, stderr io.Writer, fn func(ctx context.Context, r *pipeline.Runner) int) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := setup(configPath, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	r, err := newRunner(ctx, cfg, logger)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	defer func() {
		if err := r.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()
	return fn(ctx, r)
}

func runVersionCmd(stdout io.Writer) int {
	p := newPrinter(stdout)
	p.line("regcoder %s", version)
	p.line("  artifacts %s", configuredStorage(config.Load()))
	reg, err := pipeline.DefaultRegistry()
	if err != nil {
		return exitOK
	}
	for _, v := range reg.List() {
		p.line("  catalogue %s@%s", v.RegulationID, v.Version)
	}
	return exitOK
}

func reportError(stderr io.Writer, err error) int {
	_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	if errors.Is(err, context.Canceled) {
		return exitFailure
	}
	return exitUsage
}
