// Package pipeline wires the catalogue registry, evaluator, audit chain,
// artifact store and telemetry into the operations the CLI exposes. Every
// operation that produces or exports something appends an audit entry.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Mindburn-Labs/regcoder/pkg/artifacts"
	"github.com/Mindburn-Labs/regcoder/pkg/audit"
	"github.com/Mindburn-Labs/regcoder/pkg/compliance"
	"github.com/Mindburn-Labs/regcoder/pkg/config"
	"github.com/Mindburn-Labs/regcoder/pkg/observability"
	"github.com/Mindburn-Labs/regcoder/pkg/rules"
	"github.com/Mindburn-Labs/regcoder/pkg/rules/euaiact"
)

// Audit stages recorded by the runner.
const (
	StageEvaluation = "evaluation"
	StageExport     = "export"
	StageJudging    = "judging"
	StageDiff       = "diff"
)

// ErrNilProfile is returned when an operation is handed a nil profile.
var ErrNilProfile = errors.New("pipeline: nil profile")

// Runner owns one catalogue, one audit chain and one artifact store.
type Runner struct {
	cfg         *config.Config
	registry    *rules.Registry
	evaluator   *compliance.Evaluator
	scorecards  *compliance.ScorecardBuilder
	chain       *audit.Chain
	store       artifacts.Store
	telemetry   *observability.Provider
	logger      *slog.Logger
	clock       func() time.Time
	concurrency int
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithClock sets the clock shared by the evaluator, chain and exports.
func WithClock(clock func() time.Time) Option {
	return func(r *Runner) { r.clock = clock }
}

// WithStore overrides the store built from the config.
func WithStore(s artifacts.Store) Option {
	return func(r *Runner) { r.store = s }
}

// WithTelemetry records spans and metrics through p.
func WithTelemetry(p *observability.Provider) Option {
	return func(r *Runner) { r.telemetry = p }
}

// WithRegistry replaces the default registry, which holds the embedded
// EU AI Act catalogue.
func WithRegistry(reg *rules.Registry) Option {
	return func(r *Runner) { r.registry = reg }
}

// DefaultRegistry returns a registry holding every embedded catalogue.
func DefaultRegistry() (*rules.Registry, error) {
	reg := rules.NewRegistry()
	if err := euaiact.Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// New resolves the configured catalogue and opens the audit chain and
// artifact store.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Runner, error) {
	if cfg == nil {
		cfg = config.Load()
	}
	r := &Runner{
		cfg:         cfg,
		logger:      slog.Default().With("component", "pipeline"),
		clock:       time.Now,
		concurrency: cfg.Concurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.concurrency < 1 {
		r.concurrency = config.DefaultConcurrency
	}

	if r.registry == nil {
		reg, err := DefaultRegistry()
		if err != nil {
			return nil, err
		}
		r.registry = reg
	}
	cat, err := r.registry.Resolve(cfg.Regulation, cfg.RegulationVersion)
	if err != nil {
		return nil, fmt.Errorf("pipeline: load catalogue: %w", err)
	}

	if r.telemetry == nil {
		if r.telemetry, err = observability.New(ctx, &observability.Config{Enabled: false}); err != nil {
			return nil, err
		}
	}

	r.evaluator, err = compliance.NewEvaluator(cat,
		compliance.WithLogger(r.logger.With("component", "evaluator")),
		compliance.WithClock(r.clock),
	)
	if err != nil {
		return nil, err
	}

	r.scorecards = compliance.NewScorecardBuilder(cat).WithClock(r.clock)
	if cat.Regulation().ID == euaiact.RegulationID {
		titles, err := euaiact.ArticleTitles()
		if err != nil {
			return nil, err
		}
		r.scorecards.WithTitles(titles)
	}

	r.chain, err = audit.Open(cfg.AuditLog,
		audit.WithLogger(r.logger.With("component", "audit")),
		audit.WithClock(r.clock),
		audit.OnAppend(func(e audit.Entry) {
			r.telemetry.RecordAuditAppend(context.Background(), string(e.Action))
		}),
	)
	if err != nil {
		return nil, err
	}

	if r.store == nil {
		if r.store, err = artifacts.NewStore(ctx, cfg.Artifacts); err != nil {
			return nil, fmt.Errorf("pipeline: artifact store: %w", err)
		}
	}

	r.logger.DebugContext(ctx, "pipeline ready",
		"regulation", cat.Regulation().ID,
		"catalogue_version", cat.Version().String(),
		"rules", cat.Len(),
		"audit_log", cfg.AuditLog,
	)
	return r, nil
}

// Catalogue returns the catalogue every evaluation runs against.
func (r *Runner) Catalogue() *rules.Catalogue { return r.evaluator.Catalogue() }

// Evaluator returns the rule evaluator.
func (r *Runner) Evaluator() *compliance.Evaluator { return r.evaluator }

// Chain returns the audit chain the runner appends to.
func (r *Runner) Chain() *audit.Chain { return r.chain }

// Store returns the artifact store.
func (r *Runner) Store() artifacts.Store { return r.store }

// Registry returns the catalogue registry.
func (r *Runner) Registry() *rules.Registry { return r.registry }

// Telemetry returns the telemetry provider. It is a no-op provider when
// telemetry is disabled.
func (r *Runner) Telemetry() *observability.Provider { return r.telemetry }

// Verify checks the runner's audit log on disk.
func (r *Runner) Verify() audit.VerificationResult {
	return audit.VerifyFile(r.chain.Path())
}

// Close flushes telemetry.
func (r *Runner) Close(ctx context.Context) error {
	return r.telemetry.Shutdown(ctx)
}
