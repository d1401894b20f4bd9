package pipeline

import (
	"context"
	"time"

	"github.com/ppiankov/factgate/internal/aggregate"
	"github.com/ppiankov/factgate/internal/errors"
	"github.com/ppiankov/factgate/internal/gate"
	"github.com/ppiankov/factgate/internal/logging"
	"github.com/ppiankov/factgate/internal/model"
	"github.com/ppiankov/factgate/internal/normalize"
	"github.com/ppiankov/factgate/internal/provider"
	"github.com/ppiankov/factgate/internal/reconcile"
)

// Options control one reconciliation invocation
type Options struct {
	RunID  string       // Restrict to one extraction run
	Policy model.Policy // Empty uses the configured policy
	DryRun bool         // Compute but do not persist or publish
}

// Recorder observes finished reconciliations (metrics)
type Recorder interface {
	Record(result model.ReconciliationResult, elapsed time.Duration)
}

// Publisher announces persisted gate decisions downstream
type Publisher interface {
	Publish(ctx context.Context, report *model.ReconciliationReport) error
}

// Narrator writes an optional prose summary of a report
type Narrator interface {
	Narrate(ctx context.Context, report *model.ReconciliationReport) (*model.LLMSummary, error)
}

// Pipeline orchestrates Aggregator -> Engine -> Gate for one claim at a time.
// It holds no per-claim state, so one Pipeline serves every worker.
type Pipeline struct {
	aggregator *aggregate.Aggregator
	engine     *reconcile.Engine
	thresholds model.GateThresholds
	policy     model.Policy
	store      *ReportStore
	markdown   bool

	recorder  Recorder
	publisher Publisher
	narrator  Narrator
	now       func() time.Time
}

// Option customizes a Pipeline
type Option func(*Pipeline)

// WithRecorder attaches a metrics recorder
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithPublisher attaches a gate-decision publisher
func WithPublisher(pub Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithNarrator attaches an LLM narrator; its output never affects the gate
func WithNarrator(n Narrator) Option {
	return func(p *Pipeline) { p.narrator = n }
}

// WithClock overrides the report timestamp source
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithStore overrides where reports are written
func WithStore(s *ReportStore) Option {
	return func(p *Pipeline) { p.store = s }
}

// New creates a pipeline reading candidates from src.
// limiter throttles provider reads and may be nil.
func New(cfg *model.Config, src provider.Provider, limiter aggregate.Waiter, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewConfigError("config", "invalid configuration", err)
	}

	p := &Pipeline{
		aggregator: aggregate.New(src, limiter),
		engine:     reconcile.NewEngine(normalize.New(cfg.FactTypes), cfg.DocumentPriority),
		thresholds: cfg.Gate.Snapshot(),
		policy:     cfg.Policy,
		store:      NewReportStore(cfg.Workspace),
		markdown:   cfg.Output.Markdown,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Store returns the report store
func (p *Pipeline) Store() *ReportStore {
	return p.store
}

// Build runs the pure reconciliation for one claim without side effects
func (p *Pipeline) Build(ctx context.Context, claimID string, opts Options) (*model.ReconciliationReport, error) {
	policy := opts.Policy
	if policy == "" {
		policy = p.policy
	}

	col, err := p.aggregator.Collect(ctx, claimID, aggregate.Options{Policy: policy, RunID: opts.RunID})
	if err != nil {
		return nil, err
	}
	if len(col.Candidates) == 0 {
		logging.FromContext(ctx).Info().
			Str("claim_id", claimID).
			Str("kind", string(errors.KindNoEvidence)).
			Msg("no extraction output; gate will report missing facts")
	}

	facts, conflicts, err := p.engine.Reconcile(claimID, col.Candidates)
	if err != nil {
		return nil, err
	}

	return &model.ReconciliationReport{
		ClaimFacts:  facts,
		FactCount:   len(facts.Facts),
		Conflicts:   conflicts,
		Gate:        gate.Evaluate(facts, conflicts, p.thresholds),
		Policy:      policy,
		GeneratedAt: p.now().UTC(),
	}, nil
}

// ReconcileClaim builds, persists, and announces one claim's report.
// Failures are returned in the result, never panicked or propagated.
func (p *Pipeline) ReconcileClaim(ctx context.Context, claimID string, opts Options) model.ReconciliationResult {
	start := time.Now()
	ctx = logging.WithClaim(ctx, claimID)
	log := logging.FromContext(ctx)

	result := p.reconcile(ctx, claimID, opts)
	if p.recorder != nil {
		p.recorder.Record(result, time.Since(start))
	}

	if result.Success {
		log.Info().
			Str("status", string(result.Report.Gate.Status)).
			Int("facts", result.Report.FactCount).
			Int("conflicts", result.Report.Gate.ConflictCount).
			Int("missing", len(result.Report.Gate.MissingCriticalFacts)).
			Bool("dry_run", opts.DryRun).
			Msg("claim reconciled")
	} else {
		log.Error().Err(result.Error).Str("kind", string(result.ErrorKind)).Msg("claim reconciliation failed")
	}
	return result
}

func (p *Pipeline) reconcile(ctx context.Context, claimID string, opts Options) model.ReconciliationResult {
	report, err := p.Build(ctx, claimID, opts)
	if err != nil {
		return model.Failed(claimID, err)
	}

	// Interrupted claims are abandoned rather than persisted
	if err := ctx.Err(); err != nil {
		return model.Failed(claimID, err)
	}

	if p.narrator != nil {
		summary, err := p.narrator.Narrate(ctx, report)
		if err != nil {
			logging.FromContext(ctx).Warn().Err(err).Msg("narrative summary failed")
		} else if summary != nil {
			report.LLM = summary
		}
	}

	if opts.DryRun {
		return model.Succeeded(report, "")
	}

	path, err := p.store.Save(report, p.markdown)
	if err != nil {
		return model.Failed(claimID, errors.Wrap(errors.KindPersist, claimID, "write report", err))
	}

	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, report); err != nil {
			logging.FromContext(ctx).Warn().Err(err).Msg("publish gate decision failed")
		}
	}
	return model.Succeeded(report, path)
}
