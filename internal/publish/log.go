package publish

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ppiankov/factgate/internal/logging"
	"github.com/ppiankov/factgate/internal/model"
)

// LogPublisher writes gate events to a structured log
type LogPublisher struct {
	logger *zerolog.Logger
}

// NewLogPublisher creates a log publisher; a nil logger uses the context logger
func NewLogPublisher(logger *zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, report *model.ReconciliationReport) error {
	logger := p.logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}
	ev := NewGateEvent(report)
	logger.Info().
		Str("claim_id", ev.ClaimID).
		Str("status", string(ev.Status)).
		Int("conflict_count", ev.ConflictCount).
		Strs("missing_critical_facts", ev.MissingCriticalFacts).
		Time("generated_at", ev.GeneratedAt).
		Msg("gate decision")
	return nil
}

func (p *LogPublisher) Close() error { return nil }
