// Package publish announces persisted gate decisions to downstream systems.
//
// Only the gate outcome leaves the process; the full report stays in the
// workspace. Publishing is best-effort and never changes a decision.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/factgate/internal/errors"
	"github.com/ppiankov/factgate/internal/model"
)

// Sink names
const (
	SinkNone  = ""
	SinkLog   = "log"
	SinkKafka = "kafka"
	SinkRedis = "redis"
	SinkMQTT  = "mqtt"
	SinkDapr  = "dapr"
)

// GateEvent is the message body sent for every persisted report
type GateEvent struct {
	ClaimID              string           `json:"claim_id"`
	Status               model.GateStatus `json:"status"`
	ConflictCount        int              `json:"conflict_count"`
	MissingCriticalFacts []string         `json:"missing_critical_facts"`
	Policy               model.Policy     `json:"policy"`
	GeneratedAt          time.Time        `json:"generated_at"`
}

// NewGateEvent extracts the event from a report
func NewGateEvent(r *model.ReconciliationReport) GateEvent {
	missing := r.Gate.MissingCriticalFacts
	if missing == nil {
		missing = []string{}
	}
	return GateEvent{
		ClaimID:              r.ClaimID,
		Status:               r.Gate.Status,
		ConflictCount:        r.Gate.ConflictCount,
		MissingCriticalFacts: missing,
		Policy:               r.Policy,
		GeneratedAt:          r.GeneratedAt,
	}
}

// Encode renders the event as JSON
func (e GateEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher sends gate events to one sink
type Publisher interface {
	Publish(ctx context.Context, report *model.ReconciliationReport) error
	Close() error
}

// New creates the publisher selected by cfg. It returns nil, nil when
// publishing is disabled.
func New(cfg model.PublishConfig) (Publisher, error) {
	topic := cfg.Topic
	if topic == "" {
		topic = model.DefaultConfig().Publish.Topic
	}

	switch strings.ToLower(cfg.Sink) {
	case SinkNone:
		return nil, nil
	case SinkLog:
		return NewLogPublisher(nil), nil
	case SinkKafka:
		if len(cfg.Brokers) == 0 {
			return nil, errors.NewConfigError("publish", "kafka sink requires at least one broker", nil)
		}
		return NewKafkaPublisher(cfg.Brokers, topic), nil
	case SinkRedis:
		if len(cfg.Brokers) == 0 {
			return nil, errors.NewConfigError("publish", "redis sink requires an address in brokers", nil)
		}
		return NewRedisPublisher(cfg.Brokers[0], topic), nil
	case SinkMQTT:
		if len(cfg.Brokers) == 0 {
			return nil, errors.NewConfigError("publish", "mqtt sink requires a broker URL", nil)
		}
		p, err := NewMQTTPublisher(cfg.Brokers[0], cfg.ClientID, topic)
		if err != nil {
			return nil, err
		}
		return p, nil
	case SinkDapr:
		if cfg.PubsubName == "" {
			return nil, errors.NewConfigError("publish", "dapr sink requires pubsub_name", nil)
		}
		p, err := NewDaprPublisher(cfg.PubsubName, topic)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, errors.NewConfigError("publish",
			fmt.Sprintf("unknown sink %q (supported: log, kafka, redis, mqtt, dapr)", cfg.Sink), nil)
	}
}
