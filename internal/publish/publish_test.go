package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/factgate/internal/errors"
	"github.com/ppiankov/factgate/internal/model"
)

func sampleReport() *model.ReconciliationReport {
	return &model.ReconciliationReport{
		ClaimFacts: model.ClaimFacts{ClaimID: "CLM-7"},
		Gate: model.ReconciliationGate{
			Status:               model.GateFail,
			ConflictCount:        2,
			MissingCriticalFacts: []string{"loss_amount"},
		},
		Policy:      model.PolicyLatestRun,
		GeneratedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestGateEventEncode(t *testing.T) {
	data, err := NewGateEvent(sampleReport()).Encode()
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "CLM-7", got["claim_id"])
	assert.Equal(t, "FAIL", got["status"])
	assert.Equal(t, 2.0, got["conflict_count"])
	assert.Equal(t, []any{"loss_amount"}, got["missing_critical_facts"])
	assert.Equal(t, "2026-03-01T12:00:00Z", got["generated_at"])
}

func TestGateEventMissingNeverNull(t *testing.T) {
	r := sampleReport()
	r.Gate.MissingCriticalFacts = nil

	data, err := NewGateEvent(r).Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"missing_critical_facts":[]`)
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	p := NewLogPublisher(&logger)
	require.NoError(t, p.Publish(context.Background(), sampleReport()))
	require.NoError(t, p.Close())

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "gate decision", line["message"])
	assert.Equal(t, "CLM-7", line["claim_id"])
	assert.Equal(t, "FAIL", line["status"])
}

func TestNew(t *testing.T) {
	p, err := New(model.PublishConfig{})
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = New(model.PublishConfig{Sink: "LOG"})
	require.NoError(t, err)
	assert.IsType(t, &LogPublisher{}, p)

	p, err = New(model.PublishConfig{Sink: SinkKafka, Brokers: []string{"localhost:9092"}})
	require.NoError(t, err)
	assert.IsType(t, &KafkaPublisher{}, p)
	assert.Equal(t, "factgate.gate", p.(*KafkaPublisher).writer.Topic)
	require.NoError(t, p.Close())

	p, err = New(model.PublishConfig{Sink: SinkRedis, Brokers: []string{"localhost:6379"}, Topic: "gates"})
	require.NoError(t, err)
	assert.Equal(t, "gates", p.(*RedisPublisher).channel)
	require.NoError(t, p.Close())
}

func TestNewRejectsIncompleteConfig(t *testing.T) {
	cases := []model.PublishConfig{
		{Sink: SinkKafka},
		{Sink: SinkRedis},
		{Sink: SinkMQTT},
		{Sink: SinkDapr},
		{Sink: "carrier-pigeon"},
	}
	for _, cfg := range cases {
		t.Run(cfg.Sink, func(t *testing.T) {
			_, err := New(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrConfig)
		})
	}
}
