package publish

import (
	"context"
	"fmt"

	dapr "github.com/dapr/go-sdk/client"

	"github.com/ppiankov/factgate/internal/model"
)

// DaprPublisher publishes gate events through a Dapr sidecar's pub/sub component
type DaprPublisher struct {
	client     dapr.Client
	pubsubName string
	topic      string
}

// NewDaprPublisher connects to the local sidecar (DAPR_GRPC_PORT)
func NewDaprPublisher(pubsubName, topic string) (*DaprPublisher, error) {
	client, err := dapr.NewClient()
	if err != nil {
		return nil, fmt.Errorf("dapr client: %w", err)
	}
	return &DaprPublisher{client: client, pubsubName: pubsubName, topic: topic}, nil
}

func (p *DaprPublisher) Publish(ctx context.Context, report *model.ReconciliationReport) error {
	if err := p.client.PublishEvent(ctx, p.pubsubName, p.topic, NewGateEvent(report)); err != nil {
		return fmt.Errorf("dapr publish: %w", err)
	}
	return nil
}

func (p *DaprPublisher) Close() error {
	p.client.Close()
	return nil
}
