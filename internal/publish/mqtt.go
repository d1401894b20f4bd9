package publish

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ppiankov/factgate/internal/model"
)

const mqttQoS = 1

// MQTTPublisher publishes gate events to an MQTT topic
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
}

// NewMQTTPublisher connects to broker (e.g. tcp://localhost:1883)
func NewMQTTPublisher(broker, clientID, topic string) (*MQTTPublisher, error) {
	if clientID == "" {
		clientID = "factgate"
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	return &MQTTPublisher{client: client, topic: topic}, nil
}

func (p *MQTTPublisher) Publish(ctx context.Context, report *model.ReconciliationReport) error {
	data, err := NewGateEvent(report).Encode()
	if err != nil {
		return fmt.Errorf("encode gate event: %w", err)
	}
	token := p.client.Publish(p.topic, mqttQoS, false, data)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish: %w", err)
	}
	return nil
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
