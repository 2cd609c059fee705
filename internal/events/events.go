package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/CMSgov/dpc-portal/models"
	"github.com/apache/pulsar-client-go/pulsar"
)

// Publisher sends credential audit events.
type Publisher interface {
	Publish(ctx context.Context, event models.CredentialEvent) error
}

type sender interface {
	Send(ctx context.Context, msg *pulsar.ProducerMessage) (pulsar.MessageID, error)
	Close()
}

type EventPublisher struct {
	client   pulsar.Client
	producer sender
}

// NewEventPublisher initializes the Pulsar client and producer.
func NewEventPublisher(pulsarURL, topic string) (*EventPublisher, error) {
	client, err := pulsar.NewClient(pulsar.ClientOptions{
		URL: pulsarURL,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create Pulsar client: %w", err)
	}

	producer, err := client.CreateProducer(pulsar.ProducerOptions{
		Topic: topic,
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("could not create Pulsar producer: %w", err)
	}

	return &EventPublisher{client: client, producer: producer}, nil
}

// Publish sends the event keyed by organization so one organization's events stay ordered.
func (p *EventPublisher) Publish(ctx context.Context, event models.CredentialEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("could not serialize event payload: %w", err)
	}

	_, err = p.producer.Send(ctx, &pulsar.ProducerMessage{
		Key:     event.OrganizationID,
		Payload: payload,
		Properties: map[string]string{
			"type": string(event.Type),
		},
	})
	if err != nil {
		return fmt.Errorf("could not send event to Pulsar: %w", err)
	}
	return nil
}

// Close closes the Pulsar producer and client.
func (p *EventPublisher) Close() {
	if p.producer != nil {
		p.producer.Close()
	}
	if p.client != nil {
		p.client.Close()
	}
}

// Discard drops events. It is used when no Pulsar URL is configured.
type Discard struct{}

func (Discard) Publish(context.Context, models.CredentialEvent) error { return nil }

// DecodeCredentialEvent parses a message produced by Publish.
func DecodeCredentialEvent(payload []byte) (models.CredentialEvent, error) {
	var event models.CredentialEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return models.CredentialEvent{}, fmt.Errorf("could not decode credential event: %w", err)
	}
	if event.Type == "" || event.CredentialID == "" {
		return models.CredentialEvent{}, fmt.Errorf("credential event is missing type or credential id")
	}
	return event, nil
}
