package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CMSgov/dpc-portal/models"
	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

type receiver interface {
	Receive(ctx context.Context) (pulsar.Message, error)
	Ack(msg pulsar.Message) error
	Nack(msg pulsar.Message)
	Close()
}

type EventConsumer struct {
	client   pulsar.Client
	consumer receiver

	// newBackOff paces retries after a failed receive; tests replace it.
	newBackOff func() backoff.BackOff
}

// NewEventConsumer subscribes to the credential audit topic. Messages that keep failing
// are moved to a dead letter topic after three deliveries.
func NewEventConsumer(pulsarURL, topic, subscription string) (*EventConsumer, error) {
	client, err := pulsar.NewClient(pulsar.ClientOptions{URL: pulsarURL})
	if err != nil {
		return nil, fmt.Errorf("could not create Pulsar client: %w", err)
	}

	consumer, err := client.Subscribe(pulsar.ConsumerOptions{
		Topic:            topic,
		SubscriptionName: subscription,
		Type:             pulsar.Shared,
		DLQ: &pulsar.DLQPolicy{
			MaxDeliveries:   3,
			DeadLetterTopic: topic + "-dlq",
		},
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("could not create Pulsar consumer: %w", err)
	}

	return &EventConsumer{client: client, consumer: consumer}, nil
}

// Run receives credential events until ctx is cancelled. Undecodable messages are acked
// and dropped, handler failures are nacked for redelivery.
func (c *EventConsumer) Run(ctx context.Context, handle func(context.Context, models.CredentialEvent) error) error {
	logger := zerolog.Ctx(ctx)
	retry := c.backOff()

	for {
		msg, err := c.consumer.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			wait := retry.NextBackOff()
			if wait == backoff.Stop {
				return fmt.Errorf("giving up receiving messages: %w", err)
			}
			logger.Error().Err(err).Dur("retry_in", wait).Msg("failed to receive message")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			continue
		}
		retry.Reset()

		event, err := DecodeCredentialEvent(msg.Payload())
		if err != nil {
			logger.Warn().Err(err).Str("message_id", msg.ID().String()).Msg("dropping malformed credential event")
			c.ack(ctx, msg)
			continue
		}

		if err := handle(ctx, event); err != nil {
			logger.Error().Err(err).Str("credential_id", event.CredentialID).Msg("failed to process credential event")
			c.consumer.Nack(msg)
			continue
		}

		c.ack(ctx, msg)
	}
}

func (c *EventConsumer) ack(ctx context.Context, msg pulsar.Message) {
	if err := c.consumer.Ack(msg); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to ack message")
	}
}

func (c *EventConsumer) backOff() backoff.BackOff {
	if c.newBackOff == nil {
		return backoff.NewExponentialBackOff(
			backoff.WithMaxInterval(30*time.Second),
			backoff.WithMaxElapsedTime(0),
		)
	}
	return c.newBackOff()
}

// Close cleans up the Pulsar consumer and client.
func (c *EventConsumer) Close() {
	c.consumer.Close()
	if c.client != nil {
		c.client.Close()
	}
}
