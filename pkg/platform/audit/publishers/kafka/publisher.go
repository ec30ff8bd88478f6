// Package kafka streams audit events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "mindlink/pkg/platform/audit"
)

// Publisher implements audit.Sink with a franz-go producer.
// Records are keyed by subject so one provider's history stays on one partition.
type Publisher struct {
	client *kgo.Client
	topic  string
}

// deliveryTimeout fails buffered records that the brokers never accept.
const deliveryTimeout = 30 * time.Second

func New(brokers []string, topic string, opts ...kgo.Opt) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka audit publisher: no brokers configured")
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerLinger(0),
		kgo.RecordDeliveryTimeout(deliveryTimeout),
	}
	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Publisher{client: client, topic: topic}, nil
}

// Publish waits for the broker acknowledgement or for ctx to end, whichever is first.
// A record abandoned on ctx may still be delivered later.
func (p *Publisher) Publish(ctx context.Context, event audit.Event) error {
	record, err := encode(p.topic, event)
	if err != nil {
		return err
	}

	acked := make(chan error, 1)
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		acked <- err
	})
	select {
	case err := <-acked:
		if err != nil {
			return fmt.Errorf("produce audit event: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("produce audit event: %w", ctx.Err())
	}
}

func (p *Publisher) Close() {
	p.client.Close()
}

func encode(topic string, event audit.Event) (*kgo.Record, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal audit event: %w", err)
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(event.Subject),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "category", Value: []byte(event.Category)},
			{Key: "action", Value: []byte(event.Action)},
		},
	}, nil
}
