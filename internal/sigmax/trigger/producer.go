package trigger

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer publishes push messages, keyed by signal id so that messages for
// one signal stay on one partition.
type Producer struct {
	client *kgo.Client
	topic  string
}

func NewProducer(brokers []string, topic string, opts ...kgo.Opt) (*Producer, error) {
	base := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &Producer{client: client, topic: topic}, nil
}

// Publish enqueues a push for signalID and waits for the broker ack.
func (p *Producer) Publish(ctx context.Context, signalID int64) error {
	msg := PushMessage{SignalID: signalID}
	value, err := encodeMessage(msg)
	if err != nil {
		return err
	}
	record := &kgo.Record{Topic: p.topic, Key: msg.key(), Value: value}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("publish push for signal %d: %w", signalID, err)
	}
	return nil
}

// Client exposes the underlying client, for topic administration.
func (p *Producer) Client() *kgo.Client {
	return p.client
}

func (p *Producer) Close() {
	p.client.Close()
}
