package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"signals/internal/sigmax/service"
)

// Pusher runs the handoff for one signal.
type Pusher interface {
	Push(ctx context.Context, signalID int64) (service.PushResult, error)
}

// Config selects the brokers and topic the trigger reads from.
type Config struct {
	Brokers []string
	Topic   string
	Group   string
}

// Consumer reads push messages and hands each signal to the Pusher.
// Offsets are committed once a polled batch has been handled, so a crash
// replays at most that batch; Push skips signals that already left TE_VERZENDEN.
type Consumer struct {
	client *kgo.Client
	pusher Pusher
	logger *slog.Logger
	topic  string
}

// NewConsumer connects a consumer group member. Extra kgo options are appended
// after the defaults.
func NewConsumer(cfg Config, pusher Pusher, logger *slog.Logger, opts ...kgo.Opt) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	}
	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Consumer{client: client, pusher: pusher, logger: logger, topic: cfg.Topic}, nil
}

// Run polls until ctx is cancelled or the client is closed.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.InfoContext(ctx, "sigmax push trigger started", "topic", c.topic)
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.ErrorContext(ctx, "kafka fetch failed",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		var records []*kgo.Record
		fetches.EachRecord(func(r *kgo.Record) {
			c.handle(ctx, r)
			records = append(records, r)
		})
		if len(records) == 0 {
			continue
		}
		if err := c.client.CommitRecords(ctx, records...); err != nil && ctx.Err() == nil {
			c.logger.ErrorContext(ctx, "kafka commit failed", "error", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, r *kgo.Record) {
	msg, err := decodeMessage(r.Value)
	if err != nil {
		c.logger.WarnContext(ctx, "dropping push message",
			"partition", r.Partition,
			"offset", r.Offset,
			"error", err,
		)
		return
	}

	result, err := c.pusher.Push(ctx, msg.SignalID)
	switch {
	case err != nil:
		c.logger.ErrorContext(ctx, "sigmax push failed",
			"signal_id", msg.SignalID,
			"offset", r.Offset,
			"error", err,
		)
	case result.Skipped:
		c.logger.InfoContext(ctx, "sigmax push skipped",
			"signal_id", msg.SignalID,
			"reason", result.Message,
		)
	default:
		c.logger.InfoContext(ctx, "sigmax push done",
			"signal_id", msg.SignalID,
			"case_id", result.CaseID.String(),
		)
	}
}

// Close leaves the group and closes the client.
func (c *Consumer) Close() {
	c.client.Close()
}

// EnsureTopic creates topic when it does not exist yet.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, partitions, -1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}
