package bus

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/cstrloop/errors"
	"github.com/c360/cstrloop/metric"
	"github.com/c360/cstrloop/natsclient"
	"github.com/c360/cstrloop/pkg/buffer"
	"github.com/c360/cstrloop/pkg/retry"
)

// ErrNoMessage is returned by Next when maxWait elapses with no delivery.
var ErrNoMessage = stderrors.New("no message available")

// Consumer reads one stream through a durable explicit-ack consumer. Broker
// deliveries land in a bounded queue; the agent pulls them at its own pace.
// Overflowing the queue evicts the oldest pending delivery and acks it, since
// on a latest-value stream it is already superseded.
type Consumer struct {
	client  *natsclient.Client
	stream  string
	subject string
	durable string
	agent   string
	logger  *slog.Logger
	metrics *metric.Metrics

	bufSize int
	queue   *buffer.Queue[Delivery]
	cc      jetstream.ConsumeContext
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithBufferSize bounds the pending delivery queue.
func WithBufferSize(n int) ConsumerOption {
	return func(c *Consumer) { c.bufSize = n }
}

// WithConsumerMetrics wires the core metrics.
func WithConsumerMetrics(m *metric.Metrics) ConsumerOption {
	return func(c *Consumer) { c.metrics = m }
}

// NewConsumer creates a consumer bound to a durable name. The durable name
// carries the committed position across restarts.
func NewConsumer(client *natsclient.Client, stream, subject, durable, agent string,
	logger *slog.Logger, opts ...ConsumerOption) (*Consumer, error) {
	c := &Consumer{
		client:  client,
		stream:  stream,
		subject: subject,
		durable: durable,
		agent:   agent,
		logger:  logger,
		bufSize: 64,
	}
	for _, opt := range opts {
		opt(c)
	}

	queue, err := buffer.NewQueue(c.bufSize, buffer.WithDropHandler(func(d Delivery) {
		// The evicted delivery is superseded by a newer one already
		// buffered; ack it so the broker does not redeliver.
		if ackErr := d.Ack(); ackErr != nil {
			c.logger.Warn("ack of evicted delivery failed", "stream", c.stream, "error", ackErr)
		}
		if c.metrics != nil {
			c.metrics.RecordMessageSkipped(c.agent, c.stream)
		}
	}))
	if err != nil {
		return nil, errors.WrapInvalid(err, "Consumer", "NewConsumer", "create delivery queue")
	}
	c.queue = queue

	return c, nil
}

// Start creates the durable consumer on the broker and begins feeding the
// delivery queue.
func (c *Consumer) Start(ctx context.Context) error {
	cfg := jetstream.ConsumerConfig{
		Durable:       c.durable,
		FilterSubject: c.subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckWait:       30 * time.Second,
		MaxAckPending: c.bufSize * 2,
	}

	consumer, err := retry.DoWithResult(ctx, retry.Quick(), func() (jetstream.Consumer, error) {
		return c.client.CreateConsumer(ctx, c.stream, cfg)
	})
	if err != nil {
		return errors.WrapFatal(err, "Consumer", "Start", "create durable consumer "+c.durable)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		if c.metrics != nil {
			c.metrics.RecordMessageConsumed(c.agent, c.stream)
		}
		if putErr := c.queue.Put(fromJetStream(msg)); putErr != nil {
			// Queue closed during shutdown; leave unacked for redelivery
			c.logger.Debug("delivery after close", "stream", c.stream)
		}
	})
	if err != nil {
		return errors.WrapFatal(err, "Consumer", "Start", "start consuming "+c.stream)
	}
	c.cc = cc

	c.logger.Info("consumer started", "stream", c.stream, "durable", c.durable)
	return nil
}

// Next blocks until a delivery arrives or maxWait elapses. A timeout
// returns ErrNoMessage so callers can distinguish silence from failure.
func (c *Consumer) Next(ctx context.Context, maxWait time.Duration) (Delivery, error) {
	waitCtx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	d, err := c.queue.Get(waitCtx)
	if err != nil {
		if waitCtx.Err() != nil && ctx.Err() == nil {
			return Delivery{}, ErrNoMessage
		}
		return Delivery{}, err
	}
	return d, nil
}

// Drain returns up to max pending deliveries without blocking, in arrival
// order.
func (c *Consumer) Drain(max int) []Delivery {
	return c.queue.DrainLatest(max)
}

// Pending returns the number of buffered deliveries.
func (c *Consumer) Pending() int {
	return c.queue.Len()
}

// Stop halts delivery. Buffered unacked messages will be redelivered to the
// durable on the next start.
func (c *Consumer) Stop() {
	if c.cc != nil {
		c.cc.Stop()
		c.cc = nil
	}
	c.queue.Close()
}
