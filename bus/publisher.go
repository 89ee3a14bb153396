package bus

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/c360/cstrloop/errors"
	"github.com/c360/cstrloop/message"
	"github.com/c360/cstrloop/metric"
	"github.com/c360/cstrloop/natsclient"
	"github.com/c360/cstrloop/pkg/retry"
)

// Publisher writes payloads to one stream subject. Every publish waits for
// the broker acknowledgment and retries transient failures, so a broker
// outage pauses the writer instead of dropping data.
type Publisher struct {
	client  *natsclient.Client
	subject string
	stream  string
	agent   string
	runID   string
	logger  *slog.Logger
	metrics *metric.Metrics
	cfg     retry.Config
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithPublishRetry overrides the retry profile.
func WithPublishRetry(cfg retry.Config) PublisherOption {
	return func(p *Publisher) { p.cfg = cfg }
}

// WithPublisherMetrics wires the core metrics.
func WithPublisherMetrics(m *metric.Metrics) PublisherOption {
	return func(p *Publisher) { p.metrics = m }
}

// NewPublisher creates a publisher for one stream. A fresh run ID is minted
// per process incarnation and stamped on every message.
func NewPublisher(client *natsclient.Client, stream, subject, agent string, logger *slog.Logger, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		client:  client,
		subject: subject,
		stream:  stream,
		agent:   agent,
		runID:   uuid.NewString(),
		logger:  logger,
		cfg:     retry.Persistent(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunID returns this publisher's process incarnation ID.
func (p *Publisher) RunID() string {
	return p.runID
}

// PublishOptions carries per-message transport metadata.
type PublishOptions struct {
	// Fault marks the message as a terminal fault marker.
	Fault bool
	// ReplyTo, when non-zero, records which measurement seq this message
	// answers. Observability only.
	ReplyTo uint64
}

// Publish writes one payload and waits for the broker ack.
func (p *Publisher) Publish(ctx context.Context, data []byte) error {
	return p.PublishWith(ctx, data, PublishOptions{})
}

// PublishWith writes one payload with transport metadata.
func (p *Publisher) PublishWith(ctx context.Context, data []byte, o PublishOptions) error {
	msg := nats.NewMsg(p.subject)
	msg.Data = data
	msg.Header.Set(message.HeaderRunID, p.runID)
	if o.Fault {
		msg.Header.Set(message.HeaderFault, "true")
	}
	if o.ReplyTo != 0 {
		msg.Header.Set(message.HeaderReplyTo, strconv.FormatUint(o.ReplyTo, 10))
	}

	err := retry.Do(ctx, p.cfg, func() error {
		_, pubErr := p.client.PublishMsgToStream(ctx, msg)
		if pubErr == nil {
			return nil
		}
		if errors.IsInvalid(pubErr) || errors.IsFatal(pubErr) {
			return retry.NonRetryable(pubErr)
		}
		return pubErr
	})
	if err != nil {
		if p.metrics != nil {
			p.metrics.RecordError(p.agent, "publish")
		}
		return errors.WrapTransient(err, "Publisher", "PublishWith", "publish to "+p.stream)
	}

	if p.metrics != nil {
		p.metrics.RecordMessagePublished(p.agent, p.stream)
	}
	return nil
}
