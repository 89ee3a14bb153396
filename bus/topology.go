package bus

import (
	"context"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/cstrloop/errors"
	"github.com/c360/cstrloop/natsclient"
	"github.com/c360/cstrloop/pkg/retry"
)

// Stream and subject names shared by both agents.
const (
	SensorStream  = "CSTR_SENSOR"
	SensorSubject = "cstr.sensor"

	ControlStream  = "CSTR_CONTROL"
	ControlSubject = "cstr.control"
)

// StreamSpec describes one durable stream of the loop.
type StreamSpec struct {
	Name    string
	Subject string
	MaxAge  time.Duration
}

// DefaultTopology returns the two streams the loop runs on.
func DefaultTopology() []StreamSpec {
	return []StreamSpec{
		{Name: SensorStream, Subject: SensorSubject, MaxAge: 24 * time.Hour},
		{Name: ControlStream, Subject: ControlSubject, MaxAge: 24 * time.Hour},
	}
}

// EnsureStreams creates or updates the streams on the broker. Safe to call
// from both agents concurrently; creation is idempotent. Retries cover the
// window where the broker is still starting up.
func EnsureStreams(ctx context.Context, client *natsclient.Client, specs []StreamSpec, logger *slog.Logger) error {
	for _, spec := range specs {
		cfg := jetstream.StreamConfig{
			Name:      spec.Name,
			Subjects:  []string{spec.Subject},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    spec.MaxAge,
			Replicas:  1,
		}

		err := retry.Do(ctx, retry.Quick(), func() error {
			_, err := client.CreateStream(ctx, cfg)
			return err
		})
		if err != nil {
			return errors.WrapFatal(err, "bus", "EnsureStreams", "create stream "+spec.Name)
		}

		logger.Info("stream ready", "stream", spec.Name, "subject", spec.Subject)
	}
	return nil
}
