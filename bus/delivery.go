package bus

import (
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/cstrloop/message"
)

// Delivery is one message handed to an agent, with its broker metadata and
// acknowledgment hooks.
type Delivery struct {
	Data  []byte
	RunID string
	Fault bool

	ack  func() error
	term func() error
}

// NewDelivery constructs a delivery with explicit hooks. Used by tests;
// production deliveries come from fromJetStream.
func NewDelivery(data []byte, runID string, fault bool, ack, term func() error) Delivery {
	return Delivery{Data: data, RunID: runID, Fault: fault, ack: ack, term: term}
}

// Ack marks the delivery processed so the broker will not redeliver it.
func (d Delivery) Ack() error {
	if d.ack == nil {
		return nil
	}
	return d.ack()
}

// Term tells the broker to never redeliver this message. Used for payloads
// that can never be processed, like malformed JSON.
func (d Delivery) Term() error {
	if d.term == nil {
		return nil
	}
	return d.term()
}

func fromJetStream(msg jetstream.Msg) Delivery {
	headers := msg.Headers()
	return Delivery{
		Data:  msg.Data(),
		RunID: headers.Get(message.HeaderRunID),
		Fault: headers.Get(message.HeaderFault) == "true",
		ack:   msg.Ack,
		term:  msg.Term,
	}
}
