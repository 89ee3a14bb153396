package message

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/c360/cstrloop/errors"
)

// Broker header keys for transport metadata outside the payload schema.
const (
	// HeaderRunID carries the writing process incarnation (a UUID).
	HeaderRunID = "Cstr-Run-Id"
	// HeaderFault marks a terminal fault marker on the sensor stream.
	HeaderFault = "Cstr-Fault"
	// HeaderReplyTo carries the measurement seq a command answers.
	// Observability only; consumers must never gate on it.
	HeaderReplyTo = "Cstr-Reply-To"
)

// SensorReading is one published reactor state on the sensor stream.
type SensorReading struct {
	Ca        float64 `json:"Ca"`
	Temp      float64 `json:"Reactor_Temperature"`
	Timestamp float64 `json:"timestamp"` // simulated minutes
	Seq       uint64  `json:"seq"`
}

// Validate checks the reading is physically meaningful.
func (r *SensorReading) Validate() error {
	if !isFinite(r.Ca) || !isFinite(r.Temp) || !isFinite(r.Timestamp) {
		return errors.WrapInvalid(errors.ErrNonFiniteValue,
			"SensorReading", "Validate", "finite check")
	}
	if r.Ca < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("negative concentration %g", r.Ca),
			"SensorReading", "Validate", "bounds check")
	}
	if r.Temp <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("non-positive absolute temperature %g", r.Temp),
			"SensorReading", "Validate", "bounds check")
	}
	return nil
}

// Marshal validates and serializes the reading.
func (r *SensorReading) Marshal() ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(r)
}

// DecodeSensorReading parses and validates a sensor stream payload. All
// schema fields must be present; a payload that merely parses is not a
// reading.
func DecodeSensorReading(data []byte) (*SensorReading, error) {
	var raw struct {
		Ca        *float64 `json:"Ca"`
		Temp      *float64 `json:"Reactor_Temperature"`
		Timestamp *float64 `json:"timestamp"`
		Seq       *uint64  `json:"seq"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapInvalid(err, "SensorReading", "Decode", "unmarshal")
	}
	if err := requireFields("SensorReading", map[string]bool{
		"Ca":                  raw.Ca != nil,
		"Reactor_Temperature": raw.Temp != nil,
		"timestamp":           raw.Timestamp != nil,
		"seq":                 raw.Seq != nil,
	}); err != nil {
		return nil, err
	}

	r := SensorReading{Ca: *raw.Ca, Temp: *raw.Temp, Timestamp: *raw.Timestamp, Seq: *raw.Seq}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// ControlCommand is one published actuation command on the control stream.
type ControlCommand struct {
	CoolingFlow float64 `json:"cooling_flow"`
	Timestamp   float64 `json:"timestamp"` // simulated minutes
	Seq         uint64  `json:"seq"`
}

// Validate checks the command value is usable by an actuator.
func (c *ControlCommand) Validate() error {
	if !isFinite(c.CoolingFlow) || !isFinite(c.Timestamp) {
		return errors.WrapInvalid(errors.ErrNonFiniteValue,
			"ControlCommand", "Validate", "finite check")
	}
	return nil
}

// Marshal validates and serializes the command.
func (c *ControlCommand) Marshal() ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(c)
}

// DecodeControlCommand parses and validates a control stream payload. All
// schema fields must be present: a zero-valued CoolingFlow from a missing
// field would otherwise be applied as an actuation command.
func DecodeControlCommand(data []byte) (*ControlCommand, error) {
	var raw struct {
		CoolingFlow *float64 `json:"cooling_flow"`
		Timestamp   *float64 `json:"timestamp"`
		Seq         *uint64  `json:"seq"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapInvalid(err, "ControlCommand", "Decode", "unmarshal")
	}
	if err := requireFields("ControlCommand", map[string]bool{
		"cooling_flow": raw.CoolingFlow != nil,
		"timestamp":    raw.Timestamp != nil,
		"seq":          raw.Seq != nil,
	}); err != nil {
		return nil, err
	}

	c := ControlCommand{CoolingFlow: *raw.CoolingFlow, Timestamp: *raw.Timestamp, Seq: *raw.Seq}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// FaultMarker is the terminal record a faulted reactor publishes in place
// of further readings. The fault flag is duplicated in the payload so
// schema-only consumers can distinguish it from a reading.
type FaultMarker struct {
	Fault     bool    `json:"fault"`
	Reason    string  `json:"reason"`
	Seq       uint64  `json:"seq"`
	Timestamp float64 `json:"timestamp"`
}

// Marshal serializes the marker.
func (f *FaultMarker) Marshal() ([]byte, error) {
	f.Fault = true
	return json.Marshal(f)
}

// DecodeFaultMarker parses a fault marker payload.
func DecodeFaultMarker(data []byte) (*FaultMarker, error) {
	var f FaultMarker
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.WrapInvalid(err, "FaultMarker", "Decode", "unmarshal")
	}
	return &f, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func requireFields(typ string, present map[string]bool) error {
	for name, ok := range present {
		if !ok {
			return errors.WrapInvalid(
				fmt.Errorf("missing required field %q", name),
				typ, "Decode", "schema check")
		}
	}
	return nil
}
