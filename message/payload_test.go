package message

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/cstrloop/errors"
)

func TestSensorReading_RoundTrip(t *testing.T) {
	r := &SensorReading{Ca: 0.87725, Temp: 324.475, Timestamp: 12.5, Seq: 42}

	data, err := r.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"Ca":0.87725,"Reactor_Temperature":324.475,"timestamp":12.5,"seq":42}`,
		string(data))

	got, err := DecodeSensorReading(data)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestSensorReading_RejectsNonFinite(t *testing.T) {
	r := &SensorReading{Ca: 0.5, Temp: math.NaN(), Timestamp: 1}
	_, err := r.Marshal()
	assert.Error(t, err)

	r = &SensorReading{Ca: math.Inf(1), Temp: 350, Timestamp: 1}
	_, err = r.Marshal()
	assert.Error(t, err)
}

func TestSensorReading_RejectsUnphysical(t *testing.T) {
	_, err := DecodeSensorReading([]byte(`{"Ca":-0.1,"Reactor_Temperature":350,"timestamp":0,"seq":1}`))
	assert.Error(t, err)

	_, err = DecodeSensorReading([]byte(`{"Ca":0.5,"Reactor_Temperature":0,"timestamp":0,"seq":1}`))
	assert.Error(t, err)
}

func TestDecodeSensorReading_MalformedJSON(t *testing.T) {
	for _, payload := range []string{
		`not json`,
		`{"Ca": NaN}`,
		`{"Ca": "0.5", "Reactor_Temperature": 350}`,
	} {
		_, err := DecodeSensorReading([]byte(payload))
		assert.Error(t, err, payload)
	}
}

func TestDecodeSensorReading_RequiresSchemaFields(t *testing.T) {
	for _, payload := range []string{
		`{}`,
		`{"Ca":0.5}`,
		`{"Ca":0.5,"Reactor_Temperature":350,"timestamp":0.1}`,
		`{"Reactor_Temperature":350,"timestamp":0.1,"seq":1}`,
	} {
		_, err := DecodeSensorReading([]byte(payload))
		require.Error(t, err, payload)
		assert.True(t, errors.IsInvalid(err), payload)
	}
}

func TestControlCommand_RoundTrip(t *testing.T) {
	c := &ControlCommand{CoolingFlow: 297.5, Timestamp: 3.0, Seq: 7}

	data, err := c.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"cooling_flow":297.5,"timestamp":3,"seq":7}`, string(data))

	got, err := DecodeControlCommand(data)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestControlCommand_RejectsNonFinite(t *testing.T) {
	c := &ControlCommand{CoolingFlow: math.Inf(-1)}
	_, err := c.Marshal()
	assert.Error(t, err)
}

func TestDecodeControlCommand_RequiresSchemaFields(t *testing.T) {
	// A schema-less but syntactically valid payload must never decode to a
	// zero-valued actuation command.
	for _, payload := range []string{
		`{}`,
		`{"cooling_flow":300}`,
		`{"cooling_flow":300,"timestamp":0.1}`,
		`{"timestamp":0.1,"seq":1}`,
	} {
		_, err := DecodeControlCommand([]byte(payload))
		require.Error(t, err, payload)
		assert.True(t, errors.IsInvalid(err), payload)
	}
}

func TestFaultMarker_AlwaysMarksFault(t *testing.T) {
	f := &FaultMarker{Reason: "non-finite state", Seq: 99, Timestamp: 4.2}

	data, err := f.Marshal()
	require.NoError(t, err)

	got, err := DecodeFaultMarker(data)
	require.NoError(t, err)
	assert.True(t, got.Fault)
	assert.Equal(t, "non-finite state", got.Reason)
	assert.Equal(t, uint64(99), got.Seq)
}
