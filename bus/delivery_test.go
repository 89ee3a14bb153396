package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDelivery_AckHooks(t *testing.T) {
	var acked, termed bool
	d := NewDelivery([]byte(`{}`), "run-1", false,
		func() error { acked = true; return nil },
		func() error { termed = true; return nil })

	assert.NoError(t, d.Ack())
	assert.True(t, acked)

	assert.NoError(t, d.Term())
	assert.True(t, termed)
}

func TestDelivery_NilHooksAreSafe(t *testing.T) {
	d := Delivery{Data: []byte(`{}`)}
	assert.NoError(t, d.Ack())
	assert.NoError(t, d.Term())
}

func TestDefaultTopology(t *testing.T) {
	specs := DefaultTopology()
	assert.Len(t, specs, 2)

	byName := map[string]StreamSpec{}
	for _, s := range specs {
		byName[s.Name] = s
	}
	assert.Equal(t, SensorSubject, byName[SensorStream].Subject)
	assert.Equal(t, ControlSubject, byName[ControlStream].Subject)
}
