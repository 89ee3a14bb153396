package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection timeout", ErrConnectionTimeout, true},
		{"connection lost wrapped", fmt.Errorf("publish: %w", ErrConnectionLost), true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"message sniffing", stderrors.New("nats: connection refused"), true},
		{"invalid data", WrapInvalid(ErrInvalidData, "Agent", "decode", "parse"), false},
		{"fatal classified", WrapFatal(ErrStateDiverged, "Agent", "tick", "integrate"), false},
		{"transient classified", WrapTransient(stderrors.New("boom"), "Client", "Connect", "dial"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrStateDiverged))
	assert.True(t, IsFatal(ErrUnarmed))
	assert.True(t, IsFatal(fmt.Errorf("load: %w", ErrMissingConfig)))
	assert.True(t, IsFatal(WrapFatal(stderrors.New("x"), "Agent", "Start", "init")))
	assert.False(t, IsFatal(ErrConnectionLost))
	assert.False(t, IsFatal(nil))
}

func TestIsInvalid(t *testing.T) {
	assert.True(t, IsInvalid(ErrNonFiniteValue))
	assert.True(t, IsInvalid(ErrSequenceRegressed))
	assert.True(t, IsInvalid(WrapInvalid(stderrors.New("x"), "Envelope", "Decode", "unmarshal")))
	assert.False(t, IsInvalid(ErrConnectionTimeout))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorFatal, Classify(ErrStateDiverged))
	assert.Equal(t, ErrorInvalid, Classify(ErrInvalidData))
	assert.Equal(t, ErrorTransient, Classify(stderrors.New("something else")))
}

func TestWrap_PreservesChain(t *testing.T) {
	base := stderrors.New("socket closed")
	wrapped := WrapTransient(base, "Client", "Publish", "send envelope")

	assert.ErrorIs(t, wrapped, base)
	assert.Contains(t, wrapped.Error(), "Client.Publish: send envelope failed")

	var ce *ClassifiedError
	assert.True(t, stderrors.As(wrapped, &ce))
	assert.Equal(t, "Client", ce.Component)
	assert.Equal(t, ErrorTransient, ce.Class)
}

func TestWrap_NilPassthrough(t *testing.T) {
	assert.NoError(t, Wrap(nil, "C", "M", "a"))
	assert.NoError(t, WrapTransient(nil, "C", "M", "a"))
	assert.NoError(t, WrapFatal(nil, "C", "M", "a"))
	assert.NoError(t, WrapInvalid(nil, "C", "M", "a"))
}
