package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMachineHappyPath(t *testing.T) {
	m := NewMachine()
	assert.Equal(t, StateIdle, m.State())

	for _, step := range []struct {
		ev   ConnEvent
		want ConnState
	}{
		{EventNegotiate, StateNegotiating},
		{EventAttach, StateActive},
		{EventAttach, StateActive},
		{EventClose, StateClosed},
	} {
		_, ok := m.Fire(step.ev)
		assert.True(t, ok, "event %s", step.ev)
		assert.Equal(t, step.want, m.State())
	}
}

func TestMachineNegotiatingCanClose(t *testing.T) {
	m := NewMachine()
	m.Fire(EventNegotiate)
	from, ok := m.Fire(EventClose)
	assert.True(t, ok)
	assert.Equal(t, StateNegotiating, from)
	assert.Equal(t, StateClosed, m.State())
}

func TestMachineErrorOnlyCloses(t *testing.T) {
	m := NewMachine()
	m.Fire(EventNegotiate)
	m.Fire(EventFail)
	assert.Equal(t, StateError, m.State())

	for _, ev := range []ConnEvent{EventNegotiate, EventAttach, EventFail} {
		_, ok := m.Fire(ev)
		assert.False(t, ok, "event %s", ev)
		assert.Equal(t, StateError, m.State())
	}

	_, ok := m.Fire(EventClose)
	assert.True(t, ok)
	assert.Equal(t, StateClosed, m.State())
}

func TestMachineClosedIsTerminal(t *testing.T) {
	m := NewMachine()
	m.Fire(EventClose)
	for _, ev := range []ConnEvent{EventNegotiate, EventAttach, EventFail, EventClose} {
		_, ok := m.Fire(ev)
		assert.False(t, ok)
	}
	assert.Equal(t, StateClosed, m.State())
}

func TestIdleCannotFail(t *testing.T) {
	_, ok := Next(StateIdle, EventFail)
	assert.False(t, ok)
	_, ok = Next(StateIdle, EventAttach)
	assert.False(t, ok)
}

func TestLive(t *testing.T) {
	assert.False(t, StateIdle.Live())
	assert.True(t, StateNegotiating.Live())
	assert.True(t, StateActive.Live())
	assert.False(t, StateError.Live())
	assert.False(t, StateClosed.Live())
}
