package domain

import "fmt"

type ConnState int

const (
	StateIdle ConnState = iota
	StateNegotiating
	StateActive
	StateClosed
	StateError
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNegotiating:
		return "negotiating"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Live reports whether a transport in this state still holds resources.
func (s ConnState) Live() bool {
	return s == StateNegotiating || s == StateActive
}

type ConnEvent int

const (
	EventNegotiate ConnEvent = iota
	EventAttach
	EventFail
	EventClose
)

func (e ConnEvent) String() string {
	switch e {
	case EventNegotiate:
		return "negotiate"
	case EventAttach:
		return "attach"
	case EventFail:
		return "fail"
	case EventClose:
		return "close"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// transitions is the fixed table every transport follows.
// Anything missing here is an illegal event for that state.
var transitions = map[ConnState]map[ConnEvent]ConnState{
	StateIdle: {
		EventNegotiate: StateNegotiating,
		EventClose:     StateClosed,
	},
	StateNegotiating: {
		EventAttach: StateActive,
		EventFail:   StateError,
		EventClose:  StateClosed,
	},
	StateActive: {
		EventAttach: StateActive,
		EventFail:   StateError,
		EventClose:  StateClosed,
	},
	StateError: {
		EventClose: StateClosed,
	},
}

// Next looks up the transition for ev in state s.
func Next(s ConnState, ev ConnEvent) (ConnState, bool) {
	to, ok := transitions[s][ev]
	return to, ok
}

// Machine is a single transport's state. Not safe for concurrent use;
// the owner serializes access.
type Machine struct {
	state ConnState
}

func NewMachine() *Machine { return &Machine{state: StateIdle} }

func (m *Machine) State() ConnState { return m.state }

// Fire applies ev. It returns the previous state and whether the event was legal.
// Illegal events leave the state untouched.
func (m *Machine) Fire(ev ConnEvent) (from ConnState, ok bool) {
	from = m.state
	to, ok := Next(from, ev)
	if !ok {
		return from, false
	}
	m.state = to
	return from, true
}
