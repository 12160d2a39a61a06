package realtime

import (
	"errors"
	"fmt"
	"time"
)

// State is the lifecycle state of the realtime connection.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateError        State = "error"
)

// States lists every state, in declaration order.
var States = []State{StateDisconnected, StateConnecting, StateConnected, StateReconnecting, StateError}

var ErrInvalidTransition = errors.New("invalid connection state transition")

// transitions holds the allowed moves. Disconnect bypasses the table and is
// valid from any state.
var transitions = map[State][]State{
	StateDisconnected: {StateConnecting, StateReconnecting},
	StateConnecting:   {StateConnected, StateError},
	StateConnected:    {StateDisconnected},
	StateReconnecting: {StateConnected, StateError},
	StateError:        {StateConnecting, StateReconnecting},
}

// CanTransition reports whether s may move to next.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition is published as the connection-state event.
type Transition struct {
	From    State     `json:"from"`
	To      State     `json:"to"`
	Attempt int       `json:"attempt,omitempty"`
	At      time.Time `json:"at"`
}

func stateNames() []string {
	names := make([]string, len(States))
	for i, s := range States {
		names[i] = string(s)
	}
	return names
}

func invalidTransition(from, to State) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
