package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/souk/internal/bus"
)

// State represents a realtime link state.
type State string

const (
	Disconnected State = "DISCONNECTED"
	Connecting   State = "CONNECTING"
	Connected    State = "CONNECTED"
	Reconnecting State = "RECONNECTING"
	Failed       State = "FAILED"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Disconnected: {Connecting},
	Connecting:   {Connected, Reconnecting, Disconnected, Failed},
	Connected:    {Disconnected, Reconnecting},
	Reconnecting: {Connecting, Disconnected, Failed},
	Failed:       {Connecting, Disconnected},
}

// Machine tracks and enforces the state of one realtime channel.
type Machine struct {
	mu      sync.RWMutex
	channel string
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine for channel starting in Disconnected.
func NewMachine(channel string, b *bus.Bus) *Machine {
	return &Machine{
		channel: channel,
		current: Disconnected,
		bus:     b,
	}
}

// Channel returns the channel label the machine reports for.
func (m *Machine) Channel() string {
	return m.channel
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Is reports whether the current state is one of states.
func (m *Machine) Is(states ...State) bool {
	return slices.Contains(states, m.Current())
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		from := m.current
		m.mu.Unlock()
		return fmt.Errorf("%s: invalid transition from %s to %s", m.channel, from, to)
	}
	from := m.current
	m.current = to
	m.mu.Unlock()

	m.bus.Emit(bus.RealtimeStateChanged, StatusChange{
		Channel: m.channel,
		From:    from,
		To:      to,
	})
	return nil
}

// StatusChange is the payload for realtime.state_changed events.
type StatusChange struct {
	Channel string
	From    State
	To      State
}
