package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/chatty/internal/bus"
)

// State represents an account's connectivity.
type State string

const (
	// Unknown is transient while the backend enumerates devices or sessions.
	Unknown      State = "UNKNOWN"
	Disconnected State = "DISCONNECTED"
	Connecting   State = "CONNECTING"
	Connected    State = "CONNECTED"
)

// validTransitions defines allowed state transitions. Disconnected is
// reachable from everywhere through Force.
var validTransitions = map[State][]State{
	Unknown:      {Disconnected, Connecting, Connected},
	Disconnected: {Unknown, Connecting},
	Connecting:   {Unknown, Disconnected, Connected},
	Connected:    {Unknown, Disconnected},
}

// Machine tracks and enforces account connectivity transitions.
type Machine struct {
	mu      sync.RWMutex
	account string
	current State
	bus     *bus.Bus
}

// NewMachine creates a machine for account starting in Disconnected.
func NewMachine(account string, b *bus.Bus) *Machine {
	return &Machine{
		account: account,
		current: Disconnected,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("account %s: invalid transition from %s to %s", m.account, m.current, to)
	}
	m.set(to)
	return nil
}

// Force moves to state without validation. Forcing the current state is a
// no-op and publishes nothing.
func (m *Machine) Force(to State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != to {
		m.set(to)
	}
}

func (m *Machine) set(to State) {
	from := m.current
	m.current = to
	m.bus.Publish(bus.Event{
		Kind:      bus.KindAccountStatusChanged,
		Timestamp: time.Now(),
		Payload: StatusChange{
			Account: m.account,
			From:    from,
			To:      to,
		},
	})
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	Account string
	From    State
	To      State
}
