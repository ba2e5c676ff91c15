package session

import (
	"fmt"
	"slices"
	"time"

	"github.com/ltakahashi/campuschat/internal/bus"
)

// Phase is the lifecycle phase of a session.
type Phase string

const (
	// Idle: no connection and none wanted. Terminal until start().
	Idle Phase = "IDLE"
	// Connecting: a connection attempt is in flight.
	Connecting Phase = "CONNECTING"
	// Connected: the session is live and frames flow.
	Connected Phase = "CONNECTED"
	// Disconnected: the connection dropped; a reconnect is scheduled.
	Disconnected Phase = "DISCONNECTED"
	// Failed: retries are exhausted or a precondition cannot be met.
	// Terminal until an explicit restart.
	Failed Phase = "FAILED"
)

// validTransitions defines allowed phase transitions.
var validTransitions = map[Phase][]Phase{
	Idle:         {Connecting, Failed},
	Connecting:   {Connected, Disconnected, Failed, Idle},
	Connected:    {Disconnected, Idle},
	Disconnected: {Connecting, Failed, Idle},
	Failed:       {Connecting, Idle, Failed},
}

// Status is the observable session state: the phase plus the attempt
// counter (Connecting/Disconnected) and failure reason (Disconnected/
// Failed) that belong to it.
type Status struct {
	Phase   Phase
	Attempt int
	Reason  string
}

// StatusChange is the payload of a session.status_changed event.
type StatusChange struct {
	From Status
	To   Status
}

// transition validates and applies a status change, publishing it on
// the bus. Only the session loop calls this, holding s.mu for the
// write so concurrent Status() readers stay consistent.
func (s *Session) transition(to Status) error {
	s.mu.Lock()
	from := s.status
	if !slices.Contains(validTransitions[from.Phase], to.Phase) {
		s.mu.Unlock()
		return fmt.Errorf("invalid transition from %s to %s", from.Phase, to.Phase)
	}
	s.status = to
	s.mu.Unlock()

	s.bus.Publish(bus.Event{
		Kind:      bus.KindStatusChanged,
		Timestamp: time.Now(),
		Payload:   StatusChange{From: from, To: to},
	})
	return nil
}

// Status returns the current observable state.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}
