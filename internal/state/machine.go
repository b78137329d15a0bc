package state

import (
	"fmt"
	"log/slog"
)

// State is the current phase of the voice typing pipeline.
type State int

const (
	Idle State = iota
	Recording
	Transforming
	Transcribing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Transforming:
		return "transforming"
	case Transcribing:
		return "transcribing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event drives transitions. Events carry no payload.
type Event int

const (
	StartRecording Event = iota
	StopRecording
	TransformStart
	TransformStop
	TranscribeStart
	TranscribeStop
)

func (e Event) String() string {
	switch e {
	case StartRecording:
		return "start_recording"
	case StopRecording:
		return "stop_recording"
	case TransformStart:
		return "transform_start"
	case TransformStop:
		return "transform_stop"
	case TranscribeStart:
		return "transcribe_start"
	case TranscribeStop:
		return "transcribe_stop"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// TransitionError reports an illegal (state, event) pair. It signals a bug
// in whoever drives the machine, not a recoverable runtime condition.
type TransitionError struct {
	State State
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("no transition from %s on %s", e.State, e.Event)
}

// Listener observes state changes. Listeners run synchronously inside
// Transition, in registration order, and must not mutate the listener set.
type Listener func(old, new State)

// Machine is the processing state machine. It assumes single-goroutine
// access and performs no internal locking; the orchestrator serializes
// all calls.
type Machine struct {
	state     State
	listeners []listenerEntry
	nextID    int
	logger    *slog.Logger
}

type listenerEntry struct {
	id int
	fn Listener
}

func NewMachine(logger *slog.Logger) *Machine {
	return &Machine{
		state:  Idle,
		logger: logger.With(slog.String("component", "state-machine")),
	}
}

// AddListener registers a callback and returns an id for removal.
func (m *Machine) AddListener(fn Listener) int {
	m.nextID++
	m.listeners = append(m.listeners, listenerEntry{id: m.nextID, fn: fn})
	return m.nextID
}

func (m *Machine) RemoveListener(id int) {
	for i, e := range m.listeners {
		if e.id == id {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			return
		}
	}
}

// Transition applies event to the current state. Listeners are notified
// only when the state actually changed.
func (m *Machine) Transition(event Event) (State, error) {
	old := m.state
	switch {
	case old == Idle && event == StartRecording:
		m.state = Recording
	case old == Recording && event == StopRecording:
		m.state = Idle
	case old == Idle && event == TransformStart:
		m.state = Transforming
	case old == Transforming && event == TransformStop:
		m.state = Idle
	case old == Idle && event == TranscribeStart:
		m.state = Transcribing
	case old == Transcribing && event == TranscribeStop:
		m.state = Idle
	case old == Idle && event == StopRecording:
		// no-op: stop without a recording in progress
		m.logger.Warn("stop requested while idle")
	default:
		return old, &TransitionError{State: old, Event: event}
	}
	if old != m.state {
		for _, e := range m.listeners {
			e.fn(old, m.state)
		}
	}
	return m.state, nil
}

func (m *Machine) Current() State { return m.state }

func (m *Machine) IsRecording() bool { return m.state == Recording }
