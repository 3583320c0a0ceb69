package orchestrator

import "github.com/pkg/errors"

// RunState is the lifecycle state of one benchmark invocation
type RunState int

const (
	Idle RunState = iota
	Launched
	Completed
	TimedOut
	ProcessError
	BinaryMissing
)

var stateNames = map[RunState]string{
	Idle:          "Idle",
	Launched:      "Launched",
	Completed:     "Completed",
	TimedOut:      "TimedOut",
	ProcessError:  "ProcessError",
	BinaryMissing: "BinaryMissing",
}

func (s RunState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Terminal reports whether no further transition can leave s
func (s RunState) Terminal() bool {
	return s == Completed || s == TimedOut || s == ProcessError || s == BinaryMissing
}

// Succeeded reports whether the invocation produced records
func (s RunState) Succeeded() bool {
	return s == Completed
}

// Event drives a RunState transition
type Event int

const (
	EventLaunch Event = iota
	EventBinaryAbsent
	EventExitOK
	EventDeadline
	EventExitFailed
	EventLaunchFailed
)

var eventNames = map[Event]string{
	EventLaunch:       "launch",
	EventBinaryAbsent: "binary-absent",
	EventExitOK:       "exit-ok",
	EventDeadline:     "deadline",
	EventExitFailed:   "exit-failed",
	EventLaunchFailed: "launch-failed",
}

func (e Event) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return "unknown"
}

// ErrInvalidTransition is returned for an event the current state does not accept
var ErrInvalidTransition = errors.New("invalid run state transition")

type transitionKey struct {
	from  RunState
	event Event
}

// transitions is the complete table; any pair not listed is invalid
var transitions = map[transitionKey]RunState{
	{Idle, EventLaunch}:           Launched,
	{Idle, EventBinaryAbsent}:     BinaryMissing,
	{Idle, EventLaunchFailed}:     ProcessError,
	{Launched, EventExitOK}:       Completed,
	{Launched, EventDeadline}:     TimedOut,
	{Launched, EventExitFailed}:   ProcessError,
	{Launched, EventBinaryAbsent}: BinaryMissing,
}

// Transition returns the state reached from `from` on `event`
func Transition(from RunState, event Event) (RunState, error) {
	to, ok := transitions[transitionKey{from, event}]
	if !ok {
		return from, errors.Wrapf(ErrInvalidTransition, "%s on %s", from, event)
	}
	return to, nil
}

// FatalForBasic reports whether the terminal state aborts the pipeline when
// it is reached by the basic run. Every non-success is fatal there; in the
// sweep every state is isolated to its configuration.
func FatalForBasic(s RunState) bool {
	return s.Terminal() && !s.Succeeded()
}
