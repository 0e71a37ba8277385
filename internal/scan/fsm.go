package scan

import (
	"time"

	"fleet-checkpoint/internal/model"
)

// Phase is the scanner's top-level state.
type Phase string

const (
	// PhaseIdle: no code in view, ready for a new one.
	PhaseIdle Phase = "idle"
	// PhaseLocked: a code was seen; its resolution is in flight, or finished without
	// feedback and the code is still in view.
	PhaseLocked Phase = "locked"
	// PhaseAwaitingClear: feedback is displayed until its timer expires.
	PhaseAwaitingClear Phase = "awaiting_clear"
)

// ResultKind classifies the feedback shown to the operator.
type ResultKind string

const (
	ResultNone    ResultKind = "none"
	ResultSuccess ResultKind = "success"
	ResultError   ResultKind = "error"
)

// Feedback is the banner shown after a resolution.
type Feedback struct {
	Kind    ResultKind
	Message string
}

// State is the complete scanner state. The zero value is Idle.
type State struct {
	Phase    Phase
	Payload  string
	InFlight bool
	Visible  bool
	Settling bool
	Feedback Feedback
}

// Locked reports whether new codes are currently ignored.
func (s State) Locked() bool {
	return s.Phase == PhaseLocked || s.Phase == PhaseAwaitingClear
}

// EventType names the inputs of the state machine.
type EventType int

const (
	EventFrame EventType = iota
	EventResolved
	EventFeedbackExpired
	EventSettleExpired
	// EventManual is an operator-initiated transition for a driver picked by ID.
	EventManual
)

// Event is one input to Next. Payload is set for EventFrame (empty when nothing was
// decoded) and EventManual, Result for EventResolved, Driver for EventManual.
type Event struct {
	Type    EventType
	Payload string
	Result  Result
	Driver  *model.Driver
}

// Timing holds the scanner's timer durations.
type Timing struct {
	// ResolveFeedback is shown for resolution failures: unreadable code, unknown driver.
	ResolveFeedback time.Duration
	// TransitionFeedback is shown after a transition attempt, successful or not.
	TransitionFeedback time.Duration
	// Settle is how long a code must stay out of view before the lock is released.
	Settle time.Duration
}

// DefaultTiming matches the operator-facing defaults.
var DefaultTiming = Timing{
	ResolveFeedback:    2500 * time.Millisecond,
	TransitionFeedback: 3500 * time.Millisecond,
	Settle:             300 * time.Millisecond,
}

// EffectKind names the side effects requested by Next.
type EffectKind int

const (
	EffectResolve EffectKind = iota
	EffectStartFeedback
	EffectStartSettle
	EffectStopSettle
)

// Effect is a side effect the caller must carry out after a transition. A resolve
// effect with a Driver skips extraction and resolution.
type Effect struct {
	Kind    EffectKind
	Payload string
	Driver  *model.Driver
	After   time.Duration
}

// Next computes the state following ev. It is pure: timers and resolution are
// requested as effects and performed by the caller.
func Next(s State, ev Event, t Timing) (State, []Effect) {
	switch ev.Type {
	case EventFrame:
		return onFrame(s, ev.Payload, t)
	case EventResolved:
		return onResolved(s, ev.Result, t)
	case EventManual:
		if s.Locked() || ev.Driver == nil {
			return s, nil
		}
		return State{Phase: PhaseLocked, Payload: ev.Payload, InFlight: true},
			[]Effect{{Kind: EffectResolve, Payload: ev.Payload, Driver: ev.Driver}}
	case EventFeedbackExpired:
		if s.Phase != PhaseAwaitingClear {
			return s, nil
		}
		return State{Phase: PhaseIdle}, nil
	case EventSettleExpired:
		if s.Phase != PhaseLocked || !s.Settling || s.InFlight {
			return s, nil
		}
		return State{Phase: PhaseIdle}, nil
	}
	return s, nil
}

func onFrame(s State, payload string, t Timing) (State, []Effect) {
	visible := payload != ""

	switch s.Phase {
	case PhaseIdle, "":
		if !visible {
			return s, nil
		}
		return State{Phase: PhaseLocked, Payload: payload, InFlight: true, Visible: true},
			[]Effect{{Kind: EffectResolve, Payload: payload}}

	case PhaseLocked:
		s.Visible = visible
		if s.InFlight {
			return s, nil
		}
		switch {
		case !visible && !s.Settling:
			s.Settling = true
			return s, []Effect{{Kind: EffectStartSettle, After: t.Settle}}
		case visible && s.Settling:
			s.Settling = false
			return s, []Effect{{Kind: EffectStopSettle}}
		}
		return s, nil

	case PhaseAwaitingClear:
		s.Visible = visible
		return s, nil
	}
	return s, nil
}

func onResolved(s State, r Result, t Timing) (State, []Effect) {
	if s.Phase != PhaseLocked || !s.InFlight {
		return s, nil
	}
	s.InFlight = false

	if !r.Show {
		if s.Visible {
			return s, nil
		}
		s.Settling = true
		return s, []Effect{{Kind: EffectStartSettle, After: t.Settle}}
	}

	d := t.ResolveFeedback
	if r.Attempted {
		d = t.TransitionFeedback
	}
	s.Phase = PhaseAwaitingClear
	s.Settling = false
	s.Feedback = Feedback{Kind: r.Kind, Message: r.Message}
	return s, []Effect{{Kind: EffectStartFeedback, After: d}}
}
