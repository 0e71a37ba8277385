package turn

import (
	"context"
	"fmt"
	"log"

	"fleet-checkpoint/internal/fleetapi"
	"fleet-checkpoint/internal/model"
)

// Kind tells success feedback from error feedback.
type Kind string

const (
	OutcomeSuccess Kind = "success"
	OutcomeError   Kind = "error"
)

// Action is what the executor decided to do for a driver.
type Action string

const (
	ActionClockIn  Action = "clock_in"
	ActionClockOut Action = "clock_out"
	ActionReject   Action = "reject"
)

// Outcome is the result of one transition attempt.
type Outcome struct {
	Kind     Kind
	Action   Action
	Message  string
	NewState model.AvailabilityState
}

// Clocker issues the remote shift calls.
type Clocker interface {
	ClockIn(ctx context.Context, driverID string) (*fleetapi.TurnResponse, error)
	ClockOut(ctx context.Context, driverID string) (*fleetapi.TurnResponse, error)
}

// Mirror is the local roster copy updated after a confirmed transition.
type Mirror interface {
	SetState(id string, state model.AvailabilityState) bool
	RequestRefresh()
}

// Executor maps a driver's availability state to a single remote call. It holds no
// per-call state and may be used from several goroutines; callers serialize.
type Executor struct {
	clocker Clocker
	mirror  Mirror
}

// NewExecutor creates an executor. mirror may be nil, in which case Reconcile is a no-op.
func NewExecutor(clocker Clocker, mirror Mirror) *Executor {
	return &Executor{clocker: clocker, mirror: mirror}
}

// Plan returns the action for a state without calling anything.
func Plan(state model.AvailabilityState) (Action, model.AvailabilityState) {
	switch state {
	case model.StateDayOff, model.StateUnavailable:
		return ActionClockIn, model.StateAvailable
	case model.StateAvailable:
		return ActionClockOut, model.StateDayOff
	default:
		return ActionReject, state
	}
}

// Transition issues at most one remote call for d. It never returns an error; failures
// are described in the outcome.
func (e *Executor) Transition(ctx context.Context, d model.Driver) Outcome {
	action, next := Plan(d.State)

	var (
		call     func(context.Context, string) (*fleetapi.TurnResponse, error)
		verb     string
		fallback string
	)
	switch action {
	case ActionClockIn:
		call, verb, fallback = e.clocker.ClockIn, "Clock-in", "Could not record clock-in."
	case ActionClockOut:
		call, verb, fallback = e.clocker.ClockOut, "Clock-out", "Could not record clock-out."
	default:
		return Outcome{
			Kind:     OutcomeError,
			Action:   ActionReject,
			Message:  fmt.Sprintf("Cannot record shift for %s (RUN: %s, state: %s)", d.FullName(), d.NationalID, d.State),
			NewState: d.State,
		}
	}

	resp, err := call(ctx, d.ID)
	if err == nil && (resp == nil || !resp.OK) {
		err = fmt.Errorf("%s for driver %s was not confirmed", verb, d.ID)
	}
	if err != nil {
		log.Printf("%s failed for driver %s: %v", verb, d.ID, err)
		return Outcome{
			Kind:     OutcomeError,
			Action:   action,
			Message:  fleetapi.ErrorMessage(err, fallback),
			NewState: d.State,
		}
	}

	return Outcome{
		Kind:     OutcomeSuccess,
		Action:   action,
		Message:  fmt.Sprintf("%s recorded for %s (RUN: %s)", verb, d.FullName(), d.NationalID),
		NewState: next,
	}
}

// Reconcile mirrors a successful outcome into the local roster and asks for a refetch.
// Failed outcomes leave the roster untouched.
func (e *Executor) Reconcile(o Outcome, driverID string) {
	if e.mirror == nil || o.Kind != OutcomeSuccess {
		return
	}
	e.mirror.SetState(driverID, o.NewState)
	e.mirror.RequestRefresh()
}
