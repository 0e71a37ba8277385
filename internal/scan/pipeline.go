package scan

import (
	"context"
	"errors"
	"fmt"

	"fleet-checkpoint/internal/model"
	"fleet-checkpoint/internal/parse"
	"fleet-checkpoint/internal/roster"
	"fleet-checkpoint/internal/turn"
)

const msgUnreadable = "Could not extract a RUN from the QR code, or it is not valid."

// Result is the outcome of handling one payload.
type Result struct {
	// Show is false when nothing should be displayed, e.g. the roster is not loaded yet.
	Show bool
	// Attempted is true once a driver was resolved and a transition was decided,
	// including rejections.
	Attempted bool
	Kind      ResultKind
	Message   string

	Extraction parse.Extraction
	Driver     *model.Driver
	Outcome    *turn.Outcome
}

// RosterView is the read side of the roster.
type RosterView interface {
	Snapshot() []model.Driver
	Loaded() bool
}

// Transitioner performs the shift transition for a resolved driver.
type Transitioner interface {
	Transition(ctx context.Context, d model.Driver) turn.Outcome
}

// Pipeline turns a decoded payload into feedback: extraction, resolution against the
// roster, then the transition. Every failure becomes an error Result.
type Pipeline struct {
	roster RosterView
	exec   Transitioner
	opts   roster.ResolveOptions
}

func NewPipeline(r RosterView, exec Transitioner, opts roster.ResolveOptions) *Pipeline {
	return &Pipeline{roster: r, exec: exec, opts: opts}
}

// Handle processes one payload. It makes at most one transition call.
func (p *Pipeline) Handle(ctx context.Context, payload string) Result {
	drivers := p.roster.Snapshot()
	if payload == "" || !p.roster.Loaded() || len(drivers) == 0 {
		return Result{Kind: ResultNone}
	}

	ex, ok := parse.Extract(payload)
	if !ok {
		return failure(ex, msgUnreadable)
	}

	d, err := roster.Resolve(ex, drivers, p.opts)
	switch {
	case err == nil:
	case errors.Is(err, roster.ErrNotFound) && ex.IsNationalID():
		return failure(ex, fmt.Sprintf("Driver with RUN %s not found.", ex.Value))
	case errors.Is(err, roster.ErrAmbiguous):
		return failure(ex, "More than one driver has that name; scan the identity card instead.")
	default:
		return failure(ex, msgUnreadable)
	}

	return p.transition(ctx, ex, d)
}

// HandleDriver runs the transition for a driver picked directly from the roster.
func (p *Pipeline) HandleDriver(ctx context.Context, d model.Driver) Result {
	return p.transition(ctx, parse.Extraction{Kind: parse.KindBareID, Value: d.NationalID}, d)
}

func (p *Pipeline) transition(ctx context.Context, ex parse.Extraction, d model.Driver) Result {
	o := p.exec.Transition(ctx, d)
	kind := ResultError
	if o.Kind == turn.OutcomeSuccess {
		kind = ResultSuccess
	}
	return Result{
		Show:       true,
		Attempted:  true,
		Kind:       kind,
		Message:    o.Message,
		Extraction: ex,
		Driver:     &d,
		Outcome:    &o,
	}
}

func failure(ex parse.Extraction, msg string) Result {
	return Result{Show: true, Kind: ResultError, Message: msg, Extraction: ex}
}
