package scan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-checkpoint/internal/model"
)

func frameEv(p string) Event { return Event{Type: EventFrame, Payload: p} }

func resolvedEv(r Result) Event { return Event{Type: EventResolved, Result: r} }

func TestNext_IdleNewCodeLocksAndResolves(t *testing.T) {
	s, effects := Next(State{Phase: PhaseIdle}, frameEv("A"), DefaultTiming)

	assert.Equal(t, State{Phase: PhaseLocked, Payload: "A", InFlight: true, Visible: true}, s)
	require.Len(t, effects, 1)
	assert.Equal(t, Effect{Kind: EffectResolve, Payload: "A"}, effects[0])
	assert.True(t, s.Locked())
}

func TestNext_IdleEmptyFrameIsNoop(t *testing.T) {
	s, effects := Next(State{Phase: PhaseIdle}, frameEv(""), DefaultTiming)
	assert.Equal(t, State{Phase: PhaseIdle}, s)
	assert.Empty(t, effects)
}

func TestNext_FramesWhileLockedNeverResolve(t *testing.T) {
	s, _ := Next(State{Phase: PhaseIdle}, frameEv("A"), DefaultTiming)

	for _, p := range []string{"A", "B", "", "A"} {
		var effects []Effect
		s, effects = Next(s, frameEv(p), DefaultTiming)
		assert.Empty(t, effects, "frame %q", p)
		assert.Equal(t, PhaseLocked, s.Phase)
		assert.Equal(t, "A", s.Payload)
	}
}

func TestNext_ResolvedWithFeedback(t *testing.T) {
	locked := State{Phase: PhaseLocked, Payload: "A", InFlight: true, Visible: true}

	t.Run("resolution failure uses short timer", func(t *testing.T) {
		s, effects := Next(locked, resolvedEv(Result{Show: true, Kind: ResultError, Message: "nope"}), DefaultTiming)
		assert.Equal(t, PhaseAwaitingClear, s.Phase)
		assert.Equal(t, Feedback{Kind: ResultError, Message: "nope"}, s.Feedback)
		assert.Equal(t, []Effect{{Kind: EffectStartFeedback, After: 2500 * time.Millisecond}}, effects)
	})

	t.Run("transition attempt uses long timer", func(t *testing.T) {
		s, effects := Next(locked, resolvedEv(Result{Show: true, Attempted: true, Kind: ResultSuccess}), DefaultTiming)
		assert.Equal(t, PhaseAwaitingClear, s.Phase)
		assert.Equal(t, []Effect{{Kind: EffectStartFeedback, After: 3500 * time.Millisecond}}, effects)
	})
}

func TestNext_ResolvedWithoutFeedbackSettles(t *testing.T) {
	locked := State{Phase: PhaseLocked, Payload: "A", InFlight: true, Visible: true}

	s, effects := Next(locked, resolvedEv(Result{}), DefaultTiming)
	assert.Equal(t, PhaseLocked, s.Phase)
	assert.False(t, s.InFlight)
	assert.Empty(t, effects, "code still visible keeps the lock")

	s, effects = Next(s, frameEv(""), DefaultTiming)
	assert.True(t, s.Settling)
	assert.Equal(t, []Effect{{Kind: EffectStartSettle, After: 300 * time.Millisecond}}, effects)

	s, effects = Next(s, frameEv(""), DefaultTiming)
	assert.Empty(t, effects, "settle is started once")

	s, effects = Next(s, frameEv("A"), DefaultTiming)
	assert.False(t, s.Settling)
	assert.Equal(t, []Effect{{Kind: EffectStopSettle}}, effects)

	s, _ = Next(s, frameEv(""), DefaultTiming)
	s, effects = Next(s, Event{Type: EventSettleExpired}, DefaultTiming)
	assert.Equal(t, State{Phase: PhaseIdle}, s)
	assert.Empty(t, effects)
}

func TestNext_ResolvedAfterCodeLeftStartsSettle(t *testing.T) {
	s := State{Phase: PhaseLocked, Payload: "A", InFlight: true, Visible: false}
	s, effects := Next(s, resolvedEv(Result{}), DefaultTiming)
	assert.True(t, s.Settling)
	assert.Equal(t, []Effect{{Kind: EffectStartSettle, After: 300 * time.Millisecond}}, effects)
}

func TestNext_SettleIgnoredWhileInFlight(t *testing.T) {
	s := State{Phase: PhaseLocked, Payload: "A", InFlight: true}
	s, effects := Next(s, frameEv(""), DefaultTiming)
	assert.False(t, s.Settling)
	assert.Empty(t, effects)

	next, _ := Next(s, Event{Type: EventSettleExpired}, DefaultTiming)
	assert.Equal(t, s, next)
}

func TestNext_FeedbackExpiryReturnsToIdleRegardlessOfFrame(t *testing.T) {
	s := State{Phase: PhaseAwaitingClear, Payload: "A", Visible: true, Feedback: Feedback{Kind: ResultSuccess, Message: "ok"}}

	s, effects := Next(s, frameEv("A"), DefaultTiming)
	assert.Equal(t, PhaseAwaitingClear, s.Phase)
	assert.Empty(t, effects)

	s, _ = Next(s, Event{Type: EventFeedbackExpired}, DefaultTiming)
	assert.Equal(t, State{Phase: PhaseIdle}, s)
	assert.False(t, s.Locked())
	assert.Empty(t, s.Payload)
}

func TestNext_StrayEventsIgnored(t *testing.T) {
	idle := State{Phase: PhaseIdle}
	for _, ev := range []Event{
		{Type: EventFeedbackExpired},
		{Type: EventSettleExpired},
		resolvedEv(Result{Show: true}),
	} {
		s, effects := Next(idle, ev, DefaultTiming)
		assert.Equal(t, idle, s)
		assert.Empty(t, effects)
	}

	awaiting := State{Phase: PhaseAwaitingClear, Payload: "A"}
	s, effects := Next(awaiting, resolvedEv(Result{Show: true}), DefaultTiming)
	assert.Equal(t, awaiting, s)
	assert.Empty(t, effects)
}

func TestNext_ManualLocksLikeAScan(t *testing.T) {
	d := &model.Driver{ID: "7"}
	manual := Event{Type: EventManual, Payload: "manual:7", Driver: d}

	s, effects := Next(State{Phase: PhaseIdle}, manual, DefaultTiming)
	assert.Equal(t, State{Phase: PhaseLocked, Payload: "manual:7", InFlight: true}, s)
	require.Len(t, effects, 1)
	assert.Equal(t, Effect{Kind: EffectResolve, Payload: "manual:7", Driver: d}, effects[0])

	// A code in view while the manual transition runs does not start another one.
	s, effects = Next(s, frameEv("A"), DefaultTiming)
	assert.Empty(t, effects)
	assert.True(t, s.InFlight)

	for _, locked := range []State{s, {Phase: PhaseAwaitingClear}} {
		next, effects := Next(locked, manual, DefaultTiming)
		assert.Equal(t, locked, next)
		assert.Empty(t, effects)
	}
}
