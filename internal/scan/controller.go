package scan

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"fleet-checkpoint/config"
	"fleet-checkpoint/internal/frame"
	"fleet-checkpoint/internal/model"
	"fleet-checkpoint/internal/turn"
)

var (
	// ErrBusy is returned by Submit and Manual while the scanner is locked.
	ErrBusy = errors.New("scanner is busy")
	// ErrStopped is returned by Manual once Run has returned.
	ErrStopped = errors.New("scanner is stopped")
)

// Handler resolves a payload, or a driver picked by an operator, into feedback.
type Handler interface {
	Handle(ctx context.Context, payload string) Result
	HandleDriver(ctx context.Context, d model.Driver) Result
}

// Reconciler mirrors a successful transition into the local roster.
type Reconciler interface {
	Reconcile(o turn.Outcome, driverID string)
}

// Report describes one finished resolution. Reports are delivered on the controller
// goroutine before the session changes; listeners must not block.
type Report struct {
	Payload string
	Result  Result
	At      time.Time
}

// Session is the externally visible scanner state.
type Session struct {
	Phase         Phase      `json:"phase"`
	Locked        bool       `json:"locked"`
	LastPayload   string     `json:"last_payload"`
	ResultMessage string     `json:"result_message"`
	ResultKind    ResultKind `json:"result_kind"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func sessionOf(s State, at time.Time) Session {
	phase := s.Phase
	if phase == "" {
		phase = PhaseIdle
	}
	kind := s.Feedback.Kind
	if kind == "" {
		kind = ResultNone
	}
	return Session{
		Phase:         phase,
		Locked:        s.Locked(),
		LastPayload:   s.Payload,
		ResultMessage: s.Feedback.Message,
		ResultKind:    kind,
		UpdatedAt:     at,
	}
}

type resolution struct {
	payload string
	result  Result
}

type manualRequest struct {
	driver model.Driver
	reply  chan manualReply
}

type manualReply struct {
	result Result
	err    error
}

// Controller drives the scan state machine from frame events and timers. All state
// is owned by the Run goroutine; resolutions run on their own goroutine and are not
// cancelled when Run returns.
type Controller struct {
	handler    Handler
	reconciler Reconciler
	timing     Timing

	submit chan string
	manual chan manualRequest

	stopOnce sync.Once
	stopped  chan struct{}

	mu        sync.RWMutex
	session   Session
	subs      map[chan Session]struct{}
	listeners []func(Report)
}

// NewController creates a controller. reconciler may be nil.
func NewController(h Handler, reconciler Reconciler, t Timing) *Controller {
	return &Controller{
		handler:    h,
		reconciler: reconciler,
		timing:     t,
		submit:     make(chan string, 1),
		manual:     make(chan manualRequest, 1),
		stopped:    make(chan struct{}),
		session:    sessionOf(State{}, time.Now()),
		subs:       make(map[chan Session]struct{}),
	}
}

// TimingFromConfig converts the scanner configuration into timer durations.
func TimingFromConfig(cfg config.ScannerConfig) Timing {
	return Timing{
		ResolveFeedback:    time.Duration(cfg.ResolveFeedbackMillis) * time.Millisecond,
		TransitionFeedback: time.Duration(cfg.TransitionFeedbackMillis) * time.Millisecond,
		Settle:             time.Duration(cfg.SettleMillis) * time.Millisecond,
	}
}

// OnReport registers fn for every finished resolution. Call before Run.
func (c *Controller) OnReport(fn func(Report)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Session returns a snapshot of the scanner state.
func (c *Controller) Session() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Subscribe returns a channel receiving every session change. Slow subscribers miss
// updates. Call the returned function to unsubscribe.
func (c *Controller) Subscribe() (<-chan Session, func()) {
	ch := make(chan Session, 8)
	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, ch)
			c.mu.Unlock()
		})
	}
}

// Submit injects a decoded payload as if it had been in view for one frame. It fails
// with ErrBusy while the scanner is locked or another submission is pending.
func (c *Controller) Submit(payload string) error {
	if payload == "" {
		return errors.New("empty payload")
	}
	if c.Session().Locked {
		return ErrBusy
	}
	select {
	case c.submit <- payload:
		return nil
	default:
		return ErrBusy
	}
}

// Manual clocks d in or out the way a scan of its identity card would, and waits for
// the outcome. The scanner lock applies: Manual fails with ErrBusy while a code is
// being handled, so it never overlaps a scan-triggered transition.
func (c *Controller) Manual(ctx context.Context, d model.Driver) (Result, error) {
	if c.Session().Locked {
		return Result{}, ErrBusy
	}
	req := manualRequest{driver: d, reply: make(chan manualReply, 1)}
	select {
	case c.manual <- req:
	default:
		return Result{}, ErrBusy
	}

	select {
	case rep := <-req.reply:
		return rep.result, rep.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-c.stopped:
		return Result{}, ErrStopped
	}
}

// Run consumes frame events until ctx is cancelled. If frames closes, the camera is
// gone but submitted payloads are still processed.
func (c *Controller) Run(ctx context.Context, frames <-chan frame.Event) error {
	var (
		state     = State{Phase: PhaseIdle}
		results   = make(chan resolution)
		feedback  *time.Timer
		settle    *time.Timer
		feedbackC <-chan time.Time
		settleC   <-chan time.Time

		// waiting receives the outcome of the in-flight manual transition.
		waiting chan<- manualReply
	)
	defer c.stopOnce.Do(func() { close(c.stopped) })
	stop := func(t *time.Timer) {
		if t != nil {
			t.Stop()
		}
	}
	defer func() {
		stop(feedback)
		stop(settle)
	}()

	apply := func(ev Event) {
		next, effects := Next(state, ev, c.timing)
		for _, eff := range effects {
			switch eff.Kind {
			case EffectResolve:
				go c.resolve(ctx, eff, results)
			case EffectStartFeedback:
				stop(feedback)
				feedback = time.NewTimer(eff.After)
				feedbackC = feedback.C
			case EffectStartSettle:
				stop(settle)
				settle = time.NewTimer(eff.After)
				settleC = settle.C
			case EffectStopSettle:
				stop(settle)
				settleC = nil
			}
		}
		if next.Phase == PhaseIdle && state.Phase != PhaseIdle {
			stop(feedback)
			stop(settle)
			feedbackC, settleC = nil, nil
		}
		changed := next != state
		state = next
		if changed {
			c.publish(state)
		}
	}

	// Feedback expiry wins over a frame that is ready at the same time.
	expireFirst := func() {
		select {
		case <-feedbackC:
			feedbackC = nil
			apply(Event{Type: EventFeedbackExpired})
		default:
		}
	}

	log.Println("Scan controller started.")
	for {
		select {
		case <-ctx.Done():
			log.Println("Scan controller shutting down.")
			return nil

		case <-feedbackC:
			feedbackC = nil
			apply(Event{Type: EventFeedbackExpired})

		case <-settleC:
			settleC = nil
			apply(Event{Type: EventSettleExpired})

		case r := <-results:
			if ctx.Err() != nil {
				return nil
			}
			c.finish(r)
			if waiting != nil {
				waiting <- manualReply{result: r.result}
				waiting = nil
			}
			apply(Event{Type: EventResolved, Result: r.result})

		case ev, ok := <-frames:
			if !ok {
				log.Println("Frame stream closed; scanner accepts submitted payloads only.")
				frames = nil
				continue
			}
			expireFirst()
			apply(Event{Type: EventFrame, Payload: ev.Payload})

		case payload := <-c.submit:
			expireFirst()
			apply(Event{Type: EventFrame, Payload: payload})
			apply(Event{Type: EventFrame})

		case req := <-c.manual:
			expireFirst()
			if state.Locked() {
				req.reply <- manualReply{err: ErrBusy}
				continue
			}
			waiting = req.reply
			d := req.driver
			apply(Event{Type: EventManual, Payload: "manual:" + d.ID, Driver: &d})
		}
	}
}

// resolve runs the handler detached from ctx so an in-flight remote call completes
// even after teardown; its result is then dropped.
func (c *Controller) resolve(ctx context.Context, eff Effect, results chan<- resolution) {
	detached := context.WithoutCancel(ctx)
	var r Result
	if eff.Driver != nil {
		r = c.handler.HandleDriver(detached, *eff.Driver)
	} else {
		r = c.handler.Handle(detached, eff.Payload)
	}
	select {
	case results <- resolution{payload: eff.Payload, result: r}:
	case <-ctx.Done():
		log.Printf("Discarding scan result for %q after shutdown", eff.Payload)
	}
}

func (c *Controller) finish(r resolution) {
	res := r.result
	if c.reconciler != nil && res.Outcome != nil && res.Driver != nil {
		c.reconciler.Reconcile(*res.Outcome, res.Driver.ID)
	}
	if !res.Show {
		return
	}

	c.mu.RLock()
	listeners := c.listeners
	c.mu.RUnlock()
	report := Report{Payload: r.payload, Result: res, At: time.Now()}
	for _, fn := range listeners {
		fn(report)
	}
}

func (c *Controller) publish(s State) {
	session := sessionOf(s, time.Now())

	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = session
	for ch := range c.subs {
		select {
		case ch <- session:
		default:
		}
	}
}
