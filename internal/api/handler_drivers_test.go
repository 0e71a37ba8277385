package api

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-checkpoint/internal/fleetapi"
	"fleet-checkpoint/internal/frame"
	"fleet-checkpoint/internal/model"
	"fleet-checkpoint/internal/roster"
	"fleet-checkpoint/internal/scan"
	"fleet-checkpoint/internal/turn"
)

type staticFetcher []model.Driver

func (f staticFetcher) FetchRoster(ctx context.Context) ([]model.Driver, error) {
	return append([]model.Driver(nil), f...), nil
}

// gatedClocker blocks every call until gate is closed.
type gatedClocker struct {
	gate chan struct{}

	mu  sync.Mutex
	in  int
	out int
}

func (g *gatedClocker) ClockIn(ctx context.Context, id string) (*fleetapi.TurnResponse, error) {
	g.mu.Lock()
	g.in++
	g.mu.Unlock()
	<-g.gate
	return &fleetapi.TurnResponse{OK: true, Status: http.StatusOK}, nil
}

func (g *gatedClocker) ClockOut(ctx context.Context, id string) (*fleetapi.TurnResponse, error) {
	g.mu.Lock()
	g.out++
	g.mu.Unlock()
	<-g.gate
	return &fleetapi.TurnResponse{OK: true, Status: http.StatusOK}, nil
}

func (g *gatedClocker) calls() (int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.in, g.out
}

func TestToggleTurn_WaitsForScannerLock(t *testing.T) {
	drivers := roster.New(staticFetcher{
		{ID: "1", NationalID: "12345678-9", FirstName: "Juan", LastName: "Pérez", State: model.StateDayOff},
	})
	require.NoError(t, drivers.Refresh(context.Background()))

	clocker := &gatedClocker{gate: make(chan struct{})}
	executor := turn.NewExecutor(clocker, drivers)
	controller := scan.NewController(
		scan.NewPipeline(drivers, executor, roster.ResolveOptions{}),
		executor,
		scan.Timing{ResolveFeedback: 20 * time.Millisecond, TransitionFeedback: 20 * time.Millisecond, Settle: 10 * time.Millisecond},
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		controller.Run(ctx, make(chan frame.Event))
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	r := newTestRouter(Deps{Roster: drivers, Scanner: controller})

	require.NoError(t, controller.Submit("12345678-9"))
	require.Eventually(t, func() bool { in, _ := clocker.calls(); return in == 1 }, time.Second, 2*time.Millisecond)

	w := serve(r, "POST", "/api/drivers/1/turn", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	close(clocker.gate)
	require.Eventually(t, func() bool { return controller.Session().Phase == scan.PhaseIdle }, time.Second, 2*time.Millisecond)

	in, out := clocker.calls()
	assert.Equal(t, 1, in, "no second clock-in while the scan was in flight")
	assert.Equal(t, 0, out)

	// Once the scanner is free the toggle goes through and clocks the driver out.
	w = serve(r, "POST", "/api/drivers/1/turn", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"action":"clock_out"`)
	_, out = clocker.calls()
	assert.Equal(t, 1, out)
}
