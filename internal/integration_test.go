package internal

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-checkpoint/config"
	"fleet-checkpoint/internal/db"
	"fleet-checkpoint/internal/fleetapi"
	"fleet-checkpoint/internal/frame"
	"fleet-checkpoint/internal/journal"
	"fleet-checkpoint/internal/model"
	"fleet-checkpoint/internal/notification"
	"fleet-checkpoint/internal/roster"
	"fleet-checkpoint/internal/scan"
	"fleet-checkpoint/internal/store"
	"fleet-checkpoint/internal/turn"
)

type capturedEvents struct {
	mu     sync.Mutex
	events []notification.ClockEvent
}

func (c *capturedEvents) Dispatch(ev notification.ClockEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return true
}

func (c *capturedEvents) snapshot() []notification.ClockEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]notification.ClockEvent(nil), c.events...)
}

// TestClockInLifecycle drives a held identity card through the scanner and checks the
// remote call, the roster mirror and the journal row.
func TestClockInLifecycle(t *testing.T) {
	// --- Test Setup ---

	gormDB, err := db.Init(&config.DatabaseConfig{DSN: filepath.Join(t.TempDir(), "checkpoint.db")})
	require.NoError(t, err)
	sqlDB, _ := gormDB.DB()
	defer sqlDB.Close()
	appStore := store.NewGormStore(gormDB)

	var clockIns, clockOuts int32
	fleet := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/conductores/":
			state := "dia_libre"
			if atomic.LoadInt32(&clockIns) > atomic.LoadInt32(&clockOuts) {
				state = "disponible"
			}
			fmt.Fprintf(w, `[{"id": 7, "run": "12345678-9", "nombre": "Juan", "apellido": "Pérez", "estado_disponibilidad": %q}]`, state)
		case "/api/conductores/7/iniciar-turno/":
			atomic.AddInt32(&clockIns, 1)
			fmt.Fprint(w, `{"status": "ok"}`)
		case "/api/conductores/7/finalizar-turno/":
			atomic.AddInt32(&clockOuts, 1)
			fmt.Fprint(w, `{"status": "ok"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer fleet.Close()

	client, err := fleetapi.NewClient(config.APIConfig{BaseURL: fleet.URL + "/api", Timeout: 5 * time.Second, AllowInsecure: true})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	drivers := roster.New(client)
	require.NoError(t, drivers.Refresh(ctx))
	go drivers.Run(ctx, time.Hour)

	executor := turn.NewExecutor(client, drivers)
	pipeline := scan.NewPipeline(drivers, executor, roster.ResolveOptions{AllowNameMatch: true})
	controller := scan.NewController(pipeline, executor, scan.Timing{
		ResolveFeedback:    40 * time.Millisecond,
		TransitionFeedback: 60 * time.Millisecond,
		Settle:             20 * time.Millisecond,
	})

	notified := &capturedEvents{}
	var purged int32
	recorder := journal.NewRecorder(appStore, journal.Options{
		Notifier:   notified,
		OnRecorded: func() { atomic.AddInt32(&purged, 1) },
	})
	go recorder.Run(ctx)
	controller.OnReport(recorder.Record)

	frames := make(chan frame.Event)
	go controller.Run(ctx, frames)

	// --- Step 1: the card is held in front of the camera for several frames ---
	url := "https://portal.sidiv.registrocivil.cl/docstatus?RUN=12345678-9&type=CEDULA&serial=A1&mrz=X"
	for i := 0; i < 5; i++ {
		frames <- frame.Event{Payload: url, At: time.Now()}
	}

	require.Eventually(t, func() bool {
		scans, err := appStore.RecentScans(ctx, 10)
		return err == nil && len(scans) == 1
	}, 2*time.Second, 10*time.Millisecond)

	scans, err := appStore.RecentScans(ctx, 10)
	require.NoError(t, err)
	row := scans[0]
	assert.Equal(t, url, row.Payload)
	assert.Equal(t, "12345678-9", row.Identifier)
	assert.Equal(t, "7", row.DriverID)
	assert.Equal(t, "Juan Pérez", row.DriverName)
	assert.Equal(t, string(turn.ActionClockIn), row.Action)
	assert.Equal(t, string(scan.ResultSuccess), row.Result)
	assert.Contains(t, row.Message, "Clock-in recorded for Juan Pérez")
	assert.Equal(t, int32(1), atomic.LoadInt32(&clockIns), "duplicate frames must not repeat the remote call")
	assert.Equal(t, int32(1), atomic.LoadInt32(&purged))

	// --- Step 2: the local mirror reflects the new state right away ---
	d, ok := drivers.Get("7")
	require.True(t, ok)
	assert.Equal(t, model.StateAvailable, d.State)

	// --- Step 3: a push notification was queued for the clock-in ---
	require.Eventually(t, func() bool { return len(notified.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	ev := notified.snapshot()[0]
	assert.True(t, ev.ClockIn)
	assert.Equal(t, "7", ev.DriverID)

	// --- Step 4: the card leaves the frame and the scanner is ready again ---
	go func() {
		for i := 0; i < 20; i++ {
			select {
			case frames <- frame.Event{At: time.Now()}:
			case <-ctx.Done():
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}()
	require.Eventually(t, func() bool {
		return controller.Session().Phase == scan.PhaseIdle
	}, 2*time.Second, 10*time.Millisecond)

	// --- Step 5: an operator clocks the driver out from the API ---
	res, err := controller.Manual(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, scan.ResultSuccess, res.Kind)
	assert.Equal(t, int32(1), atomic.LoadInt32(&clockOuts))

	require.Eventually(t, func() bool {
		scans, err := appStore.RecentScans(ctx, 10)
		return err == nil && len(scans) == 2
	}, 2*time.Second, 10*time.Millisecond)
	scans, err = appStore.RecentScans(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "manual:7", scans[0].Payload)
	assert.Equal(t, string(turn.ActionClockOut), scans[0].Action)

	d, _ = drivers.Get("7")
	assert.Equal(t, model.StateDayOff, d.State)
}
