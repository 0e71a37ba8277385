package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"fleet-checkpoint/internal/model"
	"fleet-checkpoint/internal/store"
)

// ClockEvent is a confirmed shift transition that dispatchers may be told about.
type ClockEvent struct {
	ClockIn    bool
	DriverID   string
	DriverName string
	NationalID string
	At         time.Time
}

// message renders the notification payload.
func (e ClockEvent) message() pushMessage {
	title, verb := "Clock-out", "clocked out"
	if e.ClockIn {
		title, verb = "Clock-in", "clocked in"
	}
	return pushMessage{
		Title: title,
		Body:  fmt.Sprintf("%s (RUN %s) %s at %s", e.DriverName, e.NationalID, verb, e.At.Format("15:04")),
		Tag:   "driver-" + e.DriverID,
	}
}

type pushMessage struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag"`
}

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Observer is told about every delivery attempt.
type Observer interface {
	ObserveNotification(channel string, err error)
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size     int
	jobs     chan ClockEvent
	store    store.Store
	webpush  *webpush.Options
	sender   NotificationSender
	observer Observer
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, s store.Store, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan ClockEvent, size*16),
		store:   s,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
	}
}

// SetObserver registers o for delivery reports. Call before Start.
func (wp *WorkerPool) SetObserver(o Observer) {
	wp.observer = o
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case ev := <-wp.jobs:
			log.Printf("Worker %d processing clock event for driver %s", id, ev.DriverID)
			wp.sendNotificationsForEvent(ctx, ev)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues an event. It never blocks; events are dropped when the queue is full.
func (wp *WorkerPool) Dispatch(ev ClockEvent) bool {
	select {
	case wp.jobs <- ev:
		return true
	default:
		log.Printf("Notification queue full, dropping clock event for driver %s", ev.DriverID)
		return false
	}
}

func (wp *WorkerPool) sendNotificationsForEvent(ctx context.Context, ev ClockEvent) {
	subscriptions, err := wp.store.SubscriptionsFor(ctx, ev.ClockIn)
	if err != nil {
		log.Printf("Error fetching subscriptions for driver %s: %v", ev.DriverID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(ev.message())
	if err != nil {
		log.Printf("Error encoding notification for driver %s: %v", ev.DriverID, err)
		return
	}

	log.Printf("Sending %d notifications for driver %s", len(subscriptions), ev.DriverID)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if wp.observer != nil {
		wp.observer.ObserveNotification("webpush", err)
	}
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
