// Package notification mirrors geofence events to the subject's own
// devices over web push. This channel is device-facing; the SMS fan-out
// to emergency contacts lives in the dispatch package.
package notification

import (
	"context"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"safeguard-backend/internal/geofence"
	"safeguard-backend/internal/store"
)

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

// WorkerPool manages a pool of workers for sending push notifications.
type WorkerPool struct {
	size    int
	jobs    chan geofence.Event
	store   store.Store
	webpush *webpush.Options
	sender  NotificationSender
	log     *zap.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, st store.Store, webpushOptions *webpush.Options, log *zap.Logger) *WorkerPool {
	if log == nil {
		log = zap.NewNop()
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan geofence.Event, size), // Buffered channel
		store:   st,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
		log:     log,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug("push worker started", zap.Int("worker", id))
	for {
		select {
		case event := <-wp.jobs:
			wp.sendNotificationsForEvent(ctx, event)
		case <-ctx.Done():
			wp.log.Debug("push worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Dispatch sends a job to the worker pool.
func (wp *WorkerPool) Dispatch(event geofence.Event) {
	wp.jobs <- event
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan geofence.Event {
	return wp.jobs
}

// payloadFor renders the user-facing message for a transition.
func payloadFor(event geofence.Event) []byte {
	verb := "entered"
	if event.Kind == geofence.EventExit {
		verb = "left"
	}
	return []byte(fmt.Sprintf("You have %s the safe zone %q.", verb, event.BoundaryName))
}

// sendNotificationsForEvent fetches the subject's device subscriptions and
// pushes the transition to each of them.
func (wp *WorkerPool) sendNotificationsForEvent(ctx context.Context, event geofence.Event) {
	subscriptions, err := wp.store.SubscriptionsForSubject(ctx, event.Subject)
	if err != nil {
		wp.log.Error("failed to fetch subscriptions",
			zap.String("subject", event.Subject),
			zap.Error(err))
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	wp.log.Info("pushing geofence event to devices",
		zap.String("subject", event.Subject),
		zap.String("boundary", event.BoundaryName),
		zap.String("kind", string(event.Kind)),
		zap.Int("devices", len(subscriptions)))

	payload := payloadFor(event)
	for _, sub := range subscriptions {
		wpSub := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256DH,
				Auth:   sub.Auth,
			},
		}

		resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
		if err != nil {
			wp.log.Warn("failed to send push notification",
				zap.String("endpoint", sub.Endpoint),
				zap.Error(err))
			continue
		}
		resp.Body.Close()

		// Handle expired subscriptions
		if resp.StatusCode == http.StatusGone {
			wp.log.Info("subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
			if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
				wp.log.Warn("failed to delete expired subscription",
					zap.String("endpoint", sub.Endpoint),
					zap.Error(err))
			}
		}
	}
}
