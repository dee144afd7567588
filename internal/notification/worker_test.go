package notification

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"safeguard-backend/internal/geofence"
	"safeguard-backend/internal/model"
	"safeguard-backend/internal/store"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.PushSubscription{}))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return store.NewGormStore(db)
}

func enterEvent(subject string) geofence.Event {
	return geofence.Event{
		Subject:      subject,
		BoundaryID:   "b-1",
		BoundaryName: "Home",
		Kind:         geofence.EventEnter,
		Timestamp:    time.Now().UTC(),
	}
}

func TestWorkerPool_Dispatch(t *testing.T) {
	wp := NewWorkerPool(1, newTestStore(t), &webpush.Options{}, nil)

	wp.Dispatch(enterEvent("user-1"))

	select {
	case job := <-wp.Jobs():
		assert.Equal(t, "user-1", job.Subject)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_SendsToSubjectDevices(t *testing.T) {
	st := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, st.UpsertSubscription(ctx, &model.PushSubscription{
		Endpoint:  "https://example.com/push",
		SubjectID: "user-1",
		P256DH:    "test_p256dh",
		Auth:      "test_auth",
		CreatedAt: time.Now().UTC(),
	}))

	wp := NewWorkerPool(1, st, &webpush.Options{}, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	wp.sender = &mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			assert.Equal(t, "https://example.com/push", sub.Endpoint)
			assert.Equal(t, "test_p256dh", sub.Keys.P256dh)
			assert.Equal(t, `You have entered the safe zone "Home".`, string(payload))
			wg.Done()
			return &http.Response{
				StatusCode: http.StatusCreated,
				Body:       io.NopCloser(bytes.NewBufferString("")),
			}, nil
		},
	}
	wp.Start(ctx)

	wp.Dispatch(enterEvent("user-1"))
	wg.Wait()
}

func TestWorkerPool_ExitMessage(t *testing.T) {
	event := enterEvent("user-1")
	event.Kind = geofence.EventExit
	assert.Equal(t, `You have left the safe zone "Home".`, string(payloadFor(event)))
}

func TestWorkerPool_DeletesExpiredSubscription(t *testing.T) {
	st := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, st.UpsertSubscription(ctx, &model.PushSubscription{
		Endpoint:  "https://example.com/expired",
		SubjectID: "user-1",
		P256DH:    "p",
		Auth:      "a",
		CreatedAt: time.Now().UTC(),
	}))

	wp := NewWorkerPool(1, st, &webpush.Options{}, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	wp.sender = &mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			defer wg.Done()
			return &http.Response{
				StatusCode: http.StatusGone,
				Body:       io.NopCloser(bytes.NewBufferString("")),
			}, nil
		},
	}
	wp.Start(ctx)

	wp.Dispatch(enterEvent("user-1"))
	wg.Wait()

	// Give the worker a moment to run the delete after the send returns.
	require.Eventually(t, func() bool {
		_, err := st.GetSubscription(context.Background(), "https://example.com/expired")
		return err == store.ErrNotFound
	}, time.Second, 10*time.Millisecond)
}

func TestWorkerPool_NoSubscriptionsIsQuiet(t *testing.T) {
	st := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	called := false
	wp := NewWorkerPool(1, st, &webpush.Options{}, nil)
	wp.sender = &mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			called = true
			return nil, nil
		},
	}
	wp.Start(ctx)

	wp.Dispatch(enterEvent("user-with-no-devices"))
	time.Sleep(100 * time.Millisecond)
	assert.False(t, called)
}
