package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safeguard-backend/internal/model"
)

// fakeChannel is a scriptable channel for dispatcher tests.
type fakeChannel struct {
	name  string
	send  func(ctx context.Context, phone, message string) error
	calls atomic.Int64
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Send(ctx context.Context, phone, message string) error {
	f.calls.Add(1)
	if f.send == nil {
		return nil
	}
	return f.send(ctx, phone, message)
}

func alwaysOK(name string) *fakeChannel {
	return &fakeChannel{name: name}
}

func alwaysFail(name string) *fakeChannel {
	return &fakeChannel{name: name, send: func(context.Context, string, string) error {
		return errors.New(name + " is down")
	}}
}

var testContent = Content{SubjectName: "Alice", Lat: 28.6139, Lng: 77.2090}

func TestDispatchFallbackSuccess(t *testing.T) {
	d := New(alwaysFail("primary"), alwaysOK("fallback"), time.Second, nil)

	result := d.Dispatch(context.Background(), testContent, []Recipient{{Name: "A", Phone: "+10000000001"}})

	require.Len(t, result.PerRecipient, 1)
	rr := result.PerRecipient[0]
	assert.Equal(t, model.AttemptSent, rr.Outcome)
	assert.Equal(t, "fallback", rr.Channel)
	assert.True(t, result.AnySucceeded)
	require.NotNil(t, rr.PrimaryAt)
	require.NotNil(t, rr.FallbackAt)
}

func TestDispatchEmptyRecipients(t *testing.T) {
	d := New(alwaysOK("primary"), alwaysOK("fallback"), time.Second, nil)

	result := d.Dispatch(context.Background(), testContent, nil)

	assert.Empty(t, result.PerRecipient)
	assert.False(t, result.AnySucceeded)
}

func TestDispatchPartialFailureIsolation(t *testing.T) {
	// Recipient 2 fails on both channels; 1 and 3 succeed on primary.
	primary := &fakeChannel{name: "primary", send: func(_ context.Context, phone, _ string) error {
		if phone == "+10000000002" {
			return errors.New("primary rejected")
		}
		return nil
	}}
	fallback := &fakeChannel{name: "fallback", send: func(_ context.Context, phone, _ string) error {
		if phone == "+10000000002" {
			return errors.New("fallback rejected")
		}
		return nil
	}}

	d := New(primary, fallback, time.Second, nil)
	result := d.Dispatch(context.Background(), testContent, []Recipient{
		{Name: "A", Phone: "+10000000001"},
		{Name: "B", Phone: "+10000000002"},
		{Name: "C", Phone: "+10000000003"},
	})

	require.Len(t, result.PerRecipient, 3)
	assert.Equal(t, model.AttemptSent, result.PerRecipient[0].Outcome)
	assert.Equal(t, "primary", result.PerRecipient[0].Channel)
	assert.Equal(t, model.AttemptFailed, result.PerRecipient[1].Outcome)
	assert.Contains(t, result.PerRecipient[1].ErrorDetail, "fallback rejected")
	assert.Equal(t, model.AttemptSent, result.PerRecipient[2].Outcome)
	assert.True(t, result.AnySucceeded)
}

func TestDispatchSlowRecipientDoesNotBlockOthers(t *testing.T) {
	primary := &fakeChannel{name: "primary", send: func(ctx context.Context, phone, _ string) error {
		if phone == "+10000000009" {
			time.Sleep(300 * time.Millisecond)
		}
		return nil
	}}

	d := New(primary, alwaysOK("fallback"), time.Second, nil)

	start := time.Now()
	result := d.Dispatch(context.Background(), testContent, []Recipient{
		{Name: "slow", Phone: "+10000000009"},
		{Name: "fast1", Phone: "+10000000001"},
		{Name: "fast2", Phone: "+10000000002"},
	})
	elapsed := time.Since(start)

	assert.True(t, result.AnySucceeded)
	for _, rr := range result.PerRecipient {
		assert.Equal(t, model.AttemptSent, rr.Outcome)
	}
	// Two slow sends (urgent + hotline) run serially per recipient, but the
	// other recipients ride alongside: total time tracks the slowest
	// recipient, not the sum over recipients.
	assert.Less(t, elapsed, 900*time.Millisecond)
}

func TestDispatchSecondPartFailureKeepsSent(t *testing.T) {
	var call atomic.Int64
	primary := &fakeChannel{name: "primary", send: func(_ context.Context, _, message string) error {
		call.Add(1)
		if strings.HasPrefix(message, "Emergency Numbers") {
			return errors.New("hotline part rejected")
		}
		return nil
	}}
	fallback := alwaysFail("fallback")

	d := New(primary, fallback, time.Second, nil)
	result := d.Dispatch(context.Background(), testContent, []Recipient{{Name: "A", Phone: "+10000000001"}})

	require.Len(t, result.PerRecipient, 1)
	assert.Equal(t, model.AttemptSent, result.PerRecipient[0].Outcome, "second part failure must not downgrade SENT")
	assert.True(t, result.AnySucceeded)
}

func TestDispatchUrgentFailureSkipsHotline(t *testing.T) {
	primary := alwaysFail("primary")
	fallback := alwaysFail("fallback")

	d := New(primary, fallback, time.Second, nil)
	result := d.Dispatch(context.Background(), testContent, []Recipient{{Name: "A", Phone: "+10000000001"}})

	assert.Equal(t, model.AttemptFailed, result.PerRecipient[0].Outcome)
	assert.False(t, result.AnySucceeded)
	// One urgent try per channel, no hotline follow-up after a total failure.
	assert.Equal(t, int64(1), primary.calls.Load())
	assert.Equal(t, int64(1), fallback.calls.Load())
}

func TestDispatchTimeoutTriggersFallback(t *testing.T) {
	primary := &fakeChannel{name: "primary", send: func(ctx context.Context, _, _ string) error {
		<-ctx.Done()
		return ctx.Err()
	}}

	d := New(primary, alwaysOK("fallback"), 50*time.Millisecond, nil)
	result := d.Dispatch(context.Background(), testContent, []Recipient{{Name: "A", Phone: "+10000000001"}})

	require.Len(t, result.PerRecipient, 1)
	assert.Equal(t, model.AttemptSent, result.PerRecipient[0].Outcome)
	assert.Equal(t, "fallback", result.PerRecipient[0].Channel)
}

func TestDispatchNoDeduplication(t *testing.T) {
	primary := alwaysOK("primary")
	d := New(primary, alwaysOK("fallback"), time.Second, nil)

	recipients := []Recipient{{Name: "A", Phone: "+10000000001"}}
	d.Dispatch(context.Background(), testContent, recipients)
	d.Dispatch(context.Background(), testContent, recipients)

	// Two fan-outs, two urgent + two hotline sends.
	assert.Equal(t, int64(4), primary.calls.Load())
}

func TestAttemptsConversion(t *testing.T) {
	now := time.Now().UTC()
	result := DispatchResult{PerRecipient: []RecipientResult{{
		Recipient: Recipient{Name: "A", Phone: "+10000000001"},
		Outcome:   model.AttemptSent,
		Channel:   "primary",
		PrimaryAt: &now,
	}}}

	attempts := result.Attempts("alert-1")
	require.Len(t, attempts, 1)
	assert.Equal(t, "alert-1", attempts[0].AlertID)
	assert.Equal(t, "+10000000001", attempts[0].Phone)
	assert.Equal(t, model.AttemptSent, attempts[0].Outcome)
}

func TestUrgentMessageContent(t *testing.T) {
	msg := testContent.UrgentMessage()
	assert.Contains(t, msg, "Alice")
	assert.Contains(t, msg, "https://www.google.com/maps?q=28.6139,77.209")

	anon := Content{Lat: 1, Lng: 2}
	assert.Contains(t, anon.UrgentMessage(), "Your contact")
}
