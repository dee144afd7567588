// Package dispatch fans an emergency alert out to a recipient list across
// a primary and a fallback notification channel, tolerating partial
// failure. Recipients are isolated from each other: one slow or failing
// recipient never blocks or aborts the rest.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"safeguard-backend/internal/channel"
	"safeguard-backend/internal/model"
)

// Recipient is one emergency contact to notify.
type Recipient struct {
	Name  string `json:"name"`
	Phone string `json:"phone"` // E.164
}

// RecipientResult is the delivery outcome for one recipient.
type RecipientResult struct {
	Recipient   Recipient  `json:"recipient"`
	Outcome     string     `json:"outcome"` // SENT or FAILED
	Channel     string     `json:"channel,omitempty"`
	ErrorDetail string     `json:"errorDetail,omitempty"`
	PrimaryAt   *time.Time `json:"primaryAt,omitempty"`
	FallbackAt  *time.Time `json:"fallbackAt,omitempty"`
}

// DispatchResult aggregates a full fan-out. AnySucceeded is true iff at
// least one recipient reached SENT.
type DispatchResult struct {
	PerRecipient []RecipientResult `json:"perRecipient"`
	AnySucceeded bool              `json:"anySucceeded"`
}

// Attempts converts the result into storable notification attempts.
func (r DispatchResult) Attempts(alertID string) []model.NotificationAttempt {
	attempts := make([]model.NotificationAttempt, 0, len(r.PerRecipient))
	for _, rr := range r.PerRecipient {
		attempts = append(attempts, model.NotificationAttempt{
			AlertID:     alertID,
			ContactName: rr.Recipient.Name,
			Phone:       rr.Recipient.Phone,
			Channel:     rr.Channel,
			Outcome:     rr.Outcome,
			ErrorDetail: rr.ErrorDetail,
			PrimaryAt:   rr.PrimaryAt,
			FallbackAt:  rr.FallbackAt,
		})
	}
	return attempts
}

// Content is the alert information the dispatcher turns into messages.
type Content struct {
	SubjectName string
	Lat         float64
	Lng         float64
}

// UrgentMessage is the first message part: who needs help and where.
func (c Content) UrgentMessage() string {
	name := c.SubjectName
	if name == "" {
		name = "Your contact"
	}
	link := fmt.Sprintf("https://www.google.com/maps?q=%v,%v", c.Lat, c.Lng)
	return fmt.Sprintf("EMERGENCY SOS ALERT!\n%s needs immediate help!\nLocation: %s\nThis is an emergency alert. Please respond immediately!", name, link)
}

// HotlineMessage is the static follow-up listing emergency numbers.
func HotlineMessage() string {
	return "Emergency Numbers:\nPolice: 100\nWomen Helpline: 1091\nAmbulance: 102"
}

// Dispatcher drives concurrent per-recipient delivery with a fixed
// channel policy: always primary first, fallback only after a primary
// failure. Channels are injected once at construction; there are no
// package-level provider clients.
type Dispatcher struct {
	primary  channel.Channel
	fallback channel.Channel
	timeout  time.Duration
	log      *zap.Logger
}

// New creates a dispatcher. timeout bounds each individual channel call;
// the fan-out as a whole has no shorter deadline than its slowest
// recipient.
func New(primary, fallback channel.Channel, timeout time.Duration, log *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{primary: primary, fallback: fallback, timeout: timeout, log: log}
}

// Dispatch fans the alert out to every recipient concurrently and returns
// once all attempts have resolved. Dispatching the same alert twice
// performs two independent fan-outs; there is no at-most-once guarantee.
func (d *Dispatcher) Dispatch(ctx context.Context, content Content, recipients []Recipient) DispatchResult {
	results := make([]RecipientResult, len(recipients))

	var wg sync.WaitGroup
	for i, r := range recipients {
		wg.Add(1)
		go func(i int, r Recipient) {
			defer wg.Done()
			results[i] = d.deliver(ctx, content, r)
		}(i, r)
	}
	wg.Wait()

	out := DispatchResult{PerRecipient: results}
	for _, rr := range results {
		if rr.Outcome == model.AttemptSent {
			out.AnySucceeded = true
			break
		}
	}
	return out
}

// deliver sends both message parts to one recipient. The outcome is SENT
// as soon as the first part is confirmed by some channel; a second-part
// failure never downgrades it. If the urgent part fails on both channels
// the follow-up is not attempted and the recipient is FAILED.
func (d *Dispatcher) deliver(ctx context.Context, content Content, r Recipient) RecipientResult {
	result := RecipientResult{Recipient: r, Outcome: model.AttemptPending}

	chName, err := d.sendWithFallback(ctx, r.Phone, content.UrgentMessage(), &result)
	if err != nil {
		result.Outcome = model.AttemptFailed
		result.ErrorDetail = err.Error()
		d.log.Warn("alert delivery failed for recipient",
			zap.String("recipient", r.Name),
			zap.String("phone", r.Phone),
			zap.Error(err))
		return result
	}

	result.Outcome = model.AttemptSent
	result.Channel = chName

	if _, err := d.sendWithFallback(ctx, r.Phone, HotlineMessage(), nil); err != nil {
		d.log.Warn("hotline follow-up failed, keeping SENT outcome",
			zap.String("recipient", r.Name),
			zap.Error(err))
	}
	return result
}

// sendWithFallback tries the primary channel, then the fallback on any
// primary failure. It returns the name of the channel that succeeded.
// A timeout counts as a failure like any other.
func (d *Dispatcher) sendWithFallback(ctx context.Context, phone, message string, result *RecipientResult) (string, error) {
	now := time.Now().UTC()
	if result != nil {
		result.PrimaryAt = &now
	}

	primaryErr := d.sendOne(ctx, d.primary, phone, message)
	if primaryErr == nil {
		return d.primary.Name(), nil
	}
	d.log.Debug("primary channel failed, trying fallback",
		zap.String("phone", phone),
		zap.Error(primaryErr))

	fbNow := time.Now().UTC()
	if result != nil {
		result.FallbackAt = &fbNow
	}

	fallbackErr := d.sendOne(ctx, d.fallback, phone, message)
	if fallbackErr == nil {
		return d.fallback.Name(), nil
	}
	return "", fmt.Errorf("primary: %v; fallback: %v", primaryErr, fallbackErr)
}

func (d *Dispatcher) sendOne(ctx context.Context, ch channel.Channel, phone, message string) error {
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return ch.Send(callCtx, phone, message)
}
