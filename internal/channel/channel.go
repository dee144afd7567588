// Package channel abstracts the SMS providers behind a single Send
// interface. The dispatcher treats every provider as a boolean-success
// service; provider-specific request shapes stay in here.
package channel

import (
	"context"
	"fmt"
	"strings"
)

// Channel sends one message to one phone number via one provider.
type Channel interface {
	Name() string
	Send(ctx context.Context, phone, message string) error
}

// SendError is a transient provider failure: a network error, a timeout,
// a provider-reported rejection, or missing configuration. It triggers the
// fallback path and is never propagated to the alert trigger path.
type SendError struct {
	Provider string
	Detail   string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Detail)
}

func sendErrorf(provider, format string, args ...any) *SendError {
	return &SendError{Provider: provider, Detail: fmt.Sprintf(format, args...)}
}

// digitsOnly strips everything but digits from a phone number.
func digitsOnly(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
