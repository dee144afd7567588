package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

// BulkSMS is the primary SMS gateway. It takes a JSON payload of
// {route, numbers, message, flash} with an authorization header and
// answers {return: bool, message}.
type BulkSMS struct {
	apiKey        string
	url           string
	route         string
	flash         int
	countryPrefix string
	client        *http.Client
}

// BulkSMSConfig configures the primary gateway client.
type BulkSMSConfig struct {
	APIKey        string `yaml:"api_key"`
	URL           string `yaml:"url"`
	Route         string `yaml:"route"`
	Flash         int    `yaml:"flash"`
	CountryPrefix string `yaml:"country_prefix"`
}

// NewBulkSMS creates the primary gateway client. A missing API key is not
// an error here: it surfaces as a send failure so the fallback takes over.
func NewBulkSMS(cfg BulkSMSConfig) *BulkSMS {
	return &BulkSMS{
		apiKey:        cfg.APIKey,
		url:           cfg.URL,
		route:         cfg.Route,
		flash:         cfg.Flash,
		countryPrefix: cfg.CountryPrefix,
		client:        &http.Client{Timeout: 30 * time.Second},
	}
}

func (b *BulkSMS) Name() string { return "bulksms" }

type bulkSMSRequest struct {
	Route   string `json:"route"`
	Numbers string `json:"numbers"`
	Message string `json:"message"`
	Flash   int    `json:"flash"`
}

type bulkSMSResponse struct {
	Return  bool   `json:"return"`
	Message string `json:"message"`
}

// Send posts the message to the gateway. The gateway wants local numbers,
// so the configured country prefix is stripped from E.164 input.
func (b *BulkSMS) Send(ctx context.Context, phone, message string) error {
	if b.apiKey == "" {
		return sendErrorf(b.Name(), "api key is not configured")
	}

	body, err := json.Marshal(bulkSMSRequest{
		Route:   b.route,
		Numbers: b.localNumber(phone),
		Message: message,
		Flash:   b.flash,
	})
	if err != nil {
		return sendErrorf(b.Name(), "marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return sendErrorf(b.Name(), "build request: %v", err)
	}
	req.Header.Set("authorization", b.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return sendErrorf(b.Name(), "request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return sendErrorf(b.Name(), "unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return sendErrorf(b.Name(), "read response: %v", err)
	}

	var parsed bulkSMSResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return sendErrorf(b.Name(), "unmarshal response: %v", err)
	}
	if !parsed.Return {
		detail := parsed.Message
		if detail == "" {
			detail = "provider reported failure"
		}
		return sendErrorf(b.Name(), "%s", detail)
	}
	return nil
}

func (b *BulkSMS) localNumber(phone string) string {
	n := digitsOnly(phone)
	if b.countryPrefix != "" && strings.HasPrefix(n, b.countryPrefix) && len(n) > len(b.countryPrefix) {
		return n[len(b.countryPrefix):]
	}
	return n
}

var _ Channel = (*BulkSMS)(nil)
