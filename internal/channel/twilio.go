package channel

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TwilioSMS is the fallback provider: a form POST of {To, From, Body} to
// the Messages endpoint with basic auth, answering a JSON message resource
// with a delivery status field.
type TwilioSMS struct {
	accountSID    string
	authToken     string
	from          string
	baseURL       string
	countryPrefix string
	client        *http.Client
}

// TwilioConfig configures the fallback provider client.
type TwilioConfig struct {
	AccountSID    string `yaml:"account_sid"`
	AuthToken     string `yaml:"auth_token"`
	FromNumber    string `yaml:"from_number"`
	BaseURL       string `yaml:"base_url"`
	CountryPrefix string `yaml:"country_prefix"`
}

func NewTwilioSMS(cfg TwilioConfig) *TwilioSMS {
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.twilio.com"
	}
	return &TwilioSMS{
		accountSID:    cfg.AccountSID,
		authToken:     cfg.AuthToken,
		from:          cfg.FromNumber,
		baseURL:       strings.TrimRight(base, "/"),
		countryPrefix: cfg.CountryPrefix,
		client:        &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *TwilioSMS) Name() string { return "twilio" }

type twilioResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// Send creates a message resource. Provider-reported failure statuses are
// send failures, same as transport errors.
func (t *TwilioSMS) Send(ctx context.Context, phone, message string) error {
	if t.accountSID == "" || t.authToken == "" {
		return sendErrorf(t.Name(), "credentials are not configured")
	}

	form := url.Values{}
	form.Set("To", t.e164(phone))
	form.Set("From", t.from)
	form.Set("Body", message)

	endpoint := t.baseURL + "/2010-04-01/Accounts/" + t.accountSID + "/Messages.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return sendErrorf(t.Name(), "build request: %v", err)
	}
	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return sendErrorf(t.Name(), "request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return sendErrorf(t.Name(), "read response: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return sendErrorf(t.Name(), "unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed twilioResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return sendErrorf(t.Name(), "unmarshal response: %v", err)
	}
	switch parsed.Status {
	case "failed", "undelivered":
		detail := parsed.ErrorMessage
		if detail == "" {
			detail = "delivery status " + parsed.Status
		}
		return sendErrorf(t.Name(), "%s", detail)
	}
	return nil
}

// e164 normalizes to +<country><number> for providers that require it.
func (t *TwilioSMS) e164(phone string) string {
	if strings.HasPrefix(phone, "+") {
		return phone
	}
	n := digitsOnly(phone)
	if t.countryPrefix != "" && !strings.HasPrefix(n, t.countryPrefix) {
		return "+" + t.countryPrefix + n
	}
	return "+" + n
}

var _ Channel = (*TwilioSMS)(nil)
