// Package stripe is a minimal client for the two Stripe operations the
// backend needs: verifying webhook payloads and retrieving a subscription.
// The full Stripe surface is deliberately out of scope; the webhook schema
// fields consumed live in the billing package.
package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"trainwise/studio-backend/internal/billing"
)

// ErrSignatureInvalid is returned for any webhook payload whose signature
// header cannot be verified: missing header, bad format, stale timestamp or
// mismatched digest all look the same to the caller.
var ErrSignatureInvalid = errors.New("stripe: webhook signature invalid")

// signatureTolerance bounds how old a signed timestamp may be. Stripe signs
// a fresh timestamp per delivery attempt, so anything older is a replay.
const signatureTolerance = 5 * time.Minute

const defaultBaseURL = "https://api.stripe.com"

// WebhookEvent is a verified, minimally-parsed webhook event envelope.
type WebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// Client represents a Stripe API client.
type Client struct {
	BaseURL       string
	apiKey        string
	webhookSecret string
	client        *http.Client
	now           func() time.Time
}

// NewClient creates a new Stripe API client. apiKey authorizes read calls;
// webhookSecret verifies inbound webhook signatures.
func NewClient(apiKey, webhookSecret string) *Client {
	return &Client{
		BaseURL:       defaultBaseURL,
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		client:        &http.Client{Timeout: 10 * time.Second},
		now:           time.Now,
	}
}

// WithClock overrides the time source used for signature tolerance. For tests.
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

// VerifyAndParse checks the Stripe-Signature header against the raw payload
// and, on success, decodes the event envelope. The header carries a signed
// timestamp and one or more v1 signatures:
//
//	t=1694000000,v1=5257a869e7...
//
// where each v1 value is HMAC-SHA256(webhookSecret, "<t>.<payload>").
func (c *Client) VerifyAndParse(payload []byte, sigHeader string) (*WebhookEvent, error) {
	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return nil, err
	}

	if c.now().Sub(time.Unix(timestamp, 0)) > signatureTolerance {
		return nil, fmt.Errorf("%w: timestamp outside tolerance", ErrSignatureInvalid)
	}

	expected := computeSignature(c.webhookSecret, timestamp, payload)
	verified := false
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			verified = true
			break
		}
	}
	if !verified {
		return nil, fmt.Errorf("%w: no matching v1 signature", ErrSignatureInvalid)
	}

	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("stripe: decode event: %w", err)
	}
	return &event, nil
}

// parseSignatureHeader splits "t=...,v1=...,v1=..." into the timestamp and
// candidate signatures. Scheme versions other than v1 are ignored.
func parseSignatureHeader(header string) (int64, []string, error) {
	if header == "" {
		return 0, nil, fmt.Errorf("%w: missing signature header", ErrSignatureInvalid)
	}

	var timestamp int64 = -1
	var signatures []string
	for _, pair := range strings.Split(header, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			continue
		}
		switch parts[0] {
		case "t":
			ts, err := strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: bad timestamp", ErrSignatureInvalid)
			}
			timestamp = ts
		case "v1":
			signatures = append(signatures, parts[1])
		}
	}

	if timestamp < 0 || len(signatures) == 0 {
		return 0, nil, fmt.Errorf("%w: header missing t or v1 element", ErrSignatureInvalid)
	}
	return timestamp, signatures, nil
}

func computeSignature(secret string, timestamp int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// subscriptionResponse mirrors the fields of GET /v1/subscriptions/{id}
// consumed during reconciliation.
type subscriptionResponse struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Status             string `json:"status"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	Items              struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// GetSubscription retrieves a subscription from the Stripe API. Safe to
// retry: it only reads.
func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*billing.ProviderSubscription, error) {
	if subscriptionID == "" {
		return nil, errors.New("stripe: subscription id is required")
	}

	url := fmt.Sprintf("%s/v1/subscriptions/%s", c.BaseURL, subscriptionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stripe: get subscription %s: %w", subscriptionID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stripe: get subscription %s: unexpected status %d", subscriptionID, resp.StatusCode)
	}

	var sub subscriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		return nil, fmt.Errorf("stripe: decode subscription %s: %w", subscriptionID, err)
	}

	out := &billing.ProviderSubscription{
		ID:          sub.ID,
		CustomerID:  sub.Customer,
		Status:      sub.Status,
		PeriodStart: time.Unix(sub.CurrentPeriodStart, 0).UTC(),
		PeriodEnd:   time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
	}
	if len(sub.Items.Data) > 0 {
		out.PriceID = sub.Items.Data[0].Price.ID
	}
	return out, nil
}
