// Package payment wraps the payment processor's REST API. Only the three
// calls checkout needs are implemented: creating a hosted checkout
// session, retrieving it after redirect, and minting a one-time percent
// coupon to attach as a discount.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// LineItem is one product entry of a checkout session, priced in
// minor currency units.
type LineItem struct {
	Name       string `json:"name"`
	Image      string `json:"image,omitempty"`
	UnitAmount int64  `json:"unit_amount"`
	Quantity   uint32 `json:"quantity"`
}

// CheckoutParams describes the session to create. Metadata is stored
// processor-side and comes back verbatim on retrieval, which is how
// confirmation reconstructs the order without re-reading the cart.
type CheckoutParams struct {
	LineItems  []LineItem        `json:"line_items"`
	SuccessURL string            `json:"success_url"`
	CancelURL  string            `json:"cancel_url"`
	CouponID   string            `json:"coupon,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Session mirrors the processor's checkout-session resource.
type Session struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	PaymentStatus string            `json:"payment_status"`
	AmountTotal   int64             `json:"amount_total"`
	Metadata      map[string]string `json:"metadata"`
}

// Processor is the slice of the payment API the handlers depend on.
// Tests substitute a recording fake.
type Processor interface {
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*Session, error)
	RetrieveSession(ctx context.Context, id string) (*Session, error)
	CreateCoupon(ctx context.Context, percentOff uint8) (string, error)
}

// Client talks to the processor over HTTP with bearer-key auth.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// CreateCheckoutSession creates a hosted checkout session.
func (c *Client) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*Session, error) {
	var s Session
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", p, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// RetrieveSession fetches a session by id, metadata included.
func (c *Client) RetrieveSession(ctx context.Context, id string) (*Session, error) {
	var s Session
	if err := c.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+id, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateCoupon mints a single-use percent-off coupon on the processor
// side and returns its id.
func (c *Client) CreateCoupon(ctx context.Context, percentOff uint8) (string, error) {
	body := map[string]any{"percent_off": percentOff, "duration": "once"}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/coupons", body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("payment api error %d: %s", resp.StatusCode, string(b))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode payment response: %w", err)
		}
	}
	return nil
}
