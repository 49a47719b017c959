package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/StreamPassApp/StreamPass/internal/pkg/env"
)

const defaultRazorpayAPIBaseURL = "https://api.razorpay.com/v1"

// RazorpayClient talks to the Razorpay REST API with a fixed key pair.
// Credentials are per-instance so concurrent requests selecting different
// providers never leak each other's keys.
type RazorpayClient struct {
	KeyID      string
	KeySecret  string
	APIBaseURL string

	HTTPClient *http.Client
}

// RazorpayOrder is the subset of the provider order entity we consume.
type RazorpayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// RazorpaySubscription is the subset of the provider subscription entity we
// consume when creating a recurring checkout intent.
type RazorpaySubscription struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	ShortURL string `json:"short_url"`
}

// RazorpayPayment is the authoritative payment state fetched back from the
// provider during synchronous verification.
type RazorpayPayment struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Status   string `json:"status"`
	Method   string `json:"method"`
	Email    string `json:"email"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// OrderRequest describes a one-time order to create at the provider.
type OrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

// SubscriptionRequest describes a recurring subscription intent.
type SubscriptionRequest struct {
	PlanID        string
	TotalCount    int
	CustomerName  string
	CustomerEmail string
}

// NewRazorpayClient creates a client for the given key pair. The API base URL
// can be overridden via RAZORPAY_API_BASE_URL (used by tests and sandboxes).
func NewRazorpayClient(keyID, keySecret string) *RazorpayClient {
	return &RazorpayClient{
		KeyID:      strings.TrimSpace(keyID),
		KeySecret:  strings.TrimSpace(keySecret),
		APIBaseURL: strings.TrimRight(env.GetEnv("RAZORPAY_API_BASE_URL", defaultRazorpayAPIBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateOrder creates a one-time order with automatic capture enabled.
func (c *RazorpayClient) CreateOrder(ctx context.Context, in OrderRequest) (*RazorpayOrder, error) {
	if in.Amount <= 0 {
		return nil, errors.New("order amount must be positive")
	}
	payload := map[string]interface{}{
		"amount":          in.Amount,
		"currency":        in.Currency,
		"receipt":         in.Receipt,
		"payment_capture": 1,
	}
	if len(in.Notes) > 0 {
		payload["notes"] = in.Notes
	}

	var out RazorpayOrder
	if err := c.postJSON(ctx, "/orders", payload, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, errors.New("razorpay order response missing id")
	}
	return &out, nil
}

// CreateSubscription creates a recurring subscription intent against a
// provider-side plan.
func (c *RazorpayClient) CreateSubscription(ctx context.Context, in SubscriptionRequest) (*RazorpaySubscription, error) {
	if strings.TrimSpace(in.PlanID) == "" {
		return nil, errors.New("provider plan id is required")
	}
	totalCount := in.TotalCount
	if totalCount <= 0 {
		totalCount = 12
	}
	payload := map[string]interface{}{
		"plan_id":         in.PlanID,
		"customer_notify": 1,
		"total_count":     totalCount,
	}
	if strings.TrimSpace(in.CustomerEmail) != "" {
		payload["customer"] = map[string]string{
			"name":  in.CustomerName,
			"email": in.CustomerEmail,
		}
	}

	var out RazorpaySubscription
	if err := c.postJSON(ctx, "/subscriptions", payload, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, errors.New("razorpay subscription response missing id")
	}
	return &out, nil
}

// FetchPayment re-fetches the authoritative payment state. Client-supplied
// status is never trusted.
func (c *RazorpayClient) FetchPayment(ctx context.Context, paymentID string) (*RazorpayPayment, error) {
	id := strings.TrimSpace(paymentID)
	if id == "" {
		return nil, errors.New("payment id is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIBaseURL+"/payments/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.KeyID, c.KeySecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("razorpay payment fetch failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out RazorpayPayment
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CapturePayment captures an authorized payment for the given amount in
// minor units. Razorpay expects this call form-encoded.
func (c *RazorpayClient) CapturePayment(ctx context.Context, paymentID string, amount int64) (*RazorpayPayment, error) {
	id := strings.TrimSpace(paymentID)
	if id == "" {
		return nil, errors.New("payment id is required")
	}

	form := url.Values{}
	form.Set("amount", fmt.Sprintf("%d", amount))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.APIBaseURL+"/payments/"+url.PathEscape(id)+"/capture", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.KeyID, c.KeySecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("razorpay capture failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out RazorpayPayment
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *RazorpayClient) postJSON(ctx context.Context, path string, payload interface{}, out interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+path, strings.NewReader(string(raw)))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.KeyID, c.KeySecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("razorpay request %s failed: status=%d body=%s", path, resp.StatusCode, string(body))
	}
	return json.Unmarshal(body, out)
}
