// Package mercadopago implements the payment gateway against the Mercado
// Pago Checkout Pro API.
package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/louisbranch/everpage/internal/lifecycle"
	"github.com/louisbranch/everpage/internal/memory"
)

const defaultAPIBaseURL = "https://api.mercadopago.com"

const (
	maxAttempts      = 3
	initialRetryWait = 500 * time.Millisecond
)

// Config wires the Mercado Pago client.
type Config struct {
	// AccessToken authenticates API calls.
	AccessToken string
	// SiteBaseURL is the public base URL of this service, used for checkout
	// redirects and the webhook notification URL.
	SiteBaseURL string
	// APIBaseURL overrides the Mercado Pago API endpoint in tests.
	APIBaseURL string
	// HTTPClient overrides the HTTP client; nil means a default client.
	HTTPClient *http.Client
}

// Client calls the Mercado Pago API.
type Client struct {
	accessToken string
	siteBaseURL string
	apiBaseURL  string
	httpClient  *http.Client
	retryWait   time.Duration
}

// Notification is a resolved webhook callback.
type Notification struct {
	// ProviderRef is the preference this payment settles, when the provider
	// reports one.
	ProviderRef string
	// Slug is the page slug carried through checkout metadata.
	Slug      string
	Outcome   memory.Outcome
	PaymentID string
}

// New creates a Mercado Pago client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, fmt.Errorf("access token is required")
	}
	if strings.TrimSpace(cfg.SiteBaseURL) == "" {
		return nil, fmt.Errorf("site base url is required")
	}
	apiBaseURL := strings.TrimRight(cfg.APIBaseURL, "/")
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		accessToken: cfg.AccessToken,
		siteBaseURL: strings.TrimRight(cfg.SiteBaseURL, "/"),
		apiBaseURL:  apiBaseURL,
		httpClient:  httpClient,
		retryWait:   initialRetryWait,
	}, nil
}

type preferenceItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type preferencePayer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type preferenceBackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type preferenceRequest struct {
	Items             []preferenceItem   `json:"items"`
	Payer             preferencePayer    `json:"payer"`
	BackURLs          preferenceBackURLs `json:"back_urls"`
	AutoReturn        string             `json:"auto_return"`
	NotificationURL   string             `json:"notification_url"`
	ExternalReference string             `json:"external_reference"`
	Metadata          map[string]string  `json:"metadata"`
}

type preferenceResponse struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

type paymentResponse struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	PreferenceID      string      `json:"preference_id"`
	ExternalReference string      `json:"external_reference"`
	Metadata          struct {
		MemoryID string `json:"memory_id"`
		Slug     string `json:"slug"`
	} `json:"metadata"`
}

// CreatePreference opens a hosted checkout session for one page.
func (c *Client) CreatePreference(ctx context.Context, req lifecycle.PreferenceRequest) (lifecycle.Preference, error) {
	pageURL := c.siteBaseURL + "/" + req.Slug
	body := preferenceRequest{
		Items: []preferenceItem{{
			Title:      req.Title,
			Quantity:   1,
			UnitPrice:  float64(req.PriceCents) / 100,
			CurrencyID: req.Currency,
		}},
		Payer: preferencePayer{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
		},
		BackURLs: preferenceBackURLs{
			Success: pageURL,
			Failure: pageURL + "?payment=failure",
			Pending: pageURL + "?payment=pending",
		},
		AutoReturn:        "approved",
		NotificationURL:   c.siteBaseURL + "/api/webhooks/mercadopago",
		ExternalReference: req.MemoryID,
		Metadata: map[string]string{
			"memory_id": req.MemoryID,
			"slug":      req.Slug,
		},
	}

	var resp preferenceResponse
	if err := c.call(ctx, http.MethodPost, "/checkout/preferences", body, &resp); err != nil {
		return lifecycle.Preference{}, fmt.Errorf("create preference: %w", err)
	}
	if resp.ID == "" || resp.InitPoint == "" {
		return lifecycle.Preference{}, fmt.Errorf("create preference: provider returned an incomplete preference")
	}
	return lifecycle.Preference{ID: resp.ID, CheckoutURL: resp.InitPoint}, nil
}

// ResolveNotification fetches the payment behind a webhook callback and maps
// it to a gateway outcome. The second return is false for callback topics
// that carry no payment, such as merchant order pings.
func (c *Client) ResolveNotification(ctx context.Context, topic, paymentID string) (Notification, bool, error) {
	topic = strings.ToLower(strings.TrimSpace(topic))
	if topic != "payment" {
		return Notification{}, false, nil
	}
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return Notification{}, false, fmt.Errorf("payment id is required")
	}

	var resp paymentResponse
	if err := c.call(ctx, http.MethodGet, "/v1/payments/"+paymentID, nil, &resp); err != nil {
		return Notification{}, false, fmt.Errorf("get payment %s: %w", paymentID, err)
	}

	return Notification{
		ProviderRef: resp.PreferenceID,
		Slug:        resp.Metadata.Slug,
		Outcome:     mapPaymentStatus(resp.Status),
		PaymentID:   resp.ID.String(),
	}, true, nil
}

// mapPaymentStatus maps provider payment statuses onto the three-way outcome.
// Anything not settled yet stays Pending so a later callback can decide it.
func mapPaymentStatus(status string) memory.Outcome {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "approved":
		return memory.OutcomeApproved
	case "rejected", "cancelled":
		return memory.OutcomeRejected
	default:
		return memory.OutcomePending
	}
}

// call performs one API request with retries on transport errors and 5xx
// responses. Client errors surface immediately with the provider's body.
func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	wait := c.retryWait
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.apiBaseURL+path, reader)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		_ = resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("provider returned %d: %s", resp.StatusCode, truncate(respBody))
			continue
		default:
			return fmt.Errorf("provider returned %d: %s", resp.StatusCode, truncate(respBody))
		}
	}
	return fmt.Errorf("provider unreachable after %d attempts: %w", maxAttempts, lastErr)
}

func truncate(body []byte) string {
	const limit = 256
	value := strings.TrimSpace(string(body))
	if len(value) > limit {
		return value[:limit]
	}
	return value
}

var _ lifecycle.Gateway = (*Client)(nil)
