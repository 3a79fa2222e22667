package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"giftpos/internal/model"
)

// CloudClient talks to the shared cloud order store over JSON/HTTP.
//
//	GET /orders?updated_after=<RFC3339>&order=date.desc&limit=N  -> []Order
//	PUT /orders/{id}                                            -> upsert by id
//
// Every call goes through the circuit breaker so a downed cloud does not
// stall the terminal.
type CloudClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cb         *CircuitBreaker
}

// NewCloudClient builds a client. cb may be nil to call the cloud directly.
func NewCloudClient(baseURL, apiKey string, timeout time.Duration, cb *CircuitBreaker) *CloudClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &CloudClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		cb:         cb,
	}
}

// Configured reports whether an endpoint was supplied.
func (c *CloudClient) Configured() bool { return c != nil && c.baseURL != "" }

// Breaker exposes the circuit breaker for health reporting.
func (c *CloudClient) Breaker() *CircuitBreaker {
	if c == nil {
		return nil
	}
	return c.cb
}

// FetchUpdatedSince returns remote orders stamped after since, newest first,
// at most limit rows.
func (c *CloudClient) FetchUpdatedSince(ctx context.Context, since time.Time, limit int) ([]model.Order, error) {
	q := url.Values{}
	q.Set("updated_after", since.UTC().Format(time.RFC3339Nano))
	q.Set("order", "date.desc")
	q.Set("limit", strconv.Itoa(limit))

	var out []model.Order
	err := c.execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/orders?"+q.Encode(), nil)
		if err != nil {
			return fmt.Errorf("cloud: create request: %w", err)
		}
		resp, err := c.do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("cloud: decode orders: %w", err)
		}
		return nil
	})
	return out, err
}

// Upsert writes the order to the cloud keyed by its id.
func (c *CloudClient) Upsert(ctx context.Context, o *model.Order) error {
	body, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("cloud: marshal order: %w", err)
	}
	return c.execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/orders/"+o.ID.String(), bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("cloud: create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		return nil
	})
}

func (c *CloudClient) do(req *http.Request) (*http.Response, error) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloud: unreachable: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("cloud: %s %s returned %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	return resp, nil
}

func (c *CloudClient) execute(fn func() error) error {
	if !c.Configured() {
		return ErrCloudNotConfigured
	}
	if c.cb == nil {
		return fn()
	}
	return c.cb.Execute(fn)
}
