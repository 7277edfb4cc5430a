// Package cartclient is the storefront-side adapter for the cart
// backend's REST surface. It never retries on its own and it never
// conflates "cart unavailable" with "cart is empty": any non-success
// response comes back as an error.
package cartclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mahmoudessam700/electronics-cart/internal/domain"
)

var (
	// ErrUnauthorized means the token was rejected; callers must not
	// treat this as transient.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnavailable covers timeouts, 5xx and open-breaker rejections.
	ErrUnavailable = errors.New("cart service unavailable")
)

type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

func New(baseURL string, timeout time.Duration) *Client {
	settings := gobreaker.Settings{
		Name:    "cart-backend",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: gobreaker.NewCircuitBreaker[*http.Response](settings),
	}
}

type entryDTO struct {
	ProductRef string `json:"product_ref"`
	Quantity   int    `json:"quantity"`
}

// Fetch returns the authenticated account's current cart.
func (c *Client) Fetch(ctx context.Context, token string) ([]domain.CartEntry, error) {
	resp, err := c.do(ctx, token, http.MethodGet, "/cart", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var entries []domain.CartEntry
	if errDecode := json.NewDecoder(resp.Body).Decode(&entries); errDecode != nil {
		return nil, fmt.Errorf("%w: malformed cart response: %v", ErrUnavailable, errDecode)
	}

	return domain.Normalize(entries), nil
}

// Upsert adds quantity to the entry for productRef (additive).
func (c *Client) Upsert(ctx context.Context, token string, productRef string, quantity int) error {
	body := entryDTO{ProductRef: productRef, Quantity: quantity}
	resp, err := c.do(ctx, token, http.MethodPost, "/cart", body)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// SetQuantity replaces the entry's quantity absolutely.
func (c *Client) SetQuantity(ctx context.Context, token string, productRef string, quantity int) error {
	body := entryDTO{ProductRef: productRef, Quantity: quantity}
	resp, err := c.do(ctx, token, http.MethodPut, "/cart", body)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Remove deletes one entry.
func (c *Client) Remove(ctx context.Context, token string, productRef string) error {
	path := "/cart?productId=" + url.QueryEscape(productRef)
	resp, err := c.do(ctx, token, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Clear empties the whole cart.
func (c *Client) Clear(ctx context.Context, token string) error {
	resp, err := c.do(ctx, token, http.MethodDelete, "/cart?clearAll=true", nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) do(ctx context.Context, token, method, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, errDo := c.http.Do(req)
		if errDo != nil {
			return nil, errDo
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			return nil, fmt.Errorf("server error: %s", resp.Status)
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open", ErrUnavailable)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		return nil, ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: unexpected status %s", ErrUnavailable, resp.Status)
	}

	return resp, nil
}
