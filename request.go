package xclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/anatolykoptev/go-xclient/xtid"
)

// Response is a successful API response.
type Response struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

// JSON decodes the response body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Get sends a signed GET request.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, rawURL, nil)
}

// PostJSON marshals payload and sends it as a signed POST request.
func (c *Client) PostJSON(ctx context.Context, rawURL string, payload any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return c.Do(ctx, http.MethodPost, rawURL, body)
}

// Do sends a signed request, retrying transport errors, 5xx responses and
// internal errors (code 131) that carry no data. Every attempt gets a fresh
// transaction id over the method and URL path.
func (c *Client) Do(ctx context.Context, method, rawURL string, body []byte) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	endpoint := u.Path

	// Anti-fingerprint jitter
	if err := c.sleep(ctx); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := range c.cfg.MaxRetries {
		if attempt > 0 {
			delay := c.backoff(attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := c.doOnce(ctx, method, rawURL, endpoint, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) {
			if apiErr.Kind == KindCSRF && c.updateCT0(resp.headersOrNil()) {
				slog.Warn("xclient: csrf mismatch, retrying with rotated ct0", slog.String("endpoint", endpoint))
				continue
			}
			if !apiErr.Retryable() {
				return nil, err
			}
		}
		if errors.Is(err, ErrRateLimited) || errors.Is(err, xtid.ErrNotInitialized) || ctx.Err() != nil {
			return nil, err
		}
		slog.Warn("xclient: request failed, retrying",
			slog.String("endpoint", endpoint),
			slog.Int("attempt", attempt+1),
			slog.Any("error", err))
	}

	return nil, fmt.Errorf("%s %s failed after %d attempts: %w", method, endpoint, c.cfg.MaxRetries, lastErr)
}

// doOnce signs and sends one attempt. On an API error the response is still
// returned so the caller can inspect its headers.
func (c *Client) doOnce(ctx context.Context, method, rawURL, endpoint string, body []byte) (*Response, error) {
	if !c.rateLimiter.Allow(endpoint) {
		c.recordAPICall(endpoint, false, true)
		return nil, fmt.Errorf("%w: %s until %s", ErrRateLimited, endpoint,
			c.rateLimiter.AvailableAt(endpoint).Format(time.RFC3339))
	}

	txID, err := c.xtidMgr.GenerateID(ctx, method, endpoint)
	if err != nil {
		return nil, fmt.Errorf("sign %s %s: %w", method, endpoint, err)
	}

	authToken, ct0 := c.credentials()
	headers := apiHeaders(authToken, ct0, c.cfg.UserAgent, c.cfg.Language)
	headers[xtid.HeaderName] = txID

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	respBody, respHdrs, status, err := c.transport.DoWithHeaderOrder(method, rawURL, headers, reader, apiHeaderOrder)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	resp := &Response{Status: status, Headers: respHdrs, Body: respBody}

	if status < 200 || status >= 300 {
		apiErr := newAPIError(status, respBody, respHdrs)
		c.recordAPICall(endpoint, false, apiErr.rateLimited())
		c.markRateLimited(endpoint, apiErr)
		slog.Debug("xclient: non-2xx response",
			slog.String("endpoint", endpoint),
			slog.Int("status", status),
			slog.String("body", truncateBytes(respBody, 500)))
		return resp, apiErr
	}

	kind, code, message := classifyError(respBody)
	switch {
	case code == 0, kind == KindUnknown:
		// Unrecognized codes in a 2xx body are left to the caller.
	case kind == KindInternal && hasResponseData(respBody):
		slog.Debug("xclient: error 131 with usable data, treating as success", slog.String("endpoint", endpoint))
	default:
		apiErr := &APIError{Kind: kind, Status: status, Code: code, Message: message}
		if apiErr.rateLimited() {
			apiErr.RateLimitReset = parseRateLimitReset(respHdrs["x-rate-limit-reset"])
		}
		c.recordAPICall(endpoint, false, apiErr.rateLimited())
		c.markRateLimited(endpoint, apiErr)
		return resp, apiErr
	}

	c.updateCT0(respHdrs)
	c.recordAPICall(endpoint, true, false)
	return resp, nil
}

func (c *Client) markRateLimited(endpoint string, apiErr *APIError) {
	if !apiErr.rateLimited() {
		return
	}
	c.rateLimiter.MarkRateLimited(endpoint, apiErr.RateLimitReset)
	slog.Warn("xclient: endpoint rate limited",
		slog.String("endpoint", endpoint),
		slog.Time("until", apiErr.RateLimitReset))
}

func (r *Response) headersOrNil() map[string]string {
	if r == nil {
		return nil
	}
	return r.Headers
}
