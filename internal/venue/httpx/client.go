// Package httpx is the shared REST plumbing every venue adapter builds its
// client on: marshal, send, read, map non-2xx responses to a
// venue.AdapterError. Every teacher platform client (polymarket/clob.go,
// polymarket/gamma.go, kalshi/client.go) duplicated this exact shape with
// venue-specific status-code messages; fourteen adapters duplicating it
// again would just be copy-paste, so it is pulled up into one helper that
// each adapter's signing layer wraps.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/agenthub/venuecore/internal/venue"
)

// Client is a minimal REST client bound to one venue's API root.
type Client struct {
	Tag        string
	BaseURL    string
	HTTPClient *http.Client
}

// New returns a Client with the teacher's 30s request timeout.
func New(tag, baseURL string) *Client {
	return &Client{
		Tag:        tag,
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Request describes one outgoing call before signing headers are attached.
type Request struct {
	Method  string
	Path    string // joined onto BaseURL as-is; callers encode query strings
	Body    any    // JSON-marshaled if non-nil; nil means no request body
	Headers map[string]string
}

// Do sends req and decodes the JSON response body into out (if out is
// non-nil). Non-2xx responses are returned as a *venue.AdapterError.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	raw, err := c.doRaw(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return venue.NewVenueError(c.Tag, "decode_error", fmt.Sprintf("decode response: %v", err))
	}
	return nil
}

// doRaw sends req and returns the raw response body, translating transport
// and status-code failures into a *venue.AdapterError.
func (c *Client) doRaw(ctx context.Context, req Request) ([]byte, error) {
	var bodyReader io.Reader
	var bodyStr string
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, venue.NewVenueError(c.Tag, "encode_error", fmt.Sprintf("encode request: %v", err))
		}
		bodyStr = string(encoded)
		bodyReader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.BaseURL+req.Path, bodyReader)
	if err != nil {
		return nil, venue.NewNetworkError(c.Tag, err)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, venue.NewNetworkError(c.Tag, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, venue.NewNetworkError(c.Tag, err)
	}

	if err := c.mapStatus(resp, respBody); err != nil {
		return nil, err
	}
	_ = bodyStr // not used further; the encoded body is not returned to callers
	return respBody, nil
}

// mapStatus translates an HTTP status code into the matching AdapterError
// kind, per spec.md's closed error taxonomy.
func (c *Client) mapStatus(resp *http.Response, body []byte) error {
	code := resp.StatusCode
	if code >= 200 && code < 300 {
		return nil
	}

	msg := string(body)
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return venue.NewAuthError(c.Tag, msg, nil)
	case http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return venue.NewRateLimited(c.Tag, retryAfter)
	case http.StatusNotFound:
		return venue.NewVenueError(c.Tag, "not_found", msg)
	default:
		return venue.NewVenueError(c.Tag, strconv.Itoa(code), msg)
	}
}

// WrapErr normalizes err into a *venue.AdapterError for tag: errors already
// produced by Do/doRaw pass through unchanged, anything else (a decode
// error the caller hit after Do succeeded, a context cancellation) is
// wrapped as a generic venue error.
func WrapErr(tag string, err error) error {
	if err == nil {
		return nil
	}
	var ae *venue.AdapterError
	if errors.As(err, &ae) {
		return ae
	}
	return venue.NewVenueError(tag, "unknown", err.Error())
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 5 * time.Second
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	return 5 * time.Second
}
