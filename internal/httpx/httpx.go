package httpx

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"medbot/internal/resilience"
)

// maxBody caps how much of a response is read into memory.
const maxBody = 8 << 20

// Client is a small JSON-over-HTTP client shared by the REST adapters.
// It makes exactly one attempt per call and classifies failures so that
// a resilience.Policy around it knows what to retry.
type Client struct {
	hc *http.Client
}

// New creates a client with the given per-request timeout.
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{hc: &http.Client{Timeout: timeout, Transport: transport}}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Status string
	Body   string
	after  time.Duration
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s %s failed: %s: %s", e.Method, e.URL, e.Status, e.Body)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Method, e.URL, e.Status)
}

// RetryAfter returns the delay requested by the server, if any.
func (e *StatusError) RetryAfter() time.Duration { return e.after }

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Send issues one request with an optional JSON body and returns the
// response body. Non-transient status errors are marked permanent.
func (c *Client) Send(ctx context.Context, method, url string, header http.Header, body any) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, resilience.Permanent(fmt.Errorf("encode request: %w", err))
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, resilience.Permanent(err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		se := &StatusError{
			Method: method,
			URL:    url,
			Code:   resp.StatusCode,
			Status: resp.Status,
			Body:   snippet(payload),
		}
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				se.after = time.Duration(secs) * time.Second
			}
		}
		if !se.Transient() {
			return nil, resilience.Permanent(se)
		}
		return nil, se
	}
	return payload, nil
}

// PostJSON is Send with POST.
func (c *Client) PostJSON(ctx context.Context, url string, header http.Header, body any) ([]byte, error) {
	return c.Send(ctx, http.MethodPost, url, header, body)
}

// Bearer builds an Authorization header for token, or nil when empty.
func Bearer(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

// ModelError converts an "error" field found in a successful inference
// response. Only a model that is still loading is worth retrying.
func ModelError(model string, root gjson.Result) error {
	msg := root.Get("error")
	if !msg.Exists() {
		return nil
	}
	err := fmt.Errorf("%s: %s", model, msg.String())
	if root.Get("estimated_time").Exists() || strings.Contains(strings.ToLower(msg.String()), "loading") {
		return err
	}
	return resilience.Permanent(err)
}

// snippet shortens b for error messages without splitting a rune.
func snippet(b []byte) string {
	const n = 256
	if len(b) <= n {
		return string(b)
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return string(b[:cut]) + "..."
}
