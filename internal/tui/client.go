package tui

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Asker sends one message to the assistant.
type Asker interface {
	Ask(ctx context.Context, msg string) (string, error)
}

// HTTPAsker talks to a running server through its form endpoint.
type HTTPAsker struct {
	endpoint string
	hc       *http.Client
}

func NewHTTPAsker(addr string, timeout time.Duration) *HTTPAsker {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &HTTPAsker{
		endpoint: strings.TrimRight(addr, "/") + "/get",
		hc:       &http.Client{Timeout: timeout},
	}
}

func (a *HTTPAsker) Ask(ctx context.Context, msg string) (string, error) {
	form := url.Values{"msg": {msg}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := a.hc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(body))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: %s", resp.Status, text)
	}
	return text, nil
}
