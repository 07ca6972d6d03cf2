package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"medbot/internal/resilience"
)

func TestPostJSONSendsBodyAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var in map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["q"]})
	}))
	defer srv.Close()

	out, err := New(time.Second).PostJSON(context.Background(), srv.URL, Bearer("tok"), map[string]string{"q": "fever"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"echo":"fever"}`, string(out))
}

func TestClientErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := New(time.Second).PostJSON(context.Background(), srv.URL, nil, map[string]string{})
	require.Error(t, err)
	assert.False(t, resilience.Retryable(err))
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.Contains(t, se.Error(), "bad key")
}

func TestServerErrorIsRetriedByPolicy(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(time.Second)
	p := resilience.Policy{Attempts: 3, MinBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	err := p.Do(context.Background(), "test", func(ctx context.Context) error {
		_, err := c.PostJSON(ctx, srv.URL, nil, map[string]string{})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestBearerEmpty(t *testing.T) {
	assert.Empty(t, Bearer("").Get("Authorization"))
}

func TestModelErrorRetriesOnlyLoading(t *testing.T) {
	assert.NoError(t, ModelError("m", gjson.Parse(`[{"generated_text":"ok"}]`)))

	err := ModelError("m", gjson.Parse(`{"error":"Model m is currently loading","estimated_time":20}`))
	require.Error(t, err)
	assert.True(t, resilience.Retryable(err))

	err = ModelError("m", gjson.Parse(`{"error":"Input validation error: inputs too long"}`))
	require.Error(t, err)
	assert.False(t, resilience.Retryable(err))
	assert.Contains(t, err.Error(), "inputs too long")
}

func TestSnippetKeepsValidUTF8(t *testing.T) {
	body := []byte(strings.Repeat("a", 255) + "é" + strings.Repeat("b", 10))
	got := snippet(body)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", 255)+"...", got)

	assert.Equal(t, "short", snippet([]byte("short")))
}
