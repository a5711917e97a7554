package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyrabbit/token-insight/config"
)

func TestClient_Get(t *testing.T) {
	var gotQuery, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAccept = r.Header.Get("Accept")
		if r.URL.Path == "/limited" {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(strings.Repeat("x", 500)))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := New(&config.Config{Timeout: 5})

	t.Run("query params", func(t *testing.T) {
		body, err := client.Get(context.Background(), server.URL+"/ok?keep=1", map[string]string{"ids": "bitcoin"})
		require.NoError(t, err)
		assert.Equal(t, `{"ok":true}`, string(body))
		assert.Equal(t, "ids=bitcoin&keep=1", gotQuery)
		assert.Equal(t, "application/json", gotAccept)
	})

	t.Run("non-2xx", func(t *testing.T) {
		body, err := client.Get(context.Background(), server.URL+"/limited", nil)
		require.Error(t, err)
		var respErr *ResponseError
		require.True(t, errors.As(err, &respErr))
		assert.Equal(t, http.StatusTooManyRequests, respErr.StatusCode)
		assert.Len(t, body, 500, "body is still returned")
		assert.Less(t, len(err.Error()), 250, "long bodies are truncated in the message")
	})

	t.Run("malformed url", func(t *testing.T) {
		_, err := client.Get(context.Background(), "http://[::1", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse url http://[::1")
		var urlErr *url.Error
		assert.True(t, errors.As(err, &urlErr), "cause is kept")
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := client.Get(ctx, server.URL+"/ok", nil)
		assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	})
}

func TestResponseError_ShortBody(t *testing.T) {
	err := &ResponseError{StatusCode: 502, Status: "502 Bad Gateway", Body: []byte("oops")}
	assert.Equal(t, "HTTP 502 Bad Gateway, body oops", err.Error())
}
