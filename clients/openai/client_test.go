package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Complete(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"[{\"title\":\"Dune\"}]"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/v1", "sk-test", "", time.Second)
	out, err := c.Complete(context.Background(), "sys", "usr", 1000, 0.7)
	require.NoError(t, err)

	assert.Equal(t, `[{"title":"Dune"}]`, out)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, 1000, got.MaxTokens)
	assert.InDelta(t, 0.7, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "usr", got.Messages[1].Content)
}

func TestClient_CompleteSurfacesProviderMessage(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test", "gpt-4o-mini", time.Second)
	_, err := c.Complete(context.Background(), "sys", "usr", 1000, 0.7)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Rate limit reached", apiErr.Message)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, 1, calls)
}

func TestClient_NotConfigured(t *testing.T) {
	c := NewClient("", "", "", 0)
	_, err := c.Complete(context.Background(), "s", "u", 10, 0)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, ExtractJSON("Here you go:\n```json\n{\"a\": 1,}\n```"))
	assert.Equal(t, `[1, 2]`, ExtractJSON("  [1, 2,]  "))
	assert.Equal(t, "just text", ExtractJSON("just text"))
}
