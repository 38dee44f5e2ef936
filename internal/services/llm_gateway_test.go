package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRouterGatewayComplete(t *testing.T) {
	var received chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "Advisor Journal", r.Header.Get("X-Title"))
		assert.Equal(t, "http://localhost:3000", r.Header.Get("HTTP-Referer"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello back"}}]}`))
	}))
	defer server.Close()

	metrics := NewMetrics(prometheus.NewRegistry())
	gw := NewOpenRouterGateway(GatewayOptions{
		BaseURL: server.URL + "/",
		Referer: "http://localhost:3000",
		Title:   "Advisor Journal",
		Metrics: metrics,
	})

	text, err := gw.Complete(context.Background(), "hello", "sk-test", "openai/gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "hello back", text)

	assert.Equal(t, "openai/gpt-4o", received.Model)
	require.Len(t, received.Messages, 1)
	assert.Equal(t, "user", received.Messages[0].Role)
	assert.Equal(t, "hello", received.Messages[0].Content)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GatewayRequests.WithLabelValues("openai/gpt-4o", "ok")))
}

func TestOpenRouterGatewayErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		apiKey     string
		wantKind   GatewayErrorKind
		wantString string
	}{
		{
			name:       "provider error message",
			status:     http.StatusPaymentRequired,
			body:       `{"error":{"message":"Insufficient credits","code":402}}`,
			apiKey:     "sk-test",
			wantKind:   GatewayErrorStatus,
			wantString: "API Error (402): Insufficient credits",
		},
		{
			name:       "plain text error body",
			status:     http.StatusBadGateway,
			body:       "upstream down",
			apiKey:     "sk-test",
			wantKind:   GatewayErrorStatus,
			wantString: "API Error (502): upstream down",
		},
		{
			name:     "empty choices",
			status:   http.StatusOK,
			body:     `{"choices":[]}`,
			apiKey:   "sk-test",
			wantKind: GatewayErrorDecode,
		},
		{
			name:     "garbage body",
			status:   http.StatusOK,
			body:     `not json`,
			apiKey:   "sk-test",
			wantKind: GatewayErrorDecode,
		},
		{
			name:     "missing key",
			status:   http.StatusOK,
			body:     `{}`,
			apiKey:   "  ",
			wantKind: GatewayErrorAuth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			gw := NewOpenRouterGateway(GatewayOptions{BaseURL: server.URL})
			_, err := gw.Complete(context.Background(), "p", tt.apiKey, "m")
			require.Error(t, err)

			var gwErr *GatewayError
			require.True(t, errors.As(err, &gwErr))
			assert.Equal(t, tt.wantKind, gwErr.Kind)
			if tt.wantString != "" {
				assert.Equal(t, tt.wantString, err.Error())
			}
			if tt.wantKind == GatewayErrorAuth {
				assert.Zero(t, calls, "no request without a key")
				assert.ErrorIs(t, err, ErrMissingAPIKey)
			}
		})
	}
}

func TestOpenRouterGatewayNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	gw := NewOpenRouterGateway(GatewayOptions{BaseURL: url})
	_, err := gw.Complete(context.Background(), "p", "sk-test", "m")

	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, GatewayErrorNetwork, gwErr.Kind)
}

func TestCredentialLimiterIsPerKey(t *testing.T) {
	limiter := newCredentialLimiter(0.0001, 1)

	require.NoError(t, limiter.wait(context.Background(), "key-a"))
	require.NoError(t, limiter.wait(context.Background(), "key-b"))

	// key-a's only token is spent; a cancelled context must not block
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, limiter.wait(ctx, "key-a"))
}
