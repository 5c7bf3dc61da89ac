package probe_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/irfndi/dealer-trust-engine/internal/config"
	"github.com/irfndi/dealer-trust-engine/pkg/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	client := probe.NewClient(&config.ProbeConfig{ServiceURL: "http://localhost:3001/", Timeout: 0}, nil)
	assert.Equal(t, "http://localhost:3001", client.BaseURL)
	assert.Equal(t, 30*time.Second, client.HTTPClient.Timeout)

	client = probe.NewClient(&config.ProbeConfig{ServiceURL: "http://probe", Timeout: 5}, nil)
	assert.Equal(t, 5*time.Second, client.HTTPClient.Timeout)
}

func TestClient_HealthCheck(t *testing.T) {
	tests := []struct {
		name           string
		responseStatus int
		responseBody   interface{}
		expectError    bool
	}{
		{
			name:           "healthy",
			responseStatus: http.StatusOK,
			responseBody:   probe.HealthResponse{Status: "ok", Timestamp: time.Now(), Version: "2.1.0"},
		},
		{
			name:           "server error",
			responseStatus: http.StatusServiceUnavailable,
			responseBody:   probe.ErrorResponse{Error: "warming up"},
			expectError:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/health", r.URL.Path)
				assert.Equal(t, http.MethodGet, r.Method)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.responseStatus)
				_ = json.NewEncoder(w).Encode(tt.responseBody)
			}))
			defer server.Close()

			client := probe.NewClient(&config.ProbeConfig{ServiceURL: server.URL, Timeout: 5}, nil)
			resp, err := client.HealthCheck(context.Background())
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "warming up")
				assert.Nil(t, resp)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ok", resp.Status)
		})
	}
}

func TestClient_Acquire(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/visibility/TX/San%20Antonio", r.URL.EscapedPath())
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_ = json.NewEncoder(w).Encode(probe.GeoScoreResponse{
			City:     "San Antonio",
			State:    "TX",
			Score:    68.4,
			Engines:  []string{"chatgpt", "perplexity"},
			ProbedAt: time.Now(),
		})
	}))
	defer server.Close()

	client := probe.NewClient(&config.ProbeConfig{ServiceURL: server.URL, Timeout: 5, APIKey: "secret"}, nil)
	score, err := client.Acquire(context.Background(), "San Antonio", "TX")
	require.NoError(t, err)
	assert.Equal(t, 68.4, score)
}

func TestClient_AcquireErrors(t *testing.T) {
	t.Run("plain text error body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("bad gateway"))
		}))
		defer server.Close()

		client := probe.NewClient(&config.ProbeConfig{ServiceURL: server.URL, Timeout: 5}, nil)
		_, err := client.Acquire(context.Background(), "Austin", "TX")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
		assert.Contains(t, err.Error(), "bad gateway")
	})

	t.Run("json error body keeps status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(probe.ErrorResponse{Error: "unknown geography"})
		}))
		defer server.Close()

		client := probe.NewClient(&config.ProbeConfig{ServiceURL: server.URL, Timeout: 5}, nil)
		_, err := client.Acquire(context.Background(), "Nowhere", "ZZ")
		var statusErr *probe.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusNotFound, statusErr.HTTPStatus())
		assert.Equal(t, "unknown geography", statusErr.Message)
		assert.Equal(t, "probe service error (404): unknown geography", err.Error())
	})

	t.Run("malformed payload", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("{not json"))
		}))
		defer server.Close()

		client := probe.NewClient(&config.ProbeConfig{ServiceURL: server.URL, Timeout: 5}, nil)
		_, err := client.Acquire(context.Background(), "Austin", "TX")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unmarshal")
	})

	t.Run("cancelled context", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		client := probe.NewClient(&config.ProbeConfig{ServiceURL: server.URL, Timeout: 5}, nil)
		_, err := client.Acquire(ctx, "Austin", "TX")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
