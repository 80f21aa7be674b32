package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/portview/backend/pkg/config"
	"github.com/portview/backend/pkg/logger"
)

func testLogger(t *testing.T) (*config.Config, *logger.Logger) {
	t.Helper()
	cfg := &config.Config{
		Env:      "test",
		LogLevel: "error", // Reduce log noise
		Database: config.DatabaseConfig{
			URL: "dummy",
		},
	}
	return cfg, logger.New(cfg)
}

func TestNew(t *testing.T) {
	cfg, log := testLogger(t)

	client := New(cfg, log)
	if client == nil {
		t.Fatal("Expected client to be created")
	}

	if client.httpClient == nil {
		t.Error("Expected http.Client to be initialized")
	}

	if client.retryConfig.MaxRetries != 3 {
		t.Errorf("Expected MaxRetries=3, got %d", client.retryConfig.MaxRetries)
	}
}

func TestNewWithTimeout(t *testing.T) {
	cfg, log := testLogger(t)

	timeout := 5 * time.Second
	client := NewWithTimeout(cfg, log, timeout)

	if client.httpClient.Timeout != timeout {
		t.Errorf("Expected timeout=%v, got %v", timeout, client.httpClient.Timeout)
	}
}

func TestWithRetry(t *testing.T) {
	cfg, log := testLogger(t)

	client := New(cfg, log).WithRetry(5, 2*time.Second)

	if client.retryConfig.MaxRetries != 5 {
		t.Errorf("Expected MaxRetries=5, got %d", client.retryConfig.MaxRetries)
	}

	if client.retryConfig.InitialDelay != 2*time.Second {
		t.Errorf("Expected InitialDelay=2s, got %v", client.retryConfig.InitialDelay)
	}
}

func TestGet(t *testing.T) {
	cfg, log := testLogger(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := New(cfg, log)
	resp, err := client.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}

func TestGetJSON(t *testing.T) {
	cfg, log := testLogger(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"symbol":"SPY","close":510.25}`))
	}))
	defer server.Close()

	client := New(cfg, log).DisableRetry()

	var body struct {
		Symbol string  `json:"symbol"`
		Close  float64 `json:"close"`
	}
	err := client.GetJSON(context.Background(), server.URL, map[string]string{"X-Api-Key": "secret"}, &body)
	if err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}

	if body.Symbol != "SPY" || body.Close != 510.25 {
		t.Errorf("Unexpected body: %+v", body)
	}
}

func TestGetJSON_BadStatus(t *testing.T) {
	cfg, log := testLogger(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := New(cfg, log).DisableRetry()

	var body map[string]interface{}
	if err := client.GetJSON(context.Background(), server.URL, nil, &body); err == nil {
		t.Error("Expected error for non-200 status")
	}
}

func TestRetryOn500(t *testing.T) {
	cfg, log := testLogger(t)

	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(cfg, log).WithRetry(3, 10*time.Millisecond)
	resp, err := client.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()

	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected eventual 200, got %d", resp.StatusCode)
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{500, true},
		{502, true},
		{429, true},
		{404, false},
		{200, false},
	}

	for _, tt := range tests {
		if got := IsRetryableError(tt.status); got != tt.want {
			t.Errorf("IsRetryableError(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
