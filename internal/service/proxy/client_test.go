package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"objectsguesser/internal/config"
	"objectsguesser/internal/logger"
)

func newTestClient(t *testing.T, url string, timeout time.Duration) *Client {
	t.Helper()

	l, err := logger.NewLogger(&config.Config{LogDirectory: t.TempDir()})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	t.Cleanup(l.Close)

	return NewClient(&config.Config{InferenceURL: url, ProxyTimeout: timeout}, l)
}

func TestForward_NotConfigured(t *testing.T) {
	c := newTestClient(t, "", time.Second)

	if c.Configured() {
		t.Error("Client without URL should not be configured")
	}
	if _, err := c.Forward(context.Background(), Request{ImageURL: "http://x/a.jpg"}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
}

func TestForward_Verbatim(t *testing.T) {
	var received Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write([]byte(`{"detections": [1, 2, 3],  "odd":  true}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, time.Second)
	resp, err := c.Forward(context.Background(), Request{ImageURL: "http://img/cat.jpg", Threshold: 0.42})
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	if received.ImageURL != "http://img/cat.jpg" || received.Threshold != 0.42 {
		t.Errorf("Remote received %+v", received)
	}
	if string(resp.Body) != `{"detections": [1, 2, 3],  "odd":  true}` {
		t.Errorf("Body not passed through verbatim: %s", resp.Body)
	}
	if resp.ContentType != "application/json; charset=utf-8" {
		t.Errorf("Unexpected content type %q", resp.ContentType)
	}
}

func TestForward_UpstreamFailures(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer failing.Close()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()

	closed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	closedURL := closed.URL
	closed.Close()

	tests := []struct {
		name string
		url  string
	}{
		{"non-2xx", failing.URL},
		{"timeout", slow.URL},
		{"connection refused", closedURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.url, 100*time.Millisecond)
			if _, err := c.Forward(context.Background(), Request{ImageURL: "http://img/a.jpg"}); !errors.Is(err, ErrUpstream) {
				t.Errorf("Expected ErrUpstream, got %v", err)
			}
		})
	}
}
