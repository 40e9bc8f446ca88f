package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"vegasstrategy/config"
)

func TestHandleHealthReturnsOK(t *testing.T) {
	s := NewServer(config.ServerConfig{AllowedOrigins: "*"}, config.AuthConfig{}, zerolog.Nop(), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %+v", body)
	}
}

func TestHandleSweepProgressRequiresQueryParams(t *testing.T) {
	s := NewServer(config.ServerConfig{AllowedOrigins: "*"}, config.AuthConfig{}, zerolog.Nop(), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sweep/progress", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 without instrument/period, got %d", rec.Code)
	}
}

func TestHubBroadcastWithNoClientsDoesNotBlock(t *testing.T) {
	h := NewHub(zerolog.Nop())
	go h.Run()

	if h.ClientCount() != 0 {
		t.Fatalf("expected 0 clients before registration, got %d", h.ClientCount())
	}

	h.Broadcast(Event{Type: "signal", Timestamp: time.Now()})
	// Broadcast with no registered clients must not block or panic.
	time.Sleep(10 * time.Millisecond)
}
