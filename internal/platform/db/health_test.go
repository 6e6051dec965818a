package db

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestPoolStats_JSON(t *testing.T) {
	stats := PoolStats{
		TotalConns:      1,
		IdleConns:       1,
		MaxConns:        10,
		AcquireCount:    50,
		AcquireDuration: "250ms",
		Healthy:         true,
	}
	data, err := json.Marshal(stats)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"total_conns", "idle_conns", "acquired_conns", "max_conns", "acquire_count", "acquire_duration", "healthy"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing JSON field %q", key)
		}
	}
}

func runReady(t *testing.T, checks ...Check) (int, map[string]interface{}) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := ReadyHandler(checks...)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec.Code, body
}

func TestReadyHandler_AllHealthy(t *testing.T) {
	ok := func(context.Context) error { return nil }
	code, body := runReady(t, Check{"postgres", ok}, Check{"redis", ok})
	if code != http.StatusOK {
		t.Errorf("expected 200, got %d", code)
	}
	if body["status"] != "ready" {
		t.Errorf("expected ready, got %v", body["status"])
	}
}

func TestReadyHandler_OneFailing(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }
	code, body := runReady(t, Check{"postgres", ok}, Check{"redis", down})
	if code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", code)
	}
	checks, _ := body["checks"].(map[string]interface{})
	if checks["postgres"] != "ok" || checks["redis"] != "connection refused" {
		t.Errorf("unexpected checks: %v", checks)
	}
}

func TestReadyHandler_NoChecks(t *testing.T) {
	code, _ := runReady(t)
	if code != http.StatusOK {
		t.Errorf("expected 200, got %d", code)
	}
}
