package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHealthHandler_Readiness(t *testing.T) {
	e := echo.New()
	h := NewHealthHandler(map[string]HealthCheck{
		"mongodb": func(context.Context) error { return nil },
		"redis":   func(context.Context) error { return errors.New("connection refused") },
	})

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	if err := h.Readiness(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Readiness: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	var resp readinessResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Status != "degraded" || resp.Dependencies["mongodb"].Status != "ok" || resp.Dependencies["redis"].Error == "" {
		t.Fatalf("unexpected readiness: %+v", resp)
	}
}

func TestHealthHandler_NoDependencies(t *testing.T) {
	e := echo.New()
	h := NewHealthHandler(nil)

	for _, probe := range []echo.HandlerFunc{h.Liveness, h.Readiness} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		if err := probe(e.NewContext(req, rec)); err != nil {
			t.Fatalf("probe: %v", err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	}
}
