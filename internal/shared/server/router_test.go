package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"billing-backend/internal/regions"
	"billing-backend/internal/services/health"
	"billing-backend/internal/shared/config"
)

func newTestRouter() http.Handler {
	return NewRouter(RouterDeps{
		Config:        config.Config{Env: "dev"},
		Secret:        []byte("test-secret"),
		Health:        health.NewService(nil, "none"),
		RegionHandler: regions.NewHandler(regions.NewMemoryRepo(regions.DevRegions()...)),
	})
}

func TestHealthIsPublic(t *testing.T) {
	router := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var status health.Status
	if err := json.Unmarshal(resp.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.OK || status.Database != "memory" {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestMetricsIsPublic(t *testing.T) {
	router := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestMeRequiresIdentity(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("X-User-Email", "billing@example.com")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body meResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Email != "billing@example.com" || body.UserID != "dev:billing@example.com" || !body.DevIdentity {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestRegionsMounted(t *testing.T) {
	router := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/regions", nil)
	req.Header.Set("X-User-Email", "billing@example.com")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestAddr(t *testing.T) {
	cases := map[string]string{"": ":8080", "9000": ":9000", ":7000": ":7000"}
	for in, want := range cases {
		if got := Addr(in); got != want {
			t.Fatalf("Addr(%q): expected %q, got %q", in, want, got)
		}
	}
}
