package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func listServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func TestDashboardComposesBothUpstreams(t *testing.T) {
	users := listServer(t, `{"success":true,"count":2,"data":[{"id":1},{"id":2}]}`)
	defer users.Close()
	products := listServer(t, `{"success":true,"count":3,"data":[{"id":1},{"id":2},{"id":3}]}`)
	defer products.Close()

	h := dashboardHandler(testLogger(), &http.Client{}, users.URL, products.URL)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
	rw := httptest.NewRecorder()
	h(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}

	var resp struct {
		Success   bool `json:"success"`
		Dashboard struct {
			Users    struct{ Count int } `json:"users"`
			Products struct{ Count int } `json:"products"`
		} `json:"dashboard"`
	}
	if err := json.NewDecoder(rw.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success {
		t.Fatal("expected success envelope")
	}
	if resp.Dashboard.Users.Count != 2 || resp.Dashboard.Products.Count != 3 {
		t.Fatalf("unexpected counts: %+v", resp.Dashboard)
	}
}

func TestDashboardFailsWhollyWhenAnUpstreamIsDown(t *testing.T) {
	users := listServer(t, `{"success":true,"count":2,"data":[]}`)
	defer users.Close()
	products := listServer(t, `{}`)
	products.Close() // connection refused from here on

	h := dashboardHandler(testLogger(), &http.Client{}, users.URL, products.URL)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
	rw := httptest.NewRecorder()
	h(rw, req)
	if rw.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rw.Code)
	}

	var resp struct {
		Success bool           `json:"success"`
		Detail  string         `json:"detail"`
		Extra   map[string]any `json:"dashboard"`
	}
	if err := json.NewDecoder(rw.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Success {
		t.Fatal("expected failure envelope")
	}
	if resp.Extra != nil {
		t.Fatal("no partial dashboard may be returned")
	}
	if resp.Detail == "" {
		t.Fatal("failure must name the failing upstream")
	}
}

func TestDashboardFailsOnUpstreamError(t *testing.T) {
	users := listServer(t, `{"success":true,"count":2,"data":[]}`)
	defer users.Close()
	products := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer products.Close()

	h := dashboardHandler(testLogger(), &http.Client{}, users.URL, products.URL)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
	rw := httptest.NewRecorder()
	h(rw, req)
	if rw.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rw.Code)
	}
}

func TestProxyStripsAPIPrefix(t *testing.T) {
	var gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	proxy := newProxy(testLogger(), "user-service", upstream.URL, http.DefaultTransport)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/1", nil)
	rw := httptest.NewRecorder()
	proxy.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	if gotPath != "/users/1" {
		t.Fatalf("expected upstream path /users/1, got %q", gotPath)
	}
}

func TestProxyReportsUnreachableUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	upstream.Close()

	proxy := newProxy(testLogger(), "user-service", upstream.URL, http.DefaultTransport)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	rw := httptest.NewRecorder()
	proxy.ServeHTTP(rw, req)
	if rw.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rw.Code)
	}

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(rw.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Success || resp.Message == "" {
		t.Fatalf("expected failure envelope naming the upstream, got %+v", resp)
	}
}
