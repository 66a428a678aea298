package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"cashense/internal/services"
	"cashense/internal/store/memory"
)

func newTestServer(t *testing.T) (*Server, *services.CashbookService) {
	t.Helper()
	svc := services.NewCashbookService(memory.New(), nil)
	srv := NewServer(":0", svc, 4)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv, svc
}

func postForm(srv *Server, path string, form url.Values) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func get(srv *Server, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestDashboardAndHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := get(srv, "/")
	if rr.Code != 200 {
		t.Fatalf("dashboard status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Cashense") {
		t.Fatalf("dashboard body missing heading")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		if rr := get(srv, path); rr.Code != 200 {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestDashboardUnknownPathIs404(t *testing.T) {
	srv, _ := newTestServer(t)
	if rr := get(srv, "/nope"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestCreateCashbookValidationAndSuccess(t *testing.T) {
	srv, _ := newTestServer(t)

	// Wrong method
	if rr := get(srv, "/cashbooks"); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}

	// Empty name
	rr := postForm(srv, "/cashbooks", url.Values{"name": {"   "}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}

	// Name too long
	rr = postForm(srv, "/cashbooks", url.Values{"name": {strings.Repeat("x", 101)}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}

	// Success
	rr = postForm(srv, "/cashbooks", url.Values{
		"name":        {"Travel"},
		"description": {"summer"},
		"category":    {"trips"},
	})
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "success") {
		t.Fatalf("expected success fragment, got %s", rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "cashbook:changed") {
		t.Fatalf("expected change trigger header")
	}
}

func TestUpdateCashbookOnlySubmittedFields(t *testing.T) {
	srv, svc := newTestServer(t)
	ctx := context.Background()

	cb, err := svc.Create(ctx, "Travel", "summer", "trips")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rr := postForm(srv, "/cashbooks/update", url.Values{
		"id":   {cb.ID},
		"name": {"Travel 2026"},
	})
	if rr.Code != 200 {
		t.Fatalf("update status=%d: %s", rr.Code, rr.Body.String())
	}

	got, err := svc.Get(ctx, cb.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Travel 2026" {
		t.Fatalf("name not updated: %s", got.Name)
	}
	if got.Description != "summer" || got.Category != "trips" {
		t.Fatalf("unsubmitted fields changed: %+v", got)
	}
}

func TestUpdateUnknownCashbookIs404(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := postForm(srv, "/cashbooks/update", url.Values{"id": {"ghost"}, "name": {"x"}})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestDeleteCashbook(t *testing.T) {
	srv, svc := newTestServer(t)
	ctx := context.Background()

	cb, _ := svc.Create(ctx, "Groceries", "", "")

	rr := postForm(srv, "/cashbooks/delete", url.Values{"id": {cb.ID}})
	if rr.Code != 200 {
		t.Fatalf("delete status=%d", rr.Code)
	}

	if _, err := svc.Get(ctx, cb.ID); err == nil {
		t.Fatalf("expected cashbook gone")
	}

	rr = postForm(srv, "/cashbooks/delete", url.Values{"id": {cb.ID}})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", rr.Code)
	}
}

func TestRecentCashbooksPartial(t *testing.T) {
	srv, svc := newTestServer(t)
	ctx := context.Background()

	for _, name := range []string{"A", "B", "C", "D", "E"} {
		if _, err := svc.Create(ctx, name, "", ""); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	rr := get(srv, "/ui/recent-cashbooks")
	if rr.Code != 200 {
		t.Fatalf("recent status=%d", rr.Code)
	}
	body := rr.Body.String()
	if strings.Contains(body, ">A<") {
		t.Fatalf("oldest cashbook should not be in default recent grid: %s", body)
	}
	if !strings.Contains(body, ">E<") {
		t.Fatalf("newest cashbook missing from recent grid: %s", body)
	}

	// Explicit limit
	rr = get(srv, "/ui/recent-cashbooks?limit=2")
	if rr.Code != 200 {
		t.Fatalf("recent limit=2 status=%d", rr.Code)
	}
	if got := strings.Count(rr.Body.String(), `class="cashbook-card"`); got != 2 {
		t.Fatalf("expected 2 cards, got %d", got)
	}

	// Invalid limits
	if rr := get(srv, "/ui/recent-cashbooks?limit=abc"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric limit, got %d", rr.Code)
	}
	if rr := get(srv, "/ui/recent-cashbooks?limit=-1"); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for negative limit, got %d", rr.Code)
	}
	// An explicit zero is a validation error, not the default.
	if rr := get(srv, "/ui/recent-cashbooks?limit=0"); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for explicit zero limit, got %d", rr.Code)
	}
}

func TestAllCashbooksPartialReflectsMutations(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := get(srv, "/ui/cashbooks")
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), "No cashbooks yet") {
		t.Fatalf("expected empty list, got %d: %s", rr.Code, rr.Body.String())
	}

	postForm(srv, "/cashbooks", url.Values{"name": {"Travel"}})

	// The cached empty fragment must have been invalidated.
	rr = get(srv, "/ui/cashbooks")
	if !strings.Contains(rr.Body.String(), "Travel") {
		t.Fatalf("expected new cashbook in list, got %s", rr.Body.String())
	}
}

func TestCashbookStatsPartial(t *testing.T) {
	srv, svc := newTestServer(t)

	cb, _ := svc.Create(context.Background(), "Travel", "", "")

	rr := get(srv, "/cashbooks/stats?id="+cb.ID)
	if rr.Code != 200 {
		t.Fatalf("stats status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "0 entries") {
		t.Fatalf("expected zero aggregates, got %s", rr.Body.String())
	}

	if rr := get(srv, "/cashbooks/stats?id=ghost"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", rr.Code)
	}
	if rr := get(srv, "/cashbooks/stats"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing id, got %d", rr.Code)
	}
}

func TestSecurityHeadersPresent(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := get(srv, "/")
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing security headers")
	}
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatalf("missing frame options header")
	}
}

func TestRateLimitAppliesToMutations(t *testing.T) {
	srv, _ := newTestServer(t)

	var last int
	for i := 0; i < rateLimitRequests+5; i++ {
		rr := postForm(srv, "/cashbooks", url.Values{"name": {"spam"}})
		last = rr.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after hammering mutations, got %d", last)
	}

	// Reads stay unthrottled.
	if rr := get(srv, "/ui/cashbooks"); rr.Code != 200 {
		t.Fatalf("read should not be rate limited, got %d", rr.Code)
	}
}
