package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"testai/internal/api"
	"testai/internal/config"
	"testai/internal/logger"
	"testai/internal/session"
	"testai/internal/shell"
)

type harness struct {
	server *Server
	store  *session.Store
	shell  *shell.Shell
}

func newHarness(t *testing.T, rps float64, backend http.HandlerFunc) *harness {
	t.Helper()
	remote := httptest.NewServer(backend)
	t.Cleanup(remote.Close)

	store := session.NewStore(session.NewMemoryStorage(), logger.Discard())
	client, err := api.NewClient(remote.URL+"/api", store, api.WithLogger(logger.Discard()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	sh := shell.New(store, logger.Discard())
	pages := Pages{
		Login:     shell.NewLoginPage(client.Auth, store, sh),
		Register:  shell.NewRegisterPage(client.Auth, store, sh),
		Dashboard: shell.NewDashboardPage(client.Dashboard, logger.Discard()),
	}
	cfg := config.Config{Port: "0", FrontendURL: "http://localhost:3000", RateLimitRPS: rps}
	return &harness{server: NewServer(cfg, sh, pages, logger.Discard()), store: store, shell: sh}
}

func (h *harness) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func backend(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/api/auth/login":
		_, _ = w.Write([]byte(`{"access_token":"T1","user":{"id":1,"username":"a"}}`))
	case "/api/dashboard/stats":
		if r.Header.Get("Authorization") != "Bearer T1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Not authenticated"}`))
			return
		}
		_, _ = w.Write([]byte(`{"total_projects":1,"total_tests":2,"total_executions":3,"pass_rate":50}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestLoadingBeforeInit(t *testing.T) {
	h := newHarness(t, 0, backend)
	rec := h.do(t, http.MethodGet, "/dashboard", "")
	if rec.Code != http.StatusServiceUnavailable || rec.Header().Get("Retry-After") == "" {
		t.Errorf("status = %d headers = %v", rec.Code, rec.Header())
	}
}

func TestAnonymousNavigation(t *testing.T) {
	h := newHarness(t, 0, backend)
	h.shell.Init()

	cases := []struct {
		path     string
		status   int
		location string
	}{
		{"/", http.StatusSeeOther, "/login"},
		{"/dashboard", http.StatusSeeOther, "/login"},
		{"/reports", http.StatusSeeOther, "/login"},
		{"/login", http.StatusOK, ""},
		{"/register", http.StatusOK, ""},
		{"/nowhere", http.StatusNotFound, ""},
	}
	for _, tc := range cases {
		rec := h.do(t, http.MethodGet, tc.path, "")
		if rec.Code != tc.status || rec.Header().Get("Location") != tc.location {
			t.Errorf("GET %s = %d %q, want %d %q", tc.path, rec.Code, rec.Header().Get("Location"), tc.status, tc.location)
		}
	}
}

func TestLoginFlow(t *testing.T) {
	h := newHarness(t, 0, backend)
	h.shell.Init()

	rec := h.do(t, http.MethodPost, "/login", `{"email":"a@b.com","password":"secret"}`)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/dashboard" {
		t.Fatalf("POST /login = %d %s", rec.Code, rec.Body.String())
	}
	if h.store.Token() != "T1" {
		t.Fatalf("token = %q", h.store.Token())
	}

	rec = h.do(t, http.MethodGet, "/dashboard", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /dashboard = %d %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	dash, _ := body["dashboard"].(map[string]any)
	if body["view"] != "dashboard" || dash == nil || dash["available"] != true || dash["greeting"] != "Welcome back, a!" {
		t.Errorf("body = %v", body)
	}

	// Signed in: the guest-only form now redirects.
	rec = h.do(t, http.MethodPost, "/login", `{"email":"a@b.com","password":"secret"}`)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/dashboard" {
		t.Errorf("second POST /login = %d %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = h.do(t, http.MethodPost, "/logout", "")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Errorf("POST /logout = %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if !h.store.Load().Anonymous() {
		t.Error("logout left a session behind")
	}
}

func TestRegisterValidationIsUnprocessable(t *testing.T) {
	h := newHarness(t, 0, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected backend call %s", r.URL.Path)
	})
	h.shell.Init()

	rec := h.do(t, http.MethodPost, "/register", `{"username":"a","email":"a@b.com","password":"12345"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	fields, _ := decode(t, rec)["fields"].(map[string]any)
	if fields["password"] != "Password must be at least 6 characters" {
		t.Errorf("fields = %v", fields)
	}
}

func TestLoginRejectedPassesStatusThrough(t *testing.T) {
	h := newHarness(t, 0, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Incorrect email or password"}`))
	})
	h.shell.Init()

	rec := h.do(t, http.MethodPost, "/login", `{"email":"a@b.com","password":"nope"}`)
	if rec.Code != http.StatusUnauthorized || decode(t, rec)["error"] != "Incorrect email or password" {
		t.Errorf("POST /login = %d %s", rec.Code, rec.Body.String())
	}
}

func TestMalformedForm(t *testing.T) {
	h := newHarness(t, 0, backend)
	h.shell.Init()
	if rec := h.do(t, http.MethodPost, "/login", `{"email":`); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestSubmissionsAreThrottled(t *testing.T) {
	h := newHarness(t, 1, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	h.shell.Init()

	limited := false
	for i := 0; i < 10; i++ {
		if rec := h.do(t, http.MethodPost, "/login", `{"email":"a@b.com","password":"x"}`); rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("no submission was throttled")
	}

	// Navigation is not throttled.
	for i := 0; i < 10; i++ {
		if rec := h.do(t, http.MethodGet, "/login", ""); rec.Code != http.StatusOK {
			t.Fatalf("GET /login = %d", rec.Code)
		}
	}
}

func TestHealth(t *testing.T) {
	h := newHarness(t, 0, backend)
	h.shell.Init()
	rec := h.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || decode(t, rec)["state"] != "anonymous" {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body.String())
	}
}

func TestSubmitLimiter(t *testing.T) {
	l := newSubmitLimiter(1)
	now := time.Unix(0, 0)
	allowed := 0
	for i := 0; i < 10; i++ {
		if l.Allow("ip:1.2.3.4", now) {
			allowed++
		}
	}
	if allowed != 5 {
		t.Errorf("burst allowed %d, want 5", allowed)
	}
	if !l.Allow("ip:5.6.7.8", now) {
		t.Error("other client throttled")
	}
	if !l.Allow("ip:1.2.3.4", now.Add(time.Second)) {
		t.Error("no refill after a second")
	}

	l.Allow("ip:9.9.9.9", now.Add(time.Hour))
	if _, ok := l.buckets["ip:5.6.7.8"]; ok {
		t.Error("idle bucket kept")
	}

	var disabled *submitLimiter
	if !disabled.Allow("x", now) {
		t.Error("nil limiter throttled")
	}
}
