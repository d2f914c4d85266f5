// Package http serves the app shell over HTTP: every navigable path answers
// with the guard's decision, and the sign-in forms are accepted as JSON.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"testai/internal/api"
	"testai/internal/auth"
	"testai/internal/config"
	"testai/internal/shell"
)

// Pages are the controllers the server drives.
type Pages struct {
	Login     *shell.LoginPage
	Register  *shell.RegisterPage
	Dashboard *shell.DashboardPage
}

type Server struct {
	cfg     config.Config
	router  chi.Router
	shell   *shell.Shell
	pages   Pages
	log     *log.Logger
	limiter *submitLimiter
	srv     *http.Server
}

func NewServer(cfg config.Config, sh *shell.Shell, pages Pages, logger *log.Logger) *Server {
	router := chi.NewRouter()
	s := &Server{
		cfg:     cfg,
		router:  router,
		shell:   sh,
		pages:   pages,
		log:     logger.WithPrefix("http"),
		limiter: newSubmitLimiter(cfg.RateLimitRPS),
	}

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(s.requestLogger)
	router.Use(middleware.Recoverer)

	origin := strings.TrimSuffix(cfg.FrontendURL, "/")
	if origin == "" {
		origin = "http://localhost:3000"
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{origin},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.registerRoutes()
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	for _, path := range shell.Paths() {
		s.router.Get(path, s.handleNavigate)
	}
	s.router.NotFound(s.handleNavigate)

	s.router.Group(func(r chi.Router) {
		r.Use(s.rateLimitMiddleware)
		r.Post(shell.LoginPath, s.handleLogin)
		r.Post(shell.RegisterPath, s.handleRegister)
	})
	s.router.Post("/logout", s.handleLogout)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"state":  s.shell.State().String(),
	})
}

type pageResponse struct {
	shell.Decision
	Dashboard *shell.DashboardView `json:"dashboard,omitempty"`
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	decision := s.shell.Navigate(r.URL.Path)
	if decision.Kind != shell.Render {
		s.writeDecision(w, decision)
		return
	}

	resp := pageResponse{Decision: decision}
	if decision.View == shell.ViewDashboard {
		// The page greets whoever the request carries.
		ctx := auth.WithUser(r.Context(), s.shell.User())
		view := s.pages.Dashboard.Load(ctx)
		resp.Dashboard = &view
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if decision := s.shell.Navigate(shell.LoginPath); decision.Kind != shell.Render {
		s.writeDecision(w, decision)
		return
	}
	var in api.Credentials
	if err := decodeForm(w, r, &in); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	decision, err := s.pages.Login.Submit(r.Context(), in)
	s.writeSubmit(w, decision, err)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if decision := s.shell.Navigate(shell.RegisterPath); decision.Kind != shell.Render {
		s.writeDecision(w, decision)
		return
	}
	var in api.Registration
	if err := decodeForm(w, r, &in); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	decision, err := s.pages.Register.Submit(r.Context(), in)
	s.writeSubmit(w, decision, err)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	decision, err := s.shell.Logout()
	if err != nil {
		s.log.Error("logout", "err", err)
	}
	s.writeDecision(w, decision)
}

func (s *Server) writeSubmit(w http.ResponseWriter, decision shell.Decision, err error) {
	var verr *shell.ValidationError
	var serr *shell.SubmitError
	switch {
	case err == nil:
		s.writeDecision(w, decision)
	case errors.As(err, &verr):
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation",
			"fields": verr.Fields,
		})
	case errors.As(err, &serr):
		s.log.Warn("submission failed", "err", serr.Err)
		s.writeJSON(w, submitStatus(serr), map[string]string{"error": serr.Message})
	default:
		s.writeError(w, http.StatusInternalServerError, err)
	}
}

// submitStatus passes client errors from the service through and reports
// everything else as a bad gateway.
func submitStatus(serr *shell.SubmitError) int {
	var apiErr *api.Error
	if errors.As(serr.Err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		return apiErr.StatusCode
	}
	return http.StatusBadGateway
}

func (s *Server) writeDecision(w http.ResponseWriter, decision shell.Decision) {
	switch decision.Kind {
	case shell.Redirect:
		w.Header().Set("Location", decision.Location)
		s.writeJSON(w, http.StatusSeeOther, decision)
	case shell.Loading:
		w.Header().Set("Retry-After", "1")
		s.writeJSON(w, http.StatusServiceUnavailable, decision)
	case shell.NotFound:
		s.writeJSON(w, http.StatusNotFound, decision)
	default:
		s.writeJSON(w, http.StatusOK, decision)
	}
}

func decodeForm(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode form: %w", err)
	}
	return nil
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + clientIPAddress(r.RemoteAddr)
		if !s.limiter.Allow(key, time.Now()) {
			s.writeError(w, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	s.writeJSON(w, code, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) Start() error {
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
