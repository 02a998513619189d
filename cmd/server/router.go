package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"tenant-rbac/internal/app"
	"tenant-rbac/internal/config"
	"tenant-rbac/internal/domain"
	"tenant-rbac/internal/middleware"
)

// Per-client request budget for the whole API.
var apiRateLimit = middleware.RateLimitConfig{RequestsPerSecond: 50, Burst: 100}

type server struct {
	app    *app.App
	logger *slog.Logger
}

// newRouter mounts the authenticated /v1 API. Every /v1 request runs with a
// Subject bound for the caller and cleared when the handler returns.
func newRouter(a *app.App, validator middleware.JWTValidator, cfg *config.Config, logger *slog.Logger) http.Handler {
	s := &server{app: a, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RateLimiter(apiRateLimit))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.NewAuthenticator(validator, logger).Middleware())
		r.Use(middleware.BindSubject(a.Repos.Tenants, a.Repos.Users, a.Services.Authorization, logger))
		r.Use(middleware.DenialLimiter(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.DenialRPS,
			Burst:             cfg.DenialBurst,
		}))

		r.Get("/authz/check", s.checkSelf)
		r.With(middleware.RequirePermission(domain.ViewTenant)).Get("/tenant", s.getTenant)
		r.Route("/users/{username}", func(r chi.Router) {
			r.Use(middleware.RequirePermission(domain.ViewUser))
			r.Get("/check", s.checkUser)
			r.Get("/roles", s.userRoles)
		})
	})
	return r
}

// checkSelf answers whether the caller holds ?permission=. A denial is a
// 403 carrying the decision.
func (s *server) checkSelf(w http.ResponseWriter, r *http.Request) {
	subject, _ := domain.SubjectFromContext(r.Context())
	s.check(w, r, subject.Tenant().ID, subject.User().Username, true)
}

// checkUser explains a permission for another user of the caller's tenant.
// The answer itself is not a denial of the caller.
func (s *server) checkUser(w http.ResponseWriter, r *http.Request) {
	subject, _ := domain.SubjectFromContext(r.Context())
	s.check(w, r, subject.Tenant().ID, chi.URLParam(r, "username"), false)
}

func (s *server) check(w http.ResponseWriter, r *http.Request, tenant domain.TenantID, username string, deny bool) {
	perm := r.URL.Query().Get("permission")
	if perm == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": http.StatusBadRequest, "message": "permission query parameter is required"})
		return
	}
	d, err := s.app.Services.Authorization.Check(r.Context(), tenant, username, perm)
	if err != nil {
		middleware.WriteDomainError(w, s.logger, err)
		return
	}
	status := http.StatusOK
	if deny && !d.Allowed {
		status = http.StatusForbidden
	}
	writeJSON(w, status, d)
}

type tenantResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"active"`
	System      bool   `json:"system"`
}

func (s *server) getTenant(w http.ResponseWriter, r *http.Request) {
	subject, _ := domain.SubjectFromContext(r.Context())
	t := subject.Tenant()
	writeJSON(w, http.StatusOK, tenantResponse{
		ID:          formatID(int64(t.ID)),
		Name:        t.Name,
		Description: t.Description,
		Active:      t.Active,
		System:      t.SystemTenant,
	})
}

func (s *server) userRoles(w http.ResponseWriter, r *http.Request) {
	subject, _ := domain.SubjectFromContext(r.Context())
	u, err := s.app.Repos.Users.GetByUsername(r.Context(), subject.Tenant().ID, chi.URLParam(r, "username"))
	if err != nil {
		middleware.WriteDomainError(w, s.logger, err)
		return
	}
	roles, err := s.app.Services.Authorization.RolesForUser(r.Context(), *u)
	if err != nil {
		middleware.WriteDomainError(w, s.logger, err)
		return
	}
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}
	writeJSON(w, http.StatusOK, map[string]any{"username": u.Username, "roles": names})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
