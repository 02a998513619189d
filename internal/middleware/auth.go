package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"tenant-rbac/internal/domain"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	TenantID domain.TenantID
	Username string
}

type identityKey struct{}

// WithIdentity stores the caller identity in the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext extracts the caller identity from the context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Authenticator validates bearer tokens and records the caller Identity.
type Authenticator struct {
	validator JWTValidator
	logger    *slog.Logger
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(validator JWTValidator, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Authenticator{validator: validator, logger: logger}
}

// Middleware returns 401 unless the request carries a valid bearer token
// naming both a tenant and a user.
func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "unauthorized: provide a valid JWT Bearer token")
				return
			}
			claims, err := a.validator.Validate(r.Context(), strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				a.logger.Debug("bearer token rejected", "error", err, "request_id", RequestIDFromContext(r.Context()))
				writeError(w, http.StatusUnauthorized, "unauthorized: invalid token")
				return
			}
			if claims.Subject == "" || claims.TenantID.IsZero() {
				writeError(w, http.StatusUnauthorized, "unauthorized: token must carry sub and "+TenantClaim)
				return
			}
			ctx := WithIdentity(r.Context(), Identity{TenantID: claims.TenantID, Username: claims.Subject})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TenantLookup loads tenants by id.
type TenantLookup interface {
	GetByID(ctx context.Context, id domain.TenantID) (*domain.Tenant, error)
}

// UserLookup loads users by name inside a tenant.
type UserLookup interface {
	GetByUsername(ctx context.Context, tenantID domain.TenantID, username string) (*domain.User, error)
}

// SubjectBinder builds the Subject for a user and binds it into ctx.
type SubjectBinder interface {
	SubjectFor(ctx context.Context, tenant domain.Tenant, u domain.User) (*domain.Subject, error)
}

// BindSubject resolves the authenticated Identity into a Subject and binds
// it into a fresh scope for the rest of the chain. The Subject is cleared
// when the handler returns, even if it panics.
func BindSubject(tenants TenantLookup, users UserLookup, binder SubjectBinder, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized: no identity")
				return
			}
			tenant, err := tenants.GetByID(r.Context(), id.TenantID)
			if err != nil {
				writeDomainError(w, logger, err)
				return
			}
			if !tenant.Active {
				writeError(w, http.StatusForbidden, "tenant is not active")
				return
			}
			u, err := users.GetByUsername(r.Context(), id.TenantID, id.Username)
			if err != nil {
				var notFound *domain.NotFoundError
				if errors.As(err, &notFound) {
					writeError(w, http.StatusUnauthorized, "unauthorized: unknown user")
					return
				}
				writeDomainError(w, logger, err)
				return
			}
			if !u.IsEnabled() {
				writeError(w, http.StatusForbidden, "user is disabled")
				return
			}

			ctx := domain.WithSubjectScope(r.Context())
			if _, err := binder.SubjectFor(ctx, *tenant, *u); err != nil {
				writeDomainError(w, logger, err)
				return
			}
			defer func() { _ = domain.ClearSubject(ctx) }()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission rejects requests whose bound Subject does not hold p.
func RequirePermission(p domain.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := domain.SubjectFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized: no subject")
				return
			}
			if err := s.CheckPermitted(p); err != nil {
				writeError(w, http.StatusForbidden, err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeDomainError maps domain errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		notFound   *domain.NotFoundError
		denied     *domain.AccessDeniedError
		required   *domain.PermissionRequiredError
		validation *domain.ValidationError
		conflict   *domain.ConflictError
	)
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &denied), errors.As(err, &required):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// WriteDomainError is the exported form of writeDomainError for handlers.
func WriteDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	writeDomainError(w, logger, err)
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    code,
		"message": message,
	})
}
