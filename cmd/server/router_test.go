package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-rbac/internal/app"
	"tenant-rbac/internal/config"
	"tenant-rbac/internal/db"
	"tenant-rbac/internal/domain"
	"tenant-rbac/internal/middleware"
	"tenant-rbac/internal/testutil"
)

const testSecret = "router-test-secret"

const routerSeed = `
apiVersion: iam/v1
kind: TenantSeed
tenant:
  name: Acme
  admin:
    username: admin
    email: admin@acme.test
    password:
      value: s3cret-Admin
users:
  - username: alice
    password:
      value: alice-pw
  - username: bob
    password:
      value: bob-pw
  - username: carol
    password:
      value: carol-pw
    enablement:
      enabled: false
groups:
  - name: Engineering
    members:
      - name: alice
        type: user
roles:
  - name: Viewer
    description: Read-only access
    supports_nesting: true
    permissions:
      - name: View Tenant
    groups: [Engineering]
`

type routerFixture struct {
	handler http.Handler
	tenant  domain.TenantID
}

func newRouterFixture(t *testing.T, denialBurst int) *routerFixture {
	t.Helper()
	seed := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(seed, []byte(routerSeed), 0o600))

	writeDB, readDB := db.OpenTestSQLite(t)
	cfg := &config.Config{SeedFile: seed, DenialRPS: 0.001, DenialBurst: denialBurst}
	a, err := app.New(context.Background(), app.Deps{
		Cfg: cfg, WriteDB: writeDB, ReadDB: readDB, Hasher: &testutil.MockHasher{},
	})
	require.NoError(t, err)

	tenant, err := a.Repos.Tenants.GetByName(context.Background(), "Acme")
	require.NoError(t, err)

	v, err := middleware.NewHS256Validator(testSecret, "", time.Minute)
	require.NoError(t, err)
	return &routerFixture{handler: newRouter(a, v, cfg, nil), tenant: tenant.ID}
}

func (f *routerFixture) get(t *testing.T, username, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if username != "" {
		tok, err := middleware.SignHS256(testSecret, f.tenant, username, "", time.Minute)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func checkPath(perm string) string {
	return "/v1/authz/check?" + url.Values{"permission": {perm}}.Encode()
}

func TestRouter_Healthz(t *testing.T) {
	f := newRouterFixture(t, 10)
	rec := f.get(t, "", "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouter_CheckSelf(t *testing.T) {
	f := newRouterFixture(t, 10)

	tests := []struct {
		name       string
		user       string
		path       string
		wantStatus int
		wantEffect string
	}{
		{"granted through group", "alice", checkPath(domain.PermViewTenant), http.StatusOK, "granted"},
		{"absent", "bob", checkPath(domain.PermViewTenant), http.StatusForbidden, "absent"},
		{"admin", "admin", checkPath(domain.PermProvisionRole), http.StatusOK, "granted"},
		{"unknown permission", "alice", checkPath("Fly"), http.StatusBadRequest, ""},
		{"missing permission", "alice", "/v1/authz/check", http.StatusBadRequest, ""},
		{"no token", "", checkPath(domain.PermViewTenant), http.StatusUnauthorized, ""},
		{"unknown user", "mallory", checkPath(domain.PermViewTenant), http.StatusUnauthorized, ""},
		{"disabled user", "carol", checkPath(domain.PermViewTenant), http.StatusForbidden, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.get(t, tt.user, tt.path)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantEffect == "" {
				return
			}
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantEffect, body["effect"])
		})
	}
}

func TestRouter_RequirePermission(t *testing.T) {
	f := newRouterFixture(t, 10)

	rec := f.get(t, "alice", "/v1/tenant")
	require.Equal(t, http.StatusOK, rec.Code)
	var tenant tenantResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tenant))
	assert.Equal(t, "Acme", tenant.Name)
	assert.True(t, tenant.Active)

	assert.Equal(t, http.StatusForbidden, f.get(t, "bob", "/v1/tenant").Code)
	assert.Equal(t, http.StatusForbidden, f.get(t, "alice", "/v1/users/bob/roles").Code)
}

func TestRouter_UserEndpoints(t *testing.T) {
	f := newRouterFixture(t, 10)

	rec := f.get(t, "admin", "/v1/users/alice/roles")
	require.Equal(t, http.StatusOK, rec.Code)
	var roles struct {
		Username string   `json:"username"`
		Roles    []string `json:"roles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &roles))
	assert.Equal(t, "alice", roles.Username)
	assert.Equal(t, []string{"Viewer"}, roles.Roles)

	rec = f.get(t, "admin", "/v1/users/bob/check?"+url.Values{"permission": {domain.PermViewTenant}}.Encode())
	assert.Equal(t, http.StatusOK, rec.Code, "explaining another user's denial is not a denial")
	assert.Contains(t, rec.Body.String(), `"allowed":false`)

	assert.Equal(t, http.StatusNotFound, f.get(t, "admin", "/v1/users/nobody/roles").Code)
}

func TestRouter_DenialLimiter(t *testing.T) {
	f := newRouterFixture(t, 2)

	for range 2 {
		assert.Equal(t, http.StatusForbidden, f.get(t, "bob", checkPath(domain.PermViewTenant)).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, f.get(t, "bob", checkPath(domain.PermViewTenant)).Code)

	// Other users keep their own budget.
	assert.Equal(t, http.StatusOK, f.get(t, "alice", checkPath(domain.PermViewTenant)).Code)
}
