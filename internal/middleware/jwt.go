// Package middleware provides the HTTP middleware that authenticates
// bearer tokens and binds the authorization Subject for each request.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"

	"tenant-rbac/internal/domain"
)

// TenantClaim is the JWT claim that carries the numeric tenant id.
const TenantClaim = "tenant_id"

// JWTClaims holds the parsed claims from a validated JWT. Subject is the
// username inside the tenant.
type JWTClaims struct {
	Subject  string
	TenantID domain.TenantID
	Issuer   string
	Audience []string
	Raw      map[string]interface{}
}

// JWTValidator validates a JWT token and returns the parsed claims.
type JWTValidator interface {
	Validate(ctx context.Context, tokenString string) (*JWTClaims, error)
}

// HS256Validator validates JWTs signed with a shared HS256 secret.
type HS256Validator struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// OIDCValidator validates JWTs using OIDC discovery and JWKS.
type OIDCValidator struct {
	verifier       *oidc.IDTokenVerifier
	allowedIssuers map[string]bool
}

// NewHS256Validator creates a validator for HS256 tokens. A non-empty
// issuer must match the iss claim.
func NewHS256Validator(secret, issuer string, leeway time.Duration) (*HS256Validator, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret is required")
	}
	return &HS256Validator{secret: []byte(secret), issuer: issuer, leeway: leeway}, nil
}

// NewOIDCValidator creates a validator from an OIDC issuer URL.
func NewOIDCValidator(ctx context.Context, issuerURL, audience string, allowedIssuers []string) (*OIDCValidator, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc provider discovery: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: audience})
	return &OIDCValidator{verifier: verifier, allowedIssuers: issuerSet(allowedIssuers, issuerURL)}, nil
}

// NewOIDCValidatorFromJWKS creates a validator from a JWKS URL (no OIDC discovery).
func NewOIDCValidatorFromJWKS(ctx context.Context, jwksURL, issuerURL, audience string, allowedIssuers []string) (*OIDCValidator, error) {
	keySet := oidc.NewRemoteKeySet(ctx, jwksURL)
	verifier := oidc.NewVerifier(issuerURL, keySet, &oidc.Config{ClientID: audience})
	return &OIDCValidator{verifier: verifier, allowedIssuers: issuerSet(allowedIssuers, issuerURL)}, nil
}

func issuerSet(allowed []string, fallback string) map[string]bool {
	issuers := make(map[string]bool, len(allowed))
	for _, iss := range allowed {
		issuers[iss] = true
	}
	if len(issuers) == 0 && fallback != "" {
		issuers[fallback] = true
	}
	return issuers
}

// Validate verifies a JWT signed with HS256 and extracts claims.
func (v *HS256Validator) Validate(_ context.Context, tokenString string) (*JWTClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithJSONNumber(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	tok, err := jwt.Parse(tokenString, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}

	raw, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("parse claims: unsupported claim type %T", tok.Claims)
	}
	return claimsFromMap(raw)
}

// Validate verifies the JWT using the OIDC provider's JWKS.
func (v *OIDCValidator) Validate(ctx context.Context, tokenString string) (*JWTClaims, error) {
	idToken, err := v.verifier.Verify(ctx, tokenString)
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}
	if len(v.allowedIssuers) > 0 && !v.allowedIssuers[idToken.Issuer] {
		return nil, fmt.Errorf("issuer %q not in allowed list", idToken.Issuer)
	}

	var raw map[string]interface{}
	if err := idToken.Claims(&raw); err != nil {
		return nil, fmt.Errorf("parse claims: %w", err)
	}
	return claimsFromMap(raw)
}

func claimsFromMap(raw map[string]interface{}) (*JWTClaims, error) {
	claims := &JWTClaims{Raw: raw}
	if sub, ok := raw["sub"].(string); ok {
		claims.Subject = sub
	}
	if iss, ok := raw["iss"].(string); ok {
		claims.Issuer = iss
	}
	switch aud := raw["aud"].(type) {
	case string:
		claims.Audience = []string{aud}
	case []interface{}:
		for _, a := range aud {
			if s, ok := a.(string); ok {
				claims.Audience = append(claims.Audience, s)
			}
		}
	}

	// Ids use the full int64 range, so numeric claims are only exact when
	// decoded as json.Number.
	switch t := raw[TenantClaim].(type) {
	case json.Number:
		id, err := domain.ParseTenantID(t.String())
		if err != nil {
			return nil, fmt.Errorf("parse %s claim: %w", TenantClaim, err)
		}
		claims.TenantID = id
	case float64:
		claims.TenantID = domain.TenantID(int64(t))
	case string:
		id, err := domain.ParseTenantID(t)
		if err != nil {
			return nil, fmt.Errorf("parse %s claim: %w", TenantClaim, err)
		}
		claims.TenantID = id
	case nil:
	default:
		return nil, fmt.Errorf("parse %s claim: unsupported type %T", TenantClaim, t)
	}
	return claims, nil
}

// SignHS256 issues a token for username in tenant, valid for ttl.
func SignHS256(secret string, tenant domain.TenantID, username, issuer string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":       username,
		TenantClaim: strconv.FormatInt(int64(tenant), 10),
		"iat":       now.Unix(),
		"exp":       now.Add(ttl).Unix(),
	}
	if issuer != "" {
		claims["iss"] = issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

var (
	_ JWTValidator = (*HS256Validator)(nil)
	_ JWTValidator = (*OIDCValidator)(nil)
)
