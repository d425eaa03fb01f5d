package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/docintel/internal/common"
)

// Claims is the bearer token payload. Tenant scopes every request.
type Claims struct {
	Tenant string `json:"tenant"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	secret []byte
	issuer string
}

func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer}
}

// GenerateToken signs an HS256 token for subject acting as tenant.
func (a *Authenticator) GenerateToken(subject, tenant string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Tenant: tenant,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Authenticator) parse(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token is not valid")
	}
	return claims, nil
}

// Middleware rejects requests without a valid bearer token (401) or whose
// token carries no usable tenant (403). The tenant and subject are put on the
// request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, r, common.NewAppError(common.CodeUnauthorized, "authorization header required", common.ErrUnauthorized))
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			writeError(w, r, common.NewAppError(common.CodeUnauthorized, "invalid authorization header format", common.ErrUnauthorized))
			return
		}

		claims, err := a.parse(parts[1])
		if err != nil {
			writeError(w, r, common.NewAppError(common.CodeUnauthorized, "invalid or expired token", err))
			return
		}

		tenantID, err := uuid.Parse(strings.TrimSpace(claims.Tenant))
		if err != nil || tenantID == uuid.Nil {
			writeError(w, r, common.NewAppError(common.CodeForbidden, "token has no usable tenant", nil))
			return
		}

		ctx := common.WithTenantID(r.Context(), tenantID)
		ctx = common.WithSubject(ctx, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
