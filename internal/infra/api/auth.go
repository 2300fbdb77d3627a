package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"meu-plano/internal/infra/logging"
)

// DashboardClaims identify the dashboard user. Subject is the customer id.
type DashboardClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// AuthManager mints and verifies HS256 bearer tokens.
type AuthManager struct {
	secret     []byte
	customerID string
}

func NewAuthManager(secret, customerID string) *AuthManager {
	return &AuthManager{secret: []byte(secret), customerID: customerID}
}

// Mint signs a token for the configured customer valid for ttl.
func (a *AuthManager) Mint(role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := DashboardClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   a.customerID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

var (
	errMissingToken = errors.New("missing token")
	errInvalidToken = errors.New("invalid token")
	errWrongSubject = errors.New("token not issued for this customer")
)

func (a *AuthManager) ParseFromRequest(r *http.Request) (*DashboardClaims, error) {
	hdr := r.Header.Get("Authorization")
	if hdr == "" || !strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
		return nil, errMissingToken
	}
	return a.parse(strings.TrimSpace(hdr[7:]))
}

func (a *AuthManager) parse(tok string) (*DashboardClaims, error) {
	claims := &DashboardClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tkn.Valid {
		return nil, errInvalidToken
	}
	if claims.Subject != a.customerID {
		return nil, errWrongSubject
	}
	return claims, nil
}

// Middleware rejects requests without a valid bearer token.
func (a *AuthManager) Middleware(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := a.ParseFromRequest(r)
			if err != nil {
				l := logging.With(r.Context(), logger)
				l.Debug().Err(err).Msg("auth rejected")
				status := http.StatusUnauthorized
				if errors.Is(err, errWrongSubject) {
					status = http.StatusForbidden
				}
				writeJSON(w, status, errorBody{Error: err.Error()})
				return
			}
			ctx := logging.WithSubject(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
