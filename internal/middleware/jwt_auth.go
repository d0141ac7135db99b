package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mir00r/recommendation-gateway/pkg/logger"
)

// JWTAuthConfig holds JWT authentication middleware configuration
type JWTAuthConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Secret        string        `yaml:"secret"`
	Issuer        string        `yaml:"issuer"`
	Audience      string        `yaml:"audience"`
	ClockSkew     time.Duration `yaml:"clock_skew"`
	RequiredRoles []string      `yaml:"required_roles"`
}

// JWTClaims represents the expected token claims
type JWTClaims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuthMiddleware validates HMAC-signed bearer tokens on protected
// routes (the admin API).
type JWTAuthMiddleware struct {
	config JWTAuthConfig
	logger *logger.Logger
}

// NewJWTAuthMiddleware creates a new JWT authentication middleware
func NewJWTAuthMiddleware(config JWTAuthConfig, log *logger.Logger) (*JWTAuthMiddleware, error) {
	if config.Enabled && config.Secret == "" {
		return nil, fmt.Errorf("jwt auth enabled but no secret configured")
	}
	if config.ClockSkew <= 0 {
		config.ClockSkew = 30 * time.Second
	}
	return &JWTAuthMiddleware{
		config: config,
		logger: log.MiddlewareLogger("jwt_auth"),
	}, nil
}

// JWTAuth returns the middleware handler
func (jm *JWTAuthMiddleware) JWTAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !jm.config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			tokenString := jm.extractToken(r)
			if tokenString == "" {
				jm.writeError(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			claims, err := jm.validateToken(tokenString)
			if err != nil {
				jm.logger.WithError(err).WithField("path", r.URL.Path).
					Warn("Rejected request with invalid token")
				jm.writeError(w, "invalid token", http.StatusUnauthorized)
				return
			}

			if !jm.hasRequiredRoles(claims.Roles) {
				jm.writeError(w, "insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractToken pulls the bearer token from the Authorization header
func (jm *JWTAuthMiddleware) extractToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// validateToken parses and validates the token signature and claims
func (jm *JWTAuthMiddleware) validateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jm.config.Secret), nil
	}, jwt.WithLeeway(jm.config.ClockSkew))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("token claims invalid")
	}

	if jm.config.Issuer != "" && claims.Issuer != jm.config.Issuer {
		return nil, fmt.Errorf("unexpected issuer %q", claims.Issuer)
	}
	if jm.config.Audience != "" {
		found := false
		for _, aud := range claims.Audience {
			if aud == jm.config.Audience {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("token audience mismatch")
		}
	}
	return claims, nil
}

// hasRequiredRoles checks that the token grants every configured role
func (jm *JWTAuthMiddleware) hasRequiredRoles(roles []string) bool {
	if len(jm.config.RequiredRoles) == 0 {
		return true
	}
	have := make(map[string]bool, len(roles))
	for _, role := range roles {
		have[strings.ToLower(role)] = true
	}
	for _, required := range jm.config.RequiredRoles {
		if !have[strings.ToLower(required)] {
			return false
		}
	}
	return true
}

// writeError writes a JSON error response
func (jm *JWTAuthMiddleware) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message}) //nolint:errcheck
}
