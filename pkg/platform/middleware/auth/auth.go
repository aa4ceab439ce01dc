// Package auth identifies callers from bearer JWTs so audit events can be
// attributed. Authorization policy lives outside the engine; an invalid or
// absent token never blocks a calculation, it only leaves the caller anonymous.
package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	request "juriscalc/pkg/platform/middleware/request"
	"juriscalc/pkg/requestcontext"
)

// Claims are the claims the engine reads from access tokens. Only the subject
// is consumed; everything else is the issuer's business.
type Claims struct {
	jwt.RegisteredClaims
}

// Validator validates HS256 tokens issued by the platform's auth service.
type Validator struct {
	signingKey []byte
}

func NewValidator(signingKey string) *Validator {
	return &Validator{signingKey: []byte(signingKey)}
}

// ValidateToken parses the token and returns the subject claim.
func (v *Validator) ValidateToken(tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.signingKey, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", errors.New("invalid token")
	}
	return claims.Subject, nil
}

// Identify extracts the bearer subject into the request context when present
// and valid. It never rejects the request.
func Identify(validator *Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			if token, ok := strings.CutPrefix(authHeader, bearerPrefix); ok {
				subject, err := validator.ValidateToken(token)
				if err != nil {
					ctx := r.Context()
					logger.WarnContext(ctx, "bearer token rejected, proceeding anonymously",
						"request_id", request.GetRequestID(ctx),
						"error", err,
					)
				} else if subject != "" {
					ctx := requestcontext.WithCallerID(r.Context(), subject)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
