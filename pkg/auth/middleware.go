package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

type contextKey string

const (
	tokenHeader              = "Authorization"
	tokenPrefix              = "Bearer "
	TokenCookie              = "token"
	UserClaimsKey contextKey = "user_claims"
	UserIDKey     contextKey = "user_id"
)

// BearerToken extracts the token from an "Authorization: Bearer" header value.
func BearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, tokenPrefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, tokenPrefix))
	return token, token != ""
}

// TokenFromRequest finds the credential on an HTTP request: the Authorization
// header first, then the token cookie.
func TokenFromRequest(r *http.Request) string {
	if token, ok := BearerToken(r.Header.Get(tokenHeader)); ok {
		return token
	}
	if cookie, err := r.Cookie(TokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// NewAuthInterceptor creates a ConnectRPC interceptor for authentication.
func NewAuthInterceptor(validator TokenValidator) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			authHeader := req.Header().Get(tokenHeader)
			if authHeader == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("missing authorization header"))
			}

			token, ok := BearerToken(authHeader)
			if !ok {
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("invalid authorization header format"))
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("invalid or expired token"))
			}

			return next(WithClaims(ctx, claims), req)
		}
	}
}

// RequireUser is the plain HTTP counterpart of NewAuthInterceptor. It accepts
// the token from the Authorization header or the token cookie.
func RequireUser(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				writeUnauthorized(w, "Authentication required")
				return
			}
			claims, err := validator.ValidateToken(token)
			if err != nil {
				writeUnauthorized(w, "Invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Unauthorized","message":"` + message + `"}`))
}

// WithClaims injects claims and the subject into ctx.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	ctx = context.WithValue(ctx, UserClaimsKey, claims)
	return context.WithValue(ctx, UserIDKey, claims.Subject)
}

// GetUserClaims retrieves the full claims from the context.
func GetUserClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(UserClaimsKey).(*Claims)
	return claims, ok
}

// GetUserID retrieves the user ID from the context.
func GetUserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok
}

// MustGetUserID retrieves the user ID from a context that went through the
// auth interceptor or middleware. It panics otherwise.
func MustGetUserID(ctx context.Context) string {
	id, ok := GetUserID(ctx)
	if !ok {
		panic("auth: user id missing from context")
	}
	return id
}
