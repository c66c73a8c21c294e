// Package auth provides middleware for validating access tokens issued
// by the authentication provider. Tokens are HS256-signed JWTs carried
// in the Authorization header or in a cookie.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/skillatlas/skillatlas/internal/logger"
)

// Auth validates provider-issued access tokens on incoming requests.
type Auth struct {
	// authCookieName is the name of the cookie that may carry the JWT.
	authCookieName string

	// jwtSecret is the provider's JWT signing secret.
	jwtSecret []byte
}

// Claims are the access token claims the middleware relies on. The
// subject holds the provider-side user ID.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// UserIDKey is the context key used to store and retrieve the authenticated user's ID.
const UserIDKey ContextKey = "userID"

// New creates the Auth middleware holder with the given cookie name and
// token signing secret.
func New(authCookieName string, jwtSecret []byte) *Auth {
	return &Auth{
		authCookieName: authCookieName,
		jwtSecret:      jwtSecret,
	}
}

// AuthenticateUser is an HTTP middleware that verifies the request's
// access token and stores the token subject in the request context.
// Requests without a valid token are rejected with 401.
func (a *Auth) AuthenticateUser(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		userID, err := a.getUserIDFromAuthorizationHeaderOrCookie(request)
		if err != nil {
			logger.Log.Debugln("Error calling the `a.getUserIDFromAuthorizationHeaderOrCookie()`: ", zap.Error(err))
			response.WriteHeader(http.StatusUnauthorized)
			return
		}
		if userID == "" {
			response.WriteHeader(http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(request.Context(), UserIDKey, userID)
		requestWithCtx := request.WithContext(ctx)

		h.ServeHTTP(response, requestWithCtx)
	}

	return http.HandlerFunc(middleware)
}

// UserIDFromContext extracts the authenticated user's ID placed into
// the context by AuthenticateUser.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}

func (a *Auth) getTokenStringFromAuthorizationHeaderOrCookie(request *http.Request) string {
	tokenString := strings.TrimPrefix(request.Header.Get("Authorization"), "Bearer ")
	if tokenString != "" {
		return tokenString
	}
	cookie, err := request.Cookie(a.authCookieName)
	if err == nil {
		tokenString = cookie.Value
	}

	return tokenString
}

func (a *Auth) getUserIDFromAuthorizationHeaderOrCookie(request *http.Request) (string, error) {
	tokenString := a.getTokenStringFromAuthorizationHeaderOrCookie(request)
	if tokenString == "" {
		return "", nil
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return a.jwtSecret, nil
		},
	)
	if err != nil || !token.Valid {
		return "", nil
	}

	return claims.Subject, nil
}
