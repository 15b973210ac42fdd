// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/todomesh/todomesh/internal/logging"
)

// Auth verifies caller identity on the per-user task routes. Two
// credentials are accepted: a user JWT whose subject must match the
// user_id path segment, and the shared service token used by internal
// consumers (the recurring-task spawner), which may act for any user.
type Auth struct {
	secret       []byte
	serviceToken string
	enabled      bool
}

// NewAuth builds the auth layer. An empty secret disables verification
// entirely, which is only meant for local development.
func NewAuth(jwtSecret, serviceToken string) *Auth {
	if jwtSecret == "" {
		logging.Warn().Msg("JWT secret not configured, API authentication is DISABLED")
	}
	return &Auth{
		secret:       []byte(jwtSecret),
		serviceToken: serviceToken,
		enabled:      jwtSecret != "",
	}
}

// IssueToken mints a user JWT signed with the configured secret.
func (a *Auth) IssueToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    "todomesh",
	})
	return token.SignedString(a.secret)
}

// RequireUser enforces that the caller is either the user named in the
// {user_id} path segment or the internal service identity.
func (a *Auth) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.enabled {
			next.ServeHTTP(w, r)
			return
		}

		rw := NewResponseWriter(w, r)

		raw := bearerToken(r)
		if raw == "" {
			rw.Unauthorized("missing bearer token")
			return
		}

		if a.serviceToken != "" &&
			subtle.ConstantTimeCompare([]byte(raw), []byte(a.serviceToken)) == 1 {
			next.ServeHTTP(w, r)
			return
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return a.secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			rw.Unauthorized("invalid token")
			return
		}

		pathUser := chi.URLParam(r, "user_id")
		if claims.Subject == "" || claims.Subject != pathUser {
			logger := logging.Ctx(r.Context())
			logger.Warn().
				Str("token_subject", claims.Subject).
				Str("path_user", pathUser).
				Msg("Token subject does not match requested user")
			rw.Forbidden("token does not grant access to this user's tasks")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireService admits only the internal service token. Used for the
// admin surface; user JWTs are not accepted there.
func (a *Auth) RequireService(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.enabled {
			next.ServeHTTP(w, r)
			return
		}

		rw := NewResponseWriter(w, r)

		if a.serviceToken == "" {
			rw.Forbidden("service token not configured")
			return
		}
		raw := bearerToken(r)
		if raw == "" {
			rw.Unauthorized("missing bearer token")
			return
		}
		if subtle.ConstantTimeCompare([]byte(raw), []byte(a.serviceToken)) != 1 {
			rw.Forbidden("admin access requires the service token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}
