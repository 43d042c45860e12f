/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenCookieName   = "partyline_id"
	sessionCookieName = "partyline_session"
)

// resolveToken returns the caller's identity token, taken from the token
// query parameter or the identity cookie. Anything that is not a UUID is
// replaced with a fresh one, in which case the cookie to set is returned.
func resolveToken(cfg *Config, r *http.Request) (string, *http.Cookie) {
	candidates := []string{r.URL.Query().Get("token")}
	if c, err := r.Cookie(tokenCookieName); err == nil {
		candidates = append(candidates, c.Value)
	}

	for _, candidate := range candidates {
		if id, err := uuid.Parse(candidate); err == nil {
			return id.String(), nil
		}
	}

	token := uuid.NewString()

	path := cfg.prefix
	if path == "" {
		path = "/"
	}

	return token, &http.Cookie{
		Name:     tokenCookieName,
		Value:    token,
		Path:     path,
		HttpOnly: true,
		Secure:   cfg.scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	}
}

// UserResolver reports the authenticated account behind a request, or ""
// for anonymous players.
type UserResolver interface {
	Resolve(r *http.Request) (string, error)
}

type anonymousUsers struct{}

func (anonymousUsers) Resolve(*http.Request) (string, error) {
	return "", nil
}

var errInvalidSession = errors.New("invalid session")

type jwtUsers struct {
	secret []byte
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

// Resolve verifies the session cookie when one is present. A missing
// cookie is anonymous; a bad one is an error.
func (j jwtUsers) Resolve(r *http.Request) (string, error) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return "", nil
	}

	token, err := jwt.ParseWithClaims(c.Value, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}

		return j.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %w", errInvalidSession, err)
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", errInvalidSession
	}

	return claims.Subject, nil
}

func newUserResolver(cfg *Config) UserResolver {
	if cfg.jwtSecret == "" {
		return anonymousUsers{}
	}

	return jwtUsers{secret: []byte(cfg.jwtSecret)}
}
