// Package session resolves the optional signed-in user of a request.
package session

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/chosei-dev/chosei/libs/auth"
)

var ErrUnauthenticated = errors.New("unauthenticated")

type User struct {
	ID   string
	Name string
}

// Authenticator verifies bearer tokens. HS256 tokens are checked against the
// shared secret, RS256 tokens against the JWKS key set when one is configured.
type Authenticator struct {
	secret string
	keys   *auth.KeySet
	now    func() time.Time
}

func NewAuthenticator(secret string, keys *auth.KeySet) *Authenticator {
	return &Authenticator{secret: secret, keys: keys, now: time.Now}
}

// CurrentUser returns nil without error for anonymous requests. A token that
// is present but fails verification is an error.
func (a *Authenticator) CurrentUser(r *http.Request) (*User, error) {
	raw := r.Header.Get("Authorization")
	if raw == "" {
		return nil, nil
	}
	token, ok := strings.CutPrefix(raw, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return nil, ErrUnauthenticated
	}
	token = strings.TrimSpace(token)

	h, err := auth.ParseHeader(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	var claims *auth.Claims
	switch {
	case h.Alg == "HS256" && a.secret != "":
		claims, err = auth.VerifyHS256(token, a.secret, a.now())
	case h.Alg == "RS256" && a.keys != nil:
		key, kerr := a.keys.Key(r.Context(), h.Kid)
		if kerr != nil {
			return nil, ErrUnauthenticated
		}
		claims, err = auth.VerifyRS256(token, key, a.now())
	default:
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, ErrUnauthenticated
	}
	return &User{ID: claims.Sub, Name: claims.Name}, nil
}

// RequireUser is CurrentUser for endpoints that reject anonymous callers.
func (a *Authenticator) RequireUser(r *http.Request) (*User, error) {
	u, err := a.CurrentUser(r)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUnauthenticated
	}
	return u, nil
}
