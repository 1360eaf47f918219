// Package auth gates the back office behind a single staff credential.
package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/diewo77/go-garage/internal/httpx"
	"golang.org/x/crypto/bcrypt"
)

type ctxKey string

const staffCtxKey = ctxKey("staff")

// Gate checks HTTP basic credentials against a bcrypt hash.
type Gate struct {
	user string
	hash []byte
}

// New returns a Gate for user. An empty hash disables it.
func New(user, passwordHash string) *Gate {
	return &Gate{user: user, hash: []byte(passwordHash)}
}

// Enabled reports whether requests are checked at all.
func (g *Gate) Enabled() bool { return g != nil && len(g.hash) > 0 }

// HashPassword produces a hash suitable for ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func (g *Gate) check(user, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(g.user)) == 1
	passOK := bcrypt.CompareHashAndPassword(g.hash, []byte(password)) == nil
	return userOK && passOK
}

// WithStaff stores the authenticated staff user in ctx.
func WithStaff(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, staffCtxKey, user)
}

// StaffFromContext returns the staff user set by the gate.
func StaffFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(staffCtxKey).(string)
	return v, ok && v != ""
}

// Middleware rejects requests without valid credentials: JSON clients get a
// 401 body, browsers get the basic auth challenge.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	if !g.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, password, ok := r.BasicAuth()
		if !ok || !g.check(user, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="garage admin", charset="UTF-8"`)
			if httpx.WantsJSON(r) {
				httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithStaff(r.Context(), user)))
	})
}
