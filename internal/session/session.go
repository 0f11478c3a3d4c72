// Package session carries the caller identity into the run pipeline as an
// explicit value. Authentication is a mock: any non-empty credentials
// succeed, and the resulting session is sealed in an HMAC-signed JWT.
package session

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Session is the identity attached to one request or CLI invocation.
type Session struct {
	UserID        string    `json:"user_id"`
	Username      string    `json:"username"`
	Email         string    `json:"email,omitempty"`
	JoinedAt      time.Time `json:"joined_at"`
	Authenticated bool      `json:"authenticated"`
}

// Anonymous is the zero session of a caller that has not logged in.
func Anonymous() Session {
	return Session{}
}

// Authorized reports whether the session may run code.
func Authorized(s Session) bool {
	return s.Authenticated && strings.TrimSpace(s.UserID) != ""
}

// userNamespace scopes the deterministic user ids derived from usernames.
var userNamespace = uuid.MustParse("5b0e3f7a-2c1d-4e8b-9a6f-0d4c2b1e7a93")

// UserID derives a stable id for a username so repeated mock logins map to
// the same user.
func UserID(username string) string {
	return uuid.NewSHA1(userNamespace, []byte(strings.ToLower(strings.TrimSpace(username)))).String()
}

type contextKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored in ctx, or Anonymous.
func FromContext(ctx context.Context) Session {
	if s, ok := ctx.Value(contextKey{}).(Session); ok {
		return s
	}
	return Anonymous()
}
