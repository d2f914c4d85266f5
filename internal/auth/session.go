package auth

import (
	"context"

	"testai/internal/session"
)

// contextKey prevents collisions with other context values.
type contextKey string

const userKey contextKey = "testai:user"

// WithUser stores the signed-in user on the request context.
func WithUser(ctx context.Context, u *session.User) context.Context {
	if u == nil {
		return ctx
	}
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext retrieves the signed-in user from context, when available.
func UserFromContext(ctx context.Context) (*session.User, bool) {
	u, ok := ctx.Value(userKey).(*session.User)
	return u, ok
}
