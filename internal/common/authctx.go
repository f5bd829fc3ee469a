package common

import "context"

type userIDKey struct{}

// WithUserID marks ctx as belonging to a verified user.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// UserID is the verified user on ctx; ok is false for anonymous requests.
func UserID(ctx context.Context) (id string, ok bool) {
	id, _ = ctx.Value(userIDKey{}).(string)
	return id, id != ""
}

// RequireUserID is UserID for handlers behind RequireAuth; an anonymous ctx
// yields the 401 error.
func RequireUserID(ctx context.Context) (string, error) {
	if id, ok := UserID(ctx); ok {
		return id, nil
	}
	return "", Unauthorized()
}
