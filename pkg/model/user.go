package model

import (
	"context"
	"log/slog"
	"slices"
)

// User is the authenticated principal a request is executed on behalf of. Users are not persisted,
// they are taken from the access token or the bootstrap credentials.
type User struct {
	Username    string   `json:"username"`
	Tenant      string   `json:"tenant"`
	Permissions []string `json:"permissions"`
}

// HasPermission returns true if the user was granted permission.
func (u *User) HasPermission(permission string) bool {
	return slices.Contains(u.Permissions, permission)
}

// LogValue implements [slog.LogValuer] so permissions don't end up in every log line.
func (u *User) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("username", u.Username),
		slog.String("tenant", u.Tenant),
	)
}

type userCtxKey int

var userKey userCtxKey

// NewContextWithUser returns a new [context.Context] that carries the user.
func NewContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// GetUserFromContext returns the user stored in ctx, if any.
func GetUserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userKey).(*User)
	return user, ok
}

// NewSystemContext returns a context carrying the system principal of given tenant. It is used by
// schedulers and start-up tasks acting outside an HTTP request.
func NewSystemContext(ctx context.Context, tenant string) context.Context {
	return NewContextWithUser(ctx, &User{
		Username:    SystemUsername,
		Tenant:      tenant,
		Permissions: AllPermissions,
	})
}

const SystemUsername = "system"
