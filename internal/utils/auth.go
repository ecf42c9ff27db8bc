package utils

import "context"

type contextKey string

const (
	AdminNameKey contextKey = "admin"
	RoleKey      contextKey = "role"
)

const RoleAdmin = "admin"

// SetAdminContext stores the authenticated admin (called by middleware)
func SetAdminContext(ctx context.Context, name, role string) context.Context {
	ctx = context.WithValue(ctx, AdminNameKey, name)
	ctx = context.WithValue(ctx, RoleKey, role)
	return ctx
}

func GetAdminFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(AdminNameKey).(string)
	return name, ok && name != ""
}
