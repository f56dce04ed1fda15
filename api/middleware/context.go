package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

type principalKey int

const (
	userIDKey principalKey = iota
	roleKey
	sellerIDKey
)

func lookup[T any](ctx context.Context, key principalKey) T {
	var zero T
	if ctx == nil {
		return zero
	}
	if v, ok := ctx.Value(key).(T); ok {
		return v
	}
	return zero
}

func bind(ctx context.Context, key principalKey, value any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID   string
	Role     enums.MemberRole
	SellerID uuid.UUID
}

// PrincipalFromContext collects whatever the auth middleware bound.
func PrincipalFromContext(ctx context.Context) Principal {
	return Principal{
		UserID:   UserIDFromContext(ctx),
		Role:     RoleFromContext(ctx),
		SellerID: SellerIDFromContext(ctx),
	}
}

func UserIDFromContext(ctx context.Context) string {
	return lookup[string](ctx, userIDKey)
}

func RoleFromContext(ctx context.Context) enums.MemberRole {
	return lookup[enums.MemberRole](ctx, roleKey)
}

// SellerIDFromContext returns the seller bound to the token, or uuid.Nil for
// buyer and ops principals.
func SellerIDFromContext(ctx context.Context) uuid.UUID {
	return lookup[uuid.UUID](ctx, sellerIDKey)
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return bind(ctx, userIDKey, userID)
}

func WithRole(ctx context.Context, role enums.MemberRole) context.Context {
	return bind(ctx, roleKey, role)
}

// WithSellerID binds the seller for seller-scoped handlers.
func WithSellerID(ctx context.Context, sellerID uuid.UUID) context.Context {
	return bind(ctx, sellerIDKey, sellerID)
}
