package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireRole(t *testing.T) {
	mw := RequireRole(nil, enums.MemberRoleBuyer, enums.MemberRoleOps)

	tests := []struct {
		role enums.MemberRole
		want int
	}{
		{enums.MemberRoleBuyer, http.StatusNoContent},
		{enums.MemberRoleOps, http.StatusNoContent},
		{enums.MemberRoleSeller, http.StatusForbidden},
		{"", http.StatusForbidden},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithRole(req.Context(), tt.role))
		resp := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(resp, req)
		assert.Equal(t, tt.want, resp.Code, "role %q", tt.role)
	}
}

func TestRequireSeller(t *testing.T) {
	mw := RequireSeller(nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := WithRole(req.Context(), enums.MemberRoleSeller)
	resp := httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(resp, req.WithContext(ctx))
	assert.Equal(t, http.StatusForbidden, resp.Code)

	ctx = WithSellerID(ctx, uuid.New())
	resp = httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(resp, req.WithContext(ctx))
	assert.Equal(t, http.StatusNoContent, resp.Code)

	buyerCtx := WithSellerID(WithRole(req.Context(), enums.MemberRoleBuyer), uuid.New())
	resp = httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(resp, req.WithContext(buyerCtx))
	assert.Equal(t, http.StatusForbidden, resp.Code)
}
