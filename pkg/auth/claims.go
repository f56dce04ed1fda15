package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID   uuid.UUID
	Role     enums.MemberRole
	SellerID *uuid.UUID
	JTI      string
}

// AccessTokenClaims is the typed JWT accepted by the API. SellerID is present
// only for seller principals.
type AccessTokenClaims struct {
	UserID   uuid.UUID        `json:"user_id"`
	Role     enums.MemberRole `json:"role"`
	SellerID *uuid.UUID       `json:"seller_id,omitempty"`
	jwt.RegisteredClaims
}

var _ jwt.ClaimsValidator = (*AccessTokenClaims)(nil)

// Validate runs after the registered claims checks during parsing.
func (c *AccessTokenClaims) Validate() error {
	switch {
	case c.UserID == uuid.Nil:
		return errors.New("token missing user_id")
	case !c.Role.IsValid():
		return fmt.Errorf("token has invalid role %q", c.Role)
	case c.Role == enums.MemberRoleSeller && (c.SellerID == nil || *c.SellerID == uuid.Nil):
		return errors.New("seller token missing seller_id")
	}
	return nil
}
