package enums

import (
	"fmt"
	"slices"
	"strings"
)

// MemberRole is the marketplace role carried in access tokens.
type MemberRole string

const (
	MemberRoleBuyer  MemberRole = "buyer"
	MemberRoleSeller MemberRole = "seller"
	MemberRoleOps    MemberRole = "ops"
)

var memberRoles = []MemberRole{MemberRoleBuyer, MemberRoleSeller, MemberRoleOps}

func (m MemberRole) String() string {
	return string(m)
}

func (m MemberRole) IsValid() bool {
	return slices.Contains(memberRoles, m)
}

// ParseMemberRole trims and lowercases value before matching.
func ParseMemberRole(value string) (MemberRole, error) {
	role := MemberRole(strings.ToLower(strings.TrimSpace(value)))
	if !role.IsValid() {
		return "", fmt.Errorf("invalid member role %q", value)
	}
	return role, nil
}
