package actor

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleEmployee   Role = "employee"
	RoleLead       Role = "lead"
	RoleManager    Role = "manager"
	RoleManagement Role = "management"
	RoleSuperAdmin Role = "super_admin"
)

var roleRank = map[Role]int{
	RoleEmployee:   1,
	RoleLead:       2,
	RoleManager:    3,
	RoleManagement: 4,
	RoleSuperAdmin: 5,
}

// Actor is the authenticated caller of every operation, supplied by the external auth layer.
type Actor struct {
	Id          int
	Role        Role
	DisplayName string
}

func ParseRole(s string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := roleRank[role]; !ok {
		return "", fmt.Errorf("unknown role: %q", s)
	}
	return role, nil
}

func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r is at or above other in the role hierarchy. Unknown roles are never at least anything.
func (r Role) AtLeast(other Role) bool {
	rank, ok := roleRank[r]
	if !ok {
		return false
	}
	return rank >= roleRank[other]
}

// IsManagerLevel is true for manager and every role above it.
func (r Role) IsManagerLevel() bool {
	return r.AtLeast(RoleManager)
}

func (r Role) String() string {
	return string(r)
}
