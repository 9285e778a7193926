package models

import (
	dErrors "usermgmt/pkg/domain-errors"
)

// Role is a closed set of authorization levels. The numeric value is the level.
type Role int

const (
	RoleUser       Role = 1
	RoleAdmin      Role = 10
	RoleSuperAdmin Role = 100
)

const (
	RoleNameUser       = "User"
	RoleNameAdmin      = "Admin"
	RoleNameSuperAdmin = "SuperAdmin"
)

// Level returns the rank used for comparisons. Values outside the closed set rank 0.
func (r Role) Level() int {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return int(r)
	default:
		return 0
	}
}

func (r Role) String() string {
	switch r {
	case RoleUser:
		return RoleNameUser
	case RoleAdmin:
		return RoleNameAdmin
	case RoleSuperAdmin:
		return RoleNameSuperAdmin
	default:
		return ""
	}
}

func (r Role) IsValid() bool {
	return r.Level() > 0
}

// IsHigherThan reports whether r strictly outranks other.
func (r Role) IsHigherThan(other Role) bool {
	return r.Level() > other.Level()
}

// IsSameOrHigherThan reports whether r ranks at least as high as other.
func (r Role) IsSameOrHigherThan(other Role) bool {
	return r.Level() >= other.Level()
}

// ParseRole maps an exact role name to a Role.
func ParseRole(name string) (Role, error) {
	switch name {
	case RoleNameUser:
		return RoleUser, nil
	case RoleNameAdmin:
		return RoleAdmin, nil
	case RoleNameSuperAdmin:
		return RoleSuperAdmin, nil
	default:
		return 0, dErrors.NewValidation([]dErrors.FieldError{{Field: "role", Message: "invalid role"}})
	}
}

// IsAdminRoleName reports whether a caller-supplied role string grants admin rights.
func IsAdminRoleName(name string) bool {
	return name == RoleNameAdmin || name == RoleNameSuperAdmin
}
