package models

import (
	"time"

	id "usermgmt/pkg/domain"
)

// Actor is the caller identity for a request. The zero value is an anonymous caller.
type Actor struct {
	ID   id.UserID
	Role string
}

func (a Actor) IsAuthenticated() bool {
	return !a.ID.IsNil()
}

// IsAdmin reports whether the caller's role string grants admin rights.
func (a Actor) IsAdmin() bool {
	return IsAdminRoleName(a.Role)
}

// EffectiveRole is the role used when the caller assigns roles: SuperAdmin
// when the role string says so, otherwise Admin.
func (a Actor) EffectiveRole() Role {
	if a.Role == RoleNameSuperAdmin {
		return RoleSuperAdmin
	}
	return RoleAdmin
}

type RegisterRequest struct {
	FullName         string
	Email            string
	Phone            string
	Username         string
	Password         string
	DateOfBirth      time.Time
	TermsVersion     string
	PrivacyVersion   string
	MarketingConsent bool
	IPAddress        string
	DeviceInfo       string
}

type UpdateProfileRequest struct {
	UserID   id.UserID
	FullName string
	Version  int
}

type ChangePasswordRequest struct {
	UserID          id.UserID
	CurrentPassword string
	NewPassword     string
}

type UpdateStatusRequest struct {
	UserID   id.UserID
	IsActive bool
	Reason   string
}

type AssignRoleRequest struct {
	UserID  id.UserID
	NewRole string
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 50
)

type SearchRequest struct {
	Page       int
	PageSize   int
	SearchTerm string
	Role       string
	Status     string
}

// Clamped returns the request with page >= 1 and 1 <= pageSize <= MaxPageSize.
// A non-positive pageSize falls back to DefaultPageSize.
func (r SearchRequest) Clamped() SearchRequest {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize < 1 {
		r.PageSize = DefaultPageSize
	}
	if r.PageSize > MaxPageSize {
		r.PageSize = MaxPageSize
	}
	return r
}

// ListFilter is what the directory hands to the repository for paginated lookups.
type ListFilter struct {
	Page       int
	PageSize   int
	SearchTerm string
	Role       string
	Status     string
}

// Offset is the number of records to skip for the requested page.
func (f ListFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// UserView is the outward representation of an account; email and phone may be masked.
type UserView struct {
	ID             id.UserID
	FullName       string
	Email          string
	Phone          string
	Username       string
	Status         string
	Role           string
	ProfileVersion int
	CreatedAt      time.Time
}

type PagedResult struct {
	Items    []UserView
	Total    int64
	Page     int
	PageSize int
}
