package models

import (
	"strings"
	"time"
	"unicode/utf8"

	id "usermgmt/pkg/domain"
	dErrors "usermgmt/pkg/domain-errors"
)

const (
	MinFullNameLength = 2
	MaxFullNameLength = 80
	MinimumAge        = 18
)

// Account is the aggregate root for a user identity.
//
// Invariants:
//   - id and createdAt never change after construction
//   - email is lower-case and trimmed
//   - profileVersion starts at 1 and grows by exactly 1 per profile update
//   - deactivationReason is non-empty iff status is Deactivated
//   - a Deactivated account cannot change password or role
//
// Fields are unexported; state changes only through the methods below. Each
// mutator has a Can* check and an Apply* step so store Execute callbacks can
// validate under lock and then mutate.
type Account struct {
	id                 id.UserID
	email              string
	phone              string
	username           string
	fullName           string
	dateOfBirth        time.Time
	profileVersion     int
	passwordHash       string
	status             Status
	deactivationReason string
	role               Role
	termsVersion       string
	privacyVersion     string
	marketingConsent   bool
	registrationIP     string
	registrationDevice string
	createdAt          time.Time
	updatedAt          time.Time
}

// NewAccountParams carries the already-policy-checked registration input.
type NewAccountParams struct {
	ID                 id.UserID
	FullName           string
	Email              string
	Phone              string
	Username           string
	PasswordHash       string
	DateOfBirth        time.Time
	TermsVersion       string
	PrivacyVersion     string
	MarketingConsent   bool
	RegistrationIP     string
	RegistrationDevice string
}

// NewAccount constructs a pending account with role User and profile version 1.
func NewAccount(p NewAccountParams, now time.Time) (*Account, error) {
	var fields []dErrors.FieldError
	if msg := checkFullName(p.FullName); msg != "" {
		fields = append(fields, dErrors.FieldError{Field: "fullName", Message: msg})
	}
	if AgeOn(p.DateOfBirth, now) < MinimumAge {
		fields = append(fields, dErrors.FieldError{Field: "dateOfBirth", Message: "user must be at least 18 years old"})
	}
	if len(fields) > 0 {
		return nil, dErrors.NewValidation(fields)
	}

	return &Account{
		id:                 p.ID,
		email:              NormalizeEmail(p.Email),
		phone:              strings.TrimSpace(p.Phone),
		username:           strings.TrimSpace(p.Username),
		fullName:           p.FullName,
		dateOfBirth:        p.DateOfBirth,
		profileVersion:     1,
		passwordHash:       p.PasswordHash,
		status:             StatusPendingVerification,
		role:               RoleUser,
		termsVersion:       p.TermsVersion,
		privacyVersion:     p.PrivacyVersion,
		marketingConsent:   p.MarketingConsent,
		registrationIP:     p.RegistrationIP,
		registrationDevice: p.RegistrationDevice,
		createdAt:          now,
		updatedAt:          now,
	}, nil
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AgeOn returns completed years between dob and now: the calendar-year difference,
// minus one when the birthday has not yet occurred in now's year.
func AgeOn(dob, now time.Time) int {
	if dob.IsZero() {
		return 0
	}
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

func checkFullName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "full name is required"
	}
	n := utf8.RuneCountInString(name)
	if n < MinFullNameLength || n > MaxFullNameLength {
		return "full name length must be between 2 and 80 characters"
	}
	return ""
}

func (a *Account) ID() id.UserID              { return a.id }
func (a *Account) Email() string              { return a.email }
func (a *Account) Phone() string              { return a.phone }
func (a *Account) Username() string           { return a.username }
func (a *Account) FullName() string           { return a.fullName }
func (a *Account) DateOfBirth() time.Time     { return a.dateOfBirth }
func (a *Account) ProfileVersion() int        { return a.profileVersion }
func (a *Account) PasswordHash() string       { return a.passwordHash }
func (a *Account) Status() Status             { return a.status }
func (a *Account) DeactivationReason() string { return a.deactivationReason }
func (a *Account) Role() Role                 { return a.role }
func (a *Account) TermsVersion() string       { return a.termsVersion }
func (a *Account) PrivacyVersion() string     { return a.privacyVersion }
func (a *Account) MarketingConsent() bool     { return a.marketingConsent }
func (a *Account) RegistrationIP() string     { return a.registrationIP }
func (a *Account) RegistrationDevice() string { return a.registrationDevice }
func (a *Account) CreatedAt() time.Time       { return a.createdAt }
func (a *Account) UpdatedAt() time.Time       { return a.updatedAt }

func (a *Account) IsActive() bool {
	return a.status == StatusActive
}

// -----------------------------------------------------------------------------
// Profile
// -----------------------------------------------------------------------------

// CanUpdateProfile checks the caller's version before the name, so a stale
// request is always reported as a concurrency conflict.
func (a *Account) CanUpdateProfile(fullName string, expectedVersion int) error {
	if expectedVersion != a.profileVersion {
		return dErrors.New(dErrors.CodeConcurrencyConflict,
			"the profile has been updated by another process")
	}
	if msg := checkFullName(fullName); msg != "" {
		return dErrors.NewValidation([]dErrors.FieldError{{Field: "fullName", Message: msg}})
	}
	return nil
}

// ApplyProfileUpdate sets the name and bumps the version by one.
// Call CanUpdateProfile first.
func (a *Account) ApplyProfileUpdate(fullName string, now time.Time) {
	a.fullName = fullName
	a.profileVersion++
	a.updatedAt = now
}

func (a *Account) UpdateProfile(fullName string, expectedVersion int, now time.Time) error {
	if err := a.CanUpdateProfile(fullName, expectedVersion); err != nil {
		return err
	}
	a.ApplyProfileUpdate(fullName, now)
	return nil
}

// -----------------------------------------------------------------------------
// Credentials
// -----------------------------------------------------------------------------

func (a *Account) CanChangePassword() error {
	if a.status == StatusDeactivated {
		return dErrors.New(dErrors.CodeInvalidState, "cannot change password for a deactivated user")
	}
	return nil
}

func (a *Account) ApplyPasswordChange(passwordHash string, now time.Time) {
	a.passwordHash = passwordHash
	a.updatedAt = now
}

func (a *Account) ChangePassword(passwordHash string, now time.Time) error {
	if err := a.CanChangePassword(); err != nil {
		return err
	}
	a.ApplyPasswordChange(passwordHash, now)
	return nil
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

func (a *Account) CanDeactivate(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return dErrors.NewValidation([]dErrors.FieldError{{Field: "reason", Message: "a reason is required for deactivation"}})
	}
	return nil
}

func (a *Account) ApplyDeactivation(reason string, now time.Time) {
	a.status = StatusDeactivated
	a.deactivationReason = strings.TrimSpace(reason)
	a.updatedAt = now
}

func (a *Account) Deactivate(reason string, now time.Time) error {
	if err := a.CanDeactivate(reason); err != nil {
		return err
	}
	a.ApplyDeactivation(reason, now)
	return nil
}

// Activate is idempotent: any state moves to Active and the reason is cleared.
func (a *Account) Activate(now time.Time) {
	a.status = StatusActive
	a.deactivationReason = ""
	a.updatedAt = now
}

// VerifyEmail moves a pending account to Active and reports whether it changed.
func (a *Account) VerifyEmail(now time.Time) bool {
	if a.status != StatusPendingVerification {
		return false
	}
	a.status = StatusActive
	a.updatedAt = now
	return true
}

// -----------------------------------------------------------------------------
// Authorization
// -----------------------------------------------------------------------------

// CanChangeRole allows the change when the actor strictly outranks the new role,
// or the actor is SuperAdmin. Authorization is checked before lifecycle state.
func (a *Account) CanChangeRole(newRole, actorRole Role) error {
	if !newRole.IsValid() {
		return dErrors.NewValidation([]dErrors.FieldError{{Field: "role", Message: "invalid role"}})
	}
	if !actorRole.IsHigherThan(newRole) && actorRole != RoleSuperAdmin {
		return dErrors.New(dErrors.CodeForbidden, "insufficient permissions to assign this role")
	}
	if a.status == StatusDeactivated {
		return dErrors.New(dErrors.CodeInvalidState, "cannot change role for a deactivated user")
	}
	return nil
}

func (a *Account) ApplyRoleChange(newRole Role, now time.Time) {
	a.role = newRole
	a.updatedAt = now
}

func (a *Account) ChangeRole(newRole, actorRole Role, now time.Time) error {
	if err := a.CanChangeRole(newRole, actorRole); err != nil {
		return err
	}
	a.ApplyRoleChange(newRole, now)
	return nil
}
