package models

import (
	"time"

	id "usermgmt/pkg/domain"
)

// Record is the flat persistence form of an Account. Stores read and write
// Records; only RestoreAccount turns one back into an aggregate.
type Record struct {
	ID                 id.UserID
	Email              string
	Phone              string
	Username           string
	FullName           string
	DateOfBirth        time.Time
	ProfileVersion     int
	PasswordHash       string
	Status             Status
	DeactivationReason string
	Role               Role
	TermsVersion       string
	PrivacyVersion     string
	MarketingConsent   bool
	RegistrationIP     string
	RegistrationDevice string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (a *Account) Snapshot() Record {
	return Record{
		ID:                 a.id,
		Email:              a.email,
		Phone:              a.phone,
		Username:           a.username,
		FullName:           a.fullName,
		DateOfBirth:        a.dateOfBirth,
		ProfileVersion:     a.profileVersion,
		PasswordHash:       a.passwordHash,
		Status:             a.status,
		DeactivationReason: a.deactivationReason,
		Role:               a.role,
		TermsVersion:       a.termsVersion,
		PrivacyVersion:     a.privacyVersion,
		MarketingConsent:   a.marketingConsent,
		RegistrationIP:     a.registrationIP,
		RegistrationDevice: a.registrationDevice,
		CreatedAt:          a.createdAt,
		UpdatedAt:          a.updatedAt,
	}
}

// RestoreAccount rebuilds an aggregate from persisted state without re-running
// registration checks (an account registered at 18 stays valid forever).
func RestoreAccount(r Record) *Account {
	return &Account{
		id:                 r.ID,
		email:              r.Email,
		phone:              r.Phone,
		username:           r.Username,
		fullName:           r.FullName,
		dateOfBirth:        r.DateOfBirth,
		profileVersion:     r.ProfileVersion,
		passwordHash:       r.PasswordHash,
		status:             r.Status,
		deactivationReason: r.DeactivationReason,
		role:               r.Role,
		termsVersion:       r.TermsVersion,
		privacyVersion:     r.PrivacyVersion,
		marketingConsent:   r.MarketingConsent,
		registrationIP:     r.RegistrationIP,
		registrationDevice: r.RegistrationDevice,
		createdAt:          r.CreatedAt,
		updatedAt:          r.UpdatedAt,
	}
}
