package handler

import (
	"strings"
	"time"

	"usermgmt/internal/users/models"
	id "usermgmt/pkg/domain"
	dErrors "usermgmt/pkg/domain-errors"
)

const dateLayout = "2006-01-02"

// RegisterRequest is the HTTP request body for POST /users/register.
type RegisterRequest struct {
	FullName         string `json:"full_name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	Username         string `json:"username,omitempty"`
	Password         string `json:"password"`
	DateOfBirth      string `json:"date_of_birth"`
	TermsVersion     string `json:"terms_version"`
	PrivacyVersion   string `json:"privacy_version"`
	MarketingConsent bool   `json:"marketing_consent"`

	parsedDateOfBirth time.Time
}

// Normalize trims every field except the password.
func (r *RegisterRequest) Normalize() {
	r.FullName = strings.TrimSpace(r.FullName)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Username = strings.TrimSpace(r.Username)
	r.DateOfBirth = strings.TrimSpace(r.DateOfBirth)
	r.TermsVersion = strings.TrimSpace(r.TermsVersion)
	r.PrivacyVersion = strings.TrimSpace(r.PrivacyVersion)
}

// Validate only checks the wire shape. Registration rules live in the
// directory's registration policy so every transport shares them.
func (r *RegisterRequest) Validate() error {
	if r.DateOfBirth == "" {
		return nil
	}
	dob, err := time.Parse(dateLayout, r.DateOfBirth)
	if err != nil {
		return dErrors.NewValidation([]dErrors.FieldError{{Field: "dateOfBirth", Message: "date of birth must be formatted as YYYY-MM-DD"}})
	}
	r.parsedDateOfBirth = dob
	return nil
}

// ToModel builds the directory request. Client metadata comes from the request context.
func (r *RegisterRequest) ToModel(ipAddress, deviceInfo string) models.RegisterRequest {
	return models.RegisterRequest{
		FullName:         r.FullName,
		Email:            r.Email,
		Phone:            r.Phone,
		Username:         r.Username,
		Password:         r.Password,
		DateOfBirth:      r.parsedDateOfBirth,
		TermsVersion:     r.TermsVersion,
		PrivacyVersion:   r.PrivacyVersion,
		MarketingConsent: r.MarketingConsent,
		IPAddress:        ipAddress,
		DeviceInfo:       deviceInfo,
	}
}

// UpdateProfileRequest is the HTTP request body for PUT /users/{id}.
// ID must repeat the path parameter.
type UpdateProfileRequest struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Version  int    `json:"version"`

	parsedID id.UserID
}

func (r *UpdateProfileRequest) Normalize() {
	r.ID = strings.TrimSpace(r.ID)
	r.FullName = strings.TrimSpace(r.FullName)
}

func (r *UpdateProfileRequest) Validate() error {
	if r.ID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "id is required")
	}
	parsed, err := id.ParseUserID(r.ID)
	if err != nil {
		return err
	}
	r.parsedID = parsed
	return nil
}

// ChangePasswordRequest is the HTTP request body for POST /users/{id}/change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (r *ChangePasswordRequest) Validate() error {
	var fields []dErrors.FieldError
	if r.CurrentPassword == "" {
		fields = append(fields, dErrors.FieldError{Field: "currentPassword", Message: "current password is required"})
	}
	if r.NewPassword == "" {
		fields = append(fields, dErrors.FieldError{Field: "newPassword", Message: "new password is required"})
	}
	if len(fields) > 0 {
		return dErrors.NewValidation(fields)
	}
	return nil
}

// UpdateStatusRequest is the HTTP request body for POST /users/{id}/status.
type UpdateStatusRequest struct {
	IsActive bool   `json:"is_active"`
	Reason   string `json:"reason,omitempty"`
}

func (r *UpdateStatusRequest) Normalize() {
	r.Reason = strings.TrimSpace(r.Reason)
}

// AssignRoleRequest is the HTTP request body for POST /users/{id}/role.
type AssignRoleRequest struct {
	NewRole string `json:"new_role"`
}

func (r *AssignRoleRequest) Normalize() {
	r.NewRole = strings.TrimSpace(r.NewRole)
}

func (r *AssignRoleRequest) Validate() error {
	if r.NewRole == "" {
		return dErrors.NewValidation([]dErrors.FieldError{{Field: "role", Message: "role is required"}})
	}
	return nil
}
