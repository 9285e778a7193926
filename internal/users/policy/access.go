package policy

import (
	"strings"
	"unicode/utf8"

	"usermgmt/internal/users/models"
	dErrors "usermgmt/pkg/domain-errors"
)

// Operation names an access-controlled directory action.
type Operation string

const (
	OpReadProfile    Operation = "read_profile"
	OpUpdateProfile  Operation = "update_profile"
	OpChangePassword Operation = "change_password"
	OpVerifyEmail    Operation = "verify_email"
	OpUpdateStatus   Operation = "update_status"
	OpAssignRole     Operation = "assign_role"
	OpSearch         Operation = "search"
)

var errAccessDenied = dErrors.New(dErrors.CodeForbidden, "access denied")

// Authorize decides whether actor may perform op on target. target may be nil
// for operations that are not about a single account (search).
// Every denial is CodeForbidden.
func Authorize(actor models.Actor, op Operation, target *models.Account) error {
	switch op {
	case OpReadProfile, OpUpdateProfile, OpVerifyEmail:
		if isSelf(actor, target) || actor.IsAdmin() {
			return nil
		}
		return errAccessDenied
	case OpChangePassword:
		if isSelf(actor, target) {
			return nil
		}
		return errAccessDenied
	case OpUpdateStatus, OpAssignRole, OpSearch:
		if actor.IsAdmin() {
			return nil
		}
		return dErrors.New(dErrors.CodeForbidden, "admin permissions required")
	default:
		return errAccessDenied
	}
}

// AuthorizeStatusChange adds the self-deactivation guard on top of the admin check.
func AuthorizeStatusChange(actor models.Actor, target *models.Account, activate bool) error {
	if err := Authorize(actor, OpUpdateStatus, target); err != nil {
		return err
	}
	if !activate && isSelf(actor, target) {
		return dErrors.New(dErrors.CodeForbidden, "you cannot deactivate your own account")
	}
	return nil
}

func isSelf(actor models.Actor, target *models.Account) bool {
	return target != nil && actor.IsAuthenticated() && actor.ID == target.ID()
}

// View renders an account for a viewer. Only admin viewers see raw email and
// phone; ownership does not unmask.
func View(acc *models.Account, viewerIsAdmin bool) models.UserView {
	email, phone := acc.Email(), acc.Phone()
	if !viewerIsAdmin {
		email = MaskEmail(email)
		phone = MaskPhone(phone)
	}
	return models.UserView{
		ID:             acc.ID(),
		FullName:       acc.FullName(),
		Email:          email,
		Phone:          phone,
		Username:       acc.Username(),
		Status:         acc.Status().String(),
		Role:           acc.Role().String(),
		ProfileVersion: acc.ProfileVersion(),
		CreatedAt:      acc.CreatedAt(),
	}
}

// MaskEmail keeps the first character of the local part and the domain:
// "john@example.com" -> "j***@example.com". Malformed input masks entirely.
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return "***"
	}
	_, size := utf8.DecodeRuneInString(local)
	return local[:size] + "***@" + domain
}

// MaskPhone keeps the first four and last two characters:
// "+1234567890" -> "+123***90". Inputs shorter than six characters mask entirely.
func MaskPhone(phone string) string {
	if len(phone) < 6 {
		return "***"
	}
	return phone[:4] + "***" + phone[len(phone)-2:]
}
