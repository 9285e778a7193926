package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"usermgmt/internal/users/models"
	id "usermgmt/pkg/domain"
	dErrors "usermgmt/pkg/domain-errors"
)

// =============================================================================
// Account Aggregate Test Suite
// =============================================================================
// Justification for unit tests: the aggregate owns the lifecycle state machine,
// version counter and role rules; every branch is pure and cheap to pin here.

type AccountSuite struct {
	suite.Suite
	now    time.Time
	params models.NewAccountParams
}

func TestAccountSuite(t *testing.T) {
	suite.Run(t, new(AccountSuite))
}

func (s *AccountSuite) SetupTest() {
	s.now = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	s.params = models.NewAccountParams{
		ID:             id.NewUserID(),
		FullName:       "Jane Doe",
		Email:          "  Jane.Doe@Example.COM ",
		Phone:          "+14155550123",
		Username:       "jane",
		PasswordHash:   "hash",
		DateOfBirth:    time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		TermsVersion:   "v1",
		PrivacyVersion: "v1",
		RegistrationIP: "203.0.113.7",
	}
}

func (s *AccountSuite) newAccount() *models.Account {
	acc, err := models.NewAccount(s.params, s.now)
	s.Require().NoError(err)
	return acc
}

func (s *AccountSuite) activeAccount() *models.Account {
	acc := s.newAccount()
	acc.Activate(s.now)
	return acc
}

// =============================================================================
// Construction
// =============================================================================

func (s *AccountSuite) TestNewAccount() {
	s.Run("defaults and normalization", func() {
		acc := s.newAccount()
		s.Equal(models.StatusPendingVerification, acc.Status())
		s.Equal(models.RoleUser, acc.Role())
		s.Equal(1, acc.ProfileVersion())
		s.Equal("jane.doe@example.com", acc.Email())
		s.Equal(s.now, acc.CreatedAt())
		s.Equal(s.now, acc.UpdatedAt())
		s.Empty(acc.DeactivationReason())
	})

	s.Run("rejects short and long names", func() {
		for _, name := range []string{"", "   ", "J", string(make([]rune, 81))} {
			p := s.params
			p.FullName = name
			_, err := models.NewAccount(p, s.now)
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), "name %q", name)
		}
	})

	s.Run("rejects users younger than 18", func() {
		p := s.params
		p.DateOfBirth = time.Date(2008, 6, 16, 0, 0, 0, 0, time.UTC) // turns 18 tomorrow
		_, err := models.NewAccount(p, s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("accepts users turning 18 today", func() {
		p := s.params
		p.DateOfBirth = time.Date(2008, 6, 15, 0, 0, 0, 0, time.UTC)
		_, err := models.NewAccount(p, s.now)
		s.NoError(err)
	})

	s.Run("aggregates name and age violations", func() {
		p := s.params
		p.FullName = "J"
		p.DateOfBirth = s.now
		_, err := models.NewAccount(p, s.now)
		s.Require().Error(err)
		s.Len(dErrors.FieldsOf(err), 2)
	})
}

func (s *AccountSuite) TestAgeOn() {
	dob := time.Date(2000, 3, 10, 0, 0, 0, 0, time.UTC)
	s.Equal(25, models.AgeOn(dob, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)))
	s.Equal(26, models.AgeOn(dob, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)))
	s.Equal(26, models.AgeOn(dob, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)))
	s.Equal(0, models.AgeOn(time.Time{}, s.now))
}

// =============================================================================
// Profile versioning
// =============================================================================

func (s *AccountSuite) TestUpdateProfile() {
	s.Run("stale version is a concurrency conflict and leaves account unchanged", func() {
		acc := s.newAccount()
		before := acc.Snapshot()

		err := acc.UpdateProfile("New Name", 2, s.now.Add(time.Hour))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConcurrencyConflict))
		s.Equal(before, acc.Snapshot())
	})

	s.Run("stale version wins over an invalid name", func() {
		acc := s.newAccount()
		err := acc.UpdateProfile("", 7, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeConcurrencyConflict))
	})

	s.Run("invalid name with correct version is a validation error", func() {
		acc := s.newAccount()
		err := acc.UpdateProfile("X", 1, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal(1, acc.ProfileVersion())
	})

	s.Run("correct version bumps by exactly one", func() {
		acc := s.newAccount()
		later := s.now.Add(time.Minute)
		s.Require().NoError(acc.UpdateProfile("Jane Smith", 1, later))
		s.Equal("Jane Smith", acc.FullName())
		s.Equal(2, acc.ProfileVersion())
		s.Equal(later, acc.UpdatedAt())

		s.Require().NoError(acc.UpdateProfile("Jane Brown", 2, later))
		s.Equal(3, acc.ProfileVersion())
	})
}

// =============================================================================
// Lifecycle
// =============================================================================

func (s *AccountSuite) TestLifecycle() {
	s.Run("verify email activates a pending account once", func() {
		acc := s.newAccount()
		s.True(acc.VerifyEmail(s.now))
		s.Equal(models.StatusActive, acc.Status())
		s.False(acc.VerifyEmail(s.now))
	})

	s.Run("verify email is a no-op on a deactivated account", func() {
		acc := s.activeAccount()
		s.Require().NoError(acc.Deactivate("abuse", s.now))
		s.False(acc.VerifyEmail(s.now))
		s.Equal(models.StatusDeactivated, acc.Status())
	})

	s.Run("deactivate requires a reason", func() {
		acc := s.activeAccount()
		err := acc.Deactivate("  ", s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal(models.StatusActive, acc.Status())
	})

	s.Run("pending account can be deactivated", func() {
		acc := s.newAccount()
		s.Require().NoError(acc.Deactivate("spam", s.now))
		s.Equal(models.StatusDeactivated, acc.Status())
		s.Equal("spam", acc.DeactivationReason())
	})

	s.Run("deactivate then reactivate clears the reason", func() {
		acc := s.activeAccount()
		s.Require().NoError(acc.Deactivate("spam", s.now))
		s.Equal(models.StatusDeactivated, acc.Status())
		s.Equal("spam", acc.DeactivationReason())

		acc.Activate(s.now)
		s.Equal(models.StatusActive, acc.Status())
		s.Empty(acc.DeactivationReason())

		acc.Activate(s.now)
		s.Equal(models.StatusActive, acc.Status())
	})
}

func (s *AccountSuite) TestChangePassword() {
	s.Run("replaces hash on active account", func() {
		acc := s.activeAccount()
		s.Require().NoError(acc.ChangePassword("new-hash", s.now))
		s.Equal("new-hash", acc.PasswordHash())
	})

	s.Run("deactivated account is invalid state", func() {
		acc := s.activeAccount()
		s.Require().NoError(acc.Deactivate("spam", s.now))
		err := acc.ChangePassword("new-hash", s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
		s.Equal("hash", acc.PasswordHash())
	})
}

// =============================================================================
// Role assignment
// =============================================================================

func (s *AccountSuite) TestChangeRole() {
	cases := []struct {
		actor   models.Role
		target  models.Role
		allowed bool
	}{
		{models.RoleAdmin, models.RoleUser, true},
		{models.RoleAdmin, models.RoleAdmin, false},
		{models.RoleAdmin, models.RoleSuperAdmin, false},
		{models.RoleSuperAdmin, models.RoleUser, true},
		{models.RoleSuperAdmin, models.RoleAdmin, true},
		{models.RoleSuperAdmin, models.RoleSuperAdmin, true},
		{models.RoleUser, models.RoleUser, false},
	}
	for _, tc := range cases {
		s.Run(tc.actor.String()+" assigns "+tc.target.String(), func() {
			acc := s.activeAccount()
			err := acc.ChangeRole(tc.target, tc.actor, s.now)
			if tc.allowed {
				s.Require().NoError(err)
				s.Equal(tc.target, acc.Role())
				return
			}
			s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
			s.Equal(models.RoleUser, acc.Role())
		})
	}

	s.Run("deactivated account is invalid state for an authorized actor", func() {
		acc := s.activeAccount()
		s.Require().NoError(acc.Deactivate("spam", s.now))
		err := acc.ChangeRole(models.RoleAdmin, models.RoleSuperAdmin, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("authorization is checked before lifecycle state", func() {
		acc := s.activeAccount()
		s.Require().NoError(acc.Deactivate("spam", s.now))
		err := acc.ChangeRole(models.RoleAdmin, models.RoleAdmin, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *AccountSuite) TestSnapshotRoundTrip() {
	acc := s.activeAccount()
	s.Require().NoError(acc.UpdateProfile("Jane Smith", 1, s.now))
	restored := models.RestoreAccount(acc.Snapshot())
	s.Equal(acc.Snapshot(), restored.Snapshot())
}
