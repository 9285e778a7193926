package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"usermgmt/internal/users/models"
	dErrors "usermgmt/pkg/domain-errors"
)

type RegistrationPolicySuite struct {
	suite.Suite
	policy *RegistrationPolicy
	now    time.Time
}

func TestRegistrationPolicySuite(t *testing.T) {
	suite.Run(t, new(RegistrationPolicySuite))
}

func (s *RegistrationPolicySuite) SetupTest() {
	s.policy = NewRegistrationPolicy()
	s.now = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
}

func (s *RegistrationPolicySuite) validRequest() models.RegisterRequest {
	return models.RegisterRequest{
		FullName:       "Jane Doe",
		Email:          "jane@example.com",
		Phone:          "+447700900123",
		Username:       "janed",
		Password:       "Str0ng!Passw0rd",
		DateOfBirth:    time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		TermsVersion:   "v1",
		PrivacyVersion: "v1",
	}
}

func (s *RegistrationPolicySuite) fieldsFor(err error, field string) []string {
	var msgs []string
	for _, f := range dErrors.FieldsOf(err) {
		if f.Field == field {
			msgs = append(msgs, f.Message)
		}
	}
	return msgs
}

func (s *RegistrationPolicySuite) TestValidRequest() {
	s.NoError(s.policy.Validate(s.validRequest(), s.now))
}

func (s *RegistrationPolicySuite) TestEmailRules() {
	cases := []struct {
		name    string
		email   string
		wantMsg string
	}{
		{"missing", "  ", "email is required"},
		{"malformed", "not-an-email", "email is not a valid address"},
		{"blocked domain", "bob@mailinator.com", "this email domain is blocked"},
		{"blocked domain upper-case", "Bob@MAILINATOR.com", "this email domain is blocked"},
		{"blocked subdomain", "bob@eu.mailinator.com", "this email domain is blocked"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			req := s.validRequest()
			req.Email = tc.email
			err := s.policy.Validate(req, s.now)
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
			s.Contains(s.fieldsFor(err, "email"), tc.wantMsg)
		})
	}

	s.Run("lookalike domain is not blocked", func() {
		// Justification: only exact or subdomain matches are blocked, not any suffix.
		req := s.validRequest()
		req.Email = "bob@notmailinator.com"
		s.NoError(s.policy.Validate(req, s.now))
	})
}

func (s *RegistrationPolicySuite) TestPhoneRules() {
	for _, phone := range []string{"", "07700900123", "+0123456", "+1", "+1234567890123456"} {
		s.Run(phone, func() {
			req := s.validRequest()
			req.Phone = phone
			err := s.policy.Validate(req, s.now)
			s.Require().Error(err)
			s.NotEmpty(s.fieldsFor(err, "phone"))
		})
	}

	s.Run("shortest accepted number has two digits", func() {
		req := s.validRequest()
		req.Phone = "+12"
		s.NoError(s.policy.Validate(req, s.now))
	})
}

func (s *RegistrationPolicySuite) TestFullNameRules() {
	for _, name := range []string{"", "J", "Jane D0e", "Jane_Doe"} {
		s.Run(name, func() {
			req := s.validRequest()
			req.FullName = name
			err := s.policy.Validate(req, s.now)
			s.Require().Error(err)
			s.NotEmpty(s.fieldsFor(err, "fullName"))
		})
	}

	s.Run("accepts non-ASCII letters", func() {
		req := s.validRequest()
		req.FullName = "José Müller"
		s.NoError(s.policy.Validate(req, s.now))
	})
}

func (s *RegistrationPolicySuite) TestReservedUsernames() {
	s.Run("reserved regardless of case", func() {
		req := s.validRequest()
		req.Username = "Admin"
		err := s.policy.Validate(req, s.now)
		s.Require().Error(err)
		s.Equal([]string{"this username is reserved"}, s.fieldsFor(err, "username"))
	})

	s.Run("empty username is allowed", func() {
		req := s.validRequest()
		req.Username = ""
		s.NoError(s.policy.Validate(req, s.now))
	})

	s.Run("custom list replaces defaults", func() {
		p := NewRegistrationPolicy(WithReservedUsernames([]string{" Ops ", "ops"}))
		req := s.validRequest()
		req.Username = "admin"
		s.NoError(p.Validate(req, s.now))
		req.Username = "OPS"
		s.Error(p.Validate(req, s.now))
	})
}

func (s *RegistrationPolicySuite) TestPasswordRules() {
	cases := []struct {
		name     string
		password string
		wantMsg  string
	}{
		{"missing", "", "password is required"},
		{"too short", "Ab1!", "password must be at least 12 characters"},
		{"two categories", "abcdefghijk1", "password must include at least 3 of 4 categories: upper, lower, digit, symbol"},
		{"contains email local part", "xxJANE-Passw0rd", "password cannot contain email parts"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			req := s.validRequest()
			req.Password = tc.password
			err := s.policy.Validate(req, s.now)
			s.Require().Error(err)
			s.Contains(s.fieldsFor(err, "password"), tc.wantMsg)
		})
	}

	s.Run("symbol counts as a category", func() {
		req := s.validRequest()
		req.Password = "lowercase-only-123"
		s.NoError(s.policy.Validate(req, s.now))
	})
}

func (s *RegistrationPolicySuite) TestAgeAndConsents() {
	req := s.validRequest()
	req.DateOfBirth = time.Date(2008, 6, 16, 0, 0, 0, 0, time.UTC)
	req.TermsVersion = " "
	req.PrivacyVersion = ""

	err := s.policy.Validate(req, s.now)
	s.Require().Error(err)
	s.NotEmpty(s.fieldsFor(err, "dateOfBirth"))
	s.NotEmpty(s.fieldsFor(err, "termsVersion"))
	s.NotEmpty(s.fieldsFor(err, "privacyVersion"))

	s.Run("eighteenth birthday is accepted", func() {
		req := s.validRequest()
		req.DateOfBirth = time.Date(2008, 6, 15, 0, 0, 0, 0, time.UTC)
		s.NoError(s.policy.Validate(req, s.now))
	})
}

func TestValidateAggregatesAllFields(t *testing.T) {
	err := NewRegistrationPolicy().Validate(models.RegisterRequest{}, time.Now())
	require.Error(t, err)

	seen := map[string]bool{}
	for _, f := range dErrors.FieldsOf(err) {
		seen[f.Field] = true
	}
	for _, field := range []string{"fullName", "email", "phone", "password", "dateOfBirth", "termsVersion", "privacyVersion"} {
		assert.True(t, seen[field], "expected violation for %s", field)
	}
	assert.False(t, seen["username"])
}
