package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "usermgmt/pkg/domain-errors"
)

// RequestSuite tests normalization and wire-shape validation of request bodies.
type RequestSuite struct {
	suite.Suite
}

func TestRequestSuite(t *testing.T) {
	suite.Run(t, new(RequestSuite))
}

func (s *RequestSuite) TestRegisterRequest() {
	s.Run("trims everything but the password", func() {
		req := &RegisterRequest{
			FullName:    "  Jane Doe ",
			Email:       " jane@example.com ",
			Password:    " secret with spaces ",
			DateOfBirth: " 2000-01-31 ",
		}
		req.Normalize()
		s.Require().NoError(req.Validate())

		s.Equal("Jane Doe", req.FullName)
		s.Equal("jane@example.com", req.Email)
		s.Equal(" secret with spaces ", req.Password)

		m := req.ToModel("198.51.100.1", "Firefox on Linux")
		s.Equal(time.Date(2000, 1, 31, 0, 0, 0, 0, time.UTC), m.DateOfBirth)
		s.Equal("198.51.100.1", m.IPAddress)
		s.Equal("Firefox on Linux", m.DeviceInfo)
	})

	s.Run("missing date of birth is left to the registration policy", func() {
		req := &RegisterRequest{}
		s.NoError(req.Validate())
		s.True(req.ToModel("", "").DateOfBirth.IsZero())
	})

	s.Run("malformed date of birth", func() {
		req := &RegisterRequest{DateOfBirth: "31-01-2000"}
		err := req.Validate()
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *RequestSuite) TestUpdateProfileRequest() {
	s.Run("requires an id", func() {
		req := &UpdateProfileRequest{FullName: "Jane"}
		s.True(dErrors.HasCode(req.Validate(), dErrors.CodeBadRequest))
	})

	s.Run("rejects a malformed id", func() {
		req := &UpdateProfileRequest{ID: "nope"}
		s.True(dErrors.HasCode(req.Validate(), dErrors.CodeInvalidInput))
	})

	s.Run("parses a valid id", func() {
		req := &UpdateProfileRequest{ID: " 550e8400-e29b-41d4-a716-446655440000 "}
		req.Normalize()
		s.Require().NoError(req.Validate())
		s.Equal("550e8400-e29b-41d4-a716-446655440000", req.parsedID.String())
	})
}

func (s *RequestSuite) TestChangePasswordRequest() {
	err := (&ChangePasswordRequest{}).Validate()
	s.Require().Error(err)
	s.Len(dErrors.FieldsOf(err), 2)
	s.NoError((&ChangePasswordRequest{CurrentPassword: "a", NewPassword: "b"}).Validate())
}

func (s *RequestSuite) TestAssignRoleRequest() {
	req := &AssignRoleRequest{NewRole: "  "}
	req.Normalize()
	s.True(dErrors.HasCode(req.Validate(), dErrors.CodeValidation))
}
