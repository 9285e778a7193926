package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "usermgmt/pkg/domain-errors"
)

// UserID identifies a user account. It is immutable once assigned at registration.
//
// Construct via NewUserID or ParseUserID; casting an arbitrary uuid.UUID skips the
// nil check performed at trust boundaries.
type UserID uuid.UUID

// NewUserID returns a fresh random identifier.
func NewUserID() UserID {
	return UserID(uuid.New())
}

// ParseUserID parses external input into a UserID.
//
// Errors: returns CodeInvalidInput when the value is empty, malformed, or the nil UUID.
func ParseUserID(s string) (UserID, error) {
	if strings.TrimSpace(s) == "" {
		return UserID{}, dErrors.New(dErrors.CodeInvalidInput, "user id cannot be empty")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid user id")
	}
	if parsed == uuid.Nil {
		return UserID{}, dErrors.New(dErrors.CodeInvalidInput, "user id cannot be nil")
	}
	return UserID(parsed), nil
}

func (id UserID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id UserID) String() string {
	return uuid.UUID(id).String()
}

// MarshalText encodes the id as its canonical string form.
func (id UserID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText accepts the canonical string form; the nil UUID is allowed so that
// optional fields decode cleanly.
func (id *UserID) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*id = UserID{}
		return nil
	}
	parsed, err := uuid.ParseBytes(b)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid user id")
	}
	*id = UserID(parsed)
	return nil
}
