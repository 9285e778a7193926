// Package policy holds the pure rules applied around the account aggregate:
// what a registration must look like, and who may do what to whom.
package policy

import (
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/asaskevich/govalidator"

	"usermgmt/internal/users/models"
	dErrors "usermgmt/pkg/domain-errors"
	pstrings "usermgmt/pkg/platform/strings"
)

const MinPasswordLength = 12

var (
	DefaultBlockedDomains    = []string{"mailinator.com", "guerrillamail.com"}
	DefaultReservedUsernames = []string{"admin", "support", "system", "root"}

	fullNamePattern = regexp.MustCompile(`^[\p{L}\s]+$`)
	e164Pattern     = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
)

// RegistrationPolicy validates registration input before an account is built.
// It collects every violation instead of stopping at the first one.
type RegistrationPolicy struct {
	blockedDomains    []string
	reservedUsernames map[string]struct{}
}

type RegistrationOption func(*RegistrationPolicy)

// WithBlockedDomains replaces the blocked e-mail domain list. Subdomains of a
// blocked domain are blocked too.
func WithBlockedDomains(domains []string) RegistrationOption {
	return func(p *RegistrationPolicy) {
		p.blockedDomains = pstrings.FoldList(domains)
	}
}

// WithReservedUsernames replaces the reserved username list (case-insensitive).
func WithReservedUsernames(names []string) RegistrationOption {
	return func(p *RegistrationPolicy) {
		p.reservedUsernames = pstrings.FoldSet(names)
	}
}

func NewRegistrationPolicy(opts ...RegistrationOption) *RegistrationPolicy {
	p := &RegistrationPolicy{
		blockedDomains:    DefaultBlockedDomains,
		reservedUsernames: pstrings.FoldSet(DefaultReservedUsernames),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Validate returns nil or a validation error listing every violated field.
func (p *RegistrationPolicy) Validate(req models.RegisterRequest, now time.Time) error {
	var fields []dErrors.FieldError
	add := func(field, msg string) {
		fields = append(fields, dErrors.FieldError{Field: field, Message: msg})
	}

	name := req.FullName
	switch n := utf8.RuneCountInString(strings.TrimSpace(name)); {
	case n == 0:
		add("fullName", "full name is required")
	case utf8.RuneCountInString(name) < models.MinFullNameLength || utf8.RuneCountInString(name) > models.MaxFullNameLength:
		add("fullName", "full name length must be between 2 and 80 characters")
	case !fullNamePattern.MatchString(name):
		add("fullName", "full name must not contain symbols or digits")
	}

	email := models.NormalizeEmail(req.Email)
	switch {
	case email == "":
		add("email", "email is required")
	case !govalidator.IsEmail(email):
		add("email", "email is not a valid address")
	case p.isBlockedDomain(email):
		add("email", "this email domain is blocked")
	}

	phone := strings.TrimSpace(req.Phone)
	switch {
	case phone == "":
		add("phone", "phone is required")
	case !e164Pattern.MatchString(phone):
		add("phone", "phone must be in E.164 format")
	}

	if username := strings.TrimSpace(req.Username); username != "" {
		if _, reserved := p.reservedUsernames[strings.ToLower(username)]; reserved {
			add("username", "this username is reserved")
		}
	}

	for _, msg := range checkPassword(req.Password, email) {
		add("password", msg)
	}

	if models.AgeOn(req.DateOfBirth, now) < models.MinimumAge {
		add("dateOfBirth", "you must be at least 18 years old")
	}
	if strings.TrimSpace(req.TermsVersion) == "" {
		add("termsVersion", "terms version is required")
	}
	if strings.TrimSpace(req.PrivacyVersion) == "" {
		add("privacyVersion", "privacy version is required")
	}

	if len(fields) > 0 {
		return dErrors.NewValidation(fields)
	}
	return nil
}

func (p *RegistrationPolicy) isBlockedDomain(email string) bool {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return false
	}
	domain := email[at+1:]
	for _, blocked := range p.blockedDomains {
		if domain == blocked || strings.HasSuffix(domain, "."+blocked) {
			return true
		}
	}
	return false
}

func checkPassword(password, normalizedEmail string) []string {
	if password == "" {
		return []string{"password is required"}
	}
	var msgs []string
	if utf8.RuneCountInString(password) < MinPasswordLength {
		msgs = append(msgs, "password must be at least 12 characters")
	}
	if passwordCategories(password) < 3 {
		msgs = append(msgs, "password must include at least 3 of 4 categories: upper, lower, digit, symbol")
	}
	if local, _, ok := strings.Cut(normalizedEmail, "@"); ok && local != "" {
		if strings.Contains(strings.ToLower(password), local) {
			msgs = append(msgs, "password cannot contain email parts")
		}
	}
	return msgs
}

func passwordCategories(password string) int {
	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r):
			symbol = true
		}
	}
	n := 0
	for _, has := range []bool{lower, upper, digit, symbol} {
		if has {
			n++
		}
	}
	return n
}
