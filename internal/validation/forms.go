package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/document-locker/locker/internal/constants"
)

// Field names used as keys in Errors.
const (
	FieldName            = "name"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirmPassword"
	FieldTerms           = "terms"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// FieldError is one failed rule.
type FieldError struct {
	Field   string
	Message string
}

// Errors collects field failures in form order. A nil or empty Errors
// means the form may be submitted.
type Errors []FieldError

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Message
	}
	return strings.Join(msgs, "; ")
}

// Field returns the message for field, or "".
func (e Errors) Field(field string) string {
	for _, fe := range e {
		if fe.Field == field {
			return fe.Message
		}
	}
	return ""
}

// Err returns e as an error, or nil when empty.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

func (e *Errors) add(field, msg string) {
	*e = append(*e, FieldError{Field: field, Message: msg})
}

// IsValidEmail applies the loose something@something.tld check.
func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// LoginForm is the sign-in form.
type LoginForm struct {
	Email      string
	Password   string
	RememberMe bool
}

// Validate checks the login form. Values are trimmed before checking.
func (f LoginForm) Validate() error {
	var errs Errors
	checkEmail(&errs, f.Email)
	checkPassword(&errs, f.Password)
	return errs.Err()
}

// RegisterForm is the sign-up form.
type RegisterForm struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
	AgreeTerms      bool
}

// Validate checks every register rule, including the terms checkbox.
func (f RegisterForm) Validate() error {
	var errs Errors
	if utf8.RuneCountInString(strings.TrimSpace(f.Name)) < constants.MinNameLength {
		errs.add(FieldName, "Name must be at least 2 characters long")
	}
	checkEmail(&errs, f.Email)
	checkPassword(&errs, f.Password)
	if strings.TrimSpace(f.ConfirmPassword) != f.Password {
		errs.add(FieldConfirmPassword, "Passwords do not match")
	}
	if !f.AgreeTerms {
		errs.add(FieldTerms, "Please agree to the Terms of Service and Privacy Policy")
	}
	return errs.Err()
}

func checkEmail(errs *Errors, email string) {
	if !IsValidEmail(strings.TrimSpace(email)) {
		errs.add(FieldEmail, "Please enter a valid email address")
	}
}

func checkPassword(errs *Errors, password string) {
	if utf8.RuneCountInString(strings.TrimSpace(password)) < constants.MinPasswordLength {
		errs.add(FieldPassword, "Password must be at least 6 characters long")
	}
}
