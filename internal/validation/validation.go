// Package validation holds the form checks that run before any backend call.
package validation

import (
	"regexp"
	"strings"

	"github.com/spec-kit/vitalwarrior/internal/domain"
	apperrors "github.com/spec-kit/vitalwarrior/pkg/util"
)

var (
	emailPattern     = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	studentIDPattern = regexp.MustCompile(`^UE-\d{8}$`)
)

// Minimum password lengths per form.
const (
	MinLoginPasswordLength    = 6
	MinRegisterPasswordLength = 8
)

// User-facing validation messages.
const (
	MsgInvalidEmail          = "Please enter a valid email address."
	MsgLoginPasswordShort    = "Password must be at least 6 characters long."
	MsgRegisterPasswordShort = "Password must be at least 8 characters long."
	MsgFullNameRequired      = "Please enter your full name."
	MsgInvalidStudentID      = "Please enter a valid UE student ID (UE-XXXXXXXX)."
	MsgPasswordMismatch      = "Passwords do not match."
	MsgContactFieldsMissing  = "Please fill in all required fields."
)

// ValidateEmail checks the shape local@domain.tld without whitespace.
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidateStudentID accepts exactly "UE-" followed by eight digits.
func ValidateStudentID(studentID string) bool {
	return studentIDPattern.MatchString(studentID)
}

// Login validates the login form.
func Login(email, password string) error {
	if !ValidateEmail(email) {
		return fieldError(MsgInvalidEmail, "email")
	}
	if len(password) < MinLoginPasswordLength {
		return fieldError(MsgLoginPasswordShort, "password")
	}
	return nil
}

// Register validates the registration form in the order the form shows
// its fields.
func Register(p domain.RegistrationProfile) error {
	if strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" {
		return fieldError(MsgFullNameRequired, "name")
	}
	if !ValidateStudentID(p.StudentID) {
		return fieldError(MsgInvalidStudentID, "student_id")
	}
	if !ValidateEmail(p.Email) {
		return fieldError(MsgInvalidEmail, "email")
	}
	if len(p.Password) < MinRegisterPasswordLength {
		return fieldError(MsgRegisterPasswordShort, "password")
	}
	if p.Password != p.ConfirmPassword {
		return fieldError(MsgPasswordMismatch, "confirm_password")
	}
	return nil
}

// Contact validates the contact form.
func Contact(name, email, message string) error {
	if strings.TrimSpace(name) == "" || !ValidateEmail(email) || strings.TrimSpace(message) == "" {
		return fieldError(MsgContactFieldsMissing, "")
	}
	return nil
}

func fieldError(msg, field string) error {
	if field == "" {
		return apperrors.NewValidationError(msg, nil)
	}
	return apperrors.NewValidationError(msg, map[string]any{"field": field})
}
