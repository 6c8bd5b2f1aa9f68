// Package validation wraps go-playground/validator and adds the handful of
// ad-hoc checks the handlers need outside struct tags.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	EmailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	// CouponCodeRegex restricts coupon codes to uppercase alphanumerics,
	// underscores and dashes, 3 to 50 characters.
	CouponCodeRegex = regexp.MustCompile(`^[A-Z0-9_-]{3,50}$`)

	PasswordMinLength = 8
)

// Validator wraps a validator.Validate instance so handlers share one
// registry of struct rules.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// ValidateStruct runs the struct-tag rules.
func (v *Validator) ValidateStruct(s interface{}) error {
	return v.validate.Struct(s)
}

// FormatValidationErrors flattens validator errors into a field-to-message
// map suitable for the error response envelope.
func FormatValidationErrors(err error) map[string]string {
	errors := make(map[string]string)

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors
	}

	for _, e := range validationErrs {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "required":
			errors[field] = fmt.Sprintf("%s is required", e.Field())
		case "email":
			errors[field] = "Invalid email format"
		case "min":
			errors[field] = fmt.Sprintf("%s must be at least %s characters", e.Field(), e.Param())
		case "max":
			errors[field] = fmt.Sprintf("%s must be at most %s characters", e.Field(), e.Param())
		case "gte":
			errors[field] = fmt.Sprintf("%s must be greater than or equal to %s", e.Field(), e.Param())
		case "lte":
			errors[field] = fmt.Sprintf("%s must be less than or equal to %s", e.Field(), e.Param())
		case "oneof":
			errors[field] = fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param())
		default:
			errors[field] = fmt.Sprintf("%s is invalid", e.Field())
		}
	}
	return errors
}

// ValidateEmail checks shape and length bounds.
func ValidateEmail(email string) bool {
	if len(email) < 3 || len(email) > 254 {
		return false
	}
	return EmailRegex.MatchString(email)
}

// ValidatePassword returns whether the password is acceptable together
// with the list of failed requirements.
func ValidatePassword(password string) (bool, []string) {
	errors := []string{}

	if len(password) < PasswordMinLength {
		errors = append(errors, fmt.Sprintf("Password must be at least %d characters", PasswordMinLength))
	}

	hasLetter := false
	for _, char := range password {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		errors = append(errors, "Password must contain at least one letter")
	}

	return len(errors) == 0, errors
}

// ValidateCouponCode checks the code shape after uppercasing, since codes
// are stored and matched uppercase.
func ValidateCouponCode(code string) bool {
	return CouponCodeRegex.MatchString(strings.ToUpper(code))
}

// SanitizeString strips null bytes and surrounding whitespace from
// user-supplied text before it is persisted.
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.TrimSpace(s)
}
