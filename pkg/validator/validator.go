package validator

import (
	"errors"
	"fmt"
	"html"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"anoa.com/studentlms/pkg/apperror"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

const (
	PasswordMinLength = 8
	UsernameMaxLength = 150
)

var (
	usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)
	sanitizer       = bluemonday.StrictPolicy()
	setupOnce       sync.Once
)

// Setup makes gin's validator report fields by their form tag, so binding
// errors line up with the input names used in the templates.
func Setup() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
	})
}

// FromBindingError converts a gin binding error into per-field messages.
func FromBindingError(err error) *apperror.ValidationError {
	ve := apperror.NewValidationError()

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, fieldError := range validationErrors {
			ve.Add(fieldError.Field(), getFieldErrorMessage(fieldError))
		}
		return ve
	}

	ve.Add(apperror.NonFieldKey, "The submitted form could not be read.")
	return ve
}

func getFieldErrorMessage(fe validator.FieldError) string {
	field := getFieldName(fe.Field())

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required.", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address.", field)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters.", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s.", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters.", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s.", field, fe.Param())
	case "eqfield":
		return "Passwords don't match"
	default:
		return fmt.Sprintf("%s is invalid.", field)
	}
}

func getFieldName(field string) string {
	fieldNames := map[string]string{
		"username":      "Username",
		"email":         "Email",
		"password":      "Password",
		"password1":     "Password",
		"password2":     "Password confirmation",
		"new_password1": "New password",
		"new_password2": "Confirm password",
		"first_name":    "First name",
		"last_name":     "Last name",
		"roll_number":   "Roll number",
		"department":    "Department",
		"year":          "Year",
	}

	if name, ok := fieldNames[field]; ok {
		return name
	}
	return field
}

// ValidateUsername applies the account username rules.
func ValidateUsername(ve *apperror.ValidationError, field, username string) {
	switch {
	case username == "":
		ve.Add(field, "Username is required.")
	case len(username) > UsernameMaxLength:
		ve.Add(field, fmt.Sprintf("Username must be at most %d characters.", UsernameMaxLength))
	case !usernamePattern.MatchString(username):
		ve.Add(field, "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
	}
}

// ValidatePassword applies the password policy to a new password.
func ValidatePassword(ve *apperror.ValidationError, field, password string) {
	if len(password) < PasswordMinLength {
		ve.Add(field, fmt.Sprintf("This password is too short. It must contain at least %d characters.", PasswordMinLength))
		return
	}
	if isNumeric(password) {
		ve.Add(field, "This password is entirely numeric.")
	}
}

// ValidatePasswordPair checks a new password and its confirmation.
func ValidatePasswordPair(ve *apperror.ValidationError, field1, field2, password1, password2, mismatchMsg string) {
	if password1 != "" && password2 != "" && password1 != password2 {
		ve.Add(field2, mismatchMsg)
		return
	}
	ValidatePassword(ve, field1, password1)
}

// Sanitize trims s and strips any markup from it.
func Sanitize(s string) string {
	return strings.TrimSpace(html.UnescapeString(sanitizer.Sanitize(s)))
}

// NormalizeOptional sanitizes value and maps blank input to nil.
func NormalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}

	cleaned := Sanitize(*value)
	if cleaned == "" {
		return nil
	}

	return &cleaned
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
