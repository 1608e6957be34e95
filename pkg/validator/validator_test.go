package validator

import (
	"reflect"
	"testing"

	"anoa.com/studentlms/pkg/apperror"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePasswordPair(t *testing.T) {
	cases := []struct {
		name      string
		p1, p2    string
		wantField string
		wantMsg   string
	}{
		{name: "mismatch", p1: "longenough1", p2: "longenough2", wantField: "password2", wantMsg: "mismatch"},
		{name: "too short", p1: "short", p2: "short", wantField: "password1", wantMsg: "This password is too short. It must contain at least 8 characters."},
		{name: "numeric", p1: "12345678", p2: "12345678", wantField: "password1", wantMsg: "This password is entirely numeric."},
		{name: "ok", p1: "s3cretpass", p2: "s3cretpass"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ve := apperror.NewValidationError()
			ValidatePasswordPair(ve, "password1", "password2", tc.p1, tc.p2, "mismatch")
			if tc.wantField == "" {
				assert.False(t, ve.HasErrors())
				return
			}
			assert.Equal(t, tc.wantMsg, ve.Fields[tc.wantField])
		})
	}
}

func TestValidateUsername(t *testing.T) {
	ve := apperror.NewValidationError()
	ValidateUsername(ve, "username", "alice.smith+1@x")
	assert.False(t, ve.HasErrors())

	ValidateUsername(ve, "username", "bad name!")
	assert.Contains(t, ve.Fields["username"], "Enter a valid username")
}

func TestSanitizeStripsMarkup(t *testing.T) {
	assert.Equal(t, "Physics", Sanitize("  <b>Physics</b> "))
	assert.Equal(t, "R&D", Sanitize("R&D"))
	assert.Nil(t, NormalizeOptional(strPtr("   ")))
	assert.Equal(t, "CS", *NormalizeOptional(strPtr("<script>x</script>CS")))
}

type signupForm struct {
	Email     string `form:"email" binding:"required,email"`
	Password1 string `form:"password1" binding:"required"`
	Password2 string `form:"password2" binding:"required,eqfield=Password1"`
}

func TestFromBindingErrorUsesFormNames(t *testing.T) {
	Setup()

	v := validator.New()
	v.SetTagName("binding")
	v.RegisterTagNameFunc(func(fld reflect.StructField) string { return fld.Tag.Get("form") })

	err := v.Struct(signupForm{Email: "nope", Password1: "a", Password2: "b"})
	require.Error(t, err)

	ve := FromBindingError(err)
	assert.Equal(t, "Email must be a valid email address.", ve.Fields["email"])
	assert.Equal(t, "Passwords don't match", ve.Fields["password2"])
}

func strPtr(s string) *string { return &s }
