// Package validate checks form input before it is sent to the backend.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9\s\-()]{10,}$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	must := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("registering %s validation: %v", tag, err))
		}
	}
	must("email_addr", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	must("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	must("has_upper", containsFunc(unicode.IsUpper))
	must("has_lower", containsFunc(unicode.IsLower))
	must("has_digit", containsFunc(func(r rune) bool { return r >= '0' && r <= '9' }))

	return v
}

func containsFunc(pred func(rune) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return strings.IndexFunc(fl.Field().String(), pred) >= 0
	}
}

// messages maps "field.tag" to the text shown under a form field.
var messages = map[string]string{
	"email.required":          "Email is required",
	"email.email_addr":        "Invalid email format",
	"password.required":       "Password is required",
	"password.min":            "Password must be at least %s characters",
	"password.has_upper":      "Password must contain an uppercase letter",
	"password.has_digit":      "Password must contain a number",
	"confirmPassword.eqfield": "Passwords do not match",
	"phone.phone":             "Invalid phone number format",
}

// Result is the outcome of validating a form. Errors is keyed by field name.
type Result struct {
	Valid  bool
	Errors map[string]string
}

// Error returns the message for field, or "".
func (r Result) Error(field string) string {
	return r.Errors[field]
}

// LoginInput is the sign-in form.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email_addr"`
	Password string `json:"password" validate:"required,min=6"`
}

// RegisterInput is the sign-up form. ConfirmPassword is only checked
// when filled in.
type RegisterInput struct {
	Email           string `json:"email" validate:"required,email_addr"`
	Password        string `json:"password" validate:"required,min=8,has_upper,has_digit"`
	ConfirmPassword string `json:"confirmPassword" validate:"omitempty,eqfield=Password"`
}

// ProfileInput is the profile form.
type ProfileInput struct {
	FullName string `json:"fullName"`
	Phone    string `json:"phone" validate:"omitempty,phone"`
	Location string `json:"location"`
}

// LoginForm validates the sign-in form.
func LoginForm(email, password string) Result {
	return check(&LoginInput{Email: email, Password: password})
}

// RegisterForm validates the sign-up form.
func RegisterForm(in RegisterInput) Result {
	return check(&in)
}

// ProfileForm validates the profile form.
func ProfileForm(in ProfileInput) Result {
	return check(&in)
}

// IsValidEmail reports whether email looks like an address.
func IsValidEmail(email string) bool {
	return validate.Var(email, "email_addr") == nil
}

// Strength is the outcome of a password strength check.
type Strength struct {
	Valid   bool
	Message string
}

var strengthRules = []struct {
	tag     string
	message string
}{
	{"min=8", "Password must be at least 8 characters"},
	{"has_upper", "Password must contain at least one uppercase letter"},
	{"has_lower", "Password must contain at least one lowercase letter"},
	{"has_digit", "Password must contain at least one number"},
}

// Password checks password strength, reporting the first rule it breaks.
func Password(p string) Strength {
	for _, rule := range strengthRules {
		if validate.Var(p, rule.tag) != nil {
			return Strength{Message: rule.message}
		}
	}
	return Strength{Valid: true, Message: "Password is strong"}
}

func check(form any) Result {
	res := Result{Valid: true, Errors: map[string]string{}}

	err := validate.Struct(form)
	if err == nil {
		return res
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		res.Valid = false
		res.Errors["form"] = err.Error()
		return res
	}

	res.Valid = false
	for _, fe := range fieldErrs {
		res.Errors[fe.Field()] = message(fe)
	}
	return res
}

func message(fe validator.FieldError) string {
	msg, ok := messages[fe.Field()+"."+fe.Tag()]
	if !ok {
		return fmt.Sprintf("Field '%s' is invalid: %s", fe.Field(), fe.Tag())
	}
	if strings.Contains(msg, "%s") {
		return fmt.Sprintf(msg, fe.Param())
	}
	return msg
}
