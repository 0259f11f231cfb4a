package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/msomdec/quill/internal/domain"
)

// bcrypt ignores input past this many bytes.
const maxPasswordBytes = 72

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// max counts runes; maxbytes bounds the encoded length.
	if err := v.RegisterValidation("maxbytes", validateMaxBytes); err != nil {
		panic(err)
	}
	return v
}

func validateMaxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}

var fieldLabels = map[string]string{
	"Username":        "username",
	"Email":           "email",
	"Password":        "password",
	"ConfirmPassword": "confirm password",
	"Title":           "title",
	"Content":         "content",
}

type registrationInput struct {
	Username        string `validate:"required,min=2,max=20"`
	Email           string `validate:"required,email"`
	Password        string `validate:"required,maxbytes=72"`
	ConfirmPassword string `validate:"required,eqfield=Password"`
}

type profileInput struct {
	Username string `validate:"required,min=2,max=20"`
	Email    string `validate:"required,email"`
}

type passwordInput struct {
	Password        string `validate:"required,maxbytes=72"`
	ConfirmPassword string `validate:"required,eqfield=Password"`
}

type emailInput struct {
	Email string `validate:"required,email"`
}

type postInput struct {
	Title   string `validate:"required,max=100"`
	Content string `validate:"required"`
}

// validateInput runs struct validation and folds every failure into a
// single domain.ErrInvalidInput with readable messages.
func validateInput(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate input: %w", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = strings.ToLower(fe.Field())
	}

	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "maxbytes":
		return fmt.Sprintf("%s must be at most %s bytes", label, fe.Param())
	case "email":
		return label + " must be a valid email address"
	case "eqfield":
		return "passwords do not match"
	default:
		return label + " is invalid"
	}
}
