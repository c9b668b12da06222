package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// maxbytes limits the UTF-8 length; max counts runes.
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len(fl.Field().String()) <= limit
	})
	return v
}

// SignupInput is the registration form. Only presence is checked; bcrypt
// cannot hash more than 72 bytes.
type SignupInput struct {
	Name     string `validate:"required,max=100"`
	Email    string `validate:"required,max=254"`
	Password string `validate:"required,maxbytes=72"`
}

// LoginInput is the login form.
type LoginInput struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

// PlantInput is the tree listing form. Adhar is not checked for format or
// uniqueness.
type PlantInput struct {
	Adhar   int64   `validate:"required"`
	State   string  `validate:"required,max=100"`
	Distric string  `validate:"required,max=100"`
	PinCode string  `validate:"required,max=20"`
	Price   float64 `validate:"gte=0"`
}

func validateInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		case "maxbytes":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s bytes", fe.Field(), fe.Param()))
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
}
