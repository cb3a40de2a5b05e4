package validator

import (
	"househunt/pkg/model"
	"househunt/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type UserValidator struct {
	validate *validator.Validate
}

func NewUserValidator() *UserValidator {
	return &UserValidator{
		validate: validation.New(),
	}
}

func (v *UserValidator) ValidateRegistration(reg *model.UserRegistration) error {
	return validation.Translate(v.validate.Struct(reg))
}

func (v *UserValidator) ValidateCredentials(creds *model.Credentials) error {
	return validation.Translate(v.validate.Struct(creds))
}
