package validator

import (
	"househunt/pkg/model"
	"househunt/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type PropertyValidator struct {
	validate *validator.Validate
}

func NewPropertyValidator() *PropertyValidator {
	return &PropertyValidator{
		validate: validation.New(),
	}
}

func (v *PropertyValidator) Validate(listing *model.PropertyListing) error {
	return validation.Translate(v.validate.Struct(listing))
}
