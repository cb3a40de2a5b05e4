package validator

import (
	"househunt/pkg/model"
	"househunt/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type BookingValidator struct {
	validate *validator.Validate
}

func NewBookingValidator() *BookingValidator {
	return &BookingValidator{
		validate: validation.New(),
	}
}

func (v *BookingValidator) Validate(booking *model.Booking) error {
	return validation.Translate(v.validate.Struct(booking))
}

func (v *BookingValidator) ValidateStatusUpdate(update *model.BookingStatusUpdate) error {
	return validation.Translate(v.validate.Struct(update))
}
