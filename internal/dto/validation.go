package dto

import (
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/od-approval-api/internal/models"
)

// NewValidator returns a validator with the OD-specific tags registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("od_type", func(fl validator.FieldLevel) bool {
		return models.ODType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("transition", func(fl validator.FieldLevel) bool {
		return models.Transition(fl.Field().String()).Valid()
	})
	return v
}
