// Package validator registers the request tags used by the API on gin's
// go-playground validator.
package validator

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/rdv-api/internal/model"
)

// Register installs the custom tags and makes JSON binding reject unknown
// fields. It must run before the router serves requests.
func Register() error {
	binding.EnableDecoderDisallowUnknownFields = true

	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding validator %T", binding.Validator.Engine())
	}
	return RegisterOn(v)
}

// RegisterOn adds the hhmm and rdvdate tags to v.
func RegisterOn(v *validator.Validate) error {
	if err := v.RegisterValidation("hhmm", validateClock); err != nil {
		return fmt.Errorf("register hhmm: %w", err)
	}
	if err := v.RegisterValidation("rdvdate", validateDate); err != nil {
		return fmt.Errorf("register rdvdate: %w", err)
	}
	return nil
}

func validateClock(fl validator.FieldLevel) bool {
	_, err := model.ParseClock(fl.Field().String())
	return err == nil
}

func validateDate(fl validator.FieldLevel) bool {
	_, err := model.ParseDate(fl.Field().String())
	return err == nil
}
