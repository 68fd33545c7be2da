package models

import (
	"github.com/APTrust/fixity/constants"
	"github.com/go-playground/validator/v10"
)

// validate checks struct tags on every model. It knows one custom
// tag, resource_id, for ids that become bolt keys.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	err := v.RegisterValidation("resource_id", func(fl validator.FieldLevel) bool {
		return constants.ResourceIdPattern.MatchString(fl.Field().String())
	})
	if err != nil {
		panic(err)
	}
	return v
}
