package company

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/kcci/portal/core"
)

var (
	tierTag  = "tier"
	tierText = "tier must be one of regular, associate or special"
)

// InitValidators registers the company validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(tierTag, tierValidation)
	core.RegisterCustomTranslation(validate, translator, tierTag, tierText)
}

func tierValidation(fl validator.FieldLevel) bool {
	return Tier(fl.Field().String()).IsValid()
}
