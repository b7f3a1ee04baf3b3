package reviewer

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/kcci/portal/core"
)

var (
	gradeTag  = "grade"
	gradeText = "grade must be one of trainee, junior, senior or lead"
)

// InitValidators registers the reviewer validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(gradeTag, gradeValidation)
	core.RegisterCustomTranslation(validate, translator, gradeTag, gradeText)
}

func gradeValidation(fl validator.FieldLevel) bool {
	return Grade(fl.Field().String()).IsValid()
}
