package membership

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/kcci/portal/core"
	"github.com/kcci/portal/core/user"
)

var (
	appKindTag  = "appkind"
	appKindText = "kind must be one of reviewer or company"
)

// InitValidators registers the membership validators and their translations.
// The password policy translations are registered by user.InitValidators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(appKindTag, appKindValidation)
	core.RegisterCustomTranslation(validate, translator, appKindTag, appKindText)

	validate.RegisterStructValidation(applicationStructValidation, NewApplication{})
}

func appKindValidation(fl validator.FieldLevel) bool {
	return Kind(fl.Field().String()).IsValid()
}

// applicationStructValidation applies the password policy to the registration form.
func applicationStructValidation(sl validator.StructLevel) {
	na, ok := sl.Current().Interface().(NewApplication)
	if !ok {
		return
	}
	user.ReportPasswordError(sl, na.Password, na.Name, na.Username, na.Email)
}
