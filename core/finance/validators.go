package finance

import (
	"reflect"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/kcci/portal/core"
)

var (
	costCatTag  = "costcat"
	costCatText = "category must be one of review_fee, travel, operation or other"

	revCatTag  = "revcat"
	revCatText = "category must be one of membership_fee, certification_fee, education_fee or other"

	payStatusTag  = "paystatus"
	payStatusText = "status must be either unpaid or paid"

	moneyTag  = "money"
	moneyText = "enter a positive amount with at most 2 decimal places"
)

// InitValidators registers the finance validators and their translations.
// Decimals are validated through their string representation.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{}, decimal.NullDecimal{})

	_ = validate.RegisterValidation(costCatTag, costCatValidation)
	core.RegisterCustomTranslation(validate, translator, costCatTag, costCatText)

	_ = validate.RegisterValidation(revCatTag, revCatValidation)
	core.RegisterCustomTranslation(validate, translator, revCatTag, revCatText)

	_ = validate.RegisterValidation(payStatusTag, payStatusValidation)
	core.RegisterCustomTranslation(validate, translator, payStatusTag, payStatusText)

	_ = validate.RegisterValidation(moneyTag, moneyValidation)
	core.RegisterCustomTranslation(validate, translator, moneyTag, moneyText)
}

func decimalValue(field reflect.Value) interface{} {
	switch d := field.Interface().(type) {
	case decimal.Decimal:
		return d.String()
	case decimal.NullDecimal:
		if !d.Valid {
			return ""
		}
		return d.Decimal.String()
	}
	return nil
}

func costCatValidation(fl validator.FieldLevel) bool {
	return CostCategory(fl.Field().String()).IsValid()
}

func revCatValidation(fl validator.FieldLevel) bool {
	return RevenueCategory(fl.Field().String()).IsValid()
}

func payStatusValidation(fl validator.FieldLevel) bool {
	return PaymentStatus(fl.Field().String()).IsValid()
}

func moneyValidation(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return ValidAmount(d)
}

// ValidAmount reports whether d is strictly positive and has at most 2 decimal places.
func ValidAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.Equal(d.Round(2))
}
