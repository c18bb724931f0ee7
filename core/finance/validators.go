package finance

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/shuleapp/shule/core"
)

// InitValidators registers the finance validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterOneOf(validate, translator, "paymethod", "method must be one of: cash, mpesa, bank, cheque", PaymentMethods...)
}
