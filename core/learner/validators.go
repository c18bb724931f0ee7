package learner

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/shuleapp/shule/core"
)

// InitValidators registers the learner validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterOneOf(validate, translator, "gender", "gender must be one of: male, female", GenderMale, GenderFemale)
	core.RegisterOneOf(validate, translator, "learnerstatus", "status must be one of: active, alumni", StatusActive, StatusAlumni)
}
