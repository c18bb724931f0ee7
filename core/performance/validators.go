package performance

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/shuleapp/shule/core"
)

var (
	termTag  = "term"
	termText = "term must be 1, 2 or 3"
)

// InitValidators registers the performance validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterOneOf(validate, translator, "examtype", "exam type must be one of: opener, mid_term, end_term", ExamTypes...)

	_ = validate.RegisterValidation(termTag, termValidation)
	core.RegisterCustomTranslation(validate, translator, termTag, termText)
}

func termValidation(fl validator.FieldLevel) bool {
	term := fl.Field().Int()
	return term >= 1 && term <= 3
}

// IsExamType reports whether s is a known exam type.
func IsExamType(s string) bool {
	for _, et := range ExamTypes {
		if et == s {
			return true
		}
	}
	return false
}
