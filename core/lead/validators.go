package lead

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core"
)

var (
	priorityTag  = "priority"
	priorityText = "invalid priority"

	sourceTag  = "source"
	sourceText = "invalid source"
)

// InitValidators registers the lead validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(priorityTag, core.OneOfValidation(AllPriorities))
	core.RegisterCustomTranslation(validate, translator, priorityTag, priorityText)

	_ = validate.RegisterValidation(sourceTag, core.OneOfValidation(AllSources))
	core.RegisterCustomTranslation(validate, translator, sourceTag, sourceText)
}
