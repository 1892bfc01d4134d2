package project

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core"
)

var (
	unitStatusTag  = "unitstatus"
	unitStatusText = "invalid unit status"
)

// InitValidators registers the project validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(unitStatusTag, core.OneOfValidation(UnitStatuses))
	core.RegisterCustomTranslation(validate, translator, unitStatusTag, unitStatusText)
}
