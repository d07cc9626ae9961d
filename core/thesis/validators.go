package thesis

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/thesisflow/core"
	"github.com/trezcool/thesisflow/core/workflow"
)

var (
	thesisStatusTag  = "thesis_status"
	thesisStatusText = "invalid status, expected one of: " + joinStatuses()

	billingStatusTag  = "billing_status"
	billingStatusText = "invalid billing status, expected one of: " + joinBillingStatuses()

	requestStateTag  = "request_state"
	requestStateText = "invalid request state, expected one of: " + joinRequestStates()
)

// InitValidators registers the thesis validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(thesisStatusTag, thesisStatusValidation)
	core.RegisterCustomTranslation(validate, translator, thesisStatusTag, thesisStatusText)

	_ = validate.RegisterValidation(billingStatusTag, billingStatusValidation)
	core.RegisterCustomTranslation(validate, translator, billingStatusTag, billingStatusText)

	_ = validate.RegisterValidation(requestStateTag, requestStateValidation)
	core.RegisterCustomTranslation(validate, translator, requestStateTag, requestStateText)
}

func thesisStatusValidation(fl validator.FieldLevel) bool {
	_, err := workflow.ParseStatus(fl.Field().String())
	return err == nil
}

func billingStatusValidation(fl validator.FieldLevel) bool {
	return BillingStatus(fl.Field().String()).IsValid()
}

func requestStateValidation(fl validator.FieldLevel) bool {
	return RequestState(fl.Field().String()).IsValid()
}

func joinStatuses() string {
	codes := make([]string, 0, 4)
	for _, s := range workflow.Lifecycle() {
		codes = append(codes, string(s))
	}
	return strings.Join(codes, ", ")
}

func joinBillingStatuses() string {
	codes := make([]string, 0, len(BillingStatuses))
	for _, s := range BillingStatuses {
		codes = append(codes, string(s))
	}
	return strings.Join(codes, ", ")
}

func joinRequestStates() string {
	codes := make([]string, 0, len(RequestStates))
	for _, s := range RequestStates {
		codes = append(codes, string(s))
	}
	return strings.Join(codes, ", ")
}
