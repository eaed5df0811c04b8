package serrors

import "fmt"

// Base is a coded error shared across service boundaries. Code is a stable
// machine-readable identifier; LocaleKey points at a translatable message.
type Base struct {
	Code      string
	Message   string
	LocaleKey string
}

func (e *Base) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Message
}

func NewError(code, message, localeKey string) *Base {
	return &Base{Code: code, Message: message, LocaleKey: localeKey}
}

// FieldRequiredError marks a missing required input field.
type FieldRequiredError struct {
	Base
	Field string
}

func NewFieldRequiredError(field, localeKey string) *FieldRequiredError {
	return &FieldRequiredError{
		Base: Base{
			Code:      "FIELD_REQUIRED",
			Message:   fmt.Sprintf("%s is required", field),
			LocaleKey: localeKey,
		},
		Field: field,
	}
}

// FieldInvalidError marks a present but malformed input field.
type FieldInvalidError struct {
	Base
	Field  string
	Reason string
}

func NewFieldInvalidError(field, reason, localeKey string) *FieldInvalidError {
	return &FieldInvalidError{
		Base: Base{
			Code:      "FIELD_INVALID",
			Message:   fmt.Sprintf("%s %s", field, reason),
			LocaleKey: localeKey,
		},
		Field:  field,
		Reason: reason,
	}
}
