package utils

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateInput runs struct tags on input; failures come back as ValidationError.
func ValidateInput(input any) error {
	if err := GetValidator().Struct(input); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			return &AppError{Kind: KindValidation, Message: validationMessage(verrs), Err: err}
		}
		return NewValidationError("%s", err.Error())
	}
	return nil
}

func ProcessValidationErrors(err error) map[string]string {
	errorResponse := make(map[string]string)
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return errorResponse
	}
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}
	return errorResponse
}
