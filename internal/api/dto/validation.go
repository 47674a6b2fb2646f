package dto

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/spec-kit/event-service/internal/domain"
	apperrors "github.com/spec-kit/event-service/pkg/util/errorutil"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("eventCategory", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseEventCategory(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("eventStatus", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseEventStatus(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks struct tags and converts failures into a validation error
// whose details map each JSON field to the failed rule.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = fe.Tag()
	}
	return apperrors.NewValidationError("invalid payload", details)
}
