package utils

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/healthassess/secure-gateway/services"
)

var validate = validator.New()

// ValidateStruct validates a tagged struct and converts failures into one
// ValidationFailed domain error carrying the full itemized field list, so
// a client can correct every problem in one round trip.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return services.WrapInternal("struct validation", err)
	}

	fields := make(map[string]interface{}, len(validationErrors))
	for _, fe := range validationErrors {
		fields[fe.Field()] = describeViolation(fe)
	}
	return services.NewDomainError(services.ErrorTypeValidation, "invalid input detected", nil).
		WithDetail("fields", fields)
}

func describeViolation(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s validation failed on '%s' tag", field, fe.Tag())
	}
}
