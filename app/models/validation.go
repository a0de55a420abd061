package models

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// FieldProblems flattens a validation error into field name -> problems.
// It returns nil when err does not come from the validator.
func FieldProblems(err error) map[string][]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = append(out[fe.Field()], describe(fe))
	}
	return out
}

// ValidateVar runs a single validator tag against a value, e.g. a password
// that has no struct field of its own.
func ValidateVar(value interface{}, tag string) error {
	return validate.Var(value, tag)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field may not be blank"
	case "max":
		return fmt.Sprintf("ensure this field has no more than %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("ensure this field has at least %s characters", fe.Param())
	case "email":
		return "enter a valid email address"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "username":
		return "may contain only letters, digits and @/./+/-/_ characters"
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
