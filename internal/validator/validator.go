package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
)

// Validator validates request DTOs with struct tags plus the custom rules
// registered in registerRules.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	v := &Validator{validate: validate}
	v.registerRules()
	return v
}

// Validate returns ValidationErrors, or nil when s is valid.
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

func (v *Validator) registerRules() {
	// Candidate name / position: 1-255 characters once trimmed
	v.validate.RegisterValidation("candidate_field", func(fl validator.FieldLevel) bool {
		s := strings.TrimSpace(fl.Field().String())
		return len(s) >= 1 && len(s) <= 255
	})

	v.validate.RegisterValidation("assessment_variant", func(fl validator.FieldLevel) bool {
		switch models.AssessmentVariant(fl.Field().String()) {
		case models.VariantWriting, models.VariantAptitude:
			return true
		}
		return false
	})
}

// ToValidationErrors converts validator errors into ValidationErrors.
func ToValidationErrors(err error) ValidationErrors {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ValidationErrors{{Field: "", Message: err.Error()}}
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fe.Namespace(),
			Message: errorMessage(fe),
			Rule:    fe.Tag(),
		})
	}
	return out
}

func errorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "gtefield":
		return fmt.Sprintf("must not be less than %s", fe.Param())
	case "candidate_field":
		return "must be between 1 and 255 characters"
	case "assessment_variant":
		return "must be writing or aptitude"
	default:
		return fmt.Sprintf("validation failed for rule '%s'", fe.Tag())
	}
}
