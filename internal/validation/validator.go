package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"quiztube/internal/domain"

	"github.com/go-playground/validator/v10"
)

var validULID = regexp.MustCompile(`^[0-9A-HJKMNP-TV-Z]{26}$`)

// Validator checks request DTOs against their `validate` tags.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names rather than Go field names.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("ulid", func(fl validator.FieldLevel) bool {
		return IsValidULID(fl.Field().String())
	})
	return &Validator{validate: v}
}

// Struct validates s and returns domain.ValidationErrors describing every failed field.
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return domain.NewInternalError("request validation misconfigured", err)
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return domain.NewInternalError("request validation failed", err)
	}
	result := make(domain.ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		result = append(result, domain.ValidationError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Value:   valueString(fe.Value()),
			Message: message(fe),
		})
	}
	return result
}

// ID checks a path identifier.
func (v *Validator) ID(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return domain.ValidationErrors{{Field: field, Tag: "required", Message: fmt.Sprintf("%s is required", field)}}
	}
	if !IsValidULID(value) {
		return domain.ValidationErrors{{Field: field, Tag: "ulid", Value: value, Message: fmt.Sprintf("%s has an invalid format", field)}}
	}
	return nil
}

// IsValidULID reports whether s is a 26-character Crockford base32 ULID.
func IsValidULID(s string) bool {
	return validULID.MatchString(s)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", fe.Field())
	case "ulid":
		return fmt.Sprintf("%s has an invalid format", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed the %s check", fe.Field(), fe.Tag())
	}
}

func valueString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		if len(v) > 100 {
			return v[:100]
		}
		return v
	case *string:
		if v == nil {
			return ""
		}
		return valueString(*v)
	default:
		return fmt.Sprint(v)
	}
}
