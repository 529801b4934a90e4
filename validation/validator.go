// Package validation wraps go-playground/validator and reports failures as
// per-field apierror messages keyed by the JSON field name.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tech-arch1tect/backyard/apierror"
)

const MsgRequired = "This field is required."

type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return &Validator{v: v}
}

// Fields validates i and returns the messages collected per field. The map
// is never nil so callers can keep adding to it.
func (v *Validator) Fields(i any) apierror.FieldErrors {
	fields := apierror.FieldErrors{}

	var ve validator.ValidationErrors
	if err := v.v.Struct(i); err != nil {
		if !errors.As(err, &ve) {
			fields.Add("non_field_errors", err.Error())
			return fields
		}
		for _, fe := range ve {
			fields.Add(fe.Field(), fieldError(fe))
		}
	}
	return fields
}

// Validate satisfies echo.Validator.
func (v *Validator) Validate(i any) error {
	return v.Fields(i).Err()
}

func fieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return MsgRequired
	case "email":
		return "Enter a valid email address."
	case "uuid", "uuid4":
		return "Must be a valid UUID."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
	case "oneof":
		return fmt.Sprintf("\"%s\" is not a valid choice.", rawValue(fe.Value()))
	case "numeric":
		return "A valid number is required."
	default:
		return fmt.Sprintf("Failed validation (%s).", fe.Tag())
	}
}

// rawValue formats numeric choices by value, bypassing any String method.
func rawValue(v any) string {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	default:
		return fmt.Sprint(v)
	}
}
