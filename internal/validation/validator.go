// Package validation checks inbound batches against the reading schema using
// go-playground/validator v10 and reports failures as path/message pairs.
//
// Paths use dotted notation with numeric indexes, for example
// "readings.0.timestamp", so clients can point at the offending field.
package validation

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var ErrSchemaInvalid = errors.New("invalid payload")

var (
	validate     *validator.Validate
	validateOnce sync.Once

	// RFC 3339 date-time with a mandatory offset. Calendar ranges are not
	// checked here; the aggregation store skips instants it cannot parse.
	dateTimeWithOffset = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}(:?\d{2})?)$`)

	indexSegment = regexp.MustCompile(`\[(\d+)\]`)
)

// FieldError is a single schema violation.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// SchemaError collects every violation found in one payload.
type SchemaError struct {
	Fields []FieldError
}

func (e *SchemaError) Error() string {
	if len(e.Fields) == 0 {
		return ErrSchemaInvalid.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Path, f.Message))
	}
	return ErrSchemaInvalid.Error() + ": " + strings.Join(parts, "; ")
}

func (e *SchemaError) Is(target error) bool {
	return target == ErrSchemaInvalid
}

// GetValidator returns the shared validator with the custom tags registered.
// This function is thread-safe.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})

		_ = validate.RegisterValidation("rfc3339offset", func(fl validator.FieldLevel) bool {
			return dateTimeWithOffset.MatchString(fl.Field().String())
		})

		_ = validate.RegisterValidation("integer", func(fl validator.FieldLevel) bool {
			switch fl.Field().Kind() {
			case reflect.Float32, reflect.Float64:
				f := fl.Field().Float()
				return !math.IsInf(f, 0) && f == math.Trunc(f)
			case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
				return true
			default:
				return false
			}
		})
	})

	return validate
}

// ValidateStruct validates s and returns nil or a *SchemaError.
func ValidateStruct(s any) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &SchemaError{Fields: []FieldError{{Message: err.Error()}}}
	}

	out := &SchemaError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Path:    fieldPath(fe.Namespace()),
			Message: message(fe),
		})
	}
	return out
}

// TypeMismatch reports a JSON value whose type does not fit the schema,
// e.g. a string where a count was expected.
func TypeMismatch(path, expected, received string) *SchemaError {
	return &SchemaError{Fields: []FieldError{{
		Path:    path,
		Message: fmt.Sprintf("Expected %s, received %s", expected, received),
	}}}
}

// fieldPath turns "BatchPayload.readings[0].timestamp" into
// "readings.0.timestamp".
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		namespace = namespace[i+1:]
	}
	return indexSegment.ReplaceAllString(namespace, ".$1")
}

func message(fe validator.FieldError) string {
	isArray := fe.Kind() == reflect.Slice || fe.Kind() == reflect.Array

	switch fe.Tag() {
	case "required":
		return "Required"
	case "uuid", "uuid_rfc4122":
		return "Invalid uuid"
	case "rfc3339offset":
		return "Invalid datetime"
	case "integer":
		return "Expected integer, received float"
	case "min":
		if isArray {
			return fmt.Sprintf("Array must contain at least %s element(s)", fe.Param())
		}
		return fmt.Sprintf("Number must be greater than or equal to %s", fe.Param())
	case "max":
		if isArray {
			return fmt.Sprintf("Array must contain at most %s element(s)", fe.Param())
		}
		return fmt.Sprintf("Number must be less than or equal to %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
