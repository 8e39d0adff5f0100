package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/jacentio/storefront/store"
)

// ValidationError describes the first field of an input that violates its rules.
type ValidationError struct {
	// Field is the wire path of the field (e.g. "products[0].quantity").
	Field string

	// Message is the human-readable description sent to clients.
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

var httpURL = regexp.MustCompile(`^https?://.+`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
		return store.IsID(fl.Field().String())
	})
	_ = v.RegisterValidation("httpurl", func(fl validator.FieldLevel) bool {
		return httpURL.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		return decimal.NewFromFloat(fl.Field().Float()).Exponent() >= -2
	})

	return v
}

// Validate checks input against its validate tags and returns nil or a
// *ValidationError for the first violated field in declaration order.
func Validate(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validate: %w", err)
	}

	fe := fieldErrs[0]
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	return &ValidationError{Field: field, Message: message(field, fe)}
}

// message renders a field error in the wording clients of the API already parse.
func message(field string, fe validator.FieldError) string {
	q := `"` + field + `"`
	isString := fe.Kind() == reflect.String

	switch fe.Tag() {
	case "required":
		return q + " is required"
	case "min":
		if isString {
			return fmt.Sprintf("%s length must be at least %s characters long", q, fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s items", q, fe.Param())
		}
		return fmt.Sprintf("%s must be greater than or equal to %s", q, fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("%s length must be less than or equal to %s characters long", q, fe.Param())
		}
		return fmt.Sprintf("%s must be less than or equal to %s", q, fe.Param())
	case "gt":
		if fe.Param() == "0" {
			return q + " must be a positive number"
		}
		return fmt.Sprintf("%s must be greater than %s", q, fe.Param())
	case "email":
		return q + " must be a valid email"
	case "objectid":
		return q + " must be a 24-character hexadecimal id"
	case "httpurl":
		return q + " must be a valid uri"
	case "money":
		return q + " must have no more than 2 decimal places"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", q, strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return fmt.Sprintf("%s failed on the %q rule", q, fe.Tag())
}

// DecodeError converts a JSON decoding failure of a request body into a
// *ValidationError so malformed bodies are rejected like invalid ones.
func DecodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			return &ValidationError{Message: `"value" must be of type object`}
		}
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf(`"%s" must be of type %s`, field, jsonKind(typeErr.Type)),
		}
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return &ValidationError{Message: "Invalid JSON body."}
	}

	// encoding/json reports unknown fields only through the message text.
	if name, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		name = strings.Trim(name, `"`)
		return &ValidationError{Field: name, Message: fmt.Sprintf(`"%s" is not allowed`, name)}
	}

	return &ValidationError{Message: "Invalid request body."}
}

func jsonKind(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Struct:
		if t.String() == "time.Time" {
			return "date"
		}
		return "object"
	}
	return t.Kind().String()
}
