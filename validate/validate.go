// Package validate wraps go-playground/validator with English messages and
// the fee engine's custom tags.
package validate

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/shopspring/decimal"
)

var (
	Validate   *validator.Validate
	Translator ut.Translator

	// custom validation tags & texts
	adjustmentTypeTag  = "adjustment_type"
	adjustmentTypeText = "must be increase or decrease"

	scopeTypeTag  = "scope_type"
	scopeTypeText = "must be specific_year, from_year_onwards or year_range"

	disableTypeTag  = "disable_type"
	disableTypeText = "must be immediate_indefinite, from_year_onwards or year_range"

	directionTag  = "direction"
	directionText = "must be charge or credit"

	frequencyTag  = "frequency"
	frequencyText = "must be once, per_term, per_year or monthly"

	decimalTag  = "decimal_str"
	decimalText = "must be a decimal number"

	requiredTag  = "required"
	requiredText = "this field is required"
)

// Instantiate the validator for use.
func init() {
	Validate = validator.New()

	// Register the english error messages for validation errors.
	_en := en.New()
	uni := ut.New(_en, _en)
	Translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(Validate, Translator)

	// Use JSON tag names for errors instead of Go struct names.
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerOneOf(adjustmentTypeTag, adjustmentTypeText, "increase", "decrease")
	registerOneOf(scopeTypeTag, scopeTypeText, "specific_year", "from_year_onwards", "year_range")
	registerOneOf(disableTypeTag, disableTypeText, "immediate_indefinite", "from_year_onwards", "year_range")
	registerOneOf(directionTag, directionText, "charge", "credit")
	registerOneOf(frequencyTag, frequencyText, "once", "per_term", "per_year", "monthly")

	_ = Validate.RegisterValidation(decimalTag, decimalValidation)
	RegisterCustomTranslation(decimalTag, decimalText)

	RegisterCustomTranslation(requiredTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = Validate.RegisterTranslation(
		tag, Translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

func registerOneOf(tag, text string, allowed ...string) {
	_ = Validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		v := fl.Field().String()
		for _, a := range allowed {
			if v == a {
				return true
			}
		}
		return false
	})
	RegisterCustomTranslation(tag, text)
}

// decimalValidation accepts anything shopspring/decimal parses, e.g.
// "100000", "-10000" and "12.50".
func decimalValidation(fl validator.FieldLevel) bool {
	_, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
	return err == nil
}

// =============================================================================
// ERRORS
// =============================================================================

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// Error carries per-field messages for a rejected input.
type Error struct {
	Err    error
	Fields []FieldError
}

func NewError(err error, flds ...FieldError) *Error {
	return &Error{Err: err, Fields: flds}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "validation failed"
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// ErrInvalid is the cause of every Error produced by Struct.
var ErrInvalid = errors.New("validation failed")

// Struct validates v and returns an *Error listing each failing field, or nil.
func Struct(v interface{}) error {
	err := Validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Field(), Error: fe.Translate(Translator)})
	}
	return NewError(ErrInvalid, fields...)
}

// IsValidation reports whether err is (or wraps) an *Error.
func IsValidation(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}
