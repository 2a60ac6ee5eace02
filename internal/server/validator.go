package server

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator wraps the go-playground validator and renders its failures as
// per-field messages keyed by JSON field name.
type Validator struct {
	v *validator.Validate
}

// NewValidator creates a Validator. hasProvider backs the provider tag.
func NewValidator(hasProvider func(name string) bool) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// cannot fail: the tag is non-empty and the function non-nil
	_ = v.RegisterValidation("provider", func(fl validator.FieldLevel) bool {
		return hasProvider(fl.Field().String())
	})
	_ = v.RegisterValidation("float", func(fl validator.FieldLevel) bool {
		_, ok := parseFloat(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("between", func(fl validator.FieldLevel) bool {
		value, ok := parseFloat(fl.Field().String())
		lo, hi, ok2 := bounds(fl.Param())
		return ok && ok2 && value >= lo && value <= hi
	})

	return &Validator{v: v}
}

// parseFloat accepts decimal and exponent notation, but not NaN or infinities.
func parseFloat(text string) (float64, bool) {
	value, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}

	return value, true
}

// bounds parses a between parameter of the form min:max.
func bounds(param string) (float64, float64, bool) {
	lo, hi, found := strings.Cut(param, ":")
	if !found {
		return 0, 0, false
	}
	minValue, okMin := parseFloat(lo)
	maxValue, okMax := parseFloat(hi)

	return minValue, maxValue, okMin && okMax
}

// Struct validates s and returns the failing fields with their messages, or nil.
func (val *Validator) Struct(s any) map[string][]string {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return map[string][]string{"request": {err.Error()}}
	}

	fields := make(map[string][]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		name := fieldName(fe)
		fields[name] = append(fields[name], fieldMessage(name, fe))
	}

	return fields
}

var indexReplacer = strings.NewReplacer("[", ".", "]", "")

// fieldName turns countries[1] into countries.1.
func fieldName(fe validator.FieldError) string {
	return indexReplacer.Replace(fe.Field())
}

func fieldMessage(name string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", name)
	case "max":
		return fmt.Sprintf("The %s field must not be greater than %s characters.", name, fe.Param())
	case "provider":
		return fmt.Sprintf("The selected %s is invalid.", name)
	case "iso3166_1_alpha2":
		return fmt.Sprintf("The %s field must be an ISO 3166-1 alpha-2 country code.", name)
	case "float":
		return fmt.Sprintf("The %s field must be a number.", name)
	case "between":
		lo, hi, _ := strings.Cut(fe.Param(), ":")
		return fmt.Sprintf("The %s field must be between %s and %s.", name, lo, hi)
	default:
		return fmt.Sprintf("The %s field is invalid.", name)
	}
}
