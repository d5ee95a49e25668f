// internal/utils/validator.go
package utils

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate *validator.Validate

var promoCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,50}$`)

func init() {
	validate = validator.New()
	validate.RegisterValidation("promo_code", validatePromoCode)
	validate.RegisterValidation("percentage", validatePercentage)

	// decimals validate as floats so that gt/gte/lte work on amounts
	validate.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{}, decimal.NullDecimal{})

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

func decimalValue(v reflect.Value) interface{} {
	switch d := v.Interface().(type) {
	case decimal.Decimal:
		f, _ := d.Float64()
		return f
	case decimal.NullDecimal:
		if !d.Valid {
			return nil
		}
		f, _ := d.Decimal.Float64()
		return f
	}
	return nil
}

func validatePromoCode(fl validator.FieldLevel) bool {
	return promoCodePattern.MatchString(strings.TrimSpace(fl.Field().String()))
}

// percentage accepts (0, 100].
func validatePercentage(fl validator.FieldLevel) bool {
	var pct float64
	switch fl.Field().Kind() {
	case reflect.Float32, reflect.Float64:
		pct = fl.Field().Float()
	case reflect.Int, reflect.Int32, reflect.Int64:
		pct = float64(fl.Field().Int())
	default:
		return false
	}
	return pct > 0 && pct <= 100
}

// Validation tags for common fields
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   e.Field(),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return e.Field() + " must be at least " + e.Param()
	case "max":
		return e.Field() + " must be at most " + e.Param()
	case "gt", "gte":
		return e.Field() + " must be greater than " + e.Param()
	case "oneof":
		return e.Field() + " must be one of: " + e.Param()
	case "promo_code":
		return "Promo code must be 3-50 letters, digits, dashes or underscores"
	case "percentage":
		return e.Field() + " must be a percentage between 0 and 100"
	default:
		return e.Field() + " is invalid"
	}
}
