package handlers

import (
	"reflect"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var registerValidatorsOnce sync.Once

// registerValidators teaches gin's validator about decimal amounts. Decimal fields
// are validated as their string form, and the dgt tag compares them numerically.
func registerValidators() {
	registerValidatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
		_ = v.RegisterValidation("dgt", decimalGreaterThan)
	})
}

func decimalValue(field reflect.Value) any {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		return d.String()
	}
	return nil
}

// decimalGreaterThan implements `dgt=N`: the field must be a decimal strictly above N.
func decimalGreaterThan(fl validator.FieldLevel) bool {
	value, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	bound, err := decimal.NewFromString(fl.Param())
	if err != nil {
		return false
	}
	return value.GreaterThan(bound)
}
