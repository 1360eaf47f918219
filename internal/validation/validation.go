// Package validation collects field-level form errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/diewo77/go-garage/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Violations maps a form field to its error message.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Error lets a non-empty Violations travel as an error.
func (v Violations) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+v[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Err returns v as an error, or nil when empty.
func (v Violations) Err() error {
	if v.Empty() {
		return nil
	}
	return v
}

// Add records msg for field unless the field already has an error.
func (v Violations) Add(field, msg string) {
	if _, ok := v[field]; !ok {
		v[field] = msg
	}
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func engine() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// report form names instead of Go field names
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
		validate.RegisterCustomTypeFunc(func(field reflect.Value) any {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				f, _ := d.Float64()
				return f
			}
			return nil
		}, decimal.Decimal{})
		_ = validate.RegisterValidation("vehiclereg", func(fl validator.FieldLevel) bool {
			return models.ValidVehicleReg(fl.Field().String())
		})
		// the type func above hands float64 to tags, so read the decimal itself
		_ = validate.RegisterValidation("money", func(fl validator.FieldLevel) bool {
			d, ok := fl.Parent().FieldByName(fl.StructFieldName()).Interface().(decimal.Decimal)
			return !ok || models.ValidMoney(d)
		})
	})
	return validate
}

var messages = map[string]string{
	"required":   "required",
	"gt":         "must be greater than %s",
	"gte":        "must be at least %s",
	"min":        "must be at least %s",
	"max":        "must be at most %s",
	"oneof":      "must be one of: %s",
	"vehiclereg": "Vehicle registration must be in the format " + models.VehicleRegFormat,
	"money":      fmt.Sprintf("must have at most %d decimal places", models.MoneyPlaces),
}

// Validate runs the struct tags of v and returns the violations found.
func Validate(v any) Violations {
	out := Violations{}
	err := engine().Struct(v)
	if err == nil {
		return out
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["_"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		msg, ok := messages[fe.Tag()]
		if !ok {
			msg = fe.Tag()
		}
		if strings.Contains(msg, "%s") {
			msg = strings.Replace(msg, "%s", fe.Param(), 1)
		}
		out.Add(fe.Field(), msg)
	}
	return out
}

// FromError extracts field errors from err. It returns nil when err carries
// no field information.
func FromError(err error) Violations {
	var vs Violations
	if errors.As(err, &vs) {
		return vs
	}
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return Violations{verr.Field: verr.Message}
	}
	return nil
}
