package validate

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Custom tags.
const (
	TagDate  = "date"
	TagAfter = "after"
)

// Accepted date layouts, tried in order.
var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// Validator wraps a configured go-playground validator. Safe for concurrent use.
type Validator struct {
	validate *validator.Validate
}

// New returns a validator with the date rules registered and JSON field naming.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation(TagDate, func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return true
		}
		_, ok := ParseDate(s)
		return ok
	})

	// after=OtherField: this date must be strictly later than OtherField's date.
	_ = v.RegisterValidation(TagAfter, func(fl validator.FieldLevel) bool {
		end, ok := ParseDate(fl.Field().String())
		if !ok {
			return false
		}
		other := fl.Parent()
		if other.Kind() == reflect.Pointer {
			other = other.Elem()
		}
		f := other.FieldByName(fl.Param())
		if !f.IsValid() || f.Kind() != reflect.String {
			return false
		}
		start, ok := ParseDate(f.String())
		if !ok {
			// The start field reports its own failure.
			return true
		}
		return end.After(start)
	})

	return &Validator{validate: v}
}

// ParseDate parses an RFC 3339 timestamp or a plain YYYY-MM-DD date.
func ParseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FieldErrors maps JSON field names to a human readable message.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Struct validates s. Rule violations are returned as [FieldErrors]; any other
// error means s could not be validated at all (nil or not a struct).
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		name := fieldPath(fe)
		if _, exists := out[name]; exists {
			continue
		}
		out[name] = message(fe)
	}
	return out
}

// Var validates a single value against tag.
func (v *Validator) Var(field any, tag string) error {
	return v.validate.Var(field, tag)
}

// fieldPath drops the top-level struct name from the namespace so nested
// fields read as "address.city".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	field := fe.Field()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		if isNumeric(fe.Kind()) {
			return fmt.Sprintf("%s must be at least %s", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
	case "max":
		if isNumeric(fe.Kind()) {
			return fmt.Sprintf("%s must be at most %s", field, fe.Param())
		}
		return fmt.Sprintf("%s must be less than %s characters", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case TagDate:
		return fmt.Sprintf("%s must be a date (YYYY-MM-DD or RFC 3339)", field)
	case TagAfter:
		return fmt.Sprintf("%s must be after %s", field, lowerFirst(fe.Param()))
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
