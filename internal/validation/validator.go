package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"orderdesk/internal/domain"

	"github.com/go-playground/validator/v10"
)

// Validator wraps go-playground/validator with JSON field names.
type Validator struct {
	validate *validator.Validate
	messages map[string]string
}

func New() *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: validate, messages: make(map[string]string)}
}

// RegisterStructRule adds a cross-field rule for the type of sample. Errors
// the rule reports under tag are rendered as msg.
func (v *Validator) RegisterStructRule(fn validator.StructLevelFunc, sample any, tag, msg string) {
	v.validate.RegisterStructValidation(fn, sample)
	v.messages[tag] = msg
}

// Struct validates s and returns *Error listing every failing field.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	return v.newError(verrs)
}

// Error maps a JSON field path such as "products[0].startCount" to a message.
type Error struct {
	Fields map[string]string `json:"errors"`
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Is lets callers match with errors.Is(err, domain.ErrValidation).
func (e *Error) Is(target error) bool {
	return target == domain.ErrValidation
}

func (v *Validator) newError(errs validator.ValidationErrors) *Error {
	fields := make(map[string]string, len(errs))
	for _, fe := range errs {
		if msg, ok := v.messages[fe.Tag()]; ok {
			fields[fieldPath(fe)] = msg
			continue
		}
		fields[fieldPath(fe)] = message(fe)
	}
	return &Error{Fields: fields}
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s entries", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at most %s entries", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	default:
		return "is invalid"
	}
}
