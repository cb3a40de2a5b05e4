// Package validation wraps go-playground/validator with the field naming and
// error shape shared by every domain validator.
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type Errors []FieldError

func (e Errors) Error() string {
	if len(e) == 0 {
		return ""
	}
	messages := make([]string, 0, len(e))
	for _, fe := range e {
		messages = append(messages, fe.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// Details renders the field errors for an AppError payload.
func (e Errors) Details() map[string]any {
	fields := make(map[string]any, len(e))
	for _, fe := range e {
		fields[fe.Field] = fe.Message
	}
	return map[string]any{"fields": fields}
}

// New returns a validator that reports fields by their JSON names.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	if err := v.RegisterValidation("image_ref", imageRef); err != nil {
		panic(err)
	}
	return v
}

// imageRef accepts an absolute http(s) URL with a host or a root-relative
// path such as /uploads/loft.jpg. Whitespace anywhere is rejected.
func imageRef(fl validator.FieldLevel) bool {
	ref := fl.Field().String()
	if ref == "" || strings.IndexFunc(ref, unicode.IsSpace) >= 0 {
		return false
	}
	if strings.HasPrefix(ref, "/") {
		return !strings.HasPrefix(ref, "//")
	}

	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

// Translate converts validator errors into Errors; other errors pass through.
func Translate(err error) error {
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	out := make(Errors, 0, len(validationErrs))
	for _, fe := range validationErrs {
		out = append(out, FieldError{Field: fieldPath(fe), Message: message(fe)})
	}
	return out
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "mongodb":
		return "must be a valid id"
	case "url":
		return "must be a valid URL"
	case "image_ref":
		return "must be an http(s) URL or a path starting with /"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at most %s items", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	}
	return fmt.Sprintf("failed %q validation", fe.Tag())
}

// AsErrors reports whether err is a translated validation failure.
func AsErrors(err error) (Errors, bool) {
	var errs Errors
	ok := errors.As(err, &errs)
	return errs, ok
}
