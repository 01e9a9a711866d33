package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/snippets/internal/highlight"
)

// MaxPasswordLength is in bytes; bcrypt rejects anything longer.
const MaxPasswordLength = 72

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// validate is safe for concurrent use and caches struct metadata, so one
// instance serves the whole package.
var validate = newValidator()

// newValidator configures go-playground/validator so that:
//   - field errors are keyed by the JSON name clients send ("linenos", not "LineNos")
//   - "language" and "style" check membership in the highlighter's choice sets
//   - "username" enforces the letters/digits/@.+-_ alphabet
//   - "maxbytes" bounds the encoded length of a string, where "max" counts runes
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	must := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("service: registering %q validator: %v", tag, err))
		}
	}
	must("language", func(fl validator.FieldLevel) bool {
		return highlight.ValidLanguage(fl.Field().String())
	})
	must("style", func(fl validator.FieldLevel) bool {
		return highlight.ValidStyle(fl.Field().String())
	})
	must("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	must("maxbytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			panic(fmt.Sprintf("service: bad maxbytes parameter %q", fl.Param()))
		}
		return len(fl.Field().String()) <= limit
	})

	return v
}

// fieldErrors runs the struct tags on s and returns one message per failing
// field. A nil map means s is valid.
func fieldErrors(s any) (map[string]string, error) {
	err := validate.Struct(s)
	if err == nil {
		return nil, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, fmt.Errorf("validating %T: %w", s, err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; seen {
			continue
		}
		fields[fe.Field()] = fieldMessage(fe)
	}
	return fields, nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "maxbytes":
		return fmt.Sprintf("Ensure this field has no more than %s bytes.", fe.Param())
	case "email":
		return "Enter a valid email address."
	case "language", "style":
		val := fe.Value()
		if p, ok := val.(*string); ok && p != nil {
			val = *p
		}
		return fmt.Sprintf("%q is not a valid choice.", fmt.Sprint(val))
	case "username":
		return "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	}
	return fmt.Sprintf("Invalid value (%s).", fe.Tag())
}
