package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/eduqa/internal/apperror"
	"github.com/sakif/eduqa/internal/model"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// inputValidator checks request structs against their `validate` tags and
// reports the first failure as a field-level apperror.
type inputValidator struct {
	v *validator.Validate
}

func newInputValidator() *inputValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON name, which is what the client sent.
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

	// Registration only fails on an empty tag, which these are not.
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("questiontag", func(fl validator.FieldLevel) bool {
		return model.IsQuestionTag(fl.Field().String())
	})

	return &inputValidator{v: v}
}

// Struct validates s. A nil return means every tag passed.
func (iv *inputValidator) Struct(s any) error {
	err := iv.v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("service: validating %T: %w", s, err)
	}
	fe := fieldErrs[0]
	return apperror.ValidationFailed(fieldName(fe), fieldMessage(fe))
}

// IsEmail reports whether s is a syntactically valid email address.
func (iv *inputValidator) IsEmail(s string) bool {
	return iv.v.Var(s, "required,email") == nil
}

// fieldName drops the struct prefix and any slice index: "tags[1]" -> "tags".
func fieldName(fe validator.FieldError) string {
	name := fe.Field()
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	return name
}

func fieldMessage(fe validator.FieldError) string {
	name := fieldName(fe)
	collection := fe.Kind() == reflect.Slice || fe.Kind() == reflect.Array

	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "email":
		return "Invalid email format"
	case "username":
		return "username may only contain letters, digits, '.', '_' and '-'"
	case "questiontag":
		return fmt.Sprintf("unknown tag %q; allowed tags: %s", fe.Value(), strings.Join(model.QuestionTags, ", "))
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		if collection {
			return fmt.Sprintf("%s needs at least %s entries", name, fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max":
		if collection {
			return fmt.Sprintf("You can only provide up to %s %s", fe.Param(), name)
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "url":
		return name + " must be a valid URL"
	}
	return fmt.Sprintf("%s is invalid", name)
}
