package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// gin binds and services validate through the same engine, reporting fields by their JSON names
func init() {
	Validator().RegisterTagNameFunc(jsonFieldName)
}

// Validator returns gin's struct validator
func Validator() *validator.Validate {
	return binding.Validator.Engine().(*validator.Validate)
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// ValidateStruct checks the binding tags of s and returns one message per failed field
func ValidateStruct(s interface{}) []string {
	return ValidationMessages(Validator().Struct(s))
}

// ValidationMessages turns validator errors into client messages. It returns nil for other errors.
func ValidationMessages(err error) []string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, fieldMessage(fe))
	}
	return messages
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	// Namespace is Struct.field.sub[0].leaf; drop the struct name
	if ns := fe.Namespace(); strings.Contains(ns, ".") {
		field = ns[strings.Index(ns, ".")+1:]
	}

	unit := ""
	switch fe.Kind() {
	case reflect.String:
		unit = " characters"
	case reflect.Slice, reflect.Array, reflect.Map:
		unit = " items"
	}

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "uuid", "uuid4":
		return field + " must be a valid UUID"
	case "http_url", "url":
		return field + " must be an absolute http(s) URL"
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min", "gte":
		if unit == "" && fe.Param() == "0" {
			return field + " cannot be negative"
		}
		if unit == " characters" && fe.Param() == "1" {
			return field + " cannot be empty"
		}
		return fmt.Sprintf("%s must be at least %s%s", field, fe.Param(), unit)
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s%s", field, fe.Param(), unit)
	}
	return fmt.Sprintf("%s failed the %s check", field, fe.Tag())
}
