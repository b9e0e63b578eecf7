package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Issue is one schema violation in a rejected request body.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var registerOnce sync.Once

// ConfigureBinding makes gin reject unknown JSON fields and report validation
// errors by JSON field name.
func ConfigureBinding() {
	registerOnce.Do(func() {
		binding.EnableDecoderDisallowUnknownFields = true
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(func(f reflect.StructField) string {
				name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
				if name == "-" {
					return ""
				}
				return name
			})
		}
	})
}

// bindingIssues turns a ShouldBindJSON error into client-facing issues.
func bindingIssues(err error) []Issue {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		issues := make([]Issue, 0, len(verrs))
		for _, fe := range verrs {
			issues = append(issues, Issue{Field: fieldPath(fe), Message: fieldMessage(fe)})
		}
		return issues
	}

	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typeErr):
		return []Issue{{Field: typeErr.Field, Message: fmt.Sprintf("must be of type %s", typeErr.Type)}}
	case errors.Is(err, io.EOF):
		return []Issue{{Message: "request body is empty"}}
	default:
		return []Issue{{Message: err.Error()}}
	}
}

// fieldPath drops the root struct name: "SubmissionRequest.applicant.email"
// becomes "applicant.email".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String || fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must have at least %s characters or items", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String || fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must have at most %s characters or items", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
