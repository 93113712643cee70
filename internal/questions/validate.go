package questions

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError is a single rule violation at a field path such as
// "questions[2].options".
type FieldError struct {
	Field   string
	Message string
}

// ValidationError collects every rule violation found in a question set.
type ValidationError struct {
	Errors []FieldError
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("invalid questions:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

func (ve *ValidationError) add(field, format string, args ...any) {
	ve.Errors = append(ve.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks structural rules (required fields, known types) and the
// semantic rules a set must satisfy: unique ids, non-empty options for choice
// questions and recommended values drawn from the options.
func (s *Set) Validate() error {
	ve := &ValidationError{}

	if err := structValidator.Struct(s); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("failed to validate questions: %w", err)
		}
		for _, fe := range fieldErrs {
			ve.add(trimNamespace(fe.Namespace()), "%s", describeTag(fe))
		}
	}

	seen := make(map[string]int, len(s.Questions))
	for i, q := range s.Questions {
		field := fmt.Sprintf("questions[%d]", i)
		if q.ID != "" {
			if first, dup := seen[q.ID]; dup {
				ve.add(field+".id", "duplicate question id %q (first used by questions[%d])", q.ID, first)
			} else {
				seen[q.ID] = i
			}
		}

		if q.Type.IsChoice() && len(q.Options) == 0 {
			ve.add(field+".options", "options are required for %s questions", q.Type)
		}

		if q.Recommended.IsZero() {
			continue
		}
		if !q.Type.IsChoice() {
			ve.add(field+".recommended", "recommended is only valid for single or multi questions")
			continue
		}
		if q.Type == TypeSingle && len(q.Recommended.Values) > 1 {
			ve.add(field+".recommended", "single questions accept one recommended option")
		}
		for _, rec := range q.Recommended.Values {
			if !containsString(q.Options, rec) {
				ve.add(field+".recommended", "recommended value %q is not one of the options", rec)
			}
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func trimNamespace(ns string) string {
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return ns
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q rule", fe.Tag())
	}
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
