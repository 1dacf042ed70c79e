// Package validate evaluates declarative field rules over decoded request
// input.
//
// Rules are grouped per field into chains of steps. A step is either a
// sanitizer, which rewrites the field's working value, or a check, which
// records a violation when it fails. Every step of every chain runs: the
// validator never short-circuits, so a client sees every problem with its
// request at once. Violations are reported in evaluation order and are not
// deduplicated per field.
//
// Usage:
//
//	rules := []*validate.Chain{
//	    validate.Field("email").Trim().Lower().
//	        Required("Email is required").
//	        Email("Please provide a valid email address"),
//	}
//	vals, err := validate.Run(body, rules...)
//	if err != nil {
//	    // err is a 400 VALIDATION_ERROR with one detail per violation
//	}
//	email := vals.String("email")
package validate

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-subscription-service/internal/apperr"
)

// checker is shared; *validator.Validate is safe for concurrent use.
var checker = validator.New()

type step struct {
	sanitize func(any) any
	check    func(any) bool
	message  string
}

// Chain is the ordered rule set for a single input field.
type Chain struct {
	field string
	steps []step
}

// Field starts a rule chain for the named input field.
func Field(name string) *Chain {
	return &Chain{field: name}
}

// Sanitize appends a string transformation. Non-string values pass through.
func (c *Chain) Sanitize(fn func(string) string) *Chain {
	c.steps = append(c.steps, step{sanitize: func(v any) any {
		if s, ok := v.(string); ok {
			return fn(s)
		}
		return v
	}})
	return c
}

// Trim strips leading and trailing whitespace.
func (c *Chain) Trim() *Chain { return c.Sanitize(strings.TrimSpace) }

// Lower folds the value to lower case.
func (c *Chain) Lower() *Chain {
	return c.Sanitize(func(s string) string {
		// cases.Caser is stateful, one per call.
		return cases.Lower(language.Und).String(s)
	})
}

// Check appends a custom predicate. msg is reported when it returns false.
func (c *Chain) Check(fn func(any) bool, msg string) *Chain {
	c.steps = append(c.steps, step{check: fn, message: msg})
	return c
}

// Required fails on a missing field, null, or an empty string.
func (c *Chain) Required(msg string) *Chain {
	return c.Check(func(v any) bool {
		switch x := v.(type) {
		case nil:
			return false
		case string:
			return x != ""
		default:
			return true
		}
	}, msg)
}

// String fails when the value is present but not a JSON string.
func (c *Chain) String(msg string) *Chain {
	return c.Check(func(v any) bool {
		if v == nil {
			return true
		}
		_, ok := v.(string)
		return ok
	}, msg)
}

// Email fails unless the value is a syntactically valid address.
func (c *Chain) Email(msg string) *Chain {
	return c.Check(func(v any) bool {
		s, ok := v.(string)
		if !ok {
			return false
		}
		return checker.Var(s, "required,email") == nil
	}, msg)
}

// MaxLen fails when a string value is longer than n runes.
func (c *Chain) MaxLen(n int, msg string) *Chain {
	return c.Check(func(v any) bool {
		s, ok := v.(string)
		if !ok {
			return true
		}
		return len([]rune(s)) <= n
	}, msg)
}

// Values holds normalized field values that passed validation.
type Values map[string]any

// String returns the named value as a string, or "" when absent.
func (v Values) String(name string) string {
	s, _ := v[name].(string)
	return s
}

// Run evaluates every chain against input and returns either the normalized
// values of the validated fields or a single VALIDATION_ERROR carrying one
// FieldError per failed check. input is never modified.
func Run(input map[string]any, chains ...*Chain) (Values, *apperr.Error) {
	out := make(Values, len(chains))
	var violations []apperr.FieldError

	for _, ch := range chains {
		val := input[ch.field]
		for _, st := range ch.steps {
			if st.sanitize != nil {
				val = st.sanitize(val)
				continue
			}
			if !st.check(val) {
				violations = append(violations, apperr.FieldError{
					Field:   ch.field,
					Message: st.message,
					Value:   val,
				})
			}
		}
		out[ch.field] = val
	}

	if len(violations) > 0 {
		return nil, apperr.Validation(violations)
	}
	return out, nil
}
