package service

import (
	"errors"
	"slices"
	"strings"
)

// GeneralKey collects validation messages that do not belong to one field.
const GeneralKey = "non_field_errors"

// ValidationError maps a field name (or GeneralKey) to the human-readable
// messages explaining why the input was rejected. Every failure of the
// account operations caused by user input is a *ValidationError.
type ValidationError struct {
	Fields map[string][]string
}

func newValidationError(field string, messages ...string) *ValidationError {
	v := &ValidationError{}
	for _, msg := range messages {
		v.Add(field, msg)
	}
	return v
}

func (v *ValidationError) Add(field, message string) {
	if v.Fields == nil {
		v.Fields = make(map[string][]string)
	}
	v.Fields[field] = append(v.Fields[field], message)
}

func (v *ValidationError) HasErrors() bool {
	return len(v.Fields) > 0
}

// Has reports whether field already carries a message.
func (v *ValidationError) Has(field string) bool {
	return len(v.Fields[field]) > 0
}

func (v *ValidationError) Error() string {
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(v.Fields[k], " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsValidationError unwraps err into a *ValidationError when it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
