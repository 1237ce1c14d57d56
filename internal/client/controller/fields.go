package controller

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// InputType mirrors the kind of form control a field is edited with.
// It is the only local validation applied to draft values.
type InputType int

const (
	// InputText accepts any text.
	InputText InputType = iota
	// InputNumber accepts numeric text.
	InputNumber
	// InputEmail accepts an email address.
	InputEmail
	// InputSelect accepts one of Field.Options.
	InputSelect
	// InputFile is an attachment set with Attach, never with SetField.
	InputFile
	// InputReadOnly is displayed but never edited.
	InputReadOnly
)

// Field describes one editable or displayed field of a record.
type Field struct {
	Name    string
	Label   string
	Input   InputType
	Options []string
}

var (
	// ErrUnknownField is returned for a field name the entity does not have.
	ErrUnknownField = errors.New("unknown field")
	// ErrReadOnlyField is returned when a derived or file field is set as text.
	ErrReadOnlyField = errors.New("field cannot be edited")
)

var validate = validator.New()

// check validates value against the input type of f. Empty values always
// pass, as they do for a browser form control.
func (f Field) check(value string) error {
	var tag string
	switch f.Input {
	case InputNumber:
		tag = "omitempty,numeric"
	case InputEmail:
		tag = "omitempty,email"
	case InputSelect:
		tag = "omitempty,oneof=" + strings.Join(f.Options, " ")
	case InputFile, InputReadOnly:
		return fmt.Errorf("%s: %w", f.Name, ErrReadOnlyField)
	default:
		return nil
	}
	if err := validate.Var(value, tag); err != nil {
		return &InputError{Field: f, Value: value}
	}
	return nil
}

// InputError is a value rejected by its field's input type.
type InputError struct {
	Field Field
	Value string
}

func (e *InputError) Error() string {
	switch e.Field.Input {
	case InputNumber:
		return fmt.Sprintf("%s must be a number, got %q", e.Field.Label, e.Value)
	case InputEmail:
		return fmt.Sprintf("%s must be an email address, got %q", e.Field.Label, e.Value)
	case InputSelect:
		return fmt.Sprintf("%s must be one of %s, got %q", e.Field.Label, strings.Join(e.Field.Options, ", "), e.Value)
	}
	return fmt.Sprintf("invalid %s %q", e.Field.Label, e.Value)
}

func lookup(fields []Field, name string) (Field, error) {
	for _, f := range fields {
		if strings.EqualFold(f.Name, name) {
			return f, nil
		}
	}
	return Field{}, fmt.Errorf("%q: %w", name, ErrUnknownField)
}
