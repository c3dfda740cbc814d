// Package errors defines the error taxonomy shared by the script engines,
// the storage layer and the CLI. Every typed error unwraps to one of the
// sentinels below unless it carries a more specific cause.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrInternal         = errors.New("internal error")
	ErrUnsupported      = errors.New("unsupported")
)

func causeOr(cause, sentinel error) error {
	if cause != nil {
		return cause
	}
	return sentinel
}

// NotFoundError reports a missing book, block, layer or file.
type NotFoundError struct {
	Resource string
	ID       string
	Err      error
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return causeOr(e.Err, ErrNotFound) }

// ValidationError rejects caller input before any state changes. Field
// names the argument or setting at fault.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return causeOr(e.Err, ErrInvalidInput) }

// InvalidOperationError is returned when the receiver's state forbids an
// operation. The receiver is left as it was.
type InvalidOperationError struct {
	Operation string
	Reason    string
	Err       error
}

func (e *InvalidOperationError) Error() string {
	if e.Operation == "" {
		return "invalid operation: " + e.Reason
	}
	return fmt.Sprintf("cannot %s: %s", e.Operation, e.Reason)
}

func (e *InvalidOperationError) Unwrap() error { return causeOr(e.Err, ErrInvalidOperation) }

// IOError wraps a filesystem or database failure. It unwraps to the
// underlying error so os.ErrNotExist and friends still match.
type IOError struct {
	Operation string
	Path      string
	Err       error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Operation, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ParseError reports malformed USX, script files, control data or config.
type ParseError struct {
	Format  string
	Path    string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parse %s: %s", e.Format, e.Message)
	}
	return fmt.Sprintf("parse %s %s: %s", e.Format, e.Path, e.Message)
}

func (e *ParseError) Unwrap() error { return causeOr(e.Err, ErrInvalidInput) }

// UnsupportedError reports content this version cannot handle, such as a
// newer file version.
type UnsupportedError struct {
	Feature string
	Reason  string
	Err     error
}

func (e *UnsupportedError) Error() string {
	if e.Reason == "" {
		return "unsupported " + e.Feature
	}
	return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
}

func (e *UnsupportedError) Unwrap() error { return causeOr(e.Err, ErrUnsupported) }

func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func NewInvalidOperation(operation, reason string) *InvalidOperationError {
	return &InvalidOperationError{Operation: operation, Reason: reason}
}

func NewIO(operation, path string, err error) *IOError {
	return &IOError{Operation: operation, Path: path, Err: err}
}

func NewParse(format, path, message string) *ParseError {
	return &ParseError{Format: format, Path: path, Message: message}
}

func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{Feature: feature, Reason: reason}
}

// Wrap prefixes err with message. A nil err stays nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is Wrap with a format string.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }
