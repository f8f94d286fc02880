package storage

import "fmt"

// StoreError wraps a filesystem or serialization failure with an
// operation.reason code.
type StoreError struct {
	code string
	err  error
}

func (e *StoreError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *StoreError) Unwrap() error {
	return e.err
}

func (e *StoreError) Code() string {
	return e.code
}

func newStoreError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &StoreError{code: code, err: cause}
}

// ImportErrorKind classifies bundle import failures for user-facing messages.
type ImportErrorKind string

const (
	// ImportErrorUnreadable means the file could not be read at all.
	ImportErrorUnreadable ImportErrorKind = "unreadable"
	// ImportErrorInaccessible means the file exists but access was denied.
	ImportErrorInaccessible ImportErrorKind = "inaccessible"
	// ImportErrorInvalidBundle means the bytes were not a valid calendar bundle.
	ImportErrorInvalidBundle ImportErrorKind = "invalid_bundle"
)

// ImportError carries the failure class alongside the underlying cause.
type ImportError struct {
	Kind ImportErrorKind
	err  error
}

func (e *ImportError) Error() string {
	if e.err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("import %s: %v", e.Kind, e.err)
}

func (e *ImportError) Unwrap() error {
	return e.err
}

// Message returns a user-presentable description of the failure.
func (e *ImportError) Message() string {
	switch e.Kind {
	case ImportErrorUnreadable:
		return "The file could not be read."
	case ImportErrorInaccessible:
		return "The file could not be accessed."
	case ImportErrorInvalidBundle:
		return "The file was not a valid calendar bundle."
	default:
		return "The calendar could not be imported."
	}
}

func newImportError(kind ImportErrorKind, cause error) error {
	return &ImportError{Kind: kind, err: cause}
}
