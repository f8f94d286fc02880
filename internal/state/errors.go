package state

import "fmt"

// StateError wraps a manager failure with an operation.reason code.
type StateError struct {
	code string
	err  error
}

func (e *StateError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *StateError) Unwrap() error {
	return e.err
}

func (e *StateError) Code() string {
	return e.code
}

func newStateError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &StateError{code: code, err: cause}
}
