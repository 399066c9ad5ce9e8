package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyQuery is returned when a view or table is requested without a query.
	ErrEmptyQuery = errors.New("engine: query is empty")

	// ErrEmptyName is returned when an operation targets an empty object name.
	ErrEmptyName = errors.New("engine: object name is empty")
)

// NameError reports a table name that cannot be parsed.
type NameError struct {
	Input string
}

func (e *NameError) Error() string {
	return fmt.Sprintf("engine: invalid table name %q", e.Input)
}

// StatementError wraps a backend failure with the statement that caused it.
// The backend's error is preserved unchanged for errors.Is/As.
type StatementError struct {
	Op        OpKind
	Statement string
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("engine: %s: %s: %v", e.Op, e.Statement, e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}
