package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors describing why an operation was rejected. The HTTP layer
// maps them onto status codes; everything not matching one of these is a
// store failure and surfaces as an internal error.
var (
	// ErrNotFound marks a reference to a node or edge that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a duplicate node id or edge pair on create.
	ErrConflict = errors.New("conflict")

	// ErrInvalidArgument marks a malformed request parameter.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrStoreFailure marks a failed journal append or commit. The
	// transaction is rolled back wholesale; nothing was applied.
	ErrStoreFailure = errors.New("store failure")
)

// SchemaError reports fields rejected by the schema registry.
type SchemaError struct {
	Kind   string
	Fields []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema violation: unrecognized %s fields: %s",
		e.Kind, strings.Join(e.Fields, ", "))
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
