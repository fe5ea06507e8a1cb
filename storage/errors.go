package storage

import "fmt"

// ConflictError reports a host-level failure unrelated to the caller's
// transaction logic: the kind of error a retry might clear up. Engine.Update
// raises it when committing fails: writing the catalog, flushing pages, or
// syncing the file.
type ConflictError struct {
	Op    string
	Cause error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("storage: conflict during %s: %v", e.Op, e.Cause)
}

func (e *ConflictError) Unwrap() error { return e.Cause }

func newConflictError(op string, cause error) error {
	return &ConflictError{Op: op, Cause: cause}
}
