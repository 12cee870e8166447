package responses

import "fmt"

// PersistError reports a failed write of a completed survey.
type PersistError struct {
	UserID int64
	Err    error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist response for user %d: %v", e.UserID, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Code returns a stable machine-readable error code.
func (e *PersistError) Code() string { return "PERSIST_FAILED" }

// ReadError reports a failed read of stored responses.
type ReadError struct {
	Op  string
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read responses (%s): %v", e.Op, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Code returns a stable machine-readable error code.
func (e *ReadError) Code() string { return "STORAGE_READ_FAILED" }
