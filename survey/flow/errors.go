package flow

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is matched by every rejected event.
var ErrInvalidTransition = errors.New("invalid transition")

// ErrNoActiveSession is returned for events of a user that never started a survey.
var ErrNoActiveSession error = &codedError{msg: "no active session", code: "NO_ACTIVE_SESSION"}

type codedError struct {
	msg  string
	code string
}

func (e *codedError) Error() string { return e.msg }

// Code returns a stable machine-readable error code.
func (e *codedError) Code() string { return e.code }

// TransitionError describes an event the machine refused to apply.
// The session it was applied to is left untouched.
type TransitionError struct {
	Event      EventType
	QuestionID string
	Reason     string
}

func (e *TransitionError) Error() string {
	if e.QuestionID == "" {
		return fmt.Sprintf("invalid transition: %s: %s", e.Event, e.Reason)
	}
	return fmt.Sprintf("invalid transition: %s on %q: %s", e.Event, e.QuestionID, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidTransition) succeed.
func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// Code returns a stable machine-readable error code.
func (e *TransitionError) Code() string { return "INVALID_TRANSITION" }

func reject(ev Event, questionID, format string, args ...any) error {
	return &TransitionError{Event: ev.Type, QuestionID: questionID, Reason: fmt.Sprintf(format, args...)}
}
