package coordinator

import "errors"

// Code is a wire-level error taxonomy entry (§6 "Error codes",
// §7 "Error handling design").
type Code string

const (
	CodeTaskNotFound      Code = "TASK_NOT_FOUND"
	CodeInvalidStatus     Code = "INVALID_STATUS"
	CodeAlreadyLocked     Code = "ALREADY_LOCKED"
	CodeLockLost          Code = "LOCK_LOST"
	CodeVersionConflict   Code = "VERSION_CONFLICT"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeTerminalState     Code = "TERMINAL_STATE"
)

// HTTPStatus reports the status code interfaces/httpapi should use for
// a given wire error code. VersionConflict, InvalidTransition and
// TerminalState are carried in a 200 body: they are routine outcomes of
// a push batch, not transport failures.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeTaskNotFound:
		return 404
	case CodeInvalidStatus, CodeAlreadyLocked, CodeLockLost:
		return 409
	default:
		return 200
	}
}

// Error wraps a Code with a human-readable reason, matching the
// "short human-readable reason" requirement of §7.
type Error struct {
	Code   Code
	Reason string
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Reason
}

func newError(code Code, reason string) *Error {
	return &Error{Code: code, Reason: reason}
}

// AsError extracts a *Error from err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
