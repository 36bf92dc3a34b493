package discord

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a command invocation failed.
type ErrorKind int

const (
	// KindUnexpected covers every failure that is not one of the known
	// user-facing kinds below.
	KindUnexpected ErrorKind = iota
	KindCommandNotFound
	KindMissingPermissions
	KindMissingArgument
	KindBadArgument
)

func (k ErrorKind) String() string {
	switch k {
	case KindCommandNotFound:
		return "command_not_found"
	case KindMissingPermissions:
		return "missing_permissions"
	case KindMissingArgument:
		return "missing_argument"
	case KindBadArgument:
		return "bad_argument"
	default:
		return "unexpected"
	}
}

// CommandError is a failed command invocation.
type CommandError struct {
	Kind ErrorKind
	// Param is the missing parameter for KindMissingArgument.
	Param string
	// Detail describes the rejected input for KindBadArgument.
	Detail string
	Err    error
}

func (e *CommandError) Error() string {
	switch e.Kind {
	case KindCommandNotFound:
		return fmt.Sprintf("command %q not found", e.Detail)
	case KindMissingPermissions:
		return "missing permissions"
	case KindMissingArgument:
		return "missing required argument " + e.Param
	case KindBadArgument:
		return "bad argument: " + e.Detail
	}
	if e.Err != nil {
		return "unexpected: " + e.Err.Error()
	}
	return "unexpected error"
}

func (e *CommandError) Unwrap() error { return e.Err }

// NotFound reports an unknown command name.
func NotFound(name string) *CommandError {
	return &CommandError{Kind: KindCommandNotFound, Detail: name}
}

// MissingPermissions reports that the invoker lacks a required permission.
func MissingPermissions() *CommandError {
	return &CommandError{Kind: KindMissingPermissions}
}

// MissingArgument reports an absent required parameter.
func MissingArgument(param string) *CommandError {
	return &CommandError{Kind: KindMissingArgument, Param: param}
}

// BadArgument reports a parameter that failed to parse or validate.
func BadArgument(format string, args ...any) *CommandError {
	return &CommandError{Kind: KindBadArgument, Detail: fmt.Sprintf(format, args...)}
}

// Classify returns err as a *CommandError, wrapping anything else as
// KindUnexpected.
func Classify(err error) *CommandError {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce
	}
	return &CommandError{Kind: KindUnexpected, Err: err}
}

// ReplyText is the user-facing message for a failed invocation.
func ReplyText(err *CommandError, prefix string) string {
	switch err.Kind {
	case KindCommandNotFound:
		return fmt.Sprintf("❌ Command not found. Use `%shelp` to see available commands.", prefix)
	case KindMissingPermissions:
		return "❌ You don't have permission to use this command."
	case KindMissingArgument:
		return "❌ Missing required argument: " + err.Param
	case KindBadArgument:
		return "❌ Invalid argument provided: " + err.Detail
	case KindUnexpected:
		return "❌ An unexpected error occurred. Please try again later."
	}
	return "❌ An unexpected error occurred. Please try again later."
}
