package modelconfig

import (
	"errors"
	"fmt"
)

// Code classifies a configuration error.
type Code int

const (
	CodeInvalidArg Code = iota
	CodeUnsupported
)

func (c Code) String() string {
	if c == CodeUnsupported {
		return "unsupported"
	}
	return "invalid argument"
}

// Error is a configuration error that aborts model loading.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func invalidArg(format string, a ...any) error {
	return &Error{Code: CodeInvalidArg, Msg: fmt.Sprintf(format, a...)}
}

func unsupported(format string, a ...any) error {
	return &Error{Code: CodeUnsupported, Msg: fmt.Sprintf(format, a...)}
}

// IsUnsupported reports whether err flags an unsupported configuration.
func IsUnsupported(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Code == CodeUnsupported
}

// IsConfigError reports whether err is a configuration error.
func IsConfigError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}
