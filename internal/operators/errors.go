package operators

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownOperator = errors.New("unknown operator")
	ErrArgument        = errors.New("invalid operator argument")
)

// UnknownOperatorError reports a name that does not resolve to an operator.
type UnknownOperatorError struct {
	Name   string
	Reason string
}

func (e *UnknownOperatorError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("unknown operator %q", e.Name)
	}
	return fmt.Sprintf("unknown operator %q: %s", e.Name, e.Reason)
}

func (e *UnknownOperatorError) Unwrap() error { return ErrUnknownOperator }

// ArgumentError reports a missing or mistyped operator argument.
type ArgumentError struct {
	Operator string
	Arg      string
	Msg      string
}

func (e *ArgumentError) Error() string {
	if e.Operator == "" {
		return fmt.Sprintf("argument %s: %s", e.Arg, e.Msg)
	}
	return fmt.Sprintf("%s: argument %s: %s", e.Operator, e.Arg, e.Msg)
}

func (e *ArgumentError) Unwrap() error { return ErrArgument }
