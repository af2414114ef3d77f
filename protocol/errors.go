package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrBadEscape   = errors.New("malformed percent escape")
	ErrMissingTag  = errors.New("token is not a key:value pair")
	ErrLineTooLong = errors.New("line exceeds the maximum line length")
	ErrEmptyLine   = errors.New("line is empty")
)

// DecodeError reports a token that could not be decoded.
type DecodeError struct {
	Token string
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode token '%s': %v", e.Token, e.Cause)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}
