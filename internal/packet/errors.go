package packet

import (
	"errors"
	"fmt"
)

// ErrDecode matches every *DecodeError via errors.Is.
var ErrDecode = errors.New("malformed packet")

// DecodeError reports input that could not be turned into a Packet.
type DecodeError struct {
	Codec  string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s decode: %s: %v", e.Codec, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s decode: %s", e.Codec, e.Reason)
}

// Unwrap returns the underlying cause, if any.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrDecode.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

func decodeError(codec, reason string, err error) *DecodeError {
	return &DecodeError{Codec: codec, Reason: reason, Err: err}
}
