package query

import (
	"errors"
	"fmt"
)

var (
	// ErrCountOverflow is returned by Count when the number of matching
	// entries does not fit in an int32.
	ErrCountOverflow = errors.New("query: count overflows int32, use LongCount")
	// ErrAlreadyExecuted is returned when a Command is run a second time.
	ErrAlreadyExecuted = errors.New("query: command already executed")
	// ErrInvalidOption is returned for out of range plan options.
	ErrInvalidOption = errors.New("query: invalid option")
	// ErrResultType is returned by the generic helpers when a result is not
	// of the requested type.
	ErrResultType = errors.New("query: unexpected result type")
)

// ConnectionError wraps a fault raised by the Connection.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return "query: connection fault: " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ProtocolViolationError is returned when a response lacks a control the
// request depended on or carries one that cannot be decoded.
type ProtocolViolationError struct {
	OID    string
	Reason string
	Err    error
}

func (e *ProtocolViolationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("query: protocol violation: control %s %s: %v", e.OID, e.Reason, e.Err)
	}
	return fmt.Sprintf("query: protocol violation: control %s %s", e.OID, e.Reason)
}

func (e *ProtocolViolationError) Unwrap() error {
	return e.Err
}

func invalidOption(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidOption}, args...)...)
}
