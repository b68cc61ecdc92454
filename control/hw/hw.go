// Package hw holds the error kinds shared by the clock's hardware drivers.
package hw

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned when a caller passes a value outside a driver's contractual range,
// like a digit index that has no latch line.
var ErrInvalidArgument = errors.New("invalid argument")

// TransportError reports a failure of the layer underneath a driver: the register bus (NACK, bus
// timeout, device not present) or a digital output that refused a level.
type TransportError struct {
	Op  string // what was being attempted, like "read register 0x00"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Transport wraps err in a TransportError, unless it is nil or already one.
func Transport(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}

// IsTransport returns true if err is, or wraps, a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
