package rawhid

import (
	"errors"
	"fmt"
)

// Errors returned from this package may be tested with errors.Is.
var (
	// ErrDeviceOpen reports that a sibling interface could not be opened.
	// It is fatal to device construction.
	ErrDeviceOpen = errors.New("failed to open device interface")

	// ErrCapabilityQuery reports that the capability or descriptor query of
	// an opened interface failed. It is fatal to device construction.
	ErrCapabilityQuery = errors.New("capability query failed")

	// ErrInvariant reports a broken internal invariant, such as one report
	// id declared by two different interfaces or an impossible completion
	// index. It indicates a logic or platform-contract bug.
	ErrInvariant = errors.New("invariant violation")

	// ErrUnknownReport reports a write whose report id no interface owns.
	ErrUnknownReport = errors.New("unknown report id")

	// ErrDeviceClosed reports an operation on a closed device.
	ErrDeviceClosed = errors.New("device is closed")

	// ErrReadCanceled is the result of a read operation that was canceled.
	// Backends map their native cancellation outcome to it.
	ErrReadCanceled = errors.New("read canceled")
)

// IOError wraps a native I/O failure surfaced to the caller.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
