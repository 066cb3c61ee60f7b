// Package rawhid is the low-level device-access layer for HID devices. It
// opens every sibling OS interface of a composite device, multiplexes
// cancellable asynchronous reads across all of them, and routes outgoing
// reports to the interface owning their report id.
//
// Platform specifics live behind the Backend interface; the core depends only
// on it. See backend/hidraw for the Linux implementation.
package rawhid

import "github.com/hidio/rawhid/hiddesc"

// InterfaceInfo describes one sibling interface as reported by enumeration.
type InterfaceInfo struct {
	// Path is the backend-specific identifier used to open the interface.
	Path string

	VendorID     uint16
	ProductID    uint16
	Manufacturer string
	Product      string
}

// Capabilities is the capability summary of one opened interface: its
// collection models and the maximum on-the-wire report size per report type.
type Capabilities struct {
	Collections []hiddesc.Collection

	InputLen   int
	OutputLen  int
	FeatureLen int
}

// Backend enumerates and opens the sibling interfaces of a parent device.
// Interfaces the enumeration source reports as transiently unavailable are
// absent from the listing; every listed interface is expected to open.
type Backend interface {
	ListSiblings(parentID string) ([]InterfaceInfo, error)
	OpenInterface(path string) (Interface, error)
}

// Interface is one exclusively-owned open interface handle.
//
// BeginRead starts an asynchronous read into p and returns immediately; the
// operation may already be complete on return. Write blocks until the device
// accepted the bytes. Close releases the handle; any pending read completes
// with an error.
type Interface interface {
	Capabilities() (Capabilities, error)
	BeginRead(p []byte) (ReadOp, error)
	Write(b []byte) (int, error)
	Close() error
}

// ReadOp is one in-flight asynchronous read.
//
// Done is closed when the operation finished, whether with data, an error or
// a cancellation. Result is valid only after Done is closed; a canceled
// operation reports ErrReadCanceled. Cancel is best-effort and idempotent:
// it makes the operation finish soon, racing a natural completion. The
// caller must await Done after Cancel before reusing the buffer.
type ReadOp interface {
	Done() <-chan struct{}
	Result() (int, error)
	Cancel()
}
