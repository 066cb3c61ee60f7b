//go:build linux

package hidraw

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hidio/rawhid"
	"github.com/hidio/rawhid/hiddesc"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// hidrawInterface is one open /dev/hidrawN node. The file descriptor is put
// in non-blocking mode so the Go runtime poller backs it: reads park the
// goroutine instead of the thread, and a read deadline in the past unblocks
// a pending read, which implements cancellation.
type hidrawInterface struct {
	log     *zap.Logger
	f       *os.File
	sysname string

	capsOnce sync.Once
	caps     rawhid.Capabilities
	capsErr  error
}

func openInterface(log *zap.Logger, path string) (*hidrawInterface, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &hidrawInterface{
		log:     log,
		f:       os.NewFile(uintptr(fd), path),
		sysname: filepath.Base(path),
	}, nil
}

// Capabilities decodes the interface's raw report descriptor, read from
// sysfs. Linux has no pre-parsed capability-table API, so the raw-byte path
// is the only source here.
func (h *hidrawInterface) Capabilities() (rawhid.Capabilities, error) {
	h.capsOnce.Do(func() {
		h.caps, h.capsErr = h.queryCapabilities()
	})
	return h.caps, h.capsErr
}

func (h *hidrawInterface) queryCapabilities() (rawhid.Capabilities, error) {
	descPath := filepath.Join("/sys/class/hidraw", h.sysname, "device", "report_descriptor")
	raw, err := os.ReadFile(descPath)
	if err != nil {
		return rawhid.Capabilities{}, fmt.Errorf("failed to read report descriptor: %w", err)
	}
	dec := hiddesc.NewDecoder(bytes.NewReader(raw))
	desc, err := dec.Decode()
	if err != nil {
		return rawhid.Capabilities{}, fmt.Errorf("failed to decode report descriptor: %w", err)
	}
	lengths := dec.MaxLengths()
	return rawhid.Capabilities{
		Collections: desc.Collections,
		InputLen:    lengths.Input,
		OutputLen:   lengths.Output,
		FeatureLen:  lengths.Feature,
	}, nil
}

type readOp struct {
	f    *os.File
	done chan struct{}
	n    int
	err  error
}

func (h *hidrawInterface) BeginRead(p []byte) (rawhid.ReadOp, error) {
	// clear any deadline left behind by a previous cancellation
	if err := h.f.SetReadDeadline(time.Time{}); err != nil {
		return nil, err
	}
	op := &readOp{
		f:    h.f,
		done: make(chan struct{}),
	}
	go func() {
		n, err := h.f.Read(p)
		if errors.Is(err, os.ErrDeadlineExceeded) {
			err = rawhid.ErrReadCanceled
		}
		op.n, op.err = n, err
		close(op.done)
	}()
	return op, nil
}

func (op *readOp) Done() <-chan struct{} {
	return op.done
}

func (op *readOp) Result() (int, error) {
	return op.n, op.err
}

func (op *readOp) Cancel() {
	// A deadline in the past fails the pending read with
	// os.ErrDeadlineExceeded; racing a natural completion is fine since
	// the next BeginRead clears the deadline.
	op.f.SetReadDeadline(time.Now())
}

func (h *hidrawInterface) Write(b []byte) (int, error) {
	return h.f.Write(b)
}

func (h *hidrawInterface) Close() error {
	return h.f.Close()
}
