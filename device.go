package rawhid

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hidio/rawhid/hiddesc"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// maxNameLen bounds the device display name built from the manufacturer and
// product strings of the first interface.
const maxNameLen = 256

var defaultDeviceOptions = deviceOptions{
	log: zap.NewNop(),
}

type deviceOptions struct {
	log *zap.Logger
}

type Option func(*deviceOptions)

func WithLogger(log *zap.Logger) Option {
	return func(o *deviceOptions) {
		o.log = log
	}
}

// iface is one opened sibling interface, exclusively owned by its RawDevice.
type iface struct {
	info   InterfaceInfo
	handle Interface
	caps   Capabilities
}

// RawDevice is a composite HID device: every sibling interface of one
// physical parent, opened together, plus the report-descriptor model and the
// report-id routing table built from their capabilities.
//
// A RawDevice is a snapshot of the interfaces present at open time; it is
// refreshed only by opening a new device. ReadReport and WriteReport block
// the calling goroutine and must be serialized by the caller; InterruptRead
// is the only method safe to call concurrently with a blocked ReadReport.
type RawDevice struct {
	log      *zap.Logger
	backend  Backend
	parentID string

	vendorID  uint16
	productID uint16
	name      string
	desc      hiddesc.ReportDescriptor

	ifaces []iface
	// route maps the wire report-id byte to the owning interface. The
	// input/output/feature namespaces collapse onto the id byte alone.
	route map[uint8]int

	interrupt chan struct{}
	closed    *atomic.Bool
}

// Open enumerates all sibling interfaces of parentID through the backend,
// opens each of them, and builds the device's descriptor and report routes
// from their capabilities. Construction is all-or-nothing: any interface
// that fails to open or to report its capabilities aborts it.
func Open(backend Backend, parentID string, opts ...Option) (*RawDevice, error) {
	options := defaultDeviceOptions
	for _, opt := range opts {
		opt(&options)
	}

	infos, err := backend.ListSiblings(parentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDeviceOpen, parentID, err)
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("%w: %s: no interfaces found", ErrDeviceOpen, parentID)
	}

	d := &RawDevice{
		log:       options.log,
		backend:   backend,
		parentID:  parentID,
		route:     make(map[uint8]int),
		interrupt: make(chan struct{}, 1),
		closed:    atomic.NewBool(false),
	}
	ok := false
	defer func() {
		if !ok {
			d.release()
		}
	}()

	for i, info := range infos {
		handle, err := backend.OpenInterface(info.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDeviceOpen, info.Path, err)
		}
		d.ifaces = append(d.ifaces, iface{info: info, handle: handle})

		caps, err := handle.Capabilities()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCapabilityQuery, info.Path, err)
		}
		d.ifaces[i].caps = caps

		if i == 0 {
			d.vendorID = info.VendorID
			d.productID = info.ProductID
			d.name = deviceName(info)
		}

		for _, collection := range caps.Collections {
			d.desc.Collections = append(d.desc.Collections, collection)
			for id := range collection.Reports {
				if owner, exists := d.route[id.ID]; exists && owner != i {
					return nil, fmt.Errorf("%w: report id %#02x declared by two interfaces", ErrInvariant, id.ID)
				}
				d.route[id.ID] = i
			}
		}
	}

	ok = true
	return d, nil
}

func deviceName(info InterfaceInfo) string {
	name := strings.TrimSpace(info.Manufacturer + " " + info.Product)
	if name == "" {
		name = fmt.Sprintf("%04x:%04x", info.VendorID, info.ProductID)
	}
	if runes := []rune(name); len(runes) > maxNameLen {
		name = string(runes[:maxNameLen])
	}
	return name
}

// VendorID returns the vendor id reported by the first interface.
func (d *RawDevice) VendorID() uint16 {
	return d.vendorID
}

// ProductID returns the product id reported by the first interface.
func (d *RawDevice) ProductID() uint16 {
	return d.productID
}

// Name returns the display name: manufacturer and product, space-joined.
func (d *RawDevice) Name() string {
	return d.name
}

// Descriptor returns the device's report-descriptor model. The returned
// value shares state with the device and must not be modified.
func (d *RawDevice) Descriptor() hiddesc.ReportDescriptor {
	return d.desc
}

// InterfaceCount returns the number of opened sibling interfaces.
func (d *RawDevice) InterfaceCount() int {
	return len(d.ifaces)
}

type issuedRead struct {
	op    ReadOp
	buf   []byte
	iface int
}

// ReadReport waits for the next input report from any interface whose
// maximum input-report length fits in p, and copies it into p. It returns
// the number of bytes received, 0 when the timeout elapsed or the read was
// interrupted. A negative timeout waits indefinitely.
//
// When ReadReport returns, by any outcome, no read remains in flight: every
// issued read other than the completed one is canceled and its cancellation
// awaited before returning.
func (d *RawDevice) ReadReport(p []byte, timeout time.Duration) (int, error) {
	if d.closed.Load() {
		return 0, ErrDeviceClosed
	}

	var (
		reads  []issuedRead
		winner = -1
	)
	defer func() {
		for i, r := range reads {
			if i == winner {
				continue
			}
			r.op.Cancel()
			<-r.op.Done()
			if _, rerr := r.op.Result(); rerr != nil && !isCanceled(rerr) {
				d.log.Error("failed to cancel async read", zap.Int("interface", r.iface), zap.Error(rerr))
			}
		}
	}()

	completed := make(chan int, len(d.ifaces))
	for i := range d.ifaces {
		ifc := &d.ifaces[i]
		if ifc.caps.InputLen <= 0 || ifc.caps.InputLen > len(p) {
			// reports from this interface would not fit in the buffer
			continue
		}
		buf := make([]byte, len(p))
		op, err := ifc.handle.BeginRead(buf)
		if err != nil {
			return 0, &IOError{Op: "read", Err: err}
		}
		reads = append(reads, issuedRead{op: op, buf: buf, iface: i})

		k := len(reads) - 1
		select {
		case <-op.Done():
			// data was already available
			return d.finishRead(&winner, reads, k, p)
		default:
		}
		go func(k int, op ReadOp) {
			<-op.Done()
			completed <- k
		}(k, op)
	}

	var timerC <-chan time.Time
	if timeout >= 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timerC = t.C
	}

	select {
	case <-d.interrupt:
		return 0, nil
	case <-timerC:
		return 0, nil
	case k := <-completed:
		if k < 0 || k >= len(reads) {
			return 0, fmt.Errorf("%w: unexpected completion index %d", ErrInvariant, k)
		}
		return d.finishRead(&winner, reads, k, p)
	}
}

func (d *RawDevice) finishRead(winner *int, reads []issuedRead, k int, p []byte) (int, error) {
	*winner = k
	n, err := reads[k].op.Result()
	if err != nil {
		return 0, &IOError{Op: "read", Err: err}
	}
	copy(p, reads[k].buf[:n])
	d.log.Debug("recv HID report", zap.String("data", hex.EncodeToString(p[:n])))
	return n, nil
}

func isCanceled(err error) bool {
	return errors.Is(err, ErrReadCanceled)
}

// WriteReport routes b to the interface owning its leading report-id byte
// and blocks until the write completed. It returns the number of bytes the
// device accepted.
func (d *RawDevice) WriteReport(b []byte) (int, error) {
	if d.closed.Load() {
		return 0, ErrDeviceClosed
	}
	if len(b) == 0 {
		return 0, fmt.Errorf("%w: empty report", ErrUnknownReport)
	}
	i, ok := d.route[b[0]]
	if !ok {
		return 0, fmt.Errorf("%w: %#02x", ErrUnknownReport, b[0])
	}
	n, err := d.ifaces[i].handle.Write(b)
	if err != nil {
		return 0, &IOError{Op: "write", Err: err}
	}
	d.log.Debug("send HID report", zap.String("data", hex.EncodeToString(b)))
	return n, nil
}

// InterruptRead makes a concurrently blocked ReadReport return 0. It is safe
// to call from any goroutine. The signal auto-resets once a ReadReport call
// observed it, so a later call is not spuriously interrupted.
func (d *RawDevice) InterruptRead() {
	select {
	case d.interrupt <- struct{}{}:
	default:
	}
}

// Clone re-opens every underlying interface, producing an independent device
// for the same physical interfaces: new OS handles, a fresh interrupt
// primitive, shared descriptor model.
func (d *RawDevice) Clone() (*RawDevice, error) {
	if d.closed.Load() {
		return nil, ErrDeviceClosed
	}
	nd := &RawDevice{
		log:       d.log,
		backend:   d.backend,
		parentID:  d.parentID,
		vendorID:  d.vendorID,
		productID: d.productID,
		name:      d.name,
		desc:      d.desc,
		route:     make(map[uint8]int, len(d.route)),
		interrupt: make(chan struct{}, 1),
		closed:    atomic.NewBool(false),
	}
	for id, i := range d.route {
		nd.route[id] = i
	}
	ok := false
	defer func() {
		if !ok {
			nd.release()
		}
	}()
	for _, ifc := range d.ifaces {
		handle, err := d.backend.OpenInterface(ifc.info.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDeviceOpen, ifc.info.Path, err)
		}
		nd.ifaces = append(nd.ifaces, iface{info: ifc.info, handle: handle, caps: ifc.caps})
	}
	ok = true
	return nd, nil
}

// Close releases all interface handles. Closing an already closed device is
// a no-op.
func (d *RawDevice) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	return d.release()
}

func (d *RawDevice) release() error {
	var err error
	for _, ifc := range d.ifaces {
		err = multierr.Append(err, ifc.handle.Close())
	}
	d.ifaces = nil
	return err
}
