//go:build linux

// Package hidraw implements the rawhid backend for Linux. Sibling interfaces
// are resolved through udev (every hidraw node sharing the parent device),
// vendor/product attributes come from hidapi enumeration, and report I/O
// goes through the /dev/hidrawN character devices backed by the runtime
// poller, which makes pending reads cancellable via read deadlines.
package hidraw

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/hidio/rawhid"
	"github.com/jochenvg/go-udev"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sstallion/go-hid"
	"go.uber.org/zap"
)

type Backend struct {
	log  *zap.Logger
	udev *udev.Udev

	// attrs caches hidapi device info per hidraw sysname, refreshed on
	// every enumeration pass.
	attrs *xsync.MapOf[string, hid.DeviceInfo]
}

func New(log *zap.Logger) *Backend {
	hid.Init()
	return &Backend{
		log:   log,
		udev:  &udev.Udev{},
		attrs: xsync.NewMapOf[string, hid.DeviceInfo](),
	}
}

// ListSiblings enumerates every hidraw interface whose udev parent matches
// parentID. The parent may be given as a full syspath or as a hid-subsystem
// sysname (e.g. "0003:046D:C52B.0006").
func (b *Backend) ListSiblings(parentID string) ([]rawhid.InterfaceInfo, error) {
	parent := b.resolveParent(parentID)
	if parent == nil {
		return nil, fmt.Errorf("parent device not found: %s", parentID)
	}
	b.refreshAttrs()

	e := b.udev.NewEnumerate()
	e.AddMatchSubsystem("hidraw")
	e.AddMatchParent(parent)
	devices, err := e.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate hidraw devices: %w", err)
	}

	var infos []rawhid.InterfaceInfo
	for _, dev := range devices {
		devnode := dev.Devnode()
		if devnode == "" {
			// node not materialized yet, transiently unavailable
			b.log.Debug("skipping hidraw device without devnode", zap.String("syspath", dev.Syspath()))
			continue
		}
		info := rawhid.InterfaceInfo{Path: devnode}
		if di, ok := b.attrs.Load(dev.Sysname()); ok {
			info.VendorID = di.VendorID
			info.ProductID = di.ProductID
			info.Manufacturer = di.MfrStr
			info.Product = di.ProductStr
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Path < infos[j].Path
	})
	return infos, nil
}

func (b *Backend) resolveParent(parentID string) *udev.Device {
	if dev := b.udev.NewDeviceFromSyspath(parentID); dev != nil {
		return dev
	}
	return b.udev.NewDeviceFromSubsystemSysname("hid", parentID)
}

func (b *Backend) refreshAttrs() {
	err := hid.Enumerate(hid.VendorIDAny, hid.ProductIDAny, func(di *hid.DeviceInfo) error {
		b.attrs.Store(filepath.Base(di.Path), *di)
		return nil
	})
	if err != nil {
		b.log.Warn("hidapi enumeration failed", zap.Error(err))
	}
}

func (b *Backend) OpenInterface(path string) (rawhid.Interface, error) {
	return openInterface(b.log, path)
}
