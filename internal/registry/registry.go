// Package registry persists metadata about devices that were opened at least
// once: display name, vendor/product ids, first and last time seen. It backs
// the seen-devices listing of the CLI and is not consulted by the device
// layer itself.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger"
	"go.uber.org/zap"
)

var keyPrefix = []byte("devices/")

type Registry struct {
	log *zap.Logger
	db  *badger.DB
	now func() time.Time
}

// Device is one registry record, keyed by the parent identifier.
type Device struct {
	ParentID    string    `json:"parentId"`
	Name        string    `json:"name"`
	VendorID    uint16    `json:"vendorId"`
	ProductID   uint16    `json:"productId"`
	Interfaces  int       `json:"interfaces"`
	FirstSeenAt time.Time `json:"firstSeenAt"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
}

func Open(dir string, log *zap.Logger, now func() time.Time) (*Registry, error) {
	options := badger.DefaultOptions(dir)
	options.Logger = &badgerLogger{l: log.Named("badger")}
	db, err := badger.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	return &Registry{
		log: log,
		db:  db,
		now: now,
	}, nil
}

func (r *Registry) Close() error {
	return r.db.Close()
}

func deviceKey(parentID string) []byte {
	return append(append([]byte(nil), keyPrefix...), parentID...)
}

// Touch records that the device was seen now, preserving its first-seen
// timestamp, and returns the stored record.
func (r *Registry) Touch(dev Device) (Device, error) {
	now := r.now()
	err := r.db.Update(func(txn *badger.Txn) error {
		key := deviceKey(dev.ParentID)
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			var stored Device
			err = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &stored)
			})
			if err != nil {
				return fmt.Errorf("failed to unmarshal device: %w", err)
			}
			dev.FirstSeenAt = stored.FirstSeenAt
		}
		if dev.FirstSeenAt.IsZero() {
			dev.FirstSeenAt = now
		}
		dev.LastSeenAt = now
		b, err := json.Marshal(dev)
		if err != nil {
			return fmt.Errorf("failed to marshal device: %w", err)
		}
		return txn.Set(key, b)
	})
	if err != nil {
		return Device{}, fmt.Errorf("failed to record device: %w", err)
	}
	return dev, nil
}

// List returns all recorded devices.
func (r *Registry) List() ([]Device, error) {
	var devices []Device
	err := r.db.View(func(txn *badger.Txn) error {
		iter := txn.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()
		for iter.Seek(keyPrefix); iter.ValidForPrefix(keyPrefix); iter.Next() {
			item := iter.Item()
			var dev Device
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &dev)
			})
			if err != nil {
				return err
			}
			devices = append(devices, dev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return devices, nil
}

type badgerLogger struct {
	l *zap.Logger
}

func (l badgerLogger) Errorf(msg string, args ...any) {
	l.l.Error(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Warningf(msg string, args ...any) {
	l.l.Warn(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Infof(msg string, args ...any) {
	l.l.Info(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Debugf(msg string, args ...any) {
	l.l.Debug(fmt.Sprintf(msg, args...))
}
