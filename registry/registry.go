// Package registry tracks the per-stop device records the host keeps for
// each monitored stop. The wizard's removal step lists these records and
// resolves their opaque IDs back to monitored stop pairs.
package registry

import (
	"context"
	"errors"
	"time"
)

// ErrUnknownDevice is returned by Remove when no device has the given ID.
var ErrUnknownDevice = errors.New("unknown device id")

// Device is one registered stop device. ID is an opaque identifier; UniqueID
// is the stable `{line_ref}_{stop_code}` key of the monitored stop the device
// represents.
type Device struct {
	ID        string    `json:"id"`
	UniqueID  string    `json:"unique_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Registry lists and removes device records.
type Registry interface {
	// List returns all devices ordered by name.
	List(ctx context.Context) ([]Device, error)
	// Ensure creates the device for uniqueID if absent, updates its name if
	// it changed, and returns the current record.
	Ensure(ctx context.Context, uniqueID, name string) (Device, error)
	// Remove deletes the device with the given opaque ID.
	Remove(ctx context.Context, id string) error
}
