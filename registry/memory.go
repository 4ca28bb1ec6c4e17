package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Registry. The daemon uses it when no registry path
// is configured; tests use it as a stand-in for the sqlite store.
type Memory struct {
	mu      sync.Mutex
	devices map[string]Device // id -> device
}

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{devices: make(map[string]Device)}
}

// List implements Registry.
func (m *Memory) List(ctx context.Context) ([]Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	devices := make([]Device, 0, len(m.devices))
	for _, d := range m.devices {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].Name != devices[j].Name {
			return devices[i].Name < devices[j].Name
		}
		return devices[i].ID < devices[j].ID
	})
	return devices, nil
}

// Ensure implements Registry.
func (m *Memory) Ensure(ctx context.Context, uniqueID, name string) (Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, d := range m.devices {
		if d.UniqueID == uniqueID {
			if d.Name != name {
				d.Name = name
				m.devices[id] = d
			}
			return d, nil
		}
	}
	device := Device{
		ID:        uuid.NewString(),
		UniqueID:  uniqueID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	m.devices[device.ID] = device
	return device, nil
}

// Remove implements Registry.
func (m *Memory) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.devices[id]; !ok {
		return fmt.Errorf("%w %q", ErrUnknownDevice, id)
	}
	delete(m.devices, id)
	return nil
}
