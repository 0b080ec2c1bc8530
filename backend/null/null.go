// Package null provides a no-op streamdraw backend for headless runs,
// benchmarks, and tests. Its device allocates plain memory for buffers,
// signals fences immediately, and discards draw calls (counting them).
//
// Importing the package registers the backend:
//
//	import _ "github.com/gogpu/streamdraw/backend/null"
package null

import (
	"fmt"
	"time"

	"github.com/gogpu/streamdraw/backend"
	"github.com/gogpu/streamdraw/gpucore"
)

func init() {
	backend.Register(backend.BackendNull, func() backend.Backend {
		return New()
	})
}

// Backend is the no-op backend.
type Backend struct {
	dev         *Device
	initialized bool
}

// New creates a null backend. The device reports every capability so the
// single-pass code paths run by default; use NewDevice directly to shape
// capabilities.
func New() *Backend {
	return &Backend{}
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return backend.BackendNull }

// Init initializes the backend.
func (b *Backend) Init() error {
	b.dev = NewDevice(gpucore.Caps{
		BaseVertex:       true,
		PrimitiveRestart: true,
		DualSourceBlend:  true,
	})
	b.initialized = true
	return nil
}

// Close releases all backend resources.
func (b *Backend) Close() {
	b.dev = nil
	b.initialized = false
}

// Device returns the backend's device.
func (b *Backend) Device() gpucore.Device {
	return b.dev
}

// Device is a gpucore.Device that does nothing. Buffers are plain memory,
// fences are always signaled, draws are counted and discarded.
type Device struct {
	caps       gpucore.Caps
	buffers    map[gpucore.BufferID][]byte
	nextBuffer uint64
	nextFence  uint64

	mappedID   gpucore.BufferID
	mappedBusy bool

	drawCount uint64
}

// NewDevice creates a null device reporting the given capabilities.
func NewDevice(caps gpucore.Caps) *Device {
	return &Device{
		caps:    caps,
		buffers: make(map[gpucore.BufferID][]byte),
	}
}

// DrawCount returns the number of draw calls issued so far.
func (d *Device) DrawCount() uint64 { return d.drawCount }

// Caps returns the device capability flags.
func (d *Device) Caps() gpucore.Caps { return d.caps }

// CreateBuffer allocates plain memory for the buffer.
func (d *Device) CreateBuffer(size int, _ gpucore.BufferUsage) (gpucore.BufferID, error) {
	if size <= 0 {
		return gpucore.InvalidID, fmt.Errorf("null: invalid buffer size %d", size)
	}
	d.nextBuffer++
	id := gpucore.BufferID(d.nextBuffer)
	d.buffers[id] = make([]byte, size)
	return id, nil
}

// DestroyBuffer releases the buffer memory.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	delete(d.buffers, id)
}

// MapRange returns the requested region of the backing memory.
func (d *Device) MapRange(id gpucore.BufferID, offset, size int) ([]byte, error) {
	buf, ok := d.buffers[id]
	if !ok {
		return nil, fmt.Errorf("null: unknown buffer %d", id)
	}
	if offset < 0 || size < 0 || offset+size > len(buf) {
		return nil, fmt.Errorf("null: map range [%d, %d) out of bounds (%d)", offset, offset+size, len(buf))
	}
	if d.mappedBusy {
		return nil, fmt.Errorf("null: buffer %d already mapped", d.mappedID)
	}
	d.mappedID, d.mappedBusy = id, true
	return buf[offset : offset+size], nil
}

// FlushRange commits a mapped region. Memory writes are already visible.
func (d *Device) FlushRange(id gpucore.BufferID, offset, size int) error {
	buf, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("null: unknown buffer %d", id)
	}
	if offset < 0 || size < 0 || offset+size > len(buf) {
		return fmt.Errorf("null: flush range [%d, %d) out of bounds (%d)", offset, offset+size, len(buf))
	}
	d.mappedBusy = false
	return nil
}

// InsertFence returns a fence that is already signaled.
func (d *Device) InsertFence() gpucore.FenceID {
	d.nextFence++
	return gpucore.FenceID(d.nextFence)
}

// WaitFence returns immediately: null fences signal at insertion.
func (d *Device) WaitFence(gpucore.FenceID, time.Duration) error { return nil }

// BindVertexLayout is a no-op.
func (d *Device) BindVertexLayout(gpucore.VertexLayoutID) {}

// BindStreamBuffers is a no-op.
func (d *Device) BindStreamBuffers(_, _ gpucore.BufferID) {}

// SetColorMask is a no-op.
func (d *Device) SetColorMask(gpucore.ColorWriteMask) {}

// SetBlendEnabled is a no-op.
func (d *Device) SetBlendEnabled(bool) {}

// DrawIndexed counts and discards the draw.
func (d *Device) DrawIndexed(_ gpucore.Topology, _, _ uint32, _ int) error {
	d.drawCount++
	return nil
}

// DrawIndexedBaseVertex counts and discards the draw.
func (d *Device) DrawIndexedBaseVertex(_ gpucore.Topology, _, _ uint32, _ int, _ int) error {
	d.drawCount++
	return nil
}

// ResetBindings is a no-op.
func (d *Device) ResetBindings() {}

var _ gpucore.Device = (*Device)(nil)
