package gpucore

import (
	"image"
	"time"
)

// Device abstracts the graphics backend consumed by the streaming engine.
//
// All methods must be called from the single goroutine that owns the device
// context; implementations are not required to be safe for concurrent use.
// The only call that may block is WaitFence.
//
// Resource lifecycle:
//   - Buffers are created via CreateBuffer and must be explicitly destroyed.
//   - Destroying a buffer the device is still reading is undefined behavior;
//     callers gate reuse on fences.
//   - IDs become invalid after destruction and must not be reused.
type Device interface {
	// Caps returns the device capability flags. The result is stable for the
	// lifetime of the device.
	Caps() Caps

	// CreateBuffer creates a device buffer of the given byte size.
	CreateBuffer(size int, usage BufferUsage) (BufferID, error)

	// DestroyBuffer releases a device buffer.
	DestroyBuffer(id BufferID)

	// MapRange exposes [offset, offset+size) of a buffer as writable memory.
	// The returned slice stays valid until the matching FlushRange. At most
	// one range per buffer may be mapped at a time.
	MapRange(id BufferID, offset, size int) ([]byte, error)

	// FlushRange commits the first size bytes written to the currently mapped
	// range, making them visible to subsequent draw calls that address the
	// buffer by offset. size may be smaller than the mapped size; it must not
	// be larger.
	FlushRange(id BufferID, offset, size int) error

	// InsertFence marks the current point in the submitted command stream.
	InsertFence() FenceID

	// WaitFence blocks until all commands submitted before the fence have
	// been consumed by the device, or the timeout elapses. A timeout returns
	// an error; the fence stays pending.
	WaitFence(id FenceID, timeout time.Duration) error

	// BindVertexLayout binds a vertex attribute layout. Redundant binds are
	// harmless but cost a device call; callers memoize.
	BindVertexLayout(id VertexLayoutID)

	// BindStreamBuffers binds the vertex and index buffers draw calls read
	// from. InvalidID restores the default (unbound) state.
	BindStreamBuffers(vertex, index BufferID)

	// SetColorMask restricts which color channels subsequent draws write.
	SetColorMask(mask ColorWriteMask)

	// SetBlendEnabled toggles blending for subsequent draws.
	SetBlendEnabled(enabled bool)

	// DrawIndexed issues an indexed draw call. indexByteOffset addresses the
	// bound index buffer; indices are uint16 and absolute.
	DrawIndexed(topology Topology, indexCount, maxVertexIndex uint32, indexByteOffset int) error

	// DrawIndexedBaseVertex is DrawIndexed with a per-draw vertex offset
	// added to every index, so indices may stay window-relative. Only valid
	// when Caps().BaseVertex is true.
	DrawIndexedBaseVertex(topology Topology, indexCount, maxVertexIndex uint32, indexByteOffset int, baseVertex int) error

	// ResetBindings restores default buffer and layout bindings. Called at
	// engine teardown.
	ResetBindings()
}

// TargetReader is implemented by devices that can read back the current
// render target. Used only by the debug target-dump path; backends without
// readback simply do not implement it.
type TargetReader interface {
	// ReadTarget returns the render target contents. May stall the device.
	ReadTarget() (image.Image, error)
}
