package streamdraw

import (
	"fmt"
	"time"

	"github.com/gogpu/streamdraw/gpucore"
)

// streamBufferSlots is the fence granularity of a StreamBuffer. The buffer
// is divided into this many equal slots; one fence guards each slot, so a
// wrap waits only for the slots it is about to overwrite.
const streamBufferSlots = 16

// Default bounds for the fence wait on buffer reuse.
const (
	// defaultStallWarn is how long a fence wait may run before the stall is
	// logged. Stalls mean the buffer is undersized for the workload.
	defaultStallWarn = 10 * time.Millisecond

	// fenceWaitCap is the hard cap on a single fence wait. Exceeding it
	// surfaces ErrFenceStall instead of hanging the render thread.
	fenceWaitCap = 5 * time.Second
)

// Window is an open write region of a StreamBuffer.
//
// Buf is valid until the matching EndWrite. ByteOffset locates the region in
// the buffer; callers derive their addressing unit from it (the vertex path
// divides by the stride to get a base vertex, the index path uses it as is).
type Window struct {
	// Buf is the writable region.
	Buf []byte

	// ByteOffset is the region's offset from the start of the buffer.
	ByteOffset int
}

// StreamBuffer is a fixed-capacity, device-visible ring buffer for streaming
// transient geometry. The write cursor advances past committed data and
// wraps to the start once the device is known to have consumed the region
// about to be overwritten, which is tracked with one fence per slot.
//
// StreamBuffer is single-threaded: it must be used only from the goroutine
// that owns the device context. At most one window may be open at a time.
type StreamBuffer struct {
	dev  gpucore.Device
	id   gpucore.BufferID
	size int

	// cursor is the next free byte. used marks the start of written space
	// not yet guarded by a fence.
	cursor int
	used   int

	// fences guards reuse per slot. InvalidID means no fence is pending for
	// the slot (first lap, or already waited on).
	fences [streamBufferSlots]gpucore.FenceID

	// mapOffset/mapSize describe the open window; mapSize == 0 means none.
	mapOffset int
	mapSize   int

	stallWarn time.Duration
}

// NewStreamBuffer creates a device buffer of the given capacity and wraps it
// in a StreamBuffer. Capacity must be a positive multiple of the slot count
// so slot boundaries land on byte offsets.
func NewStreamBuffer(dev gpucore.Device, usage gpucore.BufferUsage, capacity int) (*StreamBuffer, error) {
	if capacity <= 0 || capacity%streamBufferSlots != 0 {
		return nil, fmt.Errorf("streamdraw: stream buffer capacity %d must be a positive multiple of %d", capacity, streamBufferSlots)
	}
	id, err := dev.CreateBuffer(capacity, usage)
	if err != nil {
		return nil, fmt.Errorf("streamdraw: create stream buffer: %w", err)
	}
	slogger().Info("streamdraw: stream buffer created", "capacity", capacity, "usage", uint32(usage))
	return &StreamBuffer{
		dev:       dev,
		id:        id,
		size:      capacity,
		stallWarn: defaultStallWarn,
	}, nil
}

// BufferID returns the underlying device buffer.
func (b *StreamBuffer) BufferID() gpucore.BufferID { return b.id }

// Size returns the buffer capacity in bytes.
func (b *StreamBuffer) Size() int { return b.size }

// Destroy releases the device buffer. The StreamBuffer must not be used
// afterwards.
func (b *StreamBuffer) Destroy() {
	if b.id != gpucore.InvalidID {
		b.dev.DestroyBuffer(b.id)
		b.id = gpucore.InvalidID
	}
}

// slot returns the slot index containing byte offset off.
func (b *StreamBuffer) slot(off int) int {
	return off * streamBufferSlots / b.size
}

// fenceWritten inserts fences for every slot completely written since the
// last insertion. Called at the start of BeginWrite: by then every draw call
// reading those slots has been submitted, so the fences signal true reuse
// safety.
func (b *StreamBuffer) fenceWritten(upTo int) {
	for i := b.slot(b.used); i < b.slot(upTo); i++ {
		b.fences[i] = b.dev.InsertFence()
	}
	b.used = upTo
}

// waitSlots blocks until the fences of slots [first, last] have signaled.
// Slots without a pending fence are free by definition.
func (b *StreamBuffer) waitSlots(first, last int) error {
	for i := first; i <= last && i < streamBufferSlots; i++ {
		f := b.fences[i]
		if f == gpucore.InvalidID {
			continue
		}
		start := time.Now()
		err := b.dev.WaitFence(f, b.stallWarn)
		if err != nil {
			// Keep waiting up to the hard cap, but tell someone: stalling
			// here means the buffer is undersized for the workload.
			slogger().Warn("streamdraw: stream buffer stalling on device fence",
				"slot", i, "waited", time.Since(start))
			err = b.dev.WaitFence(f, fenceWaitCap)
		}
		if err != nil {
			return fmt.Errorf("%w: slot %d", ErrFenceStall, i)
		}
		b.fences[i] = gpucore.InvalidID
	}
	return nil
}

// BeginWrite reserves a contiguous region of at least size bytes, wrapping
// to the start of the buffer when the tail cannot hold it. The region start
// is aligned up to align bytes (the vertex stride), so the returned
// ByteOffset is always a whole number of elements.
//
// BeginWrite may block while the device finishes reading the region about to
// be reused; the wait is bounded and logged.
func (b *StreamBuffer) BeginWrite(size, align int) (Window, error) {
	if size > b.size {
		return Window{}, fmt.Errorf("%w: %d > %d", ErrWriteTooLarge, size, b.size)
	}
	if b.mapSize != 0 {
		return Window{}, ErrAlreadyMapped
	}

	// Guard everything committed since the previous reservation.
	b.fenceWritten(b.cursor)

	if align > 1 {
		b.cursor = (b.cursor + align - 1) / align * align
	}

	if b.cursor+size > b.size {
		// Wrap. Fence the unused tail so the whole lap stays guarded, then
		// restart at the head.
		for i := b.slot(b.used); i < streamBufferSlots; i++ {
			b.fences[i] = b.dev.InsertFence()
		}
		b.cursor, b.used = 0, 0
	}

	// Any pending fence on a slot this reservation touches is from the
	// previous lap; wait it out before handing the memory to the caller.
	if err := b.waitSlots(b.slot(b.cursor), b.slot(b.cursor+size-1)); err != nil {
		return Window{}, err
	}

	buf, err := b.dev.MapRange(b.id, b.cursor, size)
	if err != nil {
		return Window{}, fmt.Errorf("streamdraw: map stream buffer: %w", err)
	}
	b.mapOffset, b.mapSize = b.cursor, size
	return Window{Buf: buf, ByteOffset: b.cursor}, nil
}

// EndWrite commits exactly used bytes at the start of the open window and
// closes it. used may be less than the reserved size (including zero for a
// discarded window) but never more. After EndWrite the committed range is
// visible to draw calls addressing it by offset.
func (b *StreamBuffer) EndWrite(used int) error {
	if b.mapSize == 0 {
		return ErrNotMapped
	}
	if used > b.mapSize {
		return fmt.Errorf("%w: %d > %d", ErrCommitTooLarge, used, b.mapSize)
	}
	err := b.dev.FlushRange(b.id, b.mapOffset, used)
	b.cursor = b.mapOffset + used
	b.mapSize = 0
	if err != nil {
		return fmt.Errorf("streamdraw: flush stream buffer: %w", err)
	}
	return nil
}
