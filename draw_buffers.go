package streamdraw

import (
	"fmt"

	"github.com/gogpu/streamdraw/gpucore"
)

// Default stream buffer capacities and per-cycle window budgets.
const (
	// DefaultVertexBufferSize is the vertex stream buffer capacity.
	DefaultVertexBufferSize = 32 * 1024 * 1024

	// DefaultIndexBufferSize is the index stream buffer capacity.
	DefaultIndexBufferSize = 2 * 1024 * 1024

	// DefaultVertexWindowSize is the vertex byte budget of one accumulation
	// cycle, reserved by every ResetFrame.
	DefaultVertexWindowSize = 1024 * 1024

	// DefaultIndexWindowSize is the index byte budget of one accumulation
	// cycle (uint16 indices).
	DefaultIndexWindowSize = 64 * 1024 * gpucore.IndexSize
)

// drawBuffers owns the two stream buffers and the per-cycle windows opened
// on them. It tracks the base offsets needed to address the committed window
// from a draw call.
type drawBuffers struct {
	vertices *StreamBuffer
	indices  *StreamBuffer
	gen      IndexSource
	stats    *Stats

	vertexWindowSize int
	indexWindowSize  int

	// Set by resetFrame, consumed at flush.
	baseVertex      int // element index into the vertex buffer
	indexByteOffset int // byte offset into the index buffer
	open            bool
}

func newDrawBuffers(dev gpucore.Device, gen IndexSource, cfg *config) (*drawBuffers, error) {
	if cfg.vertexWindowSize > cfg.vertexBufferSize || cfg.indexWindowSize > cfg.indexBufferSize {
		return nil, ErrBudgetExceedsCapacity
	}
	vertices, err := NewStreamBuffer(dev, gpucore.BufferUsageVertex, cfg.vertexBufferSize)
	if err != nil {
		return nil, err
	}
	indices, err := NewStreamBuffer(dev, gpucore.BufferUsageIndex, cfg.indexBufferSize)
	if err != nil {
		vertices.Destroy()
		return nil, err
	}
	dev.BindStreamBuffers(vertices.BufferID(), indices.BufferID())
	return &drawBuffers{
		vertices:         vertices,
		indices:          indices,
		gen:              gen,
		stats:            cfg.stats,
		vertexWindowSize: cfg.vertexWindowSize,
		indexWindowSize:  cfg.indexWindowSize,
	}, nil
}

// resetFrame opens this cycle's windows: a vertex window sized to the
// per-cycle budget at the given stride, and an index window handed to the
// index source. indexBase is the base the source must add to every index;
// zero when the device draws with a base vertex. Any still-open windows from
// an unflushed cycle are discarded first, so a stray cycle never corrupts
// the cursors.
func (d *drawBuffers) resetFrame(stride uint32, baseVertexDraws bool) ([]byte, error) {
	if d.open {
		d.discard()
	}
	vwin, err := d.vertices.BeginWrite(d.vertexWindowSize, int(stride))
	if err != nil {
		return nil, fmt.Errorf("open vertex window: %w", err)
	}
	iwin, err := d.indices.BeginWrite(d.indexWindowSize, gpucore.IndexSize)
	if err != nil {
		// Leave the vertex window discarded rather than half-open.
		_ = d.vertices.EndWrite(0)
		return nil, fmt.Errorf("open index window: %w", err)
	}
	d.baseVertex = vwin.ByteOffset / int(stride)
	d.indexByteOffset = iwin.ByteOffset

	indexBase := uint32(d.baseVertex)
	if baseVertexDraws {
		indexBase = 0
	}
	d.gen.Start(iwin.Buf, indexBase)
	d.open = true
	return vwin.Buf, nil
}

// prepareFlush commits the bytes actually produced since resetFrame, derived
// from the index source's counts, and closes both windows. Must be called
// exactly once per cycle, before any draw call referencing the data.
func (d *drawBuffers) prepareFlush(stride uint32) (vertexBytes, indexBytes int, err error) {
	vertexBytes = int(d.gen.NumVerts()) * int(stride)
	indexBytes = int(d.gen.IndexLen()) * gpucore.IndexSize

	if verr := d.vertices.EndWrite(vertexBytes); verr != nil {
		err = fmt.Errorf("commit vertex window: %w", verr)
	}
	if ierr := d.indices.EndWrite(indexBytes); ierr != nil && err == nil {
		err = fmt.Errorf("commit index window: %w", ierr)
	}
	d.open = false

	d.stats.AddVertexBytes(vertexBytes)
	d.stats.AddIndexBytes(indexBytes)
	return vertexBytes, indexBytes, err
}

// discard closes both windows committing nothing.
func (d *drawBuffers) discard() {
	_ = d.vertices.EndWrite(0)
	_ = d.indices.EndWrite(0)
	d.open = false
}

// destroy releases both stream buffers.
func (d *drawBuffers) destroy() {
	d.vertices.Destroy()
	d.indices.Destroy()
}
