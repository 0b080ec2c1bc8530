// Package indexgen accumulates primitive indices for the streamdraw engine.
//
// A Generator writes uint16 little-endian indices straight into the index
// window handed to it by Start, converting whatever topology the upstream
// decoder produces (lists, strips, fans) into the single topology the draw
// call uses: triangle strips separated by the restart sentinel on devices
// with primitive restart, plain triangle lists otherwise. Points and lines
// map 1:1.
//
// Generator satisfies the streamdraw.IndexSource contract.
package indexgen

import (
	"encoding/binary"

	"github.com/gogpu/streamdraw/gpucore"
)

// Generator accumulates indices for one accumulation cycle. Not safe for
// concurrent use; like the rest of the engine it lives on the render thread.
type Generator struct {
	dst  []byte
	pos  int // byte cursor into dst
	base uint32

	numVerts uint32
	restart  bool
	overflow bool
}

// New creates a Generator. primitiveRestart selects strip-with-restart
// encoding for triangles and must match the device capability the draw
// topology is chosen with.
func New(primitiveRestart bool) *Generator {
	return &Generator{restart: primitiveRestart}
}

// Start directs index writes into dst and resets all counts. baseVertex is
// added to every index (zero for window-relative indices on devices with
// base-vertex draws).
func (g *Generator) Start(dst []byte, baseVertex uint32) {
	g.dst = dst
	g.pos = 0
	g.base = baseVertex
	g.numVerts = 0
	g.overflow = false
}

// IndexLen returns the number of indices written since Start.
func (g *Generator) IndexLen() uint32 { return uint32(g.pos / gpucore.IndexSize) }

// NumVerts returns the number of logical vertices consumed since Start.
func (g *Generator) NumVerts() uint32 { return g.numVerts }

// Overflowed reports whether any primitive was dropped because the index
// window ran out of space. Indicates an undersized per-cycle index budget.
func (g *Generator) Overflowed() bool { return g.overflow }

// fits reports whether n more indices fit, latching the overflow flag when
// they do not.
func (g *Generator) fits(n int) bool {
	if g.pos+n*gpucore.IndexSize > len(g.dst) {
		g.overflow = true
		return false
	}
	return true
}

// put writes one index relative to the current batch base.
func (g *Generator) put(rel uint32) {
	binary.LittleEndian.PutUint16(g.dst[g.pos:], uint16(g.base+rel))
	g.pos += gpucore.IndexSize
}

// putRestart writes the strip restart sentinel.
func (g *Generator) putRestart() {
	binary.LittleEndian.PutUint16(g.dst[g.pos:], gpucore.RestartIndex)
	g.pos += gpucore.IndexSize
}

// AddTriangleList consumes numVerts vertices as isolated triangles.
// With restart each triangle becomes its own three-index strip.
func (g *Generator) AddTriangleList(numVerts uint32) {
	first := g.numVerts
	g.numVerts += numVerts
	for v := uint32(0); v+2 < numVerts; v += 3 {
		if g.restart {
			if !g.fits(4) {
				return
			}
			g.put(first + v)
			g.put(first + v + 1)
			g.put(first + v + 2)
			g.putRestart()
		} else {
			if !g.fits(3) {
				return
			}
			g.put(first + v)
			g.put(first + v + 1)
			g.put(first + v + 2)
		}
	}
}

// AddTriangleStrip consumes numVerts vertices as one triangle strip.
// With restart the strip passes through verbatim plus a trailing sentinel;
// otherwise it is expanded into a triangle list with consistent winding.
func (g *Generator) AddTriangleStrip(numVerts uint32) {
	first := g.numVerts
	g.numVerts += numVerts
	if numVerts < 3 {
		return
	}
	if g.restart {
		if !g.fits(int(numVerts) + 1) {
			return
		}
		for v := uint32(0); v < numVerts; v++ {
			g.put(first + v)
		}
		g.putRestart()
		return
	}
	for v := uint32(2); v < numVerts; v++ {
		if !g.fits(3) {
			return
		}
		if v%2 == 0 {
			g.put(first + v - 2)
			g.put(first + v - 1)
		} else {
			g.put(first + v - 1)
			g.put(first + v - 2)
		}
		g.put(first + v)
	}
}

// AddTriangleFan consumes numVerts vertices as a triangle fan around the
// first vertex. Fans do not strip-encode beyond single triangles, so with
// restart each fan triangle becomes its own three-index strip.
func (g *Generator) AddTriangleFan(numVerts uint32) {
	first := g.numVerts
	g.numVerts += numVerts
	for v := uint32(2); v < numVerts; v++ {
		if g.restart {
			if !g.fits(4) {
				return
			}
			g.put(first)
			g.put(first + v - 1)
			g.put(first + v)
			g.putRestart()
		} else {
			if !g.fits(3) {
				return
			}
			g.put(first)
			g.put(first + v - 1)
			g.put(first + v)
		}
	}
}

// AddLineList consumes numVerts vertices as isolated lines.
func (g *Generator) AddLineList(numVerts uint32) {
	first := g.numVerts
	g.numVerts += numVerts
	for v := uint32(0); v+1 < numVerts; v += 2 {
		if !g.fits(2) {
			return
		}
		g.put(first + v)
		g.put(first + v + 1)
	}
}

// AddLineStrip consumes numVerts vertices as a connected line strip,
// expanded into isolated lines.
func (g *Generator) AddLineStrip(numVerts uint32) {
	first := g.numVerts
	g.numVerts += numVerts
	for v := uint32(1); v < numVerts; v++ {
		if !g.fits(2) {
			return
		}
		g.put(first + v - 1)
		g.put(first + v)
	}
}

// AddPoints consumes numVerts vertices as isolated points.
func (g *Generator) AddPoints(numVerts uint32) {
	first := g.numVerts
	g.numVerts += numVerts
	for v := uint32(0); v < numVerts; v++ {
		if !g.fits(1) {
			return
		}
		g.put(first + v)
	}
}
