package gpucore

import "fmt"

// Resource IDs
//
// These opaque IDs represent device resources. Each backend implementation
// maintains a mapping between IDs and actual resources.

// BufferID is an opaque handle to a device buffer.
type BufferID uint64

// VertexLayoutID is an opaque handle to a bound vertex attribute layout
// (the vertex-array-object analog). Vertex format services obtain layout IDs
// from their backend; the engine only compares and binds them.
type VertexLayoutID uint64

// FenceID is an opaque handle to a point in the submitted command stream.
type FenceID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// BufferUsage is a bitmask specifying how a buffer will be used.
type BufferUsage uint32

// Buffer usage flags.
const (
	// BufferUsageVertex indicates the buffer holds vertex data.
	BufferUsageVertex BufferUsage = 1 << 0

	// BufferUsageIndex indicates the buffer holds index data.
	BufferUsageIndex BufferUsage = 1 << 1
)

// Topology is the device primitive topology of a draw call.
type Topology uint32

// Topologies.
const (
	// TopologyPointList draws each vertex as an isolated point.
	TopologyPointList Topology = iota + 1

	// TopologyLineList draws each pair of vertices as an isolated line.
	TopologyLineList

	// TopologyTriangleList draws each triple of vertices as an isolated triangle.
	TopologyTriangleList

	// TopologyTriangleStrip draws a triangle strip. Combined with primitive
	// restart, one index stream encodes many disjoint strips.
	TopologyTriangleStrip
)

// String returns the string representation of Topology.
func (t Topology) String() string {
	switch t {
	case TopologyPointList:
		return "PointList"
	case TopologyLineList:
		return "LineList"
	case TopologyTriangleList:
		return "TriangleList"
	case TopologyTriangleStrip:
		return "TriangleStrip"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(t))
	}
}

// RestartIndex is the uint16 sentinel that splits strips when primitive
// restart is active. Vertex windows therefore never address index 0xFFFF.
const RestartIndex uint16 = 0xFFFF

// IndexSize is the byte size of one index. The engine streams uint16 indices.
const IndexSize = 2

// ColorWriteMask is a bitmask restricting which channels a draw writes.
type ColorWriteMask uint32

// Color write mask flags.
const (
	// ColorWriteMaskRed enables writes to the red channel.
	ColorWriteMaskRed ColorWriteMask = 1 << 0

	// ColorWriteMaskGreen enables writes to the green channel.
	ColorWriteMaskGreen ColorWriteMask = 1 << 1

	// ColorWriteMaskBlue enables writes to the blue channel.
	ColorWriteMaskBlue ColorWriteMask = 1 << 2

	// ColorWriteMaskAlpha enables writes to the alpha channel.
	ColorWriteMaskAlpha ColorWriteMask = 1 << 3

	// ColorWriteMaskNone disables all color writes.
	ColorWriteMaskNone ColorWriteMask = 0

	// ColorWriteMaskAll enables writes to all four channels.
	ColorWriteMaskAll = ColorWriteMaskRed | ColorWriteMaskGreen | ColorWriteMaskBlue | ColorWriteMaskAlpha
)

// Caps describes the device features the engine branches on.
// Backends fill this once at init; the engine treats it as read-only.
type Caps struct {
	// BaseVertex indicates support for draw calls that add a per-draw offset
	// to every vertex index, letting index streams stay window-relative.
	BaseVertex bool

	// PrimitiveRestart indicates support for the strip-restart sentinel.
	PrimitiveRestart bool

	// DualSourceBlend indicates the device can blend color and alpha with
	// distinct source factors in one pass.
	DualSourceBlend bool
}
