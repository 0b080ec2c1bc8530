package streamdraw

import "github.com/gogpu/streamdraw/gpucore"

// drawEmitter issues the minimal correct device draw call for a committed
// batch, choosing the base-vertex form when the device supports it so the
// index stream can stay window-relative.
type drawEmitter struct {
	dev   gpucore.Device
	stats *Stats
}

// deviceTopology maps a logical primitive to the device topology, using
// strip-with-restart for triangles when the device advertises primitive
// restart (the index source encodes triangles as restart-separated strips in
// that case, cutting index duplication for strip-friendly meshes).
func deviceTopology(p Primitive, restart bool) gpucore.Topology {
	switch p {
	case PrimitivePoints:
		return gpucore.TopologyPointList
	case PrimitiveLines:
		return gpucore.TopologyLineList
	default:
		if restart {
			return gpucore.TopologyTriangleStrip
		}
		return gpucore.TopologyTriangleList
	}
}

// emit issues one indexed draw call. indexCount and vertexCount are the
// counts committed for this batch; indexByteOffset and baseVertex locate the
// committed windows. A zero-count draw is valid and still reaches the device.
func (e *drawEmitter) emit(prim Primitive, indexCount, vertexCount uint32, indexByteOffset, baseVertex int) error {
	caps := e.dev.Caps()
	topology := deviceTopology(prim, caps.PrimitiveRestart)

	var err error
	if caps.BaseVertex {
		err = e.dev.DrawIndexedBaseVertex(topology, indexCount, vertexCount, indexByteOffset, baseVertex)
	} else {
		// No base-vertex support: the index source wrote absolute indices.
		err = e.dev.DrawIndexed(topology, indexCount, vertexCount, indexByteOffset)
	}
	e.stats.IncDrawCalls()
	return err
}
