// Package gpucore provides the adapter-neutral device abstraction for the
// streamdraw geometry streaming engine.
//
// This package defines the [Device] interface, which abstracts over graphics
// backend implementations so the streaming and draw-submission logic is
// written once and works against any device:
//   - gogpu/wgpu (Pure Go WebGPU via HAL), see backend/wgpu
//   - a no-op device for headless runs and benchmarks, see backend/null
//
// # Resource Management
//
// GPU resources are addressed via opaque IDs ([BufferID], [VertexLayoutID],
// [FenceID]). Each backend maintains the mapping between IDs and its actual
// resources. IDs are uint64 to accommodate various backend handle sizes;
// [InvalidID] is the zero value and never refers to a live resource.
//
// # Synchronization
//
// Devices expose a fence primitive: [Device.InsertFence] marks a point in the
// submitted command stream, [Device.WaitFence] blocks until the device has
// consumed everything before that point. The streaming buffers use fences to
// know when a wrapped-around region may be overwritten. WaitFence takes a
// timeout so an undersized buffer surfaces as a diagnostic, not a hang.
//
// # Capabilities
//
// [Caps] carries the three feature flags the engine branches on: base-vertex
// draws, primitive restart, and dual-source blending. They are queried per
// flush and never mutated by this module.
package gpucore
