// Package streamdraw is a per-frame geometry streaming and draw-submission
// engine. It turns a fixed-function-style vertex stream produced by upstream
// geometry decoding into draw calls against a [gpucore.Device].
//
// The engine owns four concerns:
//   - transient device-visible buffer management for vertex and index data
//     ([StreamBuffer]: a fence-guarded ring buffer),
//   - batching of decoded primitives into minimal draw calls,
//   - selection of the shading/blending strategy from device capabilities,
//   - a two-pass fallback that establishes destination alpha on devices
//     without dual-source blending.
//
// Vertex decoding, index generation, shader programs, and statistics are
// external collaborators consumed through narrow contracts ([VertexFormat],
// [IndexSource], [ShaderCache], [Stats]). The indexgen package provides a
// ready-made IndexSource; the backend packages provide devices.
//
// # Usage
//
//	dev := open a gpucore.Device via a backend
//	gen := indexgen.New(dev.Caps().PrimitiveRestart)
//	vm, err := streamdraw.NewVertexManager(dev, shaders, gen)
//	if err != nil {
//	    return err
//	}
//	defer vm.Close()
//
//	for each batch {
//	    buf, err := vm.ResetFrame(stride) // open this cycle's windows
//	    decode vertices into buf, feed gen
//	    vm.Flush(useDstAlpha)             // commit and draw
//	}
//
// All methods must be called from the goroutine that owns the device context.
// The only blocking operation is the ring-buffer wrap, which waits on a
// device fence with a bounded, logged stall.
package streamdraw
