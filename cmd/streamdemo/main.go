// Command streamdemo streams generated triangle batches through a chosen
// backend and reports draw statistics.
package main

import (
	"encoding/binary"
	"flag"
	"log"
	"math"

	"github.com/gogpu/streamdraw"
	"github.com/gogpu/streamdraw/backend"
	"github.com/gogpu/streamdraw/backend/null"
	"github.com/gogpu/streamdraw/backend/wgpu"
	"github.com/gogpu/streamdraw/indexgen"
)

const stride = 16 // 3 x float32 position + 4 x unorm8 color

func main() {
	var (
		backendName = flag.String("backend", backend.BackendNull, "backend to use (wgpu, null)")
		frames      = flag.Int("frames", 60, "number of frames to stream")
		triangles   = flag.Int("triangles", 100, "triangles per frame")
		dstAlpha    = flag.Bool("dstalpha", false, "request destination alpha on every flush")
		dumpDir     = flag.String("dump", "", "write shader sources per flush to this directory")
	)
	flag.Parse()

	b := backend.Get(*backendName)
	if b == nil {
		log.Fatalf("backend %q not registered (available: %v)", *backendName, backend.Available())
	}
	if err := b.Init(); err != nil {
		log.Fatalf("backend %s init: %v", b.Name(), err)
	}
	defer b.Close()
	dev := b.Device()

	var (
		shaders streamdraw.ShaderCache
		format  streamdraw.VertexFormat
		frame   func(func() error) error
	)
	switch d := dev.(type) {
	case *wgpu.Device:
		f := wgpu.PositionColorFormat()
		d.RegisterFormat(f)
		shaders, format = d.Shaders(), f
		frame = func(body func() error) error {
			if err := d.BeginFrame(800, 600); err != nil {
				return err
			}
			if err := body(); err != nil {
				return err
			}
			return d.EndFrame()
		}
	default:
		shaders = &null.ShaderCache{}
		format = null.NewFormat(stride, 3)
		frame = func(body func() error) error { return body() }
	}

	stats := &streamdraw.Stats{}
	opts := []streamdraw.Option{streamdraw.WithStats(stats)}
	if *dumpDir != "" {
		opts = append(opts,
			streamdraw.WithDumpDir(*dumpDir),
			streamdraw.WithShaderDump(true))
	}

	gen := indexgen.New(dev.Caps().PrimitiveRestart)
	vm, err := streamdraw.NewVertexManager(dev, shaders, gen, opts...)
	if err != nil {
		log.Fatalf("vertex manager: %v", err)
	}
	defer vm.Close()

	vm.SetFormat(format)
	vm.SetPrimitive(streamdraw.PrimitiveTriangles)

	caps := dev.Caps()
	log.Printf("backend=%s baseVertex=%v primitiveRestart=%v dualSourceBlend=%v",
		b.Name(), caps.BaseVertex, caps.PrimitiveRestart, caps.DualSourceBlend)

	for i := 0; i < *frames; i++ {
		err := frame(func() error { return streamFrame(vm, gen, i, *triangles, *dstAlpha) })
		if err != nil {
			log.Fatalf("frame %d: %v", i, err)
		}
	}

	log.Printf("done: %s", stats.Snapshot())
}

// streamFrame fills one vertex window with rotating triangles and flushes.
func streamFrame(vm *streamdraw.VertexManager, gen *indexgen.Generator, frame, triangles int, dstAlpha bool) error {
	vtx, err := vm.ResetFrame(stride)
	if err != nil {
		return err
	}

	count := triangles
	if limit := len(vtx) / (3 * stride); count > limit {
		count = limit
	}
	phase := float64(frame) * 0.02
	for t := 0; t < count; t++ {
		center := float64(t) / float64(count)
		for i := 0; i < 3; i++ {
			a := phase + center*2*math.Pi + float64(i)*2*math.Pi/3
			x := float32((0.2 + 0.7*center) * math.Cos(a))
			y := float32((0.2 + 0.7*center) * math.Sin(a))
			writeVertex(vtx[(t*3+i)*stride:], x, y, byte(255*center))
		}
	}
	gen.AddTriangleList(uint32(count * 3))

	return vm.Flush(dstAlpha)
}

func writeVertex(dst []byte, x, y float32, shade byte) {
	binary.LittleEndian.PutUint32(dst[0:], math.Float32bits(x))
	binary.LittleEndian.PutUint32(dst[4:], math.Float32bits(y))
	binary.LittleEndian.PutUint32(dst[8:], math.Float32bits(0))
	dst[12], dst[13], dst[14], dst[15] = shade, 0x70, 0xD0, 0xFF
}
