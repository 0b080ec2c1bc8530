package streamdraw

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gogpu/streamdraw/gpucore"
)

// ---- Fakes shared by the package tests ----

type fakeDraw struct {
	topology        gpucore.Topology
	indexCount      uint32
	maxVertexIndex  uint32
	indexByteOffset int
	baseVertex      int
	baseVertexForm  bool
}

type fakeFlush struct {
	id     gpucore.BufferID
	offset int
	size   int
}

type bufferPair struct {
	vertex, index gpucore.BufferID
}

// fakeDevice records every call so tests can assert the exact device
// interaction of a flush.
type fakeDevice struct {
	caps gpucore.Caps

	buffers map[gpucore.BufferID][]byte
	nextBuf uint64

	nextFence   uint64
	waited      []gpucore.FenceID
	waitErr     error
	waitErrOnce bool

	draws      []fakeDraw
	flushes    []fakeFlush
	masks      []gpucore.ColorWriteMask
	blends     []bool
	layouts    []gpucore.VertexLayoutID
	bindings   []bufferPair
	resetCalls int
	destroyed  []gpucore.BufferID
}

func newFakeDevice(caps gpucore.Caps) *fakeDevice {
	return &fakeDevice{
		caps:    caps,
		buffers: make(map[gpucore.BufferID][]byte),
	}
}

func (d *fakeDevice) Caps() gpucore.Caps { return d.caps }

func (d *fakeDevice) CreateBuffer(size int, _ gpucore.BufferUsage) (gpucore.BufferID, error) {
	d.nextBuf++
	id := gpucore.BufferID(d.nextBuf)
	d.buffers[id] = make([]byte, size)
	return id, nil
}

func (d *fakeDevice) DestroyBuffer(id gpucore.BufferID) {
	d.destroyed = append(d.destroyed, id)
	delete(d.buffers, id)
}

func (d *fakeDevice) MapRange(id gpucore.BufferID, offset, size int) ([]byte, error) {
	buf, ok := d.buffers[id]
	if !ok {
		return nil, fmt.Errorf("unknown buffer %d", id)
	}
	if offset+size > len(buf) {
		return nil, fmt.Errorf("map out of bounds")
	}
	return buf[offset : offset+size], nil
}

func (d *fakeDevice) FlushRange(id gpucore.BufferID, offset, size int) error {
	d.flushes = append(d.flushes, fakeFlush{id: id, offset: offset, size: size})
	return nil
}

func (d *fakeDevice) InsertFence() gpucore.FenceID {
	d.nextFence++
	return gpucore.FenceID(d.nextFence)
}

func (d *fakeDevice) WaitFence(id gpucore.FenceID, _ time.Duration) error {
	d.waited = append(d.waited, id)
	if d.waitErr != nil {
		err := d.waitErr
		if d.waitErrOnce {
			d.waitErr = nil
		}
		return err
	}
	return nil
}

func (d *fakeDevice) BindVertexLayout(id gpucore.VertexLayoutID) {
	d.layouts = append(d.layouts, id)
}

func (d *fakeDevice) BindStreamBuffers(vertex, index gpucore.BufferID) {
	d.bindings = append(d.bindings, bufferPair{vertex: vertex, index: index})
}

func (d *fakeDevice) SetColorMask(mask gpucore.ColorWriteMask) {
	d.masks = append(d.masks, mask)
}

func (d *fakeDevice) SetBlendEnabled(enabled bool) {
	d.blends = append(d.blends, enabled)
}

func (d *fakeDevice) DrawIndexed(topology gpucore.Topology, indexCount, maxVertexIndex uint32, indexByteOffset int) error {
	d.draws = append(d.draws, fakeDraw{
		topology:        topology,
		indexCount:      indexCount,
		maxVertexIndex:  maxVertexIndex,
		indexByteOffset: indexByteOffset,
	})
	return nil
}

func (d *fakeDevice) DrawIndexedBaseVertex(topology gpucore.Topology, indexCount, maxVertexIndex uint32, indexByteOffset int, baseVertex int) error {
	d.draws = append(d.draws, fakeDraw{
		topology:        topology,
		indexCount:      indexCount,
		maxVertexIndex:  maxVertexIndex,
		indexByteOffset: indexByteOffset,
		baseVertex:      baseVertex,
		baseVertexForm:  true,
	})
	return nil
}

func (d *fakeDevice) ResetBindings() { d.resetCalls++ }

// scriptedSource is an IndexSource returning fixed counts.
type scriptedSource struct {
	dst        []byte
	base       uint32
	indices    uint32
	verts      uint32
	startCalls int
}

func (s *scriptedSource) Start(dst []byte, baseVertex uint32) {
	s.dst = dst
	s.base = baseVertex
	s.startCalls++
}

func (s *scriptedSource) IndexLen() uint32 { return s.indices }
func (s *scriptedSource) NumVerts() uint32 { return s.verts }

// countingShaderCache records every bind and upload.
type countingShaderCache struct {
	variants []ShaderVariant
	masks    []uint32
	uploads  int
	setErr   error
}

func (c *countingShaderCache) SetShader(variant ShaderVariant, components uint32) error {
	c.variants = append(c.variants, variant)
	c.masks = append(c.masks, components)
	return c.setErr
}

func (c *countingShaderCache) UploadConstants() error {
	c.uploads++
	return nil
}

type fakeFormat struct {
	stride     uint32
	components uint32
	layout     gpucore.VertexLayoutID
	setupCalls int
}

func (f *fakeFormat) Stride() uint32                 { return f.stride }
func (f *fakeFormat) Components() uint32             { return f.components }
func (f *fakeFormat) Layout() gpucore.VertexLayoutID { return f.layout }
func (f *fakeFormat) SetupPointers()                 { f.setupCalls++ }

type fixedBlend bool

func (b fixedBlend) BlendEnabled() bool { return bool(b) }

// newTestManager wires a manager over small buffers so wrap behavior is
// reachable without streaming megabytes.
func newTestManager(t *testing.T, dev *fakeDevice, gen IndexSource, opts ...Option) (*VertexManager, *countingShaderCache) {
	t.Helper()
	shaders := &countingShaderCache{}
	opts = append([]Option{
		WithBufferSizes(4096, 2048),
		WithWindowBudgets(512, 256),
	}, opts...)
	vm, err := NewVertexManager(dev, shaders, gen, opts...)
	if err != nil {
		t.Fatalf("NewVertexManager: %v", err)
	}
	return vm, shaders
}

// ---- Tests ----

func TestFlushSinglePass(t *testing.T) {
	dev := newFakeDevice(gpucore.Caps{BaseVertex: true, PrimitiveRestart: true})
	gen := &scriptedSource{indices: 6, verts: 4}
	vm, shaders := newTestManager(t, dev, gen)
	vm.SetFormat(&fakeFormat{stride: 32, components: 0x3, layout: 7})
	vm.SetPrimitive(PrimitiveTriangles)

	buf, err := vm.ResetFrame(32)
	if err != nil {
		t.Fatalf("ResetFrame: %v", err)
	}
	if len(buf) != 512 {
		t.Fatalf("vertex window size = %d, want 512", len(buf))
	}
	if gen.startCalls != 1 {
		t.Fatalf("Start calls = %d, want 1", gen.startCalls)
	}
	if gen.base != 0 {
		t.Errorf("index base = %d, want 0 (base-vertex device)", gen.base)
	}

	if err := vm.Flush(false); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	// Commits must match the counts exactly: 4 verts * 32 B and 6 * 2 B.
	if len(dev.flushes) != 2 {
		t.Fatalf("flush calls = %d, want 2", len(dev.flushes))
	}
	if dev.flushes[0].size != 128 {
		t.Errorf("vertex commit = %d bytes, want 128", dev.flushes[0].size)
	}
	if dev.flushes[1].size != 12 {
		t.Errorf("index commit = %d bytes, want 12", dev.flushes[1].size)
	}

	if len(dev.draws) != 1 {
		t.Fatalf("draw calls = %d, want 1", len(dev.draws))
	}
	draw := dev.draws[0]
	if !draw.baseVertexForm {
		t.Error("expected base-vertex draw on a base-vertex device")
	}
	if draw.topology != gpucore.TopologyTriangleStrip {
		t.Errorf("topology = %v, want TriangleStrip (restart device)", draw.topology)
	}
	if draw.indexCount != 6 || draw.maxVertexIndex != 4 {
		t.Errorf("draw counts = (%d, %d), want (6, 4)", draw.indexCount, draw.maxVertexIndex)
	}
	if draw.baseVertex != 0 || draw.indexByteOffset != 0 {
		t.Errorf("draw offsets = (base %d, index %d), want (0, 0)", draw.baseVertex, draw.indexByteOffset)
	}

	if len(shaders.variants) != 1 || shaders.variants[0] != VariantColorOnly {
		t.Errorf("shader variants = %v, want [ColorOnly]", shaders.variants)
	}
	if shaders.uploads != 1 {
		t.Errorf("constant uploads = %d, want 1", shaders.uploads)
	}

	// No mask or blend churn on a plain single-pass flush.
	if len(dev.masks) != 0 || len(dev.blends) != 0 {
		t.Errorf("unexpected state changes: masks %v blends %v", dev.masks, dev.blends)
	}
}

func TestFlushAdvancesWindows(t *testing.T) {
	dev := newFakeDevice(gpucore.Caps{BaseVertex: true})
	gen := &scriptedSource{indices: 6, verts: 4}
	vm, _ := newTestManager(t, dev, gen)
	vm.SetFormat(&fakeFormat{stride: 32, layout: 1})
	vm.SetPrimitive(PrimitiveTriangles)

	if _, err := vm.ResetFrame(32); err != nil {
		t.Fatalf("ResetFrame: %v", err)
	}
	if err := vm.Flush(false); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if _, err := vm.ResetFrame(32); err != nil {
		t.Fatalf("second ResetFrame: %v", err)
	}
	if err := vm.Flush(false); err != nil {
		t.Fatalf("second Flush: %v", err)
	}

	// First window committed 128 vertex bytes, so the second starts at
	// element 128/32 = 4 and its indices at byte 12.
	if len(dev.draws) != 2 {
		t.Fatalf("draw calls = %d, want 2", len(dev.draws))
	}
	second := dev.draws[1]
	if second.baseVertex != 4 {
		t.Errorf("second draw base vertex = %d, want 4", second.baseVertex)
	}
	if second.indexByteOffset != 12 {
		t.Errorf("second draw index offset = %d, want 12", second.indexByteOffset)
	}
}

func TestFlushDstAlphaTwoPass(t *testing.T) {
	dev := newFakeDevice(gpucore.Caps{BaseVertex: true})
	gen := &scriptedSource{indices: 6, verts: 4}
	vm, shaders := newTestManager(t, dev, gen, WithBlendState(fixedBlend(true)))
	vm.SetFormat(&fakeFormat{stride: 16, layout: 1})
	vm.SetPrimitive(PrimitiveTriangles)

	if _, err := vm.ResetFrame(16); err != nil {
		t.Fatalf("ResetFrame: %v", err)
	}
	if err := vm.Flush(true); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if len(dev.draws) != 2 {
		t.Fatalf("draw calls = %d, want 2 (color pass + alpha pass)", len(dev.draws))
	}
	if dev.draws[0] != dev.draws[1] {
		t.Errorf("alpha pass draw differs from color pass: %+v vs %+v", dev.draws[0], dev.draws[1])
	}

	wantVariants := []ShaderVariant{VariantColorOnly, VariantAlphaOnly}
	if len(shaders.variants) != 2 || shaders.variants[0] != wantVariants[0] || shaders.variants[1] != wantVariants[1] {
		t.Errorf("shader variants = %v, want %v", shaders.variants, wantVariants)
	}

	// Alpha pass: mask restricted to alpha and blending off, then both
	// restored (blend to the active blend mode, here enabled).
	wantMasks := []gpucore.ColorWriteMask{gpucore.ColorWriteMaskAlpha, gpucore.ColorWriteMaskAll}
	if len(dev.masks) != 2 || dev.masks[0] != wantMasks[0] || dev.masks[1] != wantMasks[1] {
		t.Errorf("color masks = %v, want %v", dev.masks, wantMasks)
	}
	if len(dev.blends) != 2 || dev.blends[0] != false || dev.blends[1] != true {
		t.Errorf("blend toggles = %v, want [false true]", dev.blends)
	}
}

func TestFlushDstAlphaDualSource(t *testing.T) {
	dev := newFakeDevice(gpucore.Caps{BaseVertex: true, DualSourceBlend: true})
	gen := &scriptedSource{indices: 3, verts: 3}
	vm, shaders := newTestManager(t, dev, gen)
	vm.SetFormat(&fakeFormat{stride: 16, layout: 1})
	vm.SetPrimitive(PrimitiveTriangles)

	if _, err := vm.ResetFrame(16); err != nil {
		t.Fatalf("ResetFrame: %v", err)
	}
	if err := vm.Flush(true); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if len(dev.draws) != 1 {
		t.Fatalf("draw calls = %d, want 1 (dual-source single pass)", len(dev.draws))
	}
	if len(shaders.variants) != 1 || shaders.variants[0] != VariantDualSourceBlend {
		t.Errorf("shader variants = %v, want [DualSourceBlend]", shaders.variants)
	}
	if len(dev.masks) != 0 || len(dev.blends) != 0 {
		t.Errorf("dual-source pass must not touch mask/blend: masks %v blends %v", dev.masks, dev.blends)
	}
}

func TestFlushWithoutResetIgnored(t *testing.T) {
	dev := newFakeDevice(gpucore.Caps{BaseVertex: true})
	gen := &scriptedSource{}
	vm, _ := newTestManager(t, dev, gen)
	vm.SetFormat(&fakeFormat{stride: 16, layout: 1})

	if err := vm.Flush(false); err != nil {
		t.Fatalf("Flush without ResetFrame: %v", err)
	}
	if len(dev.draws) != 0 {
		t.Errorf("draw calls = %d, want 0", len(dev.draws))
	}

	// A flushed cycle is closed; flushing again is equally ignored.
	if _, err := vm.ResetFrame(16); err != nil {
		t.Fatalf("ResetFrame: %v", err)
	}
	if err := vm.Flush(false); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := vm.Flush(false); err != nil {
		t.Fatalf("double Flush: %v", err)
	}
	if len(dev.draws) != 1 {
		t.Errorf("draw calls = %d, want 1", len(dev.draws))
	}
}

func TestFlushNilFormat(t *testing.T) {
	dev := newFakeDevice(gpucore.Caps{BaseVertex: true})
	gen := &scriptedSource{indices: 3, verts: 3}
	vm, _ := newTestManager(t, dev, gen)

	if _, err := vm.ResetFrame(16); err != nil {
		t.Fatalf("ResetFrame: %v", err)
	}
	if err := vm.Flush(false); err != nil {
		t.Fatalf("Flush with nil format: %v", err)
	}
	if len(dev.draws) != 0 {
		t.Errorf("draw calls = %d, want 0", len(dev.draws))
	}
	// Nothing was committed; the next cycle discards the stale window.
	if len(dev.flushes) != 0 {
		t.Errorf("commits = %v, want none", dev.flushes)
	}
	if _, err := vm.ResetFrame(16); err != nil {
		t.Fatalf("ResetFrame after skipped flush: %v", err)
	}
}

func TestFlushZeroCounts(t *testing.T) {
	dev := newFakeDevice(gpucore.Caps{BaseVertex: true})
	gen := &scriptedSource{indices: 0, verts: 0}
	vm, _ := newTestManager(t, dev, gen)
	vm.SetFormat(&fakeFormat{stride: 16, layout: 1})
	vm.SetPrimitive(PrimitiveTriangles)

	if _, err := vm.ResetFrame(16); err != nil {
		t.Fatalf("ResetFrame: %v", err)
	}
	if err := vm.Flush(false); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	// The zero-count draw still reaches the device; devices treat it as a
	// no-op. Both windows commit zero bytes.
	if len(dev.draws) != 1 || dev.draws[0].indexCount != 0 {
		t.Fatalf("draws = %+v, want one zero-count draw", dev.draws)
	}
	if dev.flushes[0].size != 0 || dev.flushes[1].size != 0 {
		t.Errorf("commits = %+v, want zero bytes", dev.flushes)
	}
}

func TestLayoutBindMemoized(t *testing.T) {
	dev := newFakeDevice(gpucore.Caps{BaseVertex: true})
	gen := &scriptedSource{indices: 3, verts: 3}
	vm, _ := newTestManager(t, dev, gen)
	format := &fakeFormat{stride: 16, layout: 42}
	vm.SetFormat(format)
	vm.SetPrimitive(PrimitiveTriangles)

	for i := 0; i < 3; i++ {
		if _, err := vm.ResetFrame(16); err != nil {
			t.Fatalf("ResetFrame %d: %v", i, err)
		}
		if err := vm.Flush(false); err != nil {
			t.Fatalf("Flush %d: %v", i, err)
		}
	}
	if len(dev.layouts) != 1 || dev.layouts[0] != 42 {
		t.Errorf("layout binds = %v, want exactly one bind of 42", dev.layouts)
	}
	if format.setupCalls != 3 {
		t.Errorf("pointer setups = %d, want one per flush", format.setupCalls)
	}

	other := &fakeFormat{stride: 16, layout: 43}
	vm.SetFormat(other)
	if _, err := vm.ResetFrame(16); err != nil {
		t.Fatalf("ResetFrame: %v", err)
	}
	if err := vm.Flush(false); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(dev.layouts) != 2 || dev.layouts[1] != 43 {
		t.Errorf("layout binds = %v, want rebind on layout change", dev.layouts)
	}
}

func TestAbsoluteIndicesWithoutBaseVertex(t *testing.T) {
	dev := newFakeDevice(gpucore.Caps{})
	gen := &scriptedSource{indices: 6, verts: 4}
	vm, _ := newTestManager(t, dev, gen)
	vm.SetFormat(&fakeFormat{stride: 32, layout: 1})
	vm.SetPrimitive(PrimitiveTriangles)

	// Advance the vertex cursor so the second window has a nonzero base.
	if _, err := vm.ResetFrame(32); err != nil {
		t.Fatalf("ResetFrame: %v", err)
	}
	if err := vm.Flush(false); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if _, err := vm.ResetFrame(32); err != nil {
		t.Fatalf("second ResetFrame: %v", err)
	}

	// Without base-vertex draws the source must write absolute indices.
	if gen.base != 4 {
		t.Errorf("index base = %d, want 4", gen.base)
	}
	if vm.BaseVertex() != 4 {
		t.Errorf("BaseVertex() = %d, want 4", vm.BaseVertex())
	}

	if err := vm.Flush(false); err != nil {
		t.Fatalf("second Flush: %v", err)
	}
	second := dev.draws[1]
	if second.baseVertexForm {
		t.Error("device without base-vertex support got a base-vertex draw")
	}
	if second.topology != gpucore.TopologyTriangleList {
		t.Errorf("topology = %v, want TriangleList (no restart)", second.topology)
	}
}

func TestPrimitiveTopologies(t *testing.T) {
	tests := []struct {
		prim    Primitive
		restart bool
		want    gpucore.Topology
	}{
		{PrimitivePoints, true, gpucore.TopologyPointList},
		{PrimitivePoints, false, gpucore.TopologyPointList},
		{PrimitiveLines, true, gpucore.TopologyLineList},
		{PrimitiveLines, false, gpucore.TopologyLineList},
		{PrimitiveTriangles, true, gpucore.TopologyTriangleStrip},
		{PrimitiveTriangles, false, gpucore.TopologyTriangleList},
	}
	for _, tt := range tests {
		if got := deviceTopology(tt.prim, tt.restart); got != tt.want {
			t.Errorf("deviceTopology(%v, restart=%v) = %v, want %v", tt.prim, tt.restart, got, tt.want)
		}
	}
}

func TestResetFrameZeroStride(t *testing.T) {
	dev := newFakeDevice(gpucore.Caps{BaseVertex: true})
	vm, _ := newTestManager(t, dev, &scriptedSource{})
	if _, err := vm.ResetFrame(0); err == nil {
		t.Fatal("ResetFrame(0) did not fail")
	}
}

func TestBudgetValidation(t *testing.T) {
	dev := newFakeDevice(gpucore.Caps{})
	_, err := NewVertexManager(dev, &countingShaderCache{}, &scriptedSource{},
		WithBufferSizes(1024, 1024),
		WithWindowBudgets(2048, 256))
	if !errors.Is(err, ErrBudgetExceedsCapacity) {
		t.Fatalf("err = %v, want ErrBudgetExceedsCapacity", err)
	}
}

func TestStatsCollection(t *testing.T) {
	dev := newFakeDevice(gpucore.Caps{BaseVertex: true})
	gen := &scriptedSource{indices: 6, verts: 4}
	var stats Stats
	vm, _ := newTestManager(t, dev, gen, WithStats(&stats))
	vm.SetFormat(&fakeFormat{stride: 32, layout: 1})
	vm.SetPrimitive(PrimitiveTriangles)

	if _, err := vm.ResetFrame(32); err != nil {
		t.Fatalf("ResetFrame: %v", err)
	}
	if err := vm.Flush(true); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	snap := stats.Snapshot()
	if snap.VertexBytesStreamed != 128 {
		t.Errorf("vertex bytes = %d, want 128", snap.VertexBytesStreamed)
	}
	if snap.IndexBytesStreamed != 12 {
		t.Errorf("index bytes = %d, want 12", snap.IndexBytesStreamed)
	}
	if snap.IndexedDrawCalls != 2 {
		t.Errorf("draw calls = %d, want 2 (two-pass dst alpha)", snap.IndexedDrawCalls)
	}
}

func TestCacheInvalidatorRuns(t *testing.T) {
	dev := newFakeDevice(gpucore.Caps{BaseVertex: true})
	gen := &scriptedSource{indices: 3, verts: 3}
	calls := 0
	vm, _ := newTestManager(t, dev, gen, WithCacheInvalidator(func() { calls++ }))
	vm.SetFormat(&fakeFormat{stride: 16, layout: 1})

	if _, err := vm.ResetFrame(16); err != nil {
		t.Fatalf("ResetFrame: %v", err)
	}
	if err := vm.Flush(false); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if calls != 1 {
		t.Errorf("invalidator calls = %d, want 1", calls)
	}
}

func TestClose(t *testing.T) {
	dev := newFakeDevice(gpucore.Caps{BaseVertex: true})
	vm, _ := newTestManager(t, dev, &scriptedSource{})

	if _, err := vm.ResetFrame(16); err != nil {
		t.Fatalf("ResetFrame: %v", err)
	}
	vm.Close()

	if len(dev.destroyed) != 2 {
		t.Errorf("destroyed buffers = %d, want 2", len(dev.destroyed))
	}
	if dev.resetCalls != 1 {
		t.Errorf("ResetBindings calls = %d, want 1", dev.resetCalls)
	}
	last := dev.bindings[len(dev.bindings)-1]
	if last.vertex != gpucore.InvalidID || last.index != gpucore.InvalidID {
		t.Errorf("final binding = %+v, want unbound", last)
	}
}

func TestShaderBindFailureCollected(t *testing.T) {
	dev := newFakeDevice(gpucore.Caps{BaseVertex: true})
	gen := &scriptedSource{indices: 3, verts: 3}
	shaders := &countingShaderCache{setErr: errors.New("compile failed")}
	vm, err := NewVertexManager(dev, shaders, gen,
		WithBufferSizes(4096, 2048), WithWindowBudgets(512, 256))
	if err != nil {
		t.Fatalf("NewVertexManager: %v", err)
	}
	vm.SetFormat(&fakeFormat{stride: 16, layout: 1})

	if _, err := vm.ResetFrame(16); err != nil {
		t.Fatalf("ResetFrame: %v", err)
	}
	err = vm.Flush(false)
	if err == nil {
		t.Fatal("Flush swallowed the shader error")
	}
	// Best-effort: the draw is still issued so buffer state stays coherent.
	if len(dev.draws) != 1 {
		t.Errorf("draw calls = %d, want 1", len(dev.draws))
	}
}
