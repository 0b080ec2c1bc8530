package wgpu

import (
	"fmt"
	"image"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/streamdraw/gpucore"
)

// defaultTargetFormat is the offscreen render target format when no host
// surface format is known.
const defaultTargetFormat = gputypes.TextureFormatBGRA8Unorm

// uniformSize is the byte size of the stream uniforms (one mat4x4<f32>).
const uniformSize = 64

// halBuffer pairs a device buffer with its CPU staging memory. Mapped writes
// land in staging; FlushRange pushes the written span through the queue.
type halBuffer struct {
	buf     hal.Buffer
	staging []byte
	usage   gpucore.BufferUsage
}

// Device implements gpucore.Device on the gogpu HAL.
//
// Draws are recorded into a render pass over an offscreen target. The pass
// is opened lazily on the first draw and closed whenever a fence must be
// submitted or the target is read back; subsequent draws reopen it with a
// load op that preserves the existing contents.
type Device struct {
	hal          hal.Device
	queue        hal.Queue
	caps         gpucore.Caps
	targetFormat gputypes.TextureFormat

	buffers map[gpucore.BufferID]*halBuffer
	nextBuf uint64

	// Timeline fence. Every submit signals the next value; FenceID is the
	// value a wait blocks on.
	fence      hal.Fence
	fenceValue uint64

	shaders   *ShaderCache
	pipelines *pipelineCache

	uniformBuf    hal.Buffer
	uniformLayout hal.BindGroupLayout
	pipeLayout    hal.PipelineLayout
	bindGroup     hal.BindGroup

	formats    map[gpucore.VertexLayoutID]*Format
	nextLayout uint64

	// Bound state, keyed into the pipeline cache at draw time.
	vertexBuf gpucore.BufferID
	indexBuf  gpucore.BufferID
	layout    gpucore.VertexLayoutID
	colorMask gpucore.ColorWriteMask
	blend     bool
	program   program

	// Frame state.
	width, height uint32
	colorTex      hal.Texture
	colorView     hal.TextureView
	encoder       hal.CommandEncoder
	rp            hal.RenderPassEncoder
	clearPending  bool
}

func newDevice(device hal.Device, queue hal.Queue, targetFormat gputypes.TextureFormat) (*Device, error) {
	d := &Device{
		hal:          device,
		queue:        queue,
		targetFormat: targetFormat,
		caps: gpucore.Caps{
			BaseVertex:       true,
			PrimitiveRestart: true,
			// The HAL exposes no second-source blend factors.
			DualSourceBlend: false,
		},
		buffers:   make(map[gpucore.BufferID]*halBuffer),
		formats:   make(map[gpucore.VertexLayoutID]*Format),
		colorMask: gpucore.ColorWriteMaskAll,
	}

	fence, err := device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("create fence: %w", err)
	}
	d.fence = fence

	uniformBuf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "stream_uniforms",
		Size:  uniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		d.destroy()
		return nil, fmt.Errorf("create uniform buffer: %w", err)
	}
	d.uniformBuf = uniformBuf

	uniformLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "stream_uniform_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		d.destroy()
		return nil, fmt.Errorf("create uniform layout: %w", err)
	}
	d.uniformLayout = uniformLayout

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "stream_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{uniformLayout},
	})
	if err != nil {
		d.destroy()
		return nil, fmt.Errorf("create pipeline layout: %w", err)
	}
	d.pipeLayout = pipeLayout

	bindGroup, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "stream_bind",
		Layout: uniformLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: uniformBuf.NativeHandle(), Offset: 0, Size: uniformSize,
			}},
		},
	})
	if err != nil {
		d.destroy()
		return nil, fmt.Errorf("create bind group: %w", err)
	}
	d.bindGroup = bindGroup

	d.shaders = newShaderCache(d)
	d.pipelines = newPipelineCache(d)
	return d, nil
}

// Shaders returns the device's shader cache, the streamdraw.ShaderCache
// collaborator for this backend.
func (d *Device) Shaders() *ShaderCache { return d.shaders }

// RegisterFormat registers a vertex format with the device and assigns its
// layout handle. Formats must be registered before their first draw.
func (d *Device) RegisterFormat(f *Format) {
	d.nextLayout++
	f.layout = gpucore.VertexLayoutID(d.nextLayout)
	f.dev = d
	d.formats[f.layout] = f
}

// BeginFrame sizes the offscreen target and schedules a clear. The previous
// frame's contents are discarded.
func (d *Device) BeginFrame(width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("wgpu: invalid target size %dx%d", width, height)
	}
	if err := d.ensureTarget(width, height); err != nil {
		return err
	}
	d.clearPending = true
	return nil
}

// EndFrame submits all recorded draws and blocks until the device has
// consumed them.
func (d *Device) EndFrame() error {
	id := d.InsertFence()
	return d.WaitFence(id, 5*time.Second)
}

// Caps returns the device capability flags.
func (d *Device) Caps() gpucore.Caps { return d.caps }

// CreateBuffer creates a device-local buffer with CPU staging memory.
func (d *Device) CreateBuffer(size int, usage gpucore.BufferUsage) (gpucore.BufferID, error) {
	if size <= 0 {
		return gpucore.InvalidID, fmt.Errorf("wgpu: invalid buffer size %d", size)
	}
	var halUsage gputypes.BufferUsage = gputypes.BufferUsageCopyDst
	var label string
	switch {
	case usage&gpucore.BufferUsageVertex != 0:
		halUsage |= gputypes.BufferUsageVertex
		label = "stream_vertex"
	case usage&gpucore.BufferUsageIndex != 0:
		halUsage |= gputypes.BufferUsageIndex
		label = "stream_index"
	default:
		return gpucore.InvalidID, fmt.Errorf("wgpu: unsupported buffer usage %#x", usage)
	}

	buf, err := d.hal.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(size),
		Usage: halUsage,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpu: create buffer: %w", err)
	}

	d.nextBuf++
	id := gpucore.BufferID(d.nextBuf)
	d.buffers[id] = &halBuffer{
		buf:     buf,
		staging: make([]byte, size),
		usage:   usage,
	}
	return id, nil
}

// DestroyBuffer releases the device buffer and its staging memory.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	b, ok := d.buffers[id]
	if !ok {
		return
	}
	d.hal.DestroyBuffer(b.buf)
	delete(d.buffers, id)
}

// MapRange exposes a span of the staging memory for writing.
func (d *Device) MapRange(id gpucore.BufferID, offset, size int) ([]byte, error) {
	b, ok := d.buffers[id]
	if !ok {
		return nil, fmt.Errorf("wgpu: unknown buffer %d", id)
	}
	if offset < 0 || size < 0 || offset+size > len(b.staging) {
		return nil, fmt.Errorf("wgpu: map range [%d, %d) out of bounds (%d)", offset, offset+size, len(b.staging))
	}
	return b.staging[offset : offset+size], nil
}

// FlushRange pushes the written span to the device buffer through the queue.
// Queue writes order before subsequently submitted draws.
func (d *Device) FlushRange(id gpucore.BufferID, offset, size int) error {
	b, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("wgpu: unknown buffer %d", id)
	}
	if offset < 0 || size < 0 || offset+size > len(b.staging) {
		return fmt.Errorf("wgpu: flush range [%d, %d) out of bounds (%d)", offset, offset+size, len(b.staging))
	}
	if size == 0 {
		return nil
	}
	d.queue.WriteBuffer(b.buf, uint64(offset), b.staging[offset:offset+size])
	return nil
}

// InsertFence submits all recorded work signaling the next timeline value.
// The returned id is that value.
func (d *Device) InsertFence() gpucore.FenceID {
	d.fenceValue++
	if err := d.submit(d.fenceValue); err != nil {
		slogger().Error("wgpu: fence submit failed", "value", d.fenceValue, "error", err)
	}
	return gpucore.FenceID(d.fenceValue)
}

// WaitFence blocks until the timeline reaches the fence value.
func (d *Device) WaitFence(id gpucore.FenceID, timeout time.Duration) error {
	ok, err := d.hal.Wait(d.fence, uint64(id), timeout)
	if err != nil {
		return fmt.Errorf("wgpu: fence wait: %w", err)
	}
	if !ok {
		return fmt.Errorf("wgpu: fence %d not signaled within %v", id, timeout)
	}
	return nil
}

// BindVertexLayout selects the active vertex layout.
func (d *Device) BindVertexLayout(id gpucore.VertexLayoutID) {
	d.layout = id
}

// BindStreamBuffers selects the buffers draws read from.
func (d *Device) BindStreamBuffers(vertex, index gpucore.BufferID) {
	d.vertexBuf = vertex
	d.indexBuf = index
}

// SetColorMask restricts the channels subsequent draws write.
func (d *Device) SetColorMask(mask gpucore.ColorWriteMask) {
	d.colorMask = mask
}

// SetBlendEnabled toggles premultiplied-alpha blending for subsequent draws.
func (d *Device) SetBlendEnabled(enabled bool) {
	d.blend = enabled
}

// DrawIndexed records an indexed draw with absolute indices.
func (d *Device) DrawIndexed(topology gpucore.Topology, indexCount, maxVertexIndex uint32, indexByteOffset int) error {
	return d.draw(topology, indexCount, maxVertexIndex, indexByteOffset, 0)
}

// DrawIndexedBaseVertex records an indexed draw with window-relative indices.
func (d *Device) DrawIndexedBaseVertex(topology gpucore.Topology, indexCount, maxVertexIndex uint32, indexByteOffset int, baseVertex int) error {
	return d.draw(topology, indexCount, maxVertexIndex, indexByteOffset, baseVertex)
}

func (d *Device) draw(topology gpucore.Topology, indexCount, _ uint32, indexByteOffset int, baseVertex int) error {
	if indexCount == 0 {
		return nil
	}
	vb, ok := d.buffers[d.vertexBuf]
	if !ok {
		return fmt.Errorf("wgpu: no vertex buffer bound")
	}
	ib, ok := d.buffers[d.indexBuf]
	if !ok {
		return fmt.Errorf("wgpu: no index buffer bound")
	}
	format, ok := d.formats[d.layout]
	if !ok {
		return fmt.Errorf("wgpu: no vertex layout bound")
	}

	pipeline, err := d.pipelines.get(pipelineKey{
		topology: topology,
		layout:   d.layout,
		program:  d.program,
		blend:    d.blend,
		mask:     d.colorMask,
	}, format)
	if err != nil {
		return err
	}

	if err := d.ensurePass(); err != nil {
		return err
	}

	d.rp.SetPipeline(pipeline)
	d.rp.SetBindGroup(0, d.bindGroup, nil)
	d.rp.SetVertexBuffer(0, vb.buf, 0)
	d.rp.SetIndexBuffer(ib.buf, gputypes.IndexFormatUint16, 0)
	firstIndex := uint32(indexByteOffset / gpucore.IndexSize)
	d.rp.DrawIndexed(indexCount, 1, firstIndex, int32(baseVertex), 0)
	return nil
}

// ResetBindings restores default bindings.
func (d *Device) ResetBindings() {
	d.vertexBuf = gpucore.InvalidID
	d.indexBuf = gpucore.InvalidID
	d.layout = gpucore.InvalidID
}

// ReadTarget submits outstanding work, copies the target into a staging
// buffer, and returns its contents. Rows are converted from BGRA to RGBA.
func (d *Device) ReadTarget() (image.Image, error) {
	if d.colorTex == nil {
		return nil, fmt.Errorf("wgpu: no render target")
	}
	if err := d.endPass(); err != nil {
		return nil, err
	}

	w, h := d.width, d.height
	bytesPerRow := w * 4
	// WebGPU (and DX12) requires BytesPerRow aligned to 256 bytes.
	const copyPitchAlignment = 256
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)

	stagingBuf, err := d.hal.CreateBuffer(&hal.BufferDescriptor{
		Label: "stream_readback",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create readback buffer: %w", err)
	}
	defer d.hal.DestroyBuffer(stagingBuf)

	encoder, err := d.hal.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "stream_readback_encoder",
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create readback encoder: %w", err)
	}
	if err := encoder.BeginEncoding("stream_readback"); err != nil {
		return nil, fmt.Errorf("wgpu: begin readback encoding: %w", err)
	}

	// The target sits in attachment layout; the copy needs transfer source.
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: d.colorTex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(d.colorTex, stagingBuf, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: d.colorTex, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: d.colorTex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("wgpu: end readback encoding: %w", err)
	}
	defer d.hal.FreeCommandBuffer(cmdBuf)

	d.fenceValue++
	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, d.fence, d.fenceValue); err != nil {
		return nil, fmt.Errorf("wgpu: submit readback: %w", err)
	}
	fenceOK, err := d.hal.Wait(d.fence, d.fenceValue, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("wgpu: wait for readback: %w", err)
	}
	if !fenceOK {
		return nil, fmt.Errorf("wgpu: readback fence not signaled")
	}

	readback := make([]byte, stagingSize)
	if err := d.queue.ReadBuffer(stagingBuf, 0, readback); err != nil {
		return nil, fmt.Errorf("wgpu: readback: %w", err)
	}

	swizzle := d.targetFormat == gputypes.TextureFormatBGRA8Unorm
	img := image.NewNRGBA(image.Rect(0, 0, int(w), int(h)))
	for row := uint32(0); row < h; row++ {
		src := readback[row*alignedBytesPerRow:]
		dst := img.Pix[int(row)*img.Stride:]
		if !swizzle {
			copy(dst[:bytesPerRow], src[:bytesPerRow])
			continue
		}
		for x := uint32(0); x < w; x++ {
			dst[x*4+0] = src[x*4+2]
			dst[x*4+1] = src[x*4+1]
			dst[x*4+2] = src[x*4+0]
			dst[x*4+3] = src[x*4+3]
		}
	}
	return img, nil
}

// ensureTarget (re)creates the offscreen color texture at the given size.
func (d *Device) ensureTarget(w, h uint32) error {
	if d.width == w && d.height == h && d.colorTex != nil {
		return nil
	}
	if err := d.endPass(); err != nil {
		return err
	}
	d.destroyTarget()

	tex, err := d.hal.CreateTexture(&hal.TextureDescriptor{
		Label:         "stream_target",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        d.targetFormat,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create target texture: %w", err)
	}
	d.colorTex = tex

	view, err := d.hal.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: "stream_target_view",
	})
	if err != nil {
		d.destroyTarget()
		return fmt.Errorf("wgpu: create target view: %w", err)
	}
	d.colorView = view
	d.width, d.height = w, h
	return nil
}

// ensurePass opens the render pass if none is recording. The first pass
// after BeginFrame clears the target; reopened passes preserve it.
func (d *Device) ensurePass() error {
	if d.rp != nil {
		return nil
	}
	if d.colorTex == nil {
		return fmt.Errorf("wgpu: no render target, call BeginFrame first")
	}

	encoder, err := d.hal.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "stream_encoder",
	})
	if err != nil {
		return fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("stream_pass"); err != nil {
		return fmt.Errorf("wgpu: begin encoding: %w", err)
	}
	d.encoder = encoder

	loadOp := gputypes.LoadOpLoad
	if d.clearPending {
		loadOp = gputypes.LoadOpClear
		d.clearPending = false
	}
	d.rp = encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "stream_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       d.colorView,
			LoadOp:     loadOp,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 0},
		}},
	})
	return nil
}

// endPass closes the recording pass, if any, and submits it without a fence.
func (d *Device) endPass() error {
	if d.encoder == nil {
		return nil
	}
	return d.submit(0)
}

// submit closes the recording pass and submits it, signaling fenceValue when
// nonzero. With no recording and a nonzero value it submits a bare signal.
func (d *Device) submit(fenceValue uint64) error {
	var cmds []hal.CommandBuffer
	if d.encoder != nil {
		if d.rp != nil {
			d.rp.End()
			d.rp = nil
		}
		cmdBuf, err := d.encoder.EndEncoding()
		if err != nil {
			d.encoder = nil
			return fmt.Errorf("wgpu: end encoding: %w", err)
		}
		d.encoder = nil
		defer d.hal.FreeCommandBuffer(cmdBuf)
		cmds = []hal.CommandBuffer{cmdBuf}
	} else if fenceValue == 0 {
		return nil
	}

	var fence hal.Fence
	if fenceValue != 0 {
		fence = d.fence
	}
	if err := d.queue.Submit(cmds, fence, fenceValue); err != nil {
		return fmt.Errorf("wgpu: submit: %w", err)
	}
	return nil
}

func (d *Device) destroyTarget() {
	if d.colorView != nil {
		d.hal.DestroyTextureView(d.colorView)
		d.colorView = nil
	}
	if d.colorTex != nil {
		d.hal.DestroyTexture(d.colorTex)
		d.colorTex = nil
	}
	d.width, d.height = 0, 0
}

// destroy releases everything in reverse creation order.
func (d *Device) destroy() {
	if d.rp != nil {
		d.rp.End()
		d.rp = nil
	}
	if d.encoder != nil {
		d.encoder.DiscardEncoding()
		d.encoder = nil
	}
	if d.pipelines != nil {
		d.pipelines.destroy()
		d.pipelines = nil
	}
	if d.shaders != nil {
		d.shaders.destroy()
		d.shaders = nil
	}
	d.destroyTarget()
	for id, b := range d.buffers {
		d.hal.DestroyBuffer(b.buf)
		delete(d.buffers, id)
	}
	if d.bindGroup != nil {
		d.hal.DestroyBindGroup(d.bindGroup)
		d.bindGroup = nil
	}
	if d.pipeLayout != nil {
		d.hal.DestroyPipelineLayout(d.pipeLayout)
		d.pipeLayout = nil
	}
	if d.uniformLayout != nil {
		d.hal.DestroyBindGroupLayout(d.uniformLayout)
		d.uniformLayout = nil
	}
	if d.uniformBuf != nil {
		d.hal.DestroyBuffer(d.uniformBuf)
		d.uniformBuf = nil
	}
	if d.fence != nil {
		d.hal.DestroyFence(d.fence)
		d.fence = nil
	}
}

var _ gpucore.Device = (*Device)(nil)
var _ gpucore.TargetReader = (*Device)(nil)
