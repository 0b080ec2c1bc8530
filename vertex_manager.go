package streamdraw

import (
	"errors"
	"fmt"

	"github.com/gogpu/streamdraw/gpucore"
)

// VertexManager is the engine's flush controller. It cycles between
// accumulating decoded geometry into stream buffer windows and flushing the
// batch as one or two draw calls, selecting the shading/blending strategy
// from device capabilities.
//
// VertexManager is single-threaded: all methods must run on the goroutine
// that owns the device context.
type VertexManager struct {
	dev     gpucore.Device
	shaders ShaderCache
	buffers *drawBuffers
	emitter drawEmitter
	cfg     config
	dump    dumper

	// Frame-local state.
	format     VertexFormat
	prim       Primitive
	lastLayout gpucore.VertexLayoutID

	// flushID is the monotonically increasing diagnostic sequence number
	// advanced by every flush; it names debug dump files.
	flushID uint64
}

// NewVertexManager creates the engine against a device, a shader cache, and
// an index source. It creates both stream buffers; a window budget that does
// not fit its buffer fails construction with ErrBudgetExceedsCapacity.
func NewVertexManager(dev gpucore.Device, shaders ShaderCache, gen IndexSource, opts ...Option) (*VertexManager, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	buffers, err := newDrawBuffers(dev, gen, &cfg)
	if err != nil {
		return nil, fmt.Errorf("streamdraw: %w", err)
	}
	vm := &VertexManager{
		dev:     dev,
		shaders: shaders,
		buffers: buffers,
		emitter: drawEmitter{dev: dev, stats: cfg.stats},
		cfg:     cfg,
		dump:    dumper{dir: cfg.dumpDir, shaders: cfg.dumpShaders, targets: cfg.dumpTargets},
	}
	return vm, nil
}

// Close destroys the stream buffers and restores default device bindings.
// The manager must not be used afterwards.
func (m *VertexManager) Close() {
	if m.buffers != nil {
		if m.buffers.open {
			m.buffers.discard()
		}
		m.dev.BindStreamBuffers(gpucore.InvalidID, gpucore.InvalidID)
		m.buffers.destroy()
		m.buffers = nil
	}
	m.dev.ResetBindings()
}

// SetFormat makes f the active vertex format for subsequent batches. A nil
// format turns the next Flush into a defined no-op ("nothing to draw").
func (m *VertexManager) SetFormat(f VertexFormat) { m.format = f }

// SetPrimitive sets the primitive type of the geometry accumulated next.
func (m *VertexManager) SetPrimitive(p Primitive) { m.prim = p }

// BaseVertex returns the element index of the current window's first vertex.
func (m *VertexManager) BaseVertex() int { return m.buffers.baseVertex }

// ResetFrame opens a new accumulation cycle: it reserves the per-cycle
// vertex window at the given stride, reserves the index window, and points
// the index source at it. The returned slice is where the upstream decoder
// writes vertices. Any unflushed previous window is discarded.
func (m *VertexManager) ResetFrame(stride uint32) ([]byte, error) {
	if stride == 0 {
		return nil, fmt.Errorf("streamdraw: reset frame: zero stride")
	}
	return m.buffers.resetFrame(stride, m.dev.Caps().BaseVertex)
}

// Flush commits the accumulated geometry and submits it as draw calls.
//
// useDstAlpha requests that the batch also establish the destination alpha
// channel. On devices with dual-source blending that happens in the same
// pass; otherwise Flush reissues the identical draw a second time with an
// alpha-only shader, color writes masked to alpha, and blending disabled,
// then restores the mask and the blend enablement the active blend mode
// dictates.
//
// Device errors during a flush are not recoverable inline: they are logged,
// collected into the returned error, and execution continues best-effort so
// the surrounding pipeline's state assumptions hold. Calling Flush again
// without an intervening ResetFrame is a contract violation and is ignored.
func (m *VertexManager) Flush(useDstAlpha bool) error {
	if !m.buffers.open {
		slogger().Warn("streamdraw: flush without open window ignored")
		return nil
	}
	format := m.format
	if format == nil {
		// Defined edge case: no active vertex format means nothing to draw.
		// The window stays open and the next ResetFrame discards it.
		slogger().Debug("streamdraw: flush with no vertex format, skipping draw")
		return nil
	}
	stride := format.Stride()

	if layout := format.Layout(); layout != m.lastLayout {
		m.dev.BindVertexLayout(layout)
		m.lastLayout = layout
	}

	var errs []error
	vertexBytes, indexBytes, err := m.buffers.prepareFlush(stride)
	if err != nil {
		errs = append(errs, err)
		slogger().Warn("streamdraw: commit failed, drawing best-effort", "error", err)
	}

	indexCount := m.buffers.gen.IndexLen()
	vertexCount := m.buffers.gen.NumVerts()
	slogger().Debug("streamdraw: flush",
		"id", m.flushID, "primitive", m.prim.String(),
		"indices", indexCount, "vertices", vertexCount,
		"vertexBytes", vertexBytes, "indexBytes", indexBytes,
		"dstAlpha", useDstAlpha)

	dualSourcePossible := m.dev.Caps().DualSourceBlend

	variant := VariantColorOnly
	if dualSourcePossible && useDstAlpha {
		// The device can produce destination alpha in the same pass as
		// regular rendering.
		variant = VariantDualSourceBlend
	}
	if err := m.shaders.SetShader(variant, format.Components()); err != nil {
		errs = append(errs, err)
		slogger().Warn("streamdraw: shader bind failed", "variant", variant.String(), "error", err)
	}
	if err := m.shaders.UploadConstants(); err != nil {
		errs = append(errs, err)
		slogger().Warn("streamdraw: constant upload failed", "error", err)
	}

	format.SetupPointers()

	if err := m.emitter.emit(m.prim, indexCount, vertexCount, m.buffers.indexByteOffset, m.buffers.baseVertex); err != nil {
		errs = append(errs, err)
		slogger().Warn("streamdraw: draw failed", "error", err)
	}

	// Run through the batch again to set destination alpha on devices that
	// cannot blend color and alpha with distinct source factors in one pass.
	// The second pass must not blend: blending would corrupt the alpha it is
	// there to establish.
	if useDstAlpha && !dualSourcePossible {
		if err := m.shaders.SetShader(VariantAlphaOnly, format.Components()); err != nil {
			errs = append(errs, err)
			slogger().Warn("streamdraw: alpha-pass shader bind failed", "error", err)
		}
		m.dev.SetColorMask(gpucore.ColorWriteMaskAlpha)
		m.dev.SetBlendEnabled(false)

		if err := m.emitter.emit(m.prim, indexCount, vertexCount, m.buffers.indexByteOffset, m.buffers.baseVertex); err != nil {
			errs = append(errs, err)
			slogger().Warn("streamdraw: alpha-pass draw failed", "error", err)
		}

		m.dev.SetColorMask(gpucore.ColorWriteMaskAll)
		m.dev.SetBlendEnabled(m.cfg.blendState.BlendEnabled())
	}

	if m.dump.active() {
		m.dump.dump(m.flushID, m.shaders, m.dev)
	}
	m.flushID++

	if m.cfg.invalidate != nil {
		m.cfg.invalidate()
	}
	return errors.Join(errs...)
}
