package wgpu

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/streamdraw"
	"github.com/gogpu/streamdraw/gpucore"
)

// Vertex component flags, forwarded to the shader cache as the component
// mask of a format.
const (
	// ComponentPosition marks a position attribute.
	ComponentPosition uint32 = 1 << 0

	// ComponentColor marks a color attribute.
	ComponentColor uint32 = 1 << 1
)

// Format is a vertex attribute layout for the stream shader. It implements
// streamdraw.VertexFormat; register it with Device.RegisterFormat before use.
type Format struct {
	dev        *Device
	layout     gpucore.VertexLayoutID
	stride     uint32
	components uint32
	attributes []gputypes.VertexAttribute
}

// PositionColorFormat is the layout matching the stream shader's inputs:
// position vec3<f32> at location 0, color unorm8x4 at location 1.
func PositionColorFormat() *Format {
	return &Format{
		stride:     16,
		components: ComponentPosition | ComponentColor,
		attributes: []gputypes.VertexAttribute{
			{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
			{Format: gputypes.VertexFormatUnorm8x4, Offset: 12, ShaderLocation: 1},
		},
	}
}

// NewFormat builds a custom format. Attribute shader locations must match
// the stream shader's vertex inputs.
func NewFormat(stride, components uint32, attributes []gputypes.VertexAttribute) *Format {
	return &Format{
		stride:     stride,
		components: components,
		attributes: attributes,
	}
}

// Stride returns the vertex stride in bytes.
func (f *Format) Stride() uint32 { return f.stride }

// Components returns the component mask.
func (f *Format) Components() uint32 { return f.components }

// Layout returns the layout handle assigned at registration.
func (f *Format) Layout() gpucore.VertexLayoutID { return f.layout }

// SetupPointers is a no-op: attribute pointers are baked into the pipeline
// selected at draw time from the bound layout.
func (f *Format) SetupPointers() {}

func (f *Format) halLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: uint64(f.stride),
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes:  f.attributes,
		},
	}
}

var _ streamdraw.VertexFormat = (*Format)(nil)
