package null

import (
	"github.com/gogpu/streamdraw"
	"github.com/gogpu/streamdraw/gpucore"
)

// Format is a vertex format backed by nothing but a stride. It satisfies
// streamdraw.VertexFormat for headless use.
type Format struct {
	stride     uint32
	components uint32
}

// NewFormat creates a format with the given stride and component mask.
func NewFormat(stride, components uint32) *Format {
	return &Format{stride: stride, components: components}
}

// Stride returns the vertex stride in bytes.
func (f *Format) Stride() uint32 { return f.stride }

// Components returns the component usage mask.
func (f *Format) Components() uint32 { return f.components }

// Layout returns a fixed layout handle shared by all null formats.
func (f *Format) Layout() gpucore.VertexLayoutID { return gpucore.VertexLayoutID(1) }

// SetupPointers is a no-op.
func (f *Format) SetupPointers() {}

// ShaderCache is a streamdraw.ShaderCache that accepts every variant.
type ShaderCache struct {
	// Variant is the last variant passed to SetShader.
	Variant streamdraw.ShaderVariant
}

// SetShader records the variant and succeeds.
func (c *ShaderCache) SetShader(variant streamdraw.ShaderVariant, _ uint32) error {
	c.Variant = variant
	return nil
}

// UploadConstants is a no-op.
func (c *ShaderCache) UploadConstants() error { return nil }

var (
	_ streamdraw.VertexFormat = (*Format)(nil)
	_ streamdraw.ShaderCache  = (*ShaderCache)(nil)
)
