package streamdraw

import (
	"fmt"

	"github.com/gogpu/streamdraw/gpucore"
)

// Primitive is the logical primitive type of the geometry accumulated for a
// batch, as produced by the upstream decoder. The draw-call emitter maps it
// to a device topology, substituting strip-with-restart for triangles when
// the device supports primitive restart.
type Primitive uint8

// Primitives.
const (
	// PrimitivePoints draws isolated points.
	PrimitivePoints Primitive = iota

	// PrimitiveLines draws isolated lines.
	PrimitiveLines

	// PrimitiveTriangles draws triangles.
	PrimitiveTriangles
)

// String returns the string representation of Primitive.
func (p Primitive) String() string {
	switch p {
	case PrimitivePoints:
		return "Points"
	case PrimitiveLines:
		return "Lines"
	case PrimitiveTriangles:
		return "Triangles"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(p))
	}
}

// ShaderVariant selects the destination-alpha strategy of the bound program.
type ShaderVariant int

// Shader variants.
const (
	// VariantColorOnly writes color, leaving destination alpha untouched by
	// the program (normal single-pass rendering).
	VariantColorOnly ShaderVariant = iota

	// VariantDualSourceBlend writes color and destination alpha correctly in
	// one pass using dual-source blend factors. Only valid when the device
	// reports Caps.DualSourceBlend.
	VariantDualSourceBlend

	// VariantAlphaOnly writes only the alpha channel. Used by the unblended
	// second pass of the destination-alpha fallback.
	VariantAlphaOnly
)

// String returns the string representation of ShaderVariant.
func (v ShaderVariant) String() string {
	switch v {
	case VariantColorOnly:
		return "ColorOnly"
	case VariantDualSourceBlend:
		return "DualSourceBlend"
	case VariantAlphaOnly:
		return "AlphaOnly"
	default:
		return fmt.Sprintf("Unknown(%d)", int(v))
	}
}

// VertexFormat describes the currently active vertex attribute layout.
// Implementations come from the vertex-format service of the surrounding
// pipeline (or a backend); the engine only consumes them.
type VertexFormat interface {
	// Stride returns the byte size of one vertex in this format.
	Stride() uint32

	// Components returns the attribute component mask forwarded to the
	// shader cache for program selection.
	Components() uint32

	// Layout returns a stable identity for the device-side attribute layout.
	// The engine binds it only when it differs from the last bound layout.
	Layout() gpucore.VertexLayoutID

	// SetupPointers binds the attribute pointers for this format on its
	// device. Called once per flush, after the streamed data is committed.
	SetupPointers()
}

// IndexSource accumulates the indices of emitted primitives and reports the
// running counts the engine commits and draws with. The counts must reflect
// exactly the geometry written into the currently open windows.
type IndexSource interface {
	// Start directs subsequent index writes into dst, which is the index
	// window opened by ResetFrame, and resets both counts. baseVertex is the
	// value added to every written index: zero on devices with base-vertex
	// draws (indices stay window-relative), the window's base vertex
	// otherwise (indices must be absolute).
	Start(dst []byte, baseVertex uint32)

	// IndexLen returns the number of indices written since Start.
	IndexLen() uint32

	// NumVerts returns the number of logical vertices consumed since Start.
	NumVerts() uint32
}

// ShaderCache compiles, caches, and binds shader programs and uploads
// per-draw constants. External collaborator.
type ShaderCache interface {
	// SetShader binds the program for the given variant and vertex
	// components, compiling it on first use.
	SetShader(variant ShaderVariant, components uint32) error

	// UploadConstants uploads the per-draw constant state for the currently
	// bound program.
	UploadConstants() error
}

// ShaderSourcer is implemented by shader caches that can expose the source
// text of the bound program. Only the debug shader-dump path uses it.
type ShaderSourcer interface {
	// ProgramSource returns the vertex and fragment source of the currently
	// bound program.
	ProgramSource() (vertex, fragment string)
}

// BlendState is the engine's read-only view of the blend mode tracked by the
// surrounding pipeline. After the destination-alpha fallback pass the engine
// restores blend enablement to whatever this reports.
type BlendState interface {
	// BlendEnabled reports whether the active blend mode implies blending
	// (blend-enable or subtract mode).
	BlendEnabled() bool
}

// disabledBlend is the default BlendState when none is configured.
type disabledBlend struct{}

func (disabledBlend) BlendEnabled() bool { return false }
