package wgpu

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/streamdraw"
)

//go:embed shaders/stream.wgsl
var streamShaderWGSL string

// program selects the fragment entry point of the stream shader.
type program uint8

const (
	// programColor writes full color output.
	programColor program = iota

	// programAlphaOnly zeroes the color channels, leaving only alpha. Bound
	// for the unblended second pass of the destination-alpha fallback.
	programAlphaOnly
)

func (p program) fragmentEntry() string {
	if p == programAlphaOnly {
		return "fs_alpha"
	}
	return "fs_main"
}

func (p program) String() string {
	if p == programAlphaOnly {
		return "alpha"
	}
	return "color"
}

// identity is the default vertex transform.
var identity = [16]float32{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}

// ShaderCache binds the stream shader variants and uploads the vertex
// transform. It implements streamdraw.ShaderCache and streamdraw.ShaderSourcer
// for this backend.
//
// All variants live in one WGSL module with distinct fragment entry points;
// SetShader only flips which entry point the next pipeline lookup uses.
type ShaderCache struct {
	dev          *Device
	shaderModule hal.ShaderModule
	transform    [16]float32
	dirty        bool
}

func newShaderCache(dev *Device) *ShaderCache {
	return &ShaderCache{
		dev:       dev,
		transform: identity,
		dirty:     true,
	}
}

// SetShader selects the program for the given variant.
func (c *ShaderCache) SetShader(variant streamdraw.ShaderVariant, _ uint32) error {
	switch variant {
	case streamdraw.VariantColorOnly:
		c.dev.program = programColor
	case streamdraw.VariantAlphaOnly:
		c.dev.program = programAlphaOnly
	case streamdraw.VariantDualSourceBlend:
		return fmt.Errorf("wgpu: dual-source blending not supported")
	default:
		return fmt.Errorf("wgpu: unknown shader variant %v", variant)
	}
	return nil
}

// UploadConstants pushes the vertex transform to the uniform buffer when it
// changed since the last upload.
func (c *ShaderCache) UploadConstants() error {
	if !c.dirty {
		return nil
	}
	data := make([]byte, uniformSize)
	for i, f := range c.transform {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(f))
	}
	c.dev.queue.WriteBuffer(c.dev.uniformBuf, 0, data)
	c.dirty = false
	return nil
}

// SetTransform replaces the vertex transform (column-major mat4).
func (c *ShaderCache) SetTransform(m [16]float32) {
	c.transform = m
	c.dirty = true
}

// ProgramSource returns the WGSL source of the stream shader. Vertex and
// fragment stages share one module.
func (c *ShaderCache) ProgramSource() (vertex, fragment string) {
	return streamShaderWGSL, streamShaderWGSL
}

// module compiles and caches the stream shader module. The WGSL is validated
// through naga before module creation so shader errors surface with source
// context instead of as opaque device failures.
func (c *ShaderCache) module() (hal.ShaderModule, error) {
	if c.shaderModule != nil {
		return c.shaderModule, nil
	}
	if streamShaderWGSL == "" {
		return nil, fmt.Errorf("wgpu: stream shader source is empty")
	}
	if _, err := naga.Compile(streamShaderWGSL); err != nil {
		return nil, fmt.Errorf("wgpu: compile stream shader: %w", err)
	}

	module, err := c.dev.hal.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "stream_shader",
		Source: hal.ShaderSource{WGSL: streamShaderWGSL},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create stream shader module: %w", err)
	}
	c.shaderModule = module
	return module, nil
}

func (c *ShaderCache) destroy() {
	if c.shaderModule != nil {
		c.dev.hal.DestroyShaderModule(c.shaderModule)
		c.shaderModule = nil
	}
}

var (
	_ streamdraw.ShaderCache   = (*ShaderCache)(nil)
	_ streamdraw.ShaderSourcer = (*ShaderCache)(nil)
)
