package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/streamdraw/gpucore"
)

// pipelineKey identifies one render pipeline state permutation. The streaming
// engine toggles topology, blending, and the color mask between draws, so
// each permutation gets its own cached pipeline.
type pipelineKey struct {
	topology gpucore.Topology
	layout   gpucore.VertexLayoutID
	program  program
	blend    bool
	mask     gpucore.ColorWriteMask
}

// pipelineCache lazily builds and caches render pipelines per state
// permutation.
type pipelineCache struct {
	dev       *Device
	pipelines map[pipelineKey]hal.RenderPipeline
}

func newPipelineCache(dev *Device) *pipelineCache {
	return &pipelineCache{
		dev:       dev,
		pipelines: make(map[pipelineKey]hal.RenderPipeline),
	}
}

func (c *pipelineCache) get(key pipelineKey, format *Format) (hal.RenderPipeline, error) {
	if p, ok := c.pipelines[key]; ok {
		return p, nil
	}
	p, err := c.build(key, format)
	if err != nil {
		return nil, err
	}
	c.pipelines[key] = p
	return p, nil
}

func (c *pipelineCache) build(key pipelineKey, format *Format) (hal.RenderPipeline, error) {
	d := c.dev
	module, err := d.shaders.module()
	if err != nil {
		return nil, err
	}

	topology, err := halTopology(key.topology)
	if err != nil {
		return nil, err
	}

	var blend *gputypes.BlendState
	if key.blend {
		premul := gputypes.BlendStatePremultiplied()
		blend = &premul
	}

	pipeline, err := d.hal.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  fmt.Sprintf("stream_%s_%s", key.topology, key.program),
		Layout: d.pipeLayout,
		Vertex: hal.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers:    format.halLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     module,
			EntryPoint: key.program.fragmentEntry(),
			Targets: []gputypes.ColorTargetState{
				{
					Format:    d.targetFormat,
					Blend:     blend,
					WriteMask: halColorMask(key.mask),
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: topology,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create pipeline %v: %w", key, err)
	}
	slogger().Debug("wgpu: built pipeline",
		"topology", key.topology, "program", key.program,
		"blend", key.blend, "mask", key.mask)
	return pipeline, nil
}

func (c *pipelineCache) destroy() {
	for key, p := range c.pipelines {
		c.dev.hal.DestroyRenderPipeline(p)
		delete(c.pipelines, key)
	}
}

func halTopology(t gpucore.Topology) (gputypes.PrimitiveTopology, error) {
	switch t {
	case gpucore.TopologyPointList:
		return gputypes.PrimitiveTopologyPointList, nil
	case gpucore.TopologyLineList:
		return gputypes.PrimitiveTopologyLineList, nil
	case gpucore.TopologyTriangleList:
		return gputypes.PrimitiveTopologyTriangleList, nil
	case gpucore.TopologyTriangleStrip:
		return gputypes.PrimitiveTopologyTriangleStrip, nil
	default:
		return 0, fmt.Errorf("wgpu: unsupported topology %v", t)
	}
}

func halColorMask(m gpucore.ColorWriteMask) gputypes.ColorWriteMask {
	if m == gpucore.ColorWriteMaskAll {
		return gputypes.ColorWriteMaskAll
	}
	var out gputypes.ColorWriteMask
	if m&gpucore.ColorWriteMaskRed != 0 {
		out |= gputypes.ColorWriteMaskRed
	}
	if m&gpucore.ColorWriteMaskGreen != 0 {
		out |= gputypes.ColorWriteMaskGreen
	}
	if m&gpucore.ColorWriteMaskBlue != 0 {
		out |= gputypes.ColorWriteMaskBlue
	}
	if m&gpucore.ColorWriteMaskAlpha != 0 {
		out |= gputypes.ColorWriteMaskAlpha
	}
	return out
}
