package streamdraw

// Option configures a VertexManager during creation.
type Option func(*config)

// config holds optional configuration for NewVertexManager.
type config struct {
	vertexBufferSize int
	indexBufferSize  int
	vertexWindowSize int
	indexWindowSize  int

	blendState BlendState
	stats      *Stats
	invalidate func()

	dumpDir     string
	dumpShaders bool
	dumpTargets bool
}

// defaultConfig returns the default VertexManager configuration.
func defaultConfig() config {
	return config{
		vertexBufferSize: DefaultVertexBufferSize,
		indexBufferSize:  DefaultIndexBufferSize,
		vertexWindowSize: DefaultVertexWindowSize,
		indexWindowSize:  DefaultIndexWindowSize,
		blendState:       disabledBlend{},
	}
}

// WithBufferSizes sets the capacities of the vertex and index stream
// buffers. Both must be positive multiples of the internal slot count; the
// per-cycle window budgets must fit or NewVertexManager fails.
func WithBufferSizes(vertexBytes, indexBytes int) Option {
	return func(c *config) {
		c.vertexBufferSize = vertexBytes
		c.indexBufferSize = indexBytes
	}
}

// WithWindowBudgets sets the per-cycle byte budgets reserved by ResetFrame
// for vertex and index data.
func WithWindowBudgets(vertexBytes, indexBytes int) Option {
	return func(c *config) {
		c.vertexWindowSize = vertexBytes
		c.indexWindowSize = indexBytes
	}
}

// WithBlendState provides the pipeline's blend-mode view used to restore
// blend enablement after the destination-alpha fallback pass. Without it the
// engine restores blending to disabled.
func WithBlendState(bs BlendState) Option {
	return func(c *config) {
		if bs != nil {
			c.blendState = bs
		}
	}
}

// WithStats directs streaming counters into s.
func WithStats(s *Stats) Option {
	return func(c *config) { c.stats = s }
}

// WithCacheInvalidator registers a hook run after every flush, for
// invalidating frame-local derived state (such as a CPU-side readback cache
// of render-target contents) that the draw just made stale.
func WithCacheInvalidator(fn func()) Option {
	return func(c *config) { c.invalidate = fn }
}

// WithDumpDir sets the directory debug dumps are written to. Dumping stays
// off until WithShaderDump or WithTargetDump enables it.
func WithDumpDir(dir string) Option {
	return func(c *config) { c.dumpDir = dir }
}

// WithShaderDump enables writing the bound program's source next to each
// flush. Debug aid; never enable in production.
func WithShaderDump(enabled bool) Option {
	return func(c *config) { c.dumpShaders = enabled }
}

// WithTargetDump enables writing a render-target screenshot after each
// flush. Requires a device that implements [gpucore.TargetReader]. Debug
// aid; never enable in production.
func WithTargetDump(enabled bool) Option {
	return func(c *config) { c.dumpTargets = enabled }
}
