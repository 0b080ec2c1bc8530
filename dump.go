package streamdraw

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/gogpu/streamdraw/gpucore"
)

// dumper writes per-flush debug artifacts: the bound program's source text
// and a render-target screenshot, numbered by the flush id. It is driven by
// runtime flags so release and debug builds share one code path; failures
// are logged and never affect the flush.
type dumper struct {
	dir     string
	shaders bool
	targets bool
}

func (d *dumper) active() bool {
	return d != nil && (d.shaders || d.targets)
}

// dump writes the enabled artifacts for one flush.
func (d *dumper) dump(id uint64, shaders ShaderCache, dev gpucore.Device) {
	if d.shaders {
		d.dumpShaders(id, shaders)
	}
	if d.targets {
		d.dumpTarget(id, dev)
	}
}

func (d *dumper) dumpShaders(id uint64, shaders ShaderCache) {
	src, ok := shaders.(ShaderSourcer)
	if !ok {
		return
	}
	vertex, fragment := src.ProgramSource()
	d.writeText(fmt.Sprintf("vs%03d.txt", id), vertex)
	d.writeText(fmt.Sprintf("ps%03d.txt", id), fragment)
}

func (d *dumper) writeText(name, text string) {
	path := filepath.Join(d.dir, name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		slogger().Warn("streamdraw: shader dump failed", "path", path, "error", err)
	}
}

func (d *dumper) dumpTarget(id uint64, dev gpucore.Device) {
	reader, ok := dev.(gpucore.TargetReader)
	if !ok {
		return
	}
	img, err := reader.ReadTarget()
	if err != nil {
		slogger().Warn("streamdraw: target readback failed", "error", err)
		return
	}
	path := filepath.Join(d.dir, fmt.Sprintf("targ%03d.png", id))
	f, err := os.Create(path)
	if err != nil {
		slogger().Warn("streamdraw: target dump failed", "path", path, "error", err)
		return
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		slogger().Warn("streamdraw: target dump encode failed", "path", path, "error", err)
	}
}
