package indexgen

import (
	"encoding/binary"
	"testing"

	"github.com/gogpu/streamdraw/gpucore"
)

// indices decodes the generator's output back into uint16 values.
func indices(g *Generator, dst []byte) []uint16 {
	n := int(g.IndexLen())
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = binary.LittleEndian.Uint16(dst[i*gpucore.IndexSize:])
	}
	return out
}

func equal(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

const restart = gpucore.RestartIndex

func TestTriangleList(t *testing.T) {
	tests := []struct {
		name     string
		restart  bool
		numVerts uint32
		want     []uint16
	}{
		{"plain two triangles", false, 6, []uint16{0, 1, 2, 3, 4, 5}},
		{"restart two triangles", true, 6, []uint16{0, 1, 2, restart, 3, 4, 5, restart}},
		{"plain ignores trailing vertex", false, 4, []uint16{0, 1, 2}},
		{"empty", false, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(tt.restart)
			dst := make([]byte, 256)
			g.Start(dst, 0)
			g.AddTriangleList(tt.numVerts)
			if got := indices(g, dst); !equal(got, tt.want) {
				t.Errorf("indices = %v, want %v", got, tt.want)
			}
			if g.NumVerts() != tt.numVerts {
				t.Errorf("NumVerts = %d, want %d", g.NumVerts(), tt.numVerts)
			}
		})
	}
}

func TestTriangleStrip(t *testing.T) {
	tests := []struct {
		name     string
		restart  bool
		numVerts uint32
		want     []uint16
	}{
		{"restart passes strip through", true, 5, []uint16{0, 1, 2, 3, 4, restart}},
		// Expansion alternates winding so all triangles face the same way.
		{"plain expands with winding", false, 5, []uint16{0, 1, 2, 2, 1, 3, 2, 3, 4}},
		{"degenerate strip", false, 2, nil},
		{"degenerate strip restart", true, 2, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(tt.restart)
			dst := make([]byte, 256)
			g.Start(dst, 0)
			g.AddTriangleStrip(tt.numVerts)
			if got := indices(g, dst); !equal(got, tt.want) {
				t.Errorf("indices = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTriangleFan(t *testing.T) {
	g := New(false)
	dst := make([]byte, 256)
	g.Start(dst, 0)
	g.AddTriangleFan(5)
	want := []uint16{0, 1, 2, 0, 2, 3, 0, 3, 4}
	if got := indices(g, dst); !equal(got, want) {
		t.Errorf("plain fan = %v, want %v", got, want)
	}

	g = New(true)
	g.Start(dst, 0)
	g.AddTriangleFan(4)
	want = []uint16{0, 1, 2, restart, 0, 2, 3, restart}
	if got := indices(g, dst); !equal(got, want) {
		t.Errorf("restart fan = %v, want %v", got, want)
	}
}

func TestLinesAndPoints(t *testing.T) {
	g := New(true)
	dst := make([]byte, 256)

	g.Start(dst, 0)
	g.AddLineList(4)
	if got := indices(g, dst); !equal(got, []uint16{0, 1, 2, 3}) {
		t.Errorf("line list = %v", got)
	}

	g.Start(dst, 0)
	g.AddLineStrip(4)
	if got := indices(g, dst); !equal(got, []uint16{0, 1, 1, 2, 2, 3}) {
		t.Errorf("line strip = %v", got)
	}

	g.Start(dst, 0)
	g.AddPoints(3)
	if got := indices(g, dst); !equal(got, []uint16{0, 1, 2}) {
		t.Errorf("points = %v", got)
	}
}

func TestBaseVertexOffset(t *testing.T) {
	// Devices without base-vertex draws need absolute indices.
	g := New(false)
	dst := make([]byte, 256)
	g.Start(dst, 100)
	g.AddTriangleList(3)
	if got := indices(g, dst); !equal(got, []uint16{100, 101, 102}) {
		t.Errorf("indices = %v, want offset by base vertex", got)
	}
}

func TestBatchesAccumulate(t *testing.T) {
	// Consecutive Add calls continue from the running vertex count.
	g := New(false)
	dst := make([]byte, 256)
	g.Start(dst, 0)
	g.AddTriangleList(3)
	g.AddTriangleStrip(3)
	want := []uint16{0, 1, 2, 3, 4, 5}
	if got := indices(g, dst); !equal(got, want) {
		t.Errorf("indices = %v, want %v", got, want)
	}
	if g.NumVerts() != 6 {
		t.Errorf("NumVerts = %d, want 6", g.NumVerts())
	}
}

func TestStartResets(t *testing.T) {
	g := New(false)
	dst := make([]byte, 256)
	g.Start(dst, 0)
	g.AddTriangleList(6)
	g.Start(dst, 0)
	if g.IndexLen() != 0 || g.NumVerts() != 0 {
		t.Errorf("counts after Start = (%d, %d), want zero", g.IndexLen(), g.NumVerts())
	}
	g.AddTriangleList(3)
	if got := indices(g, dst); !equal(got, []uint16{0, 1, 2}) {
		t.Errorf("indices = %v, want fresh batch", got)
	}
}

func TestOverflowLatches(t *testing.T) {
	g := New(false)
	dst := make([]byte, 4*gpucore.IndexSize)
	g.Start(dst, 0)
	g.AddTriangleList(3)
	if g.Overflowed() {
		t.Fatal("overflow before the window filled")
	}
	g.AddTriangleList(3)
	if !g.Overflowed() {
		t.Fatal("second triangle fit a 4-index window")
	}
	// The first triangle survives; the overflowing one is dropped whole.
	if got := indices(g, dst); !equal(got, []uint16{0, 1, 2}) {
		t.Errorf("indices = %v, want only the first triangle", got)
	}
	g.Start(dst, 0)
	if g.Overflowed() {
		t.Error("Start did not clear the overflow flag")
	}
}
