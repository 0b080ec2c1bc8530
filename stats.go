package streamdraw

import (
	"fmt"
	"sync/atomic"
)

// Stats collects best-effort streaming counters. All methods are safe on a
// nil receiver, so callers that do not care simply pass nothing.
type Stats struct {
	vertexBytes atomic.Uint64
	indexBytes  atomic.Uint64
	drawCalls   atomic.Uint64
}

// AddVertexBytes records vertex bytes committed to the stream.
func (s *Stats) AddVertexBytes(n int) {
	if s == nil || n <= 0 {
		return
	}
	s.vertexBytes.Add(uint64(n))
}

// AddIndexBytes records index bytes committed to the stream.
func (s *Stats) AddIndexBytes(n int) {
	if s == nil || n <= 0 {
		return
	}
	s.indexBytes.Add(uint64(n))
}

// IncDrawCalls records one indexed draw call.
func (s *Stats) IncDrawCalls() {
	if s == nil {
		return
	}
	s.drawCalls.Add(1)
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	// VertexBytesStreamed is the total vertex bytes committed.
	VertexBytesStreamed uint64

	// IndexBytesStreamed is the total index bytes committed.
	IndexBytesStreamed uint64

	// IndexedDrawCalls is the total number of indexed draw calls issued.
	IndexedDrawCalls uint64
}

// Snapshot returns a point-in-time copy of the counters.
func (s *Stats) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	return Snapshot{
		VertexBytesStreamed: s.vertexBytes.Load(),
		IndexBytesStreamed:  s.indexBytes.Load(),
		IndexedDrawCalls:    s.drawCalls.Load(),
	}
}

// Reset zeroes all counters.
func (s *Stats) Reset() {
	if s == nil {
		return
	}
	s.vertexBytes.Store(0)
	s.indexBytes.Store(0)
	s.drawCalls.Store(0)
}

// String returns a human-readable summary.
func (s Snapshot) String() string {
	return fmt.Sprintf("Stream[%d vertex bytes, %d index bytes, %d draws]",
		s.VertexBytesStreamed, s.IndexBytesStreamed, s.IndexedDrawCalls)
}
