// Package backend provides registration and selection of streamdraw device
// backends.
//
// Backends register themselves via [Register], typically from init()
// functions in their own packages; importing a backend package for side
// effects makes it available:
//
//	import _ "github.com/gogpu/streamdraw/backend/null"
//	import _ "github.com/gogpu/streamdraw/backend/wgpu"
package backend

import (
	"errors"

	"github.com/gogpu/streamdraw/gpucore"
)

// Backend name constants.
const (
	// BackendWGPU is the name of the Pure Go GPU backend (gogpu/wgpu).
	BackendWGPU = "wgpu"
	// BackendNull is the name of the no-op backend for headless runs.
	BackendNull = "null"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("backend: not initialized")
)

// Backend owns a device context for the streaming engine. It abstracts the
// graphics implementation so the same engine runs against wgpu hardware or
// the no-op device.
type Backend interface {
	// Name returns the backend identifier (e.g., "wgpu", "null").
	Name() string

	// Init initializes the backend and acquires its device.
	// This must be called before Device.
	Init() error

	// Close releases all backend resources.
	// The backend must not be used after Close is called.
	Close()

	// Device returns the backend's device. Only valid after Init.
	Device() gpucore.Device
}
