// Package wgpu implements the streamdraw backend on the gogpu HAL.
//
// The backend renders into an offscreen BGRA8 target. Stream buffers are
// backed by device-local HAL buffers fed through queue writes, and fence
// synchronization uses a single timeline fence whose value advances on
// every submit.
//
// Importing the package registers the backend:
//
//	import _ "github.com/gogpu/streamdraw/backend/wgpu"
package wgpu
