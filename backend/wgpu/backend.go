package wgpu

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/streamdraw/backend"
	"github.com/gogpu/streamdraw/gpucore"
)

// DeviceHandle provides GPU device access from a host application. Hosts
// that already own a device (e.g., gogpu.App) implement it and hand it to
// SetDeviceProvider so the stream renders on the shared device.
type DeviceHandle = gpucontext.DeviceProvider

func init() {
	backend.Register(backend.BackendWGPU, func() backend.Backend {
		return New()
	})
}

// Backend is the HAL-based backend. It owns the instance and device unless
// an external provider supplied them via SetDeviceProvider.
type Backend struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	dev            *Device
	targetFormat   gputypes.TextureFormat
	externalDevice bool
	initialized    bool
}

// New creates an uninitialized HAL backend.
func New() *Backend {
	return &Backend{targetFormat: defaultTargetFormat}
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return backend.BackendWGPU }

// Init creates a standalone Vulkan device. This is the fallback path when no
// external device is provided via SetDeviceProvider.
func (b *Backend) Init() error {
	if b.initialized {
		return nil
	}
	if b.device == nil {
		if err := b.initGPU(); err != nil {
			return err
		}
	}

	dev, err := newDevice(b.device, b.queue, b.targetFormat)
	if err != nil {
		b.releaseGPU()
		return err
	}
	b.dev = dev
	b.initialized = true
	return nil
}

// SetDeviceProvider switches the backend to a shared GPU device from an
// external provider (e.g., gogpu). The provider must implement
// HalDevice() any and HalQueue() any returning hal.Device and hal.Queue.
// Must be called before Init.
func (b *Backend) SetDeviceProvider(provider any) error {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return fmt.Errorf("wgpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return fmt.Errorf("wgpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return fmt.Errorf("wgpu: provider HalQueue is not hal.Queue")
	}

	if b.initialized {
		return fmt.Errorf("wgpu: backend already initialized")
	}
	b.releaseGPU()

	// Hosts exposing a gpucontext provider also tell us the surface format;
	// render into it so blits to the host surface stay copy-compatible.
	if dp, ok := provider.(gpucontext.DeviceProvider); ok {
		if f := dp.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
			b.targetFormat = f
		}
	}

	b.device = device
	b.queue = queue
	b.externalDevice = true
	return nil
}

// Close releases the device resources. An externally provided device is left
// alive for its owner.
func (b *Backend) Close() {
	if b.dev != nil {
		b.dev.destroy()
		b.dev = nil
	}
	b.releaseGPU()
	b.initialized = false
}

// Device returns the backend's device. Valid after Init.
func (b *Backend) Device() gpucore.Device {
	if b.dev == nil {
		return nil
	}
	return b.dev
}

// HALDevice returns the underlying HAL device and queue. Resource sharing
// with a host application goes through this.
func (b *Backend) HALDevice() (hal.Device, hal.Queue) {
	return b.device, b.queue
}

func (b *Backend) initGPU() error {
	hb, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("%w: vulkan backend not available", backend.ErrBackendNotAvailable)
	}
	instance, err := hb.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	b.instance = instance

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		b.releaseGPU()
		return fmt.Errorf("%w: no GPU adapters found", backend.ErrBackendNotAvailable)
	}

	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		b.releaseGPU()
		return fmt.Errorf("open device: %w", err)
	}
	b.device = openDev.Device
	b.queue = openDev.Queue

	slogger().Info("wgpu: GPU initialized", "adapter", selected.Info.Name)
	return nil
}

func (b *Backend) releaseGPU() {
	if !b.externalDevice && b.device != nil {
		b.device.Destroy()
	}
	b.device = nil
	b.queue = nil
	if b.instance != nil {
		b.instance.Destroy()
		b.instance = nil
	}
}
