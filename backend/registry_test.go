package backend

import (
	"errors"
	"testing"

	"github.com/gogpu/streamdraw/gpucore"
)

// stubBackend is a minimal Backend for registry tests.
type stubBackend struct {
	name    string
	initErr error
	inits   int
	closes  int
}

func (b *stubBackend) Name() string           { return b.name }
func (b *stubBackend) Init() error            { b.inits++; return b.initErr }
func (b *stubBackend) Close()                 { b.closes++ }
func (b *stubBackend) Device() gpucore.Device { return nil }

func registerStub(t *testing.T, name string) *stubBackend {
	t.Helper()
	stub := &stubBackend{name: name}
	Register(name, func() Backend { return stub })
	t.Cleanup(func() { Unregister(name) })
	return stub
}

func TestRegistryRegisterAndGet(t *testing.T) {
	stub := registerStub(t, "stub")

	if !IsRegistered("stub") {
		t.Error("stub backend should be registered")
	}

	b := Get("stub")
	if b == nil {
		t.Fatal("Get(stub) returned nil")
	}
	if b.Name() != "stub" {
		t.Errorf("Get(stub).Name() = %q, want %q", b.Name(), "stub")
	}
	if b != Backend(stub) {
		t.Error("Get(stub) should return the factory's backend")
	}
}

func TestRegistryGetUnregistered(t *testing.T) {
	if b := Get("nonexistent"); b != nil {
		t.Error("Get(nonexistent) should return nil")
	}
}

func TestRegistryAvailable(t *testing.T) {
	registerStub(t, "stub")

	found := false
	for _, name := range Available() {
		if name == "stub" {
			found = true
			break
		}
	}
	if !found {
		t.Error("Available() should include 'stub'")
	}
}

func TestRegistryUnregister(t *testing.T) {
	Register("temp", func() Backend { return &stubBackend{name: "temp"} })

	if !IsRegistered("temp") {
		t.Error("temp should be registered")
	}

	Unregister("temp")

	if IsRegistered("temp") {
		t.Error("temp should be unregistered")
	}
}

func TestRegistryDefaultPriority(t *testing.T) {
	registerStub(t, BackendNull)
	registerStub(t, BackendWGPU)

	b := Default()
	if b == nil {
		t.Fatal("Default() returned nil")
	}
	if b.Name() != BackendWGPU {
		t.Errorf("Default().Name() = %q, want %q", b.Name(), BackendWGPU)
	}

	Unregister(BackendWGPU)

	b = Default()
	if b == nil {
		t.Fatal("Default() returned nil after unregistering wgpu")
	}
	if b.Name() != BackendNull {
		t.Errorf("Default().Name() = %q, want %q", b.Name(), BackendNull)
	}
}

func TestRegistryDefaultFallback(t *testing.T) {
	// A backend outside the priority list is still picked up when it is
	// the only one registered.
	registerStub(t, "custom")

	b := Default()
	if b == nil {
		t.Fatal("Default() returned nil")
	}
	if b.Name() != "custom" {
		t.Errorf("Default().Name() = %q, want %q", b.Name(), "custom")
	}
}

func TestRegistryDefaultEmpty(t *testing.T) {
	if b := Default(); b != nil {
		t.Errorf("Default() with empty registry = %v, want nil", b)
	}
}

func TestInitDefault(t *testing.T) {
	stub := registerStub(t, BackendNull)

	b, err := InitDefault()
	if err != nil {
		t.Fatalf("InitDefault() error = %v", err)
	}
	if b == nil {
		t.Fatal("InitDefault() returned nil backend")
	}
	if stub.inits != 1 {
		t.Errorf("Init calls = %d, want 1", stub.inits)
	}
}

func TestInitDefaultNoBackends(t *testing.T) {
	_, err := InitDefault()
	if !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("InitDefault() error = %v, want ErrBackendNotAvailable", err)
	}
}

func TestInitDefaultInitError(t *testing.T) {
	initErr := errors.New("device lost")
	stub := &stubBackend{name: BackendNull, initErr: initErr}
	Register(BackendNull, func() Backend { return stub })
	t.Cleanup(func() { Unregister(BackendNull) })

	_, err := InitDefault()
	if !errors.Is(err, initErr) {
		t.Errorf("InitDefault() error = %v, want %v", err, initErr)
	}
}
