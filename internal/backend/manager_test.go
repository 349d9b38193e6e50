package backend

import (
	"context"
	"fmt"
	"testing"

	"github.com/akarpov/sonance/internal/logging"
)

type fakeBackend struct {
	typ       Type
	available bool
	openErr   error
	stream    Stream
}

func (f *fakeBackend) Type() Type                                         { return f.typ }
func (f *fakeBackend) Description() string                                { return string(f.typ) }
func (f *fakeBackend) IsAvailable() bool                                  { return f.available }
func (f *fakeBackend) EnumerateDevices(ctx context.Context) ([]Device, error) { return nil, nil }
func (f *fakeBackend) Open(ctx context.Context, cfg Config) (Stream, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.stream, nil
}

type fakeManagerStream struct{}

func (f *fakeManagerStream) Write(samples []float32) error { return nil }
func (f *fakeManagerStream) Drain() error                  { return nil }
func (f *fakeManagerStream) SampleRate() int                { return 48000 }
func (f *fakeManagerStream) Channels() int                  { return 2 }
func (f *fakeManagerStream) Close() error                   { return nil }

func newTestManager() *Manager {
	return &Manager{
		backends: make(map[Type]Backend),
		log:      logging.New("backend-test", false, nil),
	}
}

func TestSelectPrefersHardwareDeviceIDRegardlessOfRequestedType(t *testing.T) {
	m := newTestManager()
	m.Register(&fakeBackend{typ: TypeALSA, available: true})
	m.Register(&fakeBackend{typ: TypePipeWire, available: true})
	m.order = []Type{TypeALSA, TypePipeWire}

	b, err := m.Select(TypePipeWire, "hw:CARD=Generic,DEV=0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Type() != TypeALSA {
		t.Fatalf("got backend %s, want alsa for a hw: device id", b.Type())
	}
}

func TestSelectFallsBackWhenRequestedUnavailable(t *testing.T) {
	m := newTestManager()
	m.Register(&fakeBackend{typ: TypeALSA, available: false})
	m.Register(&fakeBackend{typ: TypePipeWire, available: true})
	m.order = []Type{TypeALSA, TypePipeWire}

	b, err := m.Select(TypeALSA, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Type() != TypePipeWire {
		t.Fatalf("got backend %s, want pipewire fallback", b.Type())
	}
}

func TestSelectReturnsErrorWhenNothingAvailable(t *testing.T) {
	m := newTestManager()
	m.Register(&fakeBackend{typ: TypeALSA, available: false})
	m.Register(&fakeBackend{typ: TypePipeWire, available: false})
	m.order = []Type{TypeALSA, TypePipeWire}

	if _, err := m.Select(TypeALSA, ""); err == nil {
		t.Fatal("expected an error when no backend is available")
	}
}

func TestSelectHonorsRequestedTypeWhenAvailable(t *testing.T) {
	m := newTestManager()
	m.Register(&fakeBackend{typ: TypeALSA, available: true})
	m.Register(&fakeBackend{typ: TypePipeWire, available: true})
	m.order = []Type{TypeALSA, TypePipeWire}

	b, err := m.Select(TypePipeWire, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Type() != TypePipeWire {
		t.Fatalf("got backend %s, want pipewire", b.Type())
	}
}

func TestOpenFallsBackFromPipeWireToPulseOnceOnResourceError(t *testing.T) {
	m := newTestManager()
	m.Register(&fakeBackend{typ: TypePipeWire, available: true, openErr: fmt.Errorf("device or resource busy")})
	m.Register(&fakeBackend{typ: TypePulse, available: true, stream: &fakeManagerStream{}})
	m.order = []Type{TypePipeWire, TypePulse}

	stream, typ, err := m.Open(context.Background(), TypePipeWire, Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if typ != TypePulse {
		t.Fatalf("got backend %s, want pulse fallback", typ)
	}
	if stream == nil {
		t.Fatal("expected a non-nil stream from the pulse fallback")
	}
}

func TestOpenReturnsErrorWhenPipeWireAndPulseBothFail(t *testing.T) {
	m := newTestManager()
	m.Register(&fakeBackend{typ: TypePipeWire, available: true, openErr: fmt.Errorf("device or resource busy")})
	m.Register(&fakeBackend{typ: TypePulse, available: true, openErr: fmt.Errorf("pulse also busy")})
	m.order = []Type{TypePipeWire, TypePulse}

	if _, _, err := m.Open(context.Background(), TypePipeWire, Config{}); err == nil {
		t.Fatal("expected an error when both pipewire and its pulse fallback fail")
	}
}

func TestAvailableBackendsProbesInPipeWireALSAPulseOrder(t *testing.T) {
	m := newTestManager()
	m.Register(&fakeBackend{typ: TypeALSA, available: true})
	m.Register(&fakeBackend{typ: TypePipeWire, available: true})
	m.Register(&fakeBackend{typ: TypePulse, available: true})

	got := m.AvailableBackends()
	want := []Type{TypePipeWire, TypeALSA, TypePulse}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
