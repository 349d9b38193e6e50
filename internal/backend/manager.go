package backend

import (
	"context"
	"fmt"

	"github.com/akarpov/sonance/internal/logging"
)

// Manager selects among the registered backends by configured type, with
// a hardware-prefix sniff on the device ID and an availability fallback
// when the configured backend can't be used.
type Manager struct {
	backends map[Type]Backend
	order    []Type // preference order for fallback
	log      *logging.Logger
}

// NewManager builds a Manager with the standard ALSA-direct, PipeWire, and
// Pulse backends registered, ALSA preferred first since it's the more
// specific (bit-perfect, no resampling) choice.
func NewManager(log *logging.Logger) *Manager {
	m := &Manager{
		backends: make(map[Type]Backend),
		log:      log,
	}
	m.Register(NewALSABackend(log))
	m.Register(NewPipeWireBackend(log))
	m.Register(NewPulseBackend(log))
	m.order = []Type{TypeALSA, TypePipeWire, TypePulse}
	return m
}

// Register adds or replaces a backend.
func (m *Manager) Register(b Backend) {
	m.backends[b.Type()] = b
}

// Backend returns the registered backend of the given type, if any.
func (m *Manager) Backend(t Type) (Backend, bool) {
	b, ok := m.backends[t]
	return b, ok
}

// Select picks which backend should handle a configured backend type and
// device ID: the device ID's hw:/plughw: prefix always forces ALSA
// direct regardless of the configured type (opening a hardware device
// through PipeWire makes no sense), then falls back to the first
// available backend in preference order if the requested one reports
// itself unavailable.
func (m *Manager) Select(requested Type, deviceID string) (Backend, error) {
	if IsHardwareDeviceID(deviceID) {
		if b, ok := m.backends[TypeALSA]; ok && b.IsAvailable() {
			return b, nil
		}
	}

	if b, ok := m.backends[requested]; ok && b.IsAvailable() {
		return b, nil
	}

	for _, t := range m.order {
		if t == requested {
			continue
		}
		if b, ok := m.backends[t]; ok && b.IsAvailable() {
			m.log.Warn("requested backend unavailable, falling back", "requested", requested, "fallback", t)
			return b, nil
		}
	}

	return nil, fmt.Errorf("no audio backend available")
}

// Open resolves a backend via Select and opens a stream on it. Per the
// error-handling rule that resource errors on PipeWire fall back once to
// Pulse (ALSA direct never falls back: the user explicitly chose it), a
// PipeWire open failure retries exactly once against Pulse before giving
// up.
func (m *Manager) Open(ctx context.Context, requested Type, cfg Config) (Stream, Type, error) {
	b, err := m.Select(requested, cfg.DeviceID)
	if err != nil {
		return nil, "", err
	}
	stream, err := b.Open(ctx, cfg)
	if err != nil {
		if b.Type() == TypePipeWire {
			if pulse, ok := m.backends[TypePulse]; ok && pulse.IsAvailable() {
				m.log.Warn("pipewire open failed, falling back to pulse once", "error", err)
				if pulseStream, pulseErr := pulse.Open(ctx, cfg); pulseErr == nil {
					return pulseStream, TypePulse, nil
				}
			}
		}
		return nil, "", fmt.Errorf("open %s backend: %w", b.Type(), err)
	}
	return stream, b.Type(), nil
}

// AvailableBackends probes backends in the order PipeWire, ALSA, Pulse and
// returns those that report themselves available.
func (m *Manager) AvailableBackends() []Type {
	var out []Type
	for _, t := range []Type{TypePipeWire, TypeALSA, TypePulse} {
		if b, ok := m.backends[t]; ok && b.IsAvailable() {
			out = append(out, t)
		}
	}
	return out
}

// EnumerateAllDevices merges device lists from every available backend.
func (m *Manager) EnumerateAllDevices(ctx context.Context) (map[Type][]Device, error) {
	result := make(map[Type][]Device)
	for t, b := range m.backends {
		if !b.IsAvailable() {
			continue
		}
		devices, err := b.EnumerateDevices(ctx)
		if err != nil {
			m.log.Warn("enumerate devices failed", "backend", t, "error", err)
			continue
		}
		result[t] = devices
	}
	return result, nil
}
