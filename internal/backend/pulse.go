package backend

import (
	"context"
	"fmt"

	"github.com/akarpov/sonance/internal/logging"
	"github.com/akarpov/sonance/internal/pactl"
)

// PulseBackend writes through the same pactl-discovered sink PipeWireBackend
// uses, but never pins the graph clock: a structural duplicate of
// PipeWireBackend without the rate/quantum forcing, used as the one
// explicit fallback when opening a PipeWire stream fails.
type PulseBackend struct {
	log *logging.Logger
}

// NewPulseBackend builds a plain PulseAudio/PipeWire-passthrough backend.
func NewPulseBackend(log *logging.Logger) *PulseBackend {
	return &PulseBackend{log: log}
}

func (b *PulseBackend) Type() Type { return TypePulse }

func (b *PulseBackend) Description() string {
	return "Pulse - Shared system audio, no clock pinning"
}

func (b *PulseBackend) IsAvailable() bool {
	return pactl.Available()
}

// EnumerateDevices lists sinks via pactl, identically to PipeWireBackend.
func (b *PulseBackend) EnumerateDevices(ctx context.Context) ([]Device, error) {
	sinks, err := pactl.ListSinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pulse sinks: %w", err)
	}

	out := make([]Device, 0, len(sinks))
	for _, s := range sinks {
		out = append(out, Device{
			ID:            s.Name,
			Name:          s.Name,
			Description:   s.Description,
			IsDefault:     s.IsDefault,
			MaxSampleRate: s.MaxSampleRate,
			IsHardware:    s.IsHardware,
			DeviceBus:     s.DeviceBus,
		})
	}
	return out, nil
}

// Open picks the requested sink as the default and opens a portaudio stream
// against it, without touching PipeWire's clock or quantum: the rate/buffer
// negotiation it leaves entirely to PipeWire's own resampler.
func (b *PulseBackend) Open(ctx context.Context, cfg Config) (Stream, error) {
	if cfg.DeviceID != "" {
		if err := pactl.SetDefaultSink(ctx, cfg.DeviceID); err != nil {
			b.log.Warn("failed to set default sink, continuing with current default", "error", err, "sink", cfg.DeviceID)
		}
	}

	device, err := pulseHostDevice()
	if err != nil {
		return nil, err
	}

	bufferFrames := PipeWireBufferFrames(cfg.SampleRate, cfg.ExclusiveMode)
	stream, err := newPAStream(device, cfg.SampleRate, cfg.Channels, bufferFrames, portaudioLatency{exclusive: cfg.ExclusiveMode})
	if err != nil {
		return nil, err
	}
	return stream, nil
}
