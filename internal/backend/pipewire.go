package backend

import (
	"context"
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/akarpov/sonance/internal/logging"
	"github.com/akarpov/sonance/internal/pactl"
	"github.com/akarpov/sonance/internal/procfs"
)

// PipeWireBackend writes through PipeWire's PulseAudio-compatible sink
// layer, using pactl/pw-metadata to pick a sink, discover the ALSA card
// backing it (if any), and force PipeWire's graph clock to a bit-perfect
// rate before opening the stream.
type PipeWireBackend struct {
	log *logging.Logger
}

// NewPipeWireBackend builds a PipeWire/Pulse backend.
func NewPipeWireBackend(log *logging.Logger) *PipeWireBackend {
	return &PipeWireBackend{log: log}
}

func (b *PipeWireBackend) Type() Type { return TypePipeWire }

func (b *PipeWireBackend) Description() string {
	return "PipeWire - Shared system audio with automatic resampling"
}

func (b *PipeWireBackend) IsAvailable() bool {
	return pactl.Available()
}

// EnumerateDevices lists PipeWire/Pulse sinks via pactl.
func (b *PipeWireBackend) EnumerateDevices(ctx context.Context) ([]Device, error) {
	sinks, err := pactl.ListSinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pipewire sinks: %w", err)
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

// Open picks the requested sink as PipeWire's default, forces the graph
// clock to the effective rate when the sink's backing ALSA card supports
// it, and opens a portaudio stream against the "pulse" host API device.
func (b *PipeWireBackend) Open(ctx context.Context, cfg Config) (Stream, error) {
	if cfg.DeviceID != "" {
		if err := pactl.SetDefaultSink(ctx, cfg.DeviceID); err != nil {
			b.log.Warn("failed to set default sink, continuing with current default", "error", err, "sink", cfg.DeviceID)
		}
	}

	sinkName := cfg.DeviceID
	if sinkName == "" {
		if name, err := pactl.DefaultSink(ctx); err == nil {
			sinkName = name
		}
	}

	effectiveRate := cfg.SampleRate
	if sinkName != "" {
		if cardNumber, ok, err := pactl.ALSACardForSink(ctx, sinkName); err == nil && ok {
			if rates, err := procfs.SupportedPlaybackRates(cardNumber); err == nil {
				effectiveRate = EffectiveRate(cfg.SampleRate, rates)
			}
		}
	}

	if err := pactl.ForceClockRate(ctx, effectiveRate); err != nil {
		b.log.Debug("pw-metadata clock force failed, relying on PipeWire's own resampler", "error", err, "rate", effectiveRate)
	}

	bufferFrames := PipeWireBufferFrames(effectiveRate, cfg.ExclusiveMode)

	if cfg.PWForceBitperfect {
		if err := pactl.ForceQuantum(ctx, bufferFrames); err != nil {
			b.log.Debug("pw-metadata quantum force failed, relying on PipeWire's default quantum", "error", err, "quantum", bufferFrames)
		}
	}

	device, err := pulseHostDevice()
	if err != nil {
		pactl.ResetClockRate(ctx)
		return nil, err
	}

	stream, err := newPAStream(device, effectiveRate, cfg.Channels, bufferFrames, portaudioLatency{exclusive: cfg.ExclusiveMode})
	if err != nil {
		pactl.ResetClockRate(ctx)
		return nil, err
	}
	return &pipewireStream{paStream: stream, ctx: ctx}, nil
}

// pulseHostDevice finds the portaudio device backed by the "pulse" host
// API, which is how portaudio reaches PipeWire's PulseAudio compatibility
// layer.
func pulseHostDevice() (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerate portaudio devices: %w", err)
	}
	for _, d := range devices {
		if d.HostApi == nil {
			continue
		}
		name := d.HostApi.Name
		if name == "pulse" || name == "PulseAudio" || name == "PipeWire" {
			if d.MaxOutputChannels > 0 {
				return d, nil
			}
		}
	}
	return portaudio.DefaultOutputDevice()
}

// pipewireStream wraps paStream so Close also releases the forced clock
// rate, leaving the shared PipeWire graph in its default state for other
// applications.
type pipewireStream struct {
	*paStream
	ctx context.Context
}

func (s *pipewireStream) Close() error {
	pactl.ResetClockRate(s.ctx)
	return s.paStream.Close()
}
