// Package backend abstracts over the concrete audio sinks a playback
// engine can write PCM to: ALSA hw: devices directly, and PipeWire/
// PulseAudio sinks via pactl-driven negotiation, both ultimately writing
// through a shared portaudio stream.
package backend

import (
	"context"
	"strings"
)

// Type identifies which concrete backend produced a Stream.
type Type string

const (
	TypePipeWire Type = "pipewire"
	TypeALSA     Type = "alsa"
	TypePulse    Type = "pulse"
)

// Device describes one enumerated output device/sink.
type Device struct {
	ID              string
	Name            string
	Description     string
	IsDefault       bool
	MaxSampleRate   int // 0 if unknown
	IsHardware      bool
	DeviceBus       string // "usb", "pci", "bluetooth", "" if unknown
}

// Config is what a caller asks a Backend to open a stream with.
type Config struct {
	DeviceID      string // "" selects the system/backend default
	SampleRate    int
	Channels      int
	ExclusiveMode bool

	// PWForceBitperfect asks the PipeWire backend to also pin the graph's
	// quantum (clock.force-quantum) alongside its forced clock rate, for
	// bit-perfect buffer sizing. ALSA direct and Pulse ignore it.
	PWForceBitperfect bool
}

// Stream is an open output device ready to receive interleaved float32
// PCM. Implementations must be safe for one writer goroutine; Close must
// be safe to call once.
type Stream interface {
	// Write blocks until samples have been accepted by the device (or an
	// underlying error occurs).
	Write(samples []float32) error
	Drain() error
	SampleRate() int
	Channels() int
	Close() error
}

// Backend is one concrete output transport (ALSA direct, PipeWire/Pulse).
type Backend interface {
	Type() Type
	Description() string
	IsAvailable() bool
	EnumerateDevices(ctx context.Context) ([]Device, error)
	Open(ctx context.Context, cfg Config) (Stream, error)
}

// IsHardwareDeviceID reports whether a device identifier names a direct
// ALSA hardware device (hw:, plughw:, or front:CARD=) rather than a
// PipeWire/Pulse sink name.
func IsHardwareDeviceID(deviceID string) bool {
	switch {
	case strings.HasPrefix(deviceID, "hw:"):
		return true
	case strings.HasPrefix(deviceID, "plughw:"):
		return true
	case strings.HasPrefix(deviceID, "front:CARD="):
		return true
	default:
		return false
	}
}
