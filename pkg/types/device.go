package types

// Device describes an enumerated output device, backend-agnostic.
type Device struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Description          *string  `json:"description,omitempty"`
	IsDefault            bool     `json:"is_default"`
	MaxSampleRate        *int     `json:"max_sample_rate,omitempty"`
	SupportedSampleRates []int    `json:"supported_sample_rates,omitempty"`
	DeviceBus            *string  `json:"device_bus,omitempty"`
	IsHardware           bool     `json:"is_hardware"`
}

// OutputConfig describes the stream a backend is asked to open.
type OutputConfig struct {
	DeviceID      *string
	SampleRate    int
	Channels      int
	ExclusiveMode bool
	BufferSize    *int
}

// BackendKind names the three backend implementations the core ships.
type BackendKind string

const (
	BackendPipeWire BackendKind = "pipewire"
	BackendALSA     BackendKind = "alsa"
	BackendPulse    BackendKind = "pulse"
)
