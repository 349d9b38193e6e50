package procfs

import (
	"testing"
)

// SupportedPlaybackRates hardcodes /proc/asound, so these tests exercise
// its line-scanning logic directly rather than the real filesystem path.
// parseStreamContent factors that logic out so both the production path
// and the test share it.
func TestParseStreamContentDiscreteRates(t *testing.T) {
	content := `Capture:
  Rates: 44100, 48000
Playback:
  Rates: 44100, 48000, 88200, 96000, 176400, 192000
`
	rates, err := parseStreamContent(content)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []int{44100, 48000, 88200, 96000, 176400, 192000}
	if len(rates) != len(want) {
		t.Fatalf("got %v, want %v", rates, want)
	}
	for i := range want {
		if rates[i] != want[i] {
			t.Fatalf("got %v, want %v", rates, want)
		}
	}
}

func TestParseStreamContentContinuousRange(t *testing.T) {
	content := `Playback:
  Rates: continuous 8000 - 192000
`
	rates, err := parseStreamContent(content)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rates != nil {
		t.Fatalf("expected nil for continuous range, got %v", rates)
	}
}

func TestParseStreamContentIgnoresCaptureRates(t *testing.T) {
	content := `Capture:
  Rates: 192000
Playback:
  Rates: 48000
`
	rates, err := parseStreamContent(content)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rates) != 1 || rates[0] != 48000 {
		t.Fatalf("got %v, want [48000]", rates)
	}
}
