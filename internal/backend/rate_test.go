package backend

import "testing"

func TestBufferFramesForRate(t *testing.T) {
	cases := []struct {
		rate int
		want int
	}{
		{192000, 96000},
		{384000, 192000},
		{96000, 24000},
		{176400, 44100},
		{44100, 5512},
		{48000, 6000},
	}
	for _, c := range cases {
		if got := BufferFramesForRate(c.rate); got != c.want {
			t.Errorf("BufferFramesForRate(%d) = %d, want %d", c.rate, got, c.want)
		}
	}
}

func TestPipeWireBufferFrames(t *testing.T) {
	cases := []struct {
		rate      int
		exclusive bool
		want      int
	}{
		{44100, true, 512},
		{192000, true, 512},
		{44100, false, 4410},
		{48000, false, 4800},
	}
	for _, c := range cases {
		if got := PipeWireBufferFrames(c.rate, c.exclusive); got != c.want {
			t.Errorf("PipeWireBufferFrames(%d, %v) = %d, want %d", c.rate, c.exclusive, got, c.want)
		}
	}
}

func TestFindBestFallbackRatePrefersSameFamily(t *testing.T) {
	supported := []int{44100, 48000, 88200, 96000}
	got := FindBestFallbackRate(176400, supported)
	if got != 88200 {
		t.Fatalf("got %d, want 88200 (highest 44.1kHz-family rate <= 176400)", got)
	}
}

func TestFindBestFallbackRateFallsBackAcrossFamilies(t *testing.T) {
	supported := []int{48000, 96000}
	got := FindBestFallbackRate(176400, supported)
	if got != 96000 {
		t.Fatalf("got %d, want 96000 (no 44.1kHz family rate available)", got)
	}
}

func TestRateSupportedNilMeansUnknownOrContinuous(t *testing.T) {
	if !RateSupported(192000, nil) {
		t.Fatal("expected nil supported list to mean rate is accepted")
	}
}

func TestEffectiveRatePassesThroughWhenSupported(t *testing.T) {
	got := EffectiveRate(48000, []int{44100, 48000, 96000})
	if got != 48000 {
		t.Fatalf("got %d, want 48000", got)
	}
}

func TestEffectiveRateFallsBackWhenUnsupported(t *testing.T) {
	got := EffectiveRate(352800, []int{44100, 48000, 96000})
	if got != 44100 {
		t.Fatalf("got %d, want 44100 fallback (highest 44.1kHz-family rate <= 352800)", got)
	}
}
