package settings

import (
	"path/filepath"
	"testing"

	"github.com/akarpov/sonance/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New("settings-test", false, nil)
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "settings.db"), false, testLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetPlaybackSeedsDefaultsOnFirstRead(t *testing.T) {
	s := openTestStore(t)

	p, err := s.GetPlayback()
	if err != nil {
		t.Fatalf("GetPlayback: %v", err)
	}
	if p.BackendType != "pipewire" {
		t.Fatalf("expected default backend_type pipewire, got %q", p.BackendType)
	}
	if !p.NormalizationEnabled || p.NormalizationTargetLUFS != -18.0 {
		t.Fatalf("unexpected normalization defaults: %+v", p)
	}
	if p.DeviceSampleRateLimits == nil || len(p.DeviceSampleRateLimits) != 0 {
		t.Fatalf("expected empty rate-limit map, got %+v", p.DeviceSampleRateLimits)
	}
}

func TestSetPlaybackRoundTripsRateLimitsAndPointers(t *testing.T) {
	s := openTestStore(t)

	device := "hw:0,0"
	rate := 96000
	p := Playback{
		OutputDevice:            &device,
		BackendType:             "alsa",
		PreferredSampleRate:     &rate,
		DeviceSampleRateLimits:  map[string]int{"hw:0,0": 48000, "hw:1,0": 192000},
		NormalizationEnabled:    true,
		NormalizationTargetLUFS: -14.0,
		GaplessEnabled:          true,
		StreamBufferSeconds:     3.5,
	}
	if err := s.SetPlayback(p); err != nil {
		t.Fatalf("SetPlayback: %v", err)
	}

	got, err := s.GetPlayback()
	if err != nil {
		t.Fatalf("GetPlayback: %v", err)
	}
	if got.OutputDevice == nil || *got.OutputDevice != device {
		t.Fatalf("OutputDevice not round-tripped: %+v", got)
	}
	if got.PreferredSampleRate == nil || *got.PreferredSampleRate != rate {
		t.Fatalf("PreferredSampleRate not round-tripped: %+v", got)
	}
	if got.DeviceSampleRateLimits["hw:1,0"] != 192000 {
		t.Fatalf("rate limits not round-tripped: %+v", got.DeviceSampleRateLimits)
	}
	if got.StreamBufferSeconds != 3.5 {
		t.Fatalf("StreamBufferSeconds not round-tripped: %v", got.StreamBufferSeconds)
	}
}

func TestLoudnessCacheRoundTripAndMiss(t *testing.T) {
	s := openTestStore(t)

	if _, ok, err := s.GetLoudness(99); err != nil || ok {
		t.Fatalf("expected miss for unknown track, got ok=%v err=%v", ok, err)
	}

	if err := s.SetLoudness(99, -4.5, 0.92, "ebur128"); err != nil {
		t.Fatalf("SetLoudness: %v", err)
	}

	c, ok, err := s.GetLoudness(99)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if c.GainDB != -4.5 || c.Peak != 0.92 || c.Source != "ebur128" {
		t.Fatalf("unexpected cached loudness: %+v", c)
	}

	if err := s.SetLoudness(99, -2.0, 0.5, "ebur128"); err != nil {
		t.Fatalf("SetLoudness (overwrite): %v", err)
	}
	c, ok, err = s.GetLoudness(99)
	if err != nil || !ok || c.GainDB != -2.0 {
		t.Fatalf("expected updated row, got %+v ok=%v err=%v", c, ok, err)
	}
}
