package player

import "testing"

func TestNewSharedStateDefaultsToUnityGain(t *testing.T) {
	s := NewSharedState()
	if got := s.Volume(); got != 1.0 {
		t.Fatalf("volume = %v, want 1.0", got)
	}
	if got := s.NormGain(); got != 1.0 {
		t.Fatalf("norm gain = %v, want 1.0", got)
	}
	if s.IsPlaying() {
		t.Fatal("expected fresh state to report not playing")
	}
	if s.CurrentTrack() != 0 {
		t.Fatalf("current track = %d, want 0", s.CurrentTrack())
	}
}

func TestSharedStatePositionAndDurationRoundTrip(t *testing.T) {
	s := NewSharedState()
	s.SetPosition(12.5)
	s.SetDuration(180.25)

	if got := s.Position(); got != 12.5 {
		t.Fatalf("position = %v, want 12.5", got)
	}
	if got := s.Duration(); got != 180.25 {
		t.Fatalf("duration = %v, want 180.25", got)
	}
}

func TestSharedStateVolumeAndNormGainRoundTrip(t *testing.T) {
	s := NewSharedState()
	s.SetVolume(0.42)
	s.NormGainAtomic().Store(uint32(0)) // zero out before checking frombits path
	s.SetGaplessReady(true, 7)

	if got := s.Volume(); got != float32(0.42) {
		t.Fatalf("volume = %v, want 0.42", got)
	}
	if got := s.NormGain(); got != 0 {
		t.Fatalf("norm gain = %v, want 0", got)
	}
	ready, next := s.GaplessReady()
	if !ready || next != 7 {
		t.Fatalf("gapless ready = (%v, %d), want (true, 7)", ready, next)
	}
}

func TestSharedStateSnapshotReflectsCurrentValues(t *testing.T) {
	s := NewSharedState()
	s.SetPlaying(true)
	s.SetCurrentTrack(99)
	s.SetPosition(5)
	s.SetDuration(200)
	s.SetSampleRate(44100)
	s.SetBitDepth(16)
	s.SetGaplessReady(true, 100)

	snap := s.Snapshot()
	if !snap.IsPlaying || snap.CurrentTrackID != 99 || snap.PositionSecs != 5 ||
		snap.DurationSecs != 200 || snap.SampleRate != 44100 || snap.BitDepth != 16 ||
		!snap.GaplessReady || snap.GaplessNextID != 100 {
		t.Fatalf("snapshot did not reflect current state: %+v", snap)
	}
}

func TestSharedStateSampleRateAndBitDepthRoundTrip(t *testing.T) {
	s := NewSharedState()
	s.SetSampleRate(96000)
	s.SetBitDepth(24)

	if got := s.SampleRate(); got != 96000 {
		t.Fatalf("sample rate = %d, want 96000", got)
	}
	if got := s.BitDepth(); got != 24 {
		t.Fatalf("bit depth = %d, want 24", got)
	}
}
