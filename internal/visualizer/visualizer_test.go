package visualizer

import "testing"

func TestRingBufferSnapshotReturnsMostRecentSamples(t *testing.T) {
	r := NewRingBuffer(8)
	r.Write([]float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})

	out := make([]float32, 4)
	r.Snapshot(out)

	want := []float32{7, 8, 9, 10}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("snapshot = %v, want %v", out, want)
		}
	}
}

func TestRingBufferSnapshotBeforeFullLeavesLeadingZeros(t *testing.T) {
	r := NewRingBuffer(16)
	r.Write([]float32{1, 2, 3})

	out := make([]float32, 8)
	r.Snapshot(out)

	want := []float32{0, 0, 0, 0, 0, 1, 2, 3}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("snapshot = %v, want %v", out, want)
		}
	}
}

func TestProcessorProducesExpectedBarCount(t *testing.T) {
	p := NewProcessor(48000)
	samples := make([]float32, FFTSize)
	frame := p.Process(samples, 48000)

	if len(frame.Bars) != NumBars {
		t.Fatalf("got %d bars, want %d", len(frame.Bars), NumBars)
	}
	if len(frame.Energy) != NumEnergyBands {
		t.Fatalf("got %d energy bands, want %d", len(frame.Energy), NumEnergyBands)
	}
	if len(frame.Waveform) != WaveformPoints*2 {
		t.Fatalf("got %d waveform points, want %d", len(frame.Waveform), WaveformPoints*2)
	}
}

func TestProcessorSilenceProducesNoTransient(t *testing.T) {
	p := NewProcessor(48000)
	samples := make([]float32, FFTSize)
	for i := 0; i < 5; i++ {
		frame := p.Process(samples, 48000)
		if frame.HasTransient {
			t.Fatalf("unexpected transient on silent input at iteration %d", i)
		}
	}
}

func TestSpectralAnalyzerReturnsExpectedBandCount(t *testing.T) {
	a := NewSpectralAnalyzer(48000, 1024, 64, 24, 0.8)
	frame := make([]float32, 1024)
	a.Process(frame, 48000)
	if len(a.LatestBands()) != 64 {
		t.Fatalf("got %d bands, want 64", len(a.LatestBands()))
	}
}

func TestSpectralAnalyzerClampsOutOfRangeConstructorArgs(t *testing.T) {
	a := NewSpectralAnalyzer(48000, 777, 10, 500, 5.0)
	if a.fftSize != 1024 {
		t.Fatalf("expected fftSize to fall back to 1024, got %d", a.fftSize)
	}
	if a.numBands != 48 {
		t.Fatalf("expected numBands clamped to 48, got %d", a.numBands)
	}
}
