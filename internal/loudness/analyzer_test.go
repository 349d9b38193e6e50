package loudness

import (
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akarpov/sonance/internal/logging"
	"github.com/akarpov/sonance/internal/settings"
)

func testLogger() *logging.Logger {
	return logging.New("loudness-test", false, nil)
}

func openTestStore(t *testing.T) *settings.Store {
	t.Helper()
	s, err := settings.Open(t.TempDir()+"/settings.db", false, testLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// silence at sampleRate/channels small values lets the initial threshold
// trip quickly without a real decoder.
func feedSilence(a *Analyzer, totalSamples int) {
	const chunk = 512
	buf := make([]float32, chunk)
	for fed := 0; fed < totalSamples; fed += chunk {
		a.SendSamples(buf)
	}
}

func TestAnalyzerPublishesCachedGainImmediately(t *testing.T) {
	store := openTestStore(t)
	if err := store.SetLoudness(42, -3.0, 0.0, "ebur128"); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	a := Spawn(store, testLogger())
	defer a.Shutdown()

	var gainBits atomic.Uint32
	a.SendNewTrack(NewTrack{
		TrackID:    42,
		SampleRate: 8000,
		Channels:   1,
		TargetLUFS: -18.0,
		GainAtomic: &gainBits,
	})

	deadline := time.Now().Add(2 * time.Second)
	for gainBits.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	got := math.Float32frombits(gainBits.Load())
	want := float32(ComputeGainCapped(-3.0))
	if math.Abs(float64(got-want)) > 0.001 {
		t.Fatalf("got gain %v, want %v", got, want)
	}
}

func TestAnalyzerResetDropsActiveState(t *testing.T) {
	a := Spawn(nil, testLogger())
	defer a.Shutdown()

	var gainBits atomic.Uint32
	a.SendNewTrack(NewTrack{TrackID: 1, SampleRate: 8000, Channels: 1, TargetLUFS: -18.0, GainAtomic: &gainBits})
	a.SendReset()

	// Samples sent after Reset with no active track must not panic or
	// publish anything; drain synchronously via Shutdown below.
	a.SendSamples(make([]float32, 128))
}

func TestAnalyzerMeasuresAfterInitialThreshold(t *testing.T) {
	store := openTestStore(t)
	a := Spawn(store, testLogger())

	const sampleRate = 1000
	var gainBits atomic.Uint32
	a.SendNewTrack(NewTrack{
		TrackID:    7,
		SampleRate: sampleRate,
		Channels:   1,
		TargetLUFS: -18.0,
		GainAtomic: &gainBits,
	})

	// initialThreshold = sampleRate*channels*10 = 10000 samples of silence.
	feedSilence(a, sampleRate*10+1024)
	a.Shutdown()
	time.Sleep(50 * time.Millisecond)

	// Silence never clears the infinite-loudness guard, so no cache row
	// and no gain publication should occur.
	if _, ok, err := store.GetLoudness(7); err != nil {
		t.Fatalf("GetLoudness: %v", err)
	} else if ok {
		t.Fatal("expected no cached loudness for pure silence")
	}
}
