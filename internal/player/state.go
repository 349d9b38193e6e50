package player

import (
	"math"
	"sync/atomic"
)

// SharedState holds the playback cells the audio goroutine writes and any
// number of readers (UI, RPC) read without taking a lock. Every field is an
// independent atomic cell rather than one struct behind a mutex, so a UI
// poll never contends with or blocks the audio loop.
type SharedState struct {
	isPlaying     atomic.Bool
	currentTrack  atomic.Uint64 // 0 = no track
	positionSecs  atomic.Uint64 // math.Float64bits
	durationSecs  atomic.Uint64 // math.Float64bits
	volume        atomic.Uint32 // math.Float32bits, 0.0-1.0
	sampleRate    atomic.Uint32
	bitDepth      atomic.Uint32
	normGainBits  atomic.Uint32 // math.Float32bits, default 1.0
	gaplessReady  atomic.Bool
	gaplessNextID atomic.Uint64
}

// NewSharedState returns a SharedState with volume at unity gain and
// normalization gain at 1.0, matching the defaults a freshly constructed
// controller should expose before any track has ever played.
func NewSharedState() *SharedState {
	s := &SharedState{}
	s.volume.Store(math.Float32bits(1.0))
	s.normGainBits.Store(math.Float32bits(1.0))
	return s
}

func (s *SharedState) SetPlaying(v bool)      { s.isPlaying.Store(v) }
func (s *SharedState) IsPlaying() bool        { return s.isPlaying.Load() }
func (s *SharedState) SetCurrentTrack(id uint64) { s.currentTrack.Store(id) }
func (s *SharedState) CurrentTrack() uint64   { return s.currentTrack.Load() }

func (s *SharedState) SetPosition(secs float64) {
	s.positionSecs.Store(math.Float64bits(secs))
}
func (s *SharedState) Position() float64 {
	return math.Float64frombits(s.positionSecs.Load())
}

func (s *SharedState) SetDuration(secs float64) {
	s.durationSecs.Store(math.Float64bits(secs))
}
func (s *SharedState) Duration() float64 {
	return math.Float64frombits(s.durationSecs.Load())
}

func (s *SharedState) SetVolume(v float32) { s.volume.Store(math.Float32bits(v)) }
func (s *SharedState) Volume() float32     { return math.Float32frombits(s.volume.Load()) }

func (s *SharedState) SetSampleRate(rate int) { s.sampleRate.Store(uint32(rate)) }
func (s *SharedState) SampleRate() int        { return int(s.sampleRate.Load()) }

func (s *SharedState) SetBitDepth(bits int) { s.bitDepth.Store(uint32(bits)) }
func (s *SharedState) BitDepth() int        { return int(s.bitDepth.Load()) }

// NormGainAtomic exposes the raw atomic cell so the loudness analyzer can
// publish into it directly without going through SharedState's API.
func (s *SharedState) NormGainAtomic() *atomic.Uint32 { return &s.normGainBits }

func (s *SharedState) NormGain() float32 {
	return math.Float32frombits(s.normGainBits.Load())
}

func (s *SharedState) SetGaplessReady(ready bool, nextTrackID uint64) {
	s.gaplessReady.Store(ready)
	s.gaplessNextID.Store(nextTrackID)
}
func (s *SharedState) GaplessReady() (bool, uint64) {
	return s.gaplessReady.Load(), s.gaplessNextID.Load()
}

// Snapshot is a point-in-time, non-atomic copy of SharedState for UI/RPC
// consumption.
type Snapshot struct {
	IsPlaying         bool
	CurrentTrackID    uint64
	PositionSecs      float64
	DurationSecs      float64
	Volume            float32
	SampleRate        int
	BitDepth          int
	NormalizationGain float32
	GaplessReady      bool
	GaplessNextID     uint64
}

func (s *SharedState) Snapshot() Snapshot {
	ready, nextID := s.GaplessReady()
	return Snapshot{
		IsPlaying:         s.IsPlaying(),
		CurrentTrackID:    s.CurrentTrack(),
		PositionSecs:      s.Position(),
		DurationSecs:      s.Duration(),
		Volume:            s.Volume(),
		SampleRate:        s.SampleRate(),
		BitDepth:          s.BitDepth(),
		NormalizationGain: s.NormGain(),
		GaplessReady:      ready,
		GaplessNextID:     nextID,
	}
}
