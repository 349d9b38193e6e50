// Package loudness measures integrated track loudness in the background
// and turns it into a gain factor the playback pipeline can apply live.
package loudness

import (
	"math"
	"sync/atomic"

	"github.com/akarpov/sonance/internal/logging"
	"github.com/akarpov/sonance/internal/settings"
)

// Message is sent on an Analyzer's channel to drive its single background
// worker. The zero value of each concrete type is a complete message.
type Message interface{ isMessage() }

// NewTrack starts (or restarts) measurement for a track. GainAtomic
// receives published gain factors as IEEE-754 float32 bits, so the
// playback pipeline can read it lock-free from the decode loop.
type NewTrack struct {
	TrackID    uint64
	SampleRate int
	Channels   int
	TargetLUFS float64
	GainAtomic *atomic.Uint32
}

// Samples feeds one block of interleaved float32 PCM to the active track's
// meter.
type Samples struct {
	Data []float32
}

// Reset drops the active track's measurement state without starting a new
// one.
type Reset struct{}

// Shutdown stops the analyzer goroutine.
type Shutdown struct{}

func (NewTrack) isMessage() {}
func (Samples) isMessage()  {}
func (Reset) isMessage()    {}
func (Shutdown) isMessage() {}

// analyzerState tracks one in-progress measurement.
type analyzerState struct {
	trackID    uint64
	targetLUFS float64
	meter      *Meter
	channels   int
	sampleRate int
	gainAtomic *atomic.Uint32

	samplesFed           int64
	samplesAtLastMeasure int64
	initialDone          bool
	initialThreshold     int64
	refinementInterval   int64
}

func newAnalyzerState(trackID uint64, sampleRate, channels int, targetLUFS float64, gainAtomic *atomic.Uint32) *analyzerState {
	return &analyzerState{
		trackID:            trackID,
		targetLUFS:         targetLUFS,
		meter:              NewMeter(sampleRate, channels),
		channels:           channels,
		sampleRate:         sampleRate,
		gainAtomic:         gainAtomic,
		initialThreshold:   int64(sampleRate) * int64(channels) * 10,
		refinementInterval: int64(sampleRate) * int64(channels) * 5,
	}
}

func publishGain(gainAtomic *atomic.Uint32, linearGain float64) {
	if gainAtomic == nil {
		return
	}
	gainAtomic.Store(math.Float32bits(float32(linearGain)))
}

// Analyzer runs loudness measurement on a dedicated goroutine so decode
// loops never block on meter math or cache writes.
type Analyzer struct {
	ch    chan Message
	cache *settings.Store
	log   *logging.Logger
}

// Spawn starts the analyzer goroutine and returns a handle for sending it
// messages. Cache may be nil, in which case measurements are never
// persisted or looked up.
func Spawn(cache *settings.Store, log *logging.Logger) *Analyzer {
	a := &Analyzer{
		ch:    make(chan Message, 64),
		cache: cache,
		log:   log,
	}
	go a.run()
	return a
}

// SendNewTrack starts measuring a new track, consulting the cache first so
// a previously-measured gain is published immediately.
func (a *Analyzer) SendNewTrack(msg NewTrack) {
	a.ch <- msg
}

// SendSamples feeds one block of interleaved PCM to the active track.
func (a *Analyzer) SendSamples(data []float32) {
	a.ch <- Samples{Data: data}
}

// SendReset drops the active measurement.
func (a *Analyzer) SendReset() {
	a.ch <- Reset{}
}

// Shutdown stops the analyzer goroutine. The Analyzer must not be used
// afterward.
func (a *Analyzer) Shutdown() {
	a.ch <- Shutdown{}
}

func (a *Analyzer) run() {
	var state *analyzerState
	for msg := range a.ch {
		switch m := msg.(type) {
		case NewTrack:
			state = a.handleNewTrack(m)
		case Samples:
			if state != nil {
				a.feedSamples(state, m.Data)
			}
		case Reset:
			state = nil
		case Shutdown:
			return
		}
	}
}

func (a *Analyzer) handleNewTrack(m NewTrack) *analyzerState {
	state := newAnalyzerState(m.TrackID, m.SampleRate, m.Channels, m.TargetLUFS, m.GainAtomic)

	if a.cache != nil {
		if cached, ok, err := a.cache.GetLoudness(m.TrackID); err == nil && ok {
			gain := ComputeGainCapped(cached.GainDB)
			publishGain(m.GainAtomic, gain)
			state.initialDone = true
			a.log.Debug("published cached loudness", "track_id", m.TrackID, "gain_db", cached.GainDB)
		} else if err != nil {
			a.log.Warn("loudness cache lookup failed", "error", err, "track_id", m.TrackID)
		}
	}
	return state
}

func (a *Analyzer) feedSamples(state *analyzerState, data []float32) {
	state.meter.AddFrames(data)
	state.samplesFed += int64(len(data))

	switch {
	case !state.initialDone && state.samplesFed >= state.initialThreshold:
		a.measureAndUpdate(state)
		state.initialDone = true
		state.samplesAtLastMeasure = state.samplesFed
	case state.initialDone && state.samplesFed-state.samplesAtLastMeasure >= state.refinementInterval:
		a.measureAndUpdate(state)
		state.samplesAtLastMeasure = state.samplesFed
	}
}

func (a *Analyzer) measureAndUpdate(state *analyzerState) {
	measured := state.meter.LoudnessGlobal()
	if math.IsInf(measured, -1) || math.IsNaN(measured) {
		return
	}

	adjustmentDB := state.targetLUFS - measured
	gain := ComputeGainCapped(adjustmentDB)
	publishGain(state.gainAtomic, gain)

	if a.cache != nil {
		if err := a.cache.SetLoudness(state.trackID, adjustmentDB, 0.0, "ebur128"); err != nil {
			a.log.Warn("loudness cache write failed", "error", err, "track_id", state.trackID)
		}
	}
}
