// Package player is the playback controller: the single coordinator that
// owns device output, the decode loop, cache consultation, loudness
// normalization, and the visualizer tap.
package player

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"
	"github.com/sourcegraph/conc"

	"github.com/akarpov/sonance/internal/backend"
	"github.com/akarpov/sonance/internal/cache"
	"github.com/akarpov/sonance/internal/download"
	"github.com/akarpov/sonance/internal/loudness"
	"github.com/akarpov/sonance/internal/logging"
	"github.com/akarpov/sonance/internal/settings"
	"github.com/akarpov/sonance/internal/visualizer"
	"github.com/akarpov/sonance/pkg/types"
)

// blockFrames is the number of stereo frames decoded per pipeline
// iteration: small enough to check the stop flag often (sub-50ms at common
// rates), large enough to keep per-call overhead low.
const blockFrames = 2048

// outputChannels is fixed at stereo: every decoder output is resampled and
// written as interleaved stereo, matching the ring buffer's "interleaved
// stereo f32" contract.
const outputChannels = 2

// URLResolver turns a track id into a fetchable URL, supplied by whatever
// owns catalog knowledge (the controller has none of its own).
type URLResolver func(ctx context.Context, trackID uint64) (string, error)

// Config configures a Controller's cache, backend, and behavior defaults.
type Config struct {
	Backend             backend.Type
	DeviceID            string
	ExclusiveMode       bool
	PWForceBitperfect   bool
	NormalizationOn     bool
	TargetLUFS          float64
	LimitQualityToDevice bool
	StreamFirstTrack    bool
	StreamingOnly       bool
	GaplessEnabled      bool
	GaplessWindow       time.Duration
}

// Controller is the single playback coordinator described by the spec's
// "only one decode+write loop may be active" invariant.
type Controller struct {
	cfg        Config
	settings   *settings.Store
	l1         *cache.Memory
	l2         *cache.Disk
	backends   *backend.Manager
	downloads  *download.Manager
	analyzer   *loudness.Analyzer
	visProc    *visualizer.Processor
	ring       *visualizer.RingBuffer
	resolveURL URLResolver
	log        *logging.Logger

	visualizerOn atomic.Bool
	state        *SharedState

	mu      sync.Mutex
	session *playSession

	onFinished func(trackID uint64)
}

// playSession is everything tied to one active play_track invocation.
type playSession struct {
	trackID  uint64
	stream   backend.Stream
	decoder  beep.StreamSeekCloser
	rate     int
	stop     chan struct{}
	wg       conc.WaitGroup

	pauseMu sync.Mutex
	cond    *sync.Cond
	paused  bool
}

// New builds a Controller. log, analyzer, and visProc may all be nil to run
// without loudness normalization or visualization support.
func New(cfg Config, st *settings.Store, l1 *cache.Memory, l2 *cache.Disk, backends *backend.Manager,
	downloads *download.Manager, analyzer *loudness.Analyzer, visProc *visualizer.Processor,
	ring *visualizer.RingBuffer, resolveURL URLResolver, log *logging.Logger) *Controller {
	return &Controller{
		cfg:        cfg,
		settings:   st,
		l1:         l1,
		l2:         l2,
		backends:   backends,
		downloads:  downloads,
		analyzer:   analyzer,
		visProc:    visProc,
		ring:       ring,
		resolveURL: resolveURL,
		log:        log,
		state:      NewSharedState(),
	}
}

// State returns the shared atomic playback state for lock-free reads.
func (c *Controller) State() *SharedState { return c.state }

// VisualizeFrame snapshots the ring buffer and runs one FFT processing
// tick, for a caller (UI event loop, RPC poll) driving its own ~30 FPS
// cadence. Returns the zero Frame if no visualizer processor is wired up.
func (c *Controller) VisualizeFrame() visualizer.Frame {
	if c.visProc == nil || c.ring == nil {
		return visualizer.Frame{}
	}
	samples := make([]float32, visualizer.FFTSize*outputChannels)
	c.ring.Snapshot(samples)
	return c.visProc.Process(samples, c.state.SampleRate())
}

// SetVisualizerEnabled toggles whether the decode loop copies samples into
// the visualizer ring buffer.
func (c *Controller) SetVisualizerEnabled(on bool) { c.visualizerOn.Store(on) }

// OnFinished registers a callback invoked (from the decode goroutine) when
// a track reaches clean EOF and should trigger queue auto-advance.
func (c *Controller) OnFinished(cb func(trackID uint64)) { c.onFinished = cb }

// PlayTrack resolves, decodes, and plays track, replacing any currently
// active session. It implements the play_track algorithm: effective-rate
// negotiation, cache consultation, container decode, backend open, and
// loudness wiring, before handing off to the decode loop goroutine.
func (c *Controller) PlayTrack(ctx context.Context, track types.Track) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopSessionLocked()

	deviceLimit := c.deviceSampleRateLimit()
	requestedRate := c.preferredSampleRate(track)
	effectiveRate := requestedRate
	if deviceLimit > 0 && effectiveRate > deviceLimit {
		effectiveRate = deviceLimit
	}
	if c.cfg.LimitQualityToDevice && track.SampleRate != nil && effectiveRate < *track.SampleRate {
		return types.NewCoreError(types.ErrConfiguration, types.CodeQualityExceedsDevice,
			fmt.Sprintf("track sample rate %d exceeds device limit %d with quality-limiting enabled", *track.SampleRate, effectiveRate), nil)
	}

	reader, err := c.obtainBytes(ctx, track)
	if err != nil {
		return err
	}

	decoder, format, err := decodeTrack(track.ContainerHint, reader)
	if err != nil {
		reader.Close()
		return err
	}

	sourceRate := int(format.SampleRate)
	if effectiveRate == 0 {
		effectiveRate = sourceRate
	}

	var source beep.Streamer = decoder
	if sourceRate != effectiveRate {
		source = beep.Resample(4, format.SampleRate, beep.SampleRate(effectiveRate), decoder)
	}

	stream, _, err := c.backends.Open(ctx, c.cfg.Backend, backend.Config{
		DeviceID:          c.cfg.DeviceID,
		SampleRate:        effectiveRate,
		Channels:          outputChannels,
		ExclusiveMode:     c.cfg.ExclusiveMode,
		PWForceBitperfect: c.cfg.PWForceBitperfect,
	})
	if err != nil {
		decoder.Close()
		return types.NewCoreError(types.ErrResource, types.CodeAudioOutputFailed, "failed to open audio backend", err)
	}

	var gainAtomic *atomic.Uint32
	if c.cfg.NormalizationOn && c.analyzer != nil {
		gainAtomic = c.state.NormGainAtomic()
		gainAtomic.Store(math.Float32bits(1.0))
		c.analyzer.SendNewTrack(loudness.NewTrack{
			TrackID:    track.ID,
			SampleRate: effectiveRate,
			Channels:   outputChannels,
			TargetLUFS: c.cfg.TargetLUFS,
			GainAtomic: gainAtomic,
		})
	}

	sess := &playSession{
		trackID: track.ID,
		stream:  stream,
		decoder: decoder,
		rate:    effectiveRate,
		stop:    make(chan struct{}),
	}
	sess.cond = sync.NewCond(&sess.pauseMu)
	c.session = sess

	duration := track.Duration.Seconds()
	if duration == 0 && decoder.Len() > 0 {
		duration = float64(decoder.Len()) / float64(effectiveRate)
	}

	c.state.SetCurrentTrack(track.ID)
	c.state.SetDuration(duration)
	c.state.SetPosition(0)
	c.state.SetSampleRate(effectiveRate)
	if track.BitDepth != nil {
		c.state.SetBitDepth(*track.BitDepth)
	}
	c.state.SetPlaying(true)
	c.state.SetGaplessReady(false, 0)

	sess.wg.Go(func() { c.runDecodeLoop(sess, source, gainAtomic) })
	return nil
}

// obtainBytes implements the cache-then-network resolution order: L1, then
// L2 (promoting on hit), then a fresh download honoring stream-first-track.
func (c *Controller) obtainBytes(ctx context.Context, track types.Track) (io.ReadCloser, error) {
	if data, ok := c.l1.Get(track.ID); ok {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	if c.l2 != nil {
		if data, ok := c.l2.Get(track.ID); ok {
			c.l1.Insert(track.ID, data)
			return io.NopCloser(bytes.NewReader(data)), nil
		}
	}

	url, err := c.resolveURL(ctx, track.ID)
	if err != nil {
		return nil, types.NewCoreError(types.ErrTransport, types.CodeTransportFailed, "failed to resolve playable URL", err)
	}

	source := c.downloads.Start(ctx, track.ID, url)

	if c.cfg.StreamFirstTrack && !c.cfg.StreamingOnly {
		if err := source.WaitForInitialBuffer(); err != nil {
			return nil, types.NewCoreError(types.ErrTransport, types.CodeTransportFailed, "initial buffer wait failed", err)
		}
		go c.cacheWhenComplete(track.ID, source)
		return source, nil
	}

	data, err := io.ReadAll(source)
	if err != nil {
		return nil, types.NewCoreError(types.ErrTransport, types.CodeTransportFailed, "download failed", err)
	}
	c.l1.Insert(track.ID, data)
	return io.NopCloser(bytes.NewReader(data)), nil
}

// cacheWhenComplete waits for a stream-first download to finish and
// promotes the full bytes into L1, the same way the non-stream-first path
// does up front.
func (c *Controller) cacheWhenComplete(trackID uint64, source interface {
	TakeCompleteData() ([]byte, bool)
	IsComplete() bool
}) {
	for !source.IsComplete() {
		time.Sleep(200 * time.Millisecond)
	}
	if data, ok := source.TakeCompleteData(); ok {
		c.l1.Insert(trackID, data)
	}
}

// deviceSampleRateLimit resolves the configured per-device cap for the
// currently selected output device, or 0 when none applies.
func (c *Controller) deviceSampleRateLimit() int {
	if c.settings == nil {
		return 0
	}
	p, err := c.settings.GetPlayback()
	if err != nil {
		return 0
	}
	if limit, ok := p.DeviceSampleRateLimits[c.cfg.DeviceID]; ok {
		return limit
	}
	return 0
}

func (c *Controller) preferredSampleRate(track types.Track) int {
	if c.settings != nil {
		if p, err := c.settings.GetPlayback(); err == nil && p.PreferredSampleRate != nil {
			return *p.PreferredSampleRate
		}
	}
	if track.SampleRate != nil {
		return *track.SampleRate
	}
	return 0
}

// runDecodeLoop is the audio thread: decode, normalize, volume, write,
// repeated until EOF or a cooperative stop. Apart from the copy of each
// block handed to the loudness analyzer when normalization is on, it
// allocates nothing per block beyond the fixed-size buffers set up here.
func (c *Controller) runDecodeLoop(sess *playSession, source beep.Streamer, gainAtomic *atomic.Uint32) {
	buf := make([][2]float64, blockFrames)
	interleaved := make([]float32, blockFrames*outputChannels)
	framesPlayed := int64(0)

	defer func() {
		_ = sess.stream.Drain()
		_ = sess.stream.Close()
		_ = sess.decoder.Close()
	}()

	for {
		select {
		case <-sess.stop:
			return
		default:
		}

		sess.pauseMu.Lock()
		for sess.paused {
			sess.cond.Wait()
		}
		sess.pauseMu.Unlock()

		n, ok := source.Stream(buf)
		if n == 0 {
			if !ok {
				c.finishTrack(sess, framesPlayed)
				return
			}
			continue
		}

		for i := 0; i < n; i++ {
			interleaved[i*2] = float32(buf[i][0])
			interleaved[i*2+1] = float32(buf[i][1])
		}
		frame := interleaved[:n*outputChannels]

		if c.visualizerOn.Load() && c.ring != nil {
			c.ring.Write(frame)
		}

		if gainAtomic != nil && c.analyzer != nil {
			c.analyzer.SendSamples(append([]float32(nil), frame...))
		}

		gain := float32(1.0)
		if gainAtomic != nil {
			gain = math.Float32frombits(gainAtomic.Load())
		}
		vol := c.state.Volume()
		mult := gain * vol
		if mult != 1.0 {
			for i := range frame {
				frame[i] *= mult
			}
		}

		if err := sess.stream.Write(frame); err != nil {
			c.log.Warn("backend write failed, stopping playback", "error", err, "track_id", sess.trackID)
			return
		}

		framesPlayed += int64(n)
		c.state.SetPosition(float64(framesPlayed) / float64(sess.rate))

		if !ok {
			c.finishTrack(sess, framesPlayed)
			return
		}
	}
}

func (c *Controller) finishTrack(sess *playSession, framesPlayed int64) {
	c.state.SetPosition(float64(framesPlayed) / float64(sess.rate))
	c.state.SetPlaying(false)
	if c.onFinished != nil {
		c.onFinished(sess.trackID)
	}
}

// stopSessionLocked signals the active session to stop and joins its
// goroutine before returning, enforcing the single-decode-loop invariant.
// Callers must hold c.mu.
func (c *Controller) stopSessionLocked() {
	if c.session == nil {
		return
	}
	sess := c.session
	c.session = nil

	close(sess.stop)
	sess.pauseMu.Lock()
	sess.paused = false
	sess.cond.Broadcast()
	sess.pauseMu.Unlock()

	sess.wg.Wait()
}

// Stop halts the active session, if any.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopSessionLocked()
	c.state.SetCurrentTrack(0)
	c.state.SetPlaying(false)
	c.state.SetPosition(0)
}

// Pause parks the decode loop without tearing down the backend stream.
func (c *Controller) Pause() {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return
	}
	sess.pauseMu.Lock()
	sess.paused = true
	sess.pauseMu.Unlock()
	c.state.SetPlaying(false)
}

// Resume wakes a paused decode loop.
func (c *Controller) Resume() {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return
	}
	sess.pauseMu.Lock()
	sess.paused = false
	sess.cond.Broadcast()
	sess.pauseMu.Unlock()
	c.state.SetPlaying(true)
}

// Seek moves the active decoder to position and resets loudness
// measurement state (the meter's gating window is only valid for
// contiguous audio).
func (c *Controller) Seek(position time.Duration) error {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return types.NewCoreError(types.ErrConsistency, types.CodeSeekUnsupported, "no active playback session", nil)
	}

	targetFrame := int(position.Seconds() * float64(sess.rate))
	if targetFrame < 0 {
		targetFrame = 0
	}
	if l := sess.decoder.Len(); l > 0 && targetFrame >= l {
		targetFrame = l - 1
	}
	if err := sess.decoder.Seek(targetFrame); err != nil {
		return types.NewCoreError(types.ErrFormat, types.CodeSeekUnsupported, "seek failed", err)
	}

	c.state.SetPosition(position.Seconds())
	if c.analyzer != nil {
		c.analyzer.SendReset()
	}
	return nil
}

// SetVolume writes the shared volume atomic; the decode loop picks it up on
// its next block, with no zipper-noise smoothing.
func (c *Controller) SetVolume(level float64) {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	c.state.SetVolume(float32(level))
}

// PrefetchNext warms the byte cache for the upcoming track ahead of the
// current one finishing, so the queue's auto-advance hits an L1 cache hit
// instead of a cold network fetch. It sets the gapless-ready atomics once
// the bytes are in hand; actual gapless splicing (continuing to write into
// the same open backend stream across tracks of identical rate/channels)
// is not implemented here — see DESIGN.md for the simplification.
func (c *Controller) PrefetchNext(ctx context.Context, next types.Track) {
	if !c.cfg.GaplessEnabled {
		return
	}
	if c.l1.Contains(next.ID) || (c.l2 != nil && c.l2.Contains(next.ID)) {
		c.state.SetGaplessReady(true, next.ID)
		return
	}

	go func() {
		url, err := c.resolveURL(ctx, next.ID)
		if err != nil {
			c.log.Warn("gapless prefetch URL resolution failed", "error", err, "track_id", next.ID)
			return
		}
		source := c.downloads.Start(ctx, next.ID, url)
		for !source.IsComplete() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(200 * time.Millisecond):
			}
		}
		if data, ok := source.TakeCompleteData(); ok {
			c.l1.Insert(next.ID, data)
			c.state.SetGaplessReady(true, next.ID)
		}
	}()
}

// Close stops any active session. The Controller must not be used
// afterward.
func (c *Controller) Close() {
	c.Stop()
}
