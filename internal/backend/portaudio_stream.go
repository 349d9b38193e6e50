package backend

import (
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

// maxQueuedSamples bounds how many interleaved samples Write can queue
// ahead of the portaudio callback before blocking, so a runaway decode loop can't grow memory
// without limit.
const maxQueuedSamples = 1 << 16

// paStream bridges this package's blocking Write/Drain Stream contract to
// portaudio's pull-based callback, using the same mutex+condvar
// backpressure idiom internal/streaming.Source uses for the analogous
// producer/consumer handoff.
type paStream struct {
	stream *portaudio.Stream

	mu       sync.Mutex
	cond     *sync.Cond
	pending  []float32 // interleaved
	closed   bool

	sampleRate int
	channels   int
}

func newPAStream(device *portaudio.DeviceInfo, sampleRate, channels, framesPerBuffer int, latency portaudioLatency) (*paStream, error) {
	s := &paStream{sampleRate: sampleRate, channels: channels}
	s.cond = sync.NewCond(&s.mu)

	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  latency.forDevice(device),
		},
		SampleRate:      float64(sampleRate),
		FramesPerBuffer: framesPerBuffer,
	}

	stream, err := portaudio.OpenStream(params, s.callback)
	if err != nil {
		return nil, fmt.Errorf("open portaudio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("start portaudio stream: %w", err)
	}
	s.stream = stream
	return s, nil
}

func (s *paStream) callback(out [][]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	channels := len(out)
	if channels == 0 {
		return
	}
	frames := len(out[0])
	needed := frames * channels

	n := len(s.pending)
	if n > needed {
		n = needed
	}
	for i := 0; i < n; i++ {
		frame := i / channels
		ch := i % channels
		out[ch][frame] = s.pending[i]
	}
	for i := n; i < needed; i++ {
		frame := i / channels
		ch := i % channels
		out[ch][frame] = 0
	}
	s.pending = s.pending[n:]
	s.cond.Broadcast()
}

// Write blocks until the pending queue has room, then enqueues samples for
// the callback to drain. samples is interleaved PCM matching s.channels.
func (s *paStream) Write(samples []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.pending) > maxQueuedSamples && !s.closed {
		s.cond.Wait()
	}
	if s.closed {
		return fmt.Errorf("write to closed stream")
	}
	s.pending = append(s.pending, samples...)
	return nil
}

// Drain blocks until the queued samples have been consumed by the
// callback.
func (s *paStream) Drain() error {
	s.mu.Lock()
	for len(s.pending) > 0 && !s.closed {
		s.cond.Wait()
	}
	s.mu.Unlock()
	return nil
}

func (s *paStream) SampleRate() int { return s.sampleRate }
func (s *paStream) Channels() int   { return s.channels }

func (s *paStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()

	if s.stream == nil {
		return nil
	}
	if err := s.stream.Stop(); err != nil {
		s.stream.Close()
		return fmt.Errorf("stop portaudio stream: %w", err)
	}
	return s.stream.Close()
}

// portaudioLatency picks an output latency for a device; exclusive mode
// wants the device's low-latency figure, shared mode its high-latency
// (more forgiving of scheduling jitter) figure.
type portaudioLatency struct {
	exclusive bool
}

func (l portaudioLatency) forDevice(d *portaudio.DeviceInfo) time.Duration {
	if d == nil {
		return 0
	}
	if l.exclusive {
		return d.DefaultLowOutputLatency
	}
	return d.DefaultHighOutputLatency
}
