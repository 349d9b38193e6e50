// Package events fans playback and visualizer updates out to UI
// subscribers: a small pub/sub bus, the same shape the desktop app used to
// push state into its Fyne bindings.
package events

import "sync"

// Handler receives one event's payload. Handlers run on their own
// goroutine so a slow or blocking subscriber never stalls the publisher.
type Handler func(data interface{})

const (
	// PlaybackState carries a player.Snapshot. cmd/sonance-player publishes
	// it after play/pause/resume/stop commands and when a track finishes,
	// not after next/previous/seek/volume.
	PlaybackState = "playback:state"

	// VizData fires once per processed visualizer frame, payload a
	// visualizer.Frame.
	VizData = "viz:data"
	// VizEnergy fires with the frame's five-band energy levels.
	VizEnergy = "viz:energy"
	// VizTransient fires only on frames where a transient was detected.
	VizTransient = "viz:transient"
	// VizWaveform fires with the frame's extracted waveform points.
	VizWaveform = "viz:waveform"
	// VizSpectral fires only on frames where the spectral ribbon refreshed.
	VizSpectral = "viz:spectral"
)

// Bus is a type-agnostic publish/subscribe fan-out keyed by event name.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Handler
}

// NewBus returns an empty event bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]Handler)}
}

// Subscribe registers handler to run whenever eventType is published.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish fans data out to every handler registered for eventType, each on
// its own goroutine.
func (b *Bus) Publish(eventType string, data interface{}) {
	b.mu.RLock()
	handlers := b.subscribers[eventType]
	b.mu.RUnlock()

	for _, h := range handlers {
		go h(data)
	}
}

// Unsubscribe drops every handler registered for eventType.
func (b *Bus) Unsubscribe(eventType string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, eventType)
}

// SubscriberCount reports how many handlers are currently registered for
// eventType, used by tests to confirm Unsubscribe actually cleared them.
func (b *Bus) SubscriberCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[eventType])
}
