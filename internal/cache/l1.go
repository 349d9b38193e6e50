// Package cache implements the two-tier byte cache for decoded-but-not-yet-
// played audio: an in-memory L1 with LRU eviction that can spill evicted
// bytes to an on-disk L2.
package cache

import (
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/akarpov/sonance/internal/logging"
)

// Stats mirrors the shape both tiers report, so callers can log/compare
// them uniformly.
type Stats struct {
	Hits          uint64
	Misses        uint64
	Evictions     uint64
	CurrentBytes  uint64
	MaxBytes      uint64
	Entries       int
}

type l1Entry struct {
	trackID      uint64
	bytes        []byte
	lastAccessed time.Time
}

// Spiller receives bytes evicted from L1 so they can live on in L2. A nil
// Spiller means evictions simply drop the bytes.
type Spiller interface {
	Insert(trackID uint64, data []byte)
}

// Memory is the thread-safe L1 mapping track_id -> bytes with LRU eviction.
// A single mutex guards the whole structure: payloads are already fully
// materialized byte slices, so every operation just rebinds pointers and
// stays fast under the lock.
type Memory struct {
	mu       sync.Mutex
	entries  map[uint64]*l1Entry
	size     uint64
	maxBytes uint64

	hits      uint64
	misses    uint64
	evictions uint64

	spill Spiller
	log   *logging.Logger
}

// NewMemory builds an empty L1 cache bounded at maxBytes (spec default 400 MiB).
// spill may be nil; when set, bytes evicted to make room are pushed into it
// before being dropped from L1.
func NewMemory(maxBytes uint64, spill Spiller, log *logging.Logger) *Memory {
	return &Memory{
		entries:  make(map[uint64]*l1Entry),
		maxBytes: maxBytes,
		spill:    spill,
		log:      log,
	}
}

// Insert stores bytes for trackID, evicting the oldest entries (by
// last_accessed) until the new payload fits. Oversized payloads are
// rejected outright and logged, never partially inserted.
func (m *Memory) Insert(trackID uint64, data []byte) {
	size := uint64(len(data))

	m.mu.Lock()
	defer m.mu.Unlock()

	if size > m.maxBytes {
		m.log.Debug("track too large for memory cache", "track_id", trackID, "size", humanize.Bytes(size), "max", humanize.Bytes(m.maxBytes))
		return
	}

	if old, ok := m.entries[trackID]; ok {
		m.size -= uint64(len(old.bytes))
		delete(m.entries, trackID)
	}

	m.evictLocked(size)

	buf := make([]byte, len(data))
	copy(buf, data)
	m.entries[trackID] = &l1Entry{trackID: trackID, bytes: buf, lastAccessed: time.Now()}
	m.size += size
}

// evictLocked must be called with mu held. It removes the globally oldest
// entries, spilling each one to L2 if a Spiller is configured, until there
// is room for an additional needed bytes.
func (m *Memory) evictLocked(needed uint64) {
	for m.size+needed > m.maxBytes && len(m.entries) > 0 {
		var oldestID uint64
		var oldest *l1Entry
		for id, e := range m.entries {
			if oldest == nil || e.lastAccessed.Before(oldest.lastAccessed) {
				oldestID, oldest = id, e
			}
		}
		if oldest == nil {
			break
		}

		delete(m.entries, oldestID)
		m.size -= uint64(len(oldest.bytes))
		m.evictions++

		if m.spill != nil {
			m.spill.Insert(oldestID, oldest.bytes)
		}
		m.log.Debug("evicted track from memory cache", "track_id", oldestID, "size", humanize.Bytes(uint64(len(oldest.bytes))))
	}
}

// Get returns a copy of the cached bytes for trackID, bumping its
// last_accessed time on hit.
func (m *Memory) Get(trackID uint64) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[trackID]
	if !ok {
		m.misses++
		return nil, false
	}
	e.lastAccessed = time.Now()
	m.hits++

	out := make([]byte, len(e.bytes))
	copy(out, e.bytes)
	return out, true
}

// Contains is a size-free peek.
func (m *Memory) Contains(trackID uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[trackID]
	return ok
}

// Evict removes trackID explicitly, spilling it to L2 first when a Spiller
// is configured.
func (m *Memory) Evict(trackID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[trackID]
	if !ok {
		return
	}
	delete(m.entries, trackID)
	m.size -= uint64(len(e.bytes))
	m.evictions++

	if m.spill != nil {
		m.spill.Insert(trackID, e.bytes)
	}
}

// Stats reports current hit/miss/eviction counters and occupancy.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Hits:         m.hits,
		Misses:       m.misses,
		Evictions:    m.evictions,
		CurrentBytes: m.size,
		MaxBytes:     m.maxBytes,
		Entries:      len(m.entries),
	}
}
