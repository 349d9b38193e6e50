package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/akarpov/sonance/internal/logging"
)

type l2Entry struct {
	size         uint64
	lastAccessed time.Time
}

// Disk is the L2 on-disk cache: a directory of "<track_id>.audio" files
// plus an in-memory index of size and last-accessed time, grounded on the
// teacher corpus's scan-then-rebuild-index idiom for reconstructing state
// from the filesystem at startup.
type Disk struct {
	mu       sync.Mutex
	dir      string
	entries  map[uint64]*l2Entry
	size     uint64
	maxBytes uint64

	hits      uint64
	misses    uint64
	evictions uint64

	log *logging.Logger
}

// NewDisk opens (creating if needed) dir as the L2 cache root and rebuilds
// its index by scanning existing "*.audio" files.
func NewDisk(dir string, maxBytes uint64, log *logging.Logger) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create playback cache directory: %w", err)
	}

	d := &Disk{
		dir:      dir,
		entries:  make(map[uint64]*l2Entry),
		maxBytes: maxBytes,
		log:      log,
	}
	d.rebuildIndex()

	log.Info("disk cache initialized", "dir", dir, "max", humanize.Bytes(maxBytes), "tracks", len(d.entries))
	return d, nil
}

func (d *Disk) rebuildIndex() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.entries = make(map[uint64]*l2Entry)
	d.size = 0

	ents, err := os.ReadDir(d.dir)
	if err != nil {
		return
	}

	for _, ent := range ents {
		if ent.IsDir() {
			continue
		}
		idStr, ok := strings.CutSuffix(ent.Name(), ".audio")
		if !ok {
			continue
		}
		trackID, err := strconv.ParseUint(idStr, 10, 64)
		if err != nil {
			continue
		}
		info, err := ent.Info()
		if err != nil {
			continue
		}
		d.entries[trackID] = &l2Entry{size: uint64(info.Size()), lastAccessed: info.ModTime()}
		d.size += uint64(info.Size())
	}
}

func (d *Disk) trackPath(trackID uint64) string {
	return filepath.Join(d.dir, fmt.Sprintf("%d.audio", trackID))
}

// Contains is a size-free peek at the in-memory index.
func (d *Disk) Contains(trackID uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.entries[trackID]
	return ok
}

// Insert evicts oldest entries until the new payload fits, then writes the
// file. On write failure the partial file is removed and the index is left
// untouched.
func (d *Disk) Insert(trackID uint64, data []byte) {
	size := uint64(len(data))

	d.mu.Lock()
	if size > d.maxBytes {
		d.mu.Unlock()
		d.log.Debug("track too large for disk cache", "track_id", trackID, "size", humanize.Bytes(size))
		return
	}
	d.evictLocked(size)
	d.mu.Unlock()

	path := d.trackPath(trackID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		d.log.Warn("failed to write disk cache file", "track_id", trackID, "error", err)
		os.Remove(path)
		return
	}

	d.mu.Lock()
	if old, ok := d.entries[trackID]; ok {
		d.size -= old.size
	}
	d.entries[trackID] = &l2Entry{size: size, lastAccessed: time.Now()}
	d.size += size
	d.mu.Unlock()

	d.log.Info("saved track to disk cache", "track_id", trackID, "size", humanize.Bytes(size))
}

func (d *Disk) evictLocked(needed uint64) {
	for d.size+needed > d.maxBytes && len(d.entries) > 0 {
		var oldestID uint64
		var oldest *l2Entry
		for id, e := range d.entries {
			if oldest == nil || e.lastAccessed.Before(oldest.lastAccessed) {
				oldestID, oldest = id, e
			}
		}
		if oldest == nil {
			break
		}

		delete(d.entries, oldestID)
		d.size -= oldest.size
		d.evictions++

		if err := os.Remove(d.trackPath(oldestID)); err != nil {
			d.log.Debug("failed to delete disk cache file", "track_id", oldestID, "error", err)
		}
	}
}

// Get reads the file for trackID, bumping both the in-memory and
// filesystem access times. If the file has disappeared externally the
// index entry is dropped and Get reports a miss.
func (d *Disk) Get(trackID uint64) ([]byte, bool) {
	path := d.trackPath(trackID)

	data, err := os.ReadFile(path)
	if err != nil {
		d.mu.Lock()
		if e, ok := d.entries[trackID]; ok {
			d.size -= e.size
			delete(d.entries, trackID)
		}
		d.misses++
		d.mu.Unlock()
		return nil, false
	}

	now := time.Now()
	_ = os.Chtimes(path, now, now)

	d.mu.Lock()
	if e, ok := d.entries[trackID]; ok {
		e.lastAccessed = now
	}
	d.hits++
	d.mu.Unlock()

	return data, true
}

// Clear removes every cached file and resets the index.
func (d *Disk) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id := range d.entries {
		os.Remove(d.trackPath(id))
	}
	d.entries = make(map[uint64]*l2Entry)
	d.size = 0
}

// Stats reports current hit/miss/eviction counters and occupancy.
func (d *Disk) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{
		Hits:         d.hits,
		Misses:       d.misses,
		Evictions:    d.evictions,
		CurrentBytes: d.size,
		MaxBytes:     d.maxBytes,
		Entries:      len(d.entries),
	}
}
