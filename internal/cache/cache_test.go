package cache

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/akarpov/sonance/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New("cache-test", false, nil)
}

func TestMemoryLRUEvictionUnderPressure(t *testing.T) {
	m := NewMemory(100, nil, testLogger())

	m.Insert(1, bytes.Repeat([]byte{0xAA}, 60))
	m.Insert(2, bytes.Repeat([]byte{0xBB}, 60))

	if m.Contains(1) {
		t.Fatal("expected track 1 to be evicted")
	}
	if !m.Contains(2) {
		t.Fatal("expected track 2 to remain cached")
	}
}

func TestMemoryEvictionSpillsToL2(t *testing.T) {
	dir := t.TempDir()
	disk, err := NewDisk(filepath.Join(dir, "playback"), 10*1024*1024, testLogger())
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}

	m := NewMemory(100, disk, testLogger())
	m.Insert(1, bytes.Repeat([]byte{0xAA}, 60))
	m.Insert(2, bytes.Repeat([]byte{0xBB}, 60))

	if !disk.Contains(1) {
		t.Fatal("expected evicted track 1 to be spilled to L2")
	}
}

func TestMemoryGetCountsHitsAndMisses(t *testing.T) {
	m := NewMemory(1000, nil, testLogger())
	m.Insert(1, []byte("hello"))

	data, ok := m.Get(1)
	if !ok || string(data) != "hello" {
		t.Fatalf("expected hit with data=hello, got ok=%v data=%q", ok, data)
	}

	stats := m.Stats()
	if stats.Hits != 1 {
		t.Fatalf("expected 1 hit, got %d", stats.Hits)
	}

	if _, ok := m.Get(999); ok {
		t.Fatal("expected miss for unknown track")
	}
	if m.Stats().Misses != 1 {
		t.Fatalf("expected 1 miss, got %d", m.Stats().Misses)
	}
}

func TestMemoryRejectsOversizedPayload(t *testing.T) {
	m := NewMemory(10, nil, testLogger())
	m.Insert(1, bytes.Repeat([]byte{0x01}, 20))

	if m.Contains(1) {
		t.Fatal("oversized payload should not be cached")
	}
	if m.Stats().Entries != 0 {
		t.Fatalf("expected no entries, got %d", m.Stats().Entries)
	}
}

func TestDiskRoundTripAndClear(t *testing.T) {
	dir := t.TempDir()
	disk, err := NewDisk(filepath.Join(dir, "playback"), 1024*1024, testLogger())
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}

	disk.Insert(42, []byte("audio bytes"))
	if !disk.Contains(42) {
		t.Fatal("expected track 42 to be cached")
	}

	data, ok := disk.Get(42)
	if !ok || string(data) != "audio bytes" {
		t.Fatalf("expected hit with data, got ok=%v data=%q", ok, data)
	}

	disk.Clear()
	if disk.Contains(42) {
		t.Fatal("expected cache to be empty after Clear")
	}
}

func TestDiskRebuildsIndexFromExistingFiles(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "playback")

	disk, err := NewDisk(cacheDir, 1024*1024, testLogger())
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}
	disk.Insert(7, []byte("persisted"))

	reopened, err := NewDisk(cacheDir, 1024*1024, testLogger())
	if err != nil {
		t.Fatalf("NewDisk (reopen): %v", err)
	}
	if !reopened.Contains(7) {
		t.Fatal("expected reopened cache to rebuild index from existing files")
	}
	data, ok := reopened.Get(7)
	if !ok || string(data) != "persisted" {
		t.Fatalf("expected persisted data, got ok=%v data=%q", ok, data)
	}
}
