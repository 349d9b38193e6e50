// Package download runs concurrent, retrying HTTP downloads that feed bytes
// directly into a streaming.Source's producer half, so a decoder can start
// reading before the transfer finishes.
package download

import (
	"context"
	"sync"
	"time"

	"github.com/akarpov/sonance/internal/streaming"
)

// State is a download task's lifecycle stage.
type State int

const (
	StatePending State = iota
	StateDownloading
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateDownloading:
		return "downloading"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Task tracks one in-flight or finished download.
type Task struct {
	ID         string
	TrackID    uint64
	URL        string
	Source     *streaming.Source
	State      State
	Error      error
	StartTime  time.Time
	CompletedAt *time.Time
	CancelFunc context.CancelFunc
	Retries    int
	MaxRetries int

	mu sync.RWMutex
}

func (t *Task) setState(s State, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.State = s
	t.Error = err
	if s == StateCompleted || s == StateFailed || s == StateCancelled {
		now := time.Now()
		t.CompletedAt = &now
	}
}

func (t *Task) snapshotState() (State, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.State, t.Error
}

// Config holds the download manager's tunables.
type Config struct {
	MaxConcurrent int
	RetryAttempts int
	RetryDelay    time.Duration
	Timeout       time.Duration
	UserAgent     string
	// RatePerSecond limits sustained request rate; BurstSize allows short spikes.
	RatePerSecond float64
	BurstSize     int
	// InitialBufferSeconds sizes each download's streaming.Source buffer floor.
	InitialBufferSeconds float64
}

// ProgressCallback is invoked as bytes for a task arrive.
type ProgressCallback func(task *Task, downloaded, total int64)

// CompletionCallback is invoked once a task reaches a terminal state.
type CompletionCallback func(task *Task)
