package download

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/akarpov/sonance/internal/logging"
	"github.com/akarpov/sonance/internal/streaming"
)

// Manager runs semaphore-limited concurrent downloads, retrying transient
// failures with backoff, the same shape as the teacher's download manager
// generalized to push bytes into a streaming.Source instead of a file.
type Manager struct {
	config    Config
	client    *retryablehttp.Client
	limiter   *rate.Limiter
	semaphore chan struct{}
	tasks     sync.Map // task id -> *Task

	callbackMu    sync.RWMutex
	progressCbs   []ProgressCallback
	completionCbs []CompletionCallback

	log *logging.Logger
}

// NewManager builds a Manager from cfg. log may be nil.
func NewManager(cfg Config, log *logging.Logger) *Manager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "sonance/1.0"
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 8
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 4
	}
	if cfg.InitialBufferSeconds <= 0 {
		cfg.InitialBufferSeconds = 2
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 0 // the manager owns its own retry loop, not the HTTP client's
	client.HTTPClient.Timeout = cfg.Timeout
	client.Logger = nil

	m := &Manager{
		config:    cfg,
		client:    client,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.BurstSize),
		semaphore: make(chan struct{}, cfg.MaxConcurrent),
		log:       log,
	}
	m.log.Debug("download manager initialized", "max_concurrent", cfg.MaxConcurrent)
	return m
}

// Start begins downloading url for trackID and returns the streaming.Source
// that will receive its bytes. If a download for this exact (trackID, url)
// pair is already in flight, its existing Source is returned instead.
func (m *Manager) Start(ctx context.Context, trackID uint64, url string) *streaming.Source {
	taskID := m.taskID(trackID, url)

	if existing, ok := m.tasks.Load(taskID); ok {
		task := existing.(*Task)
		if state, _ := task.snapshotState(); state == StatePending || state == StateDownloading {
			return task.Source
		}
	}

	taskCtx, cancel := context.WithCancel(ctx)
	task := &Task{
		ID:         taskID,
		TrackID:    trackID,
		URL:        url,
		Source:     streaming.New(m.config.InitialBufferSeconds, m.log),
		State:      StatePending,
		StartTime:  time.Now(),
		CancelFunc: cancel,
		MaxRetries: m.config.RetryAttempts,
	}
	m.tasks.Store(taskID, task)
	m.log.Debug("created download task", "track_id", trackID, "url", url)

	go m.run(taskCtx, task)
	return task.Source
}

func (m *Manager) run(ctx context.Context, task *Task) {
	select {
	case m.semaphore <- struct{}{}:
		defer func() { <-m.semaphore }()
	case <-ctx.Done():
		task.setState(StateCancelled, ctx.Err())
		task.Source.Fail(ctx.Err())
		return
	}

	if err := m.limiter.Wait(ctx); err != nil {
		task.setState(StateCancelled, err)
		task.Source.Fail(err)
		return
	}

	task.setState(StateDownloading, nil)
	m.log.Debug("starting download", "track_id", task.TrackID, "url", task.URL)

	var lastErr error
	for attempt := 0; attempt <= task.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * m.config.RetryDelay
			m.log.Debug("retrying download", "attempt", attempt+1, "of", task.MaxRetries+1, "delay", delay, "track_id", task.TrackID)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				task.setState(StateCancelled, ctx.Err())
				task.Source.Fail(ctx.Err())
				return
			}
		}

		err := m.performDownload(ctx, task)
		if err == nil {
			task.setState(StateCompleted, nil)
			m.notifyCompletion(task)
			return
		}

		lastErr = err
		task.mu.Lock()
		task.Retries = attempt
		task.mu.Unlock()

		if !isRetryable(err) {
			break
		}
	}

	task.setState(StateFailed, lastErr)
	task.Source.Fail(lastErr)
	m.notifyCompletion(task)
	m.log.Warn("download failed", "track_id", task.TrackID, "attempts", task.MaxRetries+1, "error", lastErr)
}

// Cancel stops an in-flight download for trackID/url, if any.
func (m *Manager) Cancel(trackID uint64, url string) error {
	v, ok := m.tasks.Load(m.taskID(trackID, url))
	if !ok {
		return fmt.Errorf("download not found for track %d", trackID)
	}
	task := v.(*Task)
	if task.CancelFunc != nil {
		task.CancelFunc()
	}
	task.setState(StateCancelled, fmt.Errorf("cancelled"))
	return nil
}

// OnProgress registers a callback fired as bytes arrive for any task.
func (m *Manager) OnProgress(cb ProgressCallback) {
	m.callbackMu.Lock()
	defer m.callbackMu.Unlock()
	m.progressCbs = append(m.progressCbs, cb)
}

// OnCompletion registers a callback fired once a task reaches a terminal state.
func (m *Manager) OnCompletion(cb CompletionCallback) {
	m.callbackMu.Lock()
	defer m.callbackMu.Unlock()
	m.completionCbs = append(m.completionCbs, cb)
}

func (m *Manager) notifyCompletion(task *Task) {
	m.callbackMu.RLock()
	defer m.callbackMu.RUnlock()
	for _, cb := range m.completionCbs {
		cb(task)
	}
}

func (m *Manager) notifyProgress(task *Task, downloaded, total int64) {
	m.callbackMu.RLock()
	defer m.callbackMu.RUnlock()
	for _, cb := range m.progressCbs {
		cb(task, downloaded, total)
	}
}

func (m *Manager) taskID(trackID uint64, url string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", trackID, url)))
	return fmt.Sprintf("%x", sum)[:16]
}

func isRetryable(err error) bool {
	return err != nil
}

// ClearCompleted drops bookkeeping for every task in a terminal state.
func (m *Manager) ClearCompleted() int {
	var toDelete []any
	m.tasks.Range(func(key, value any) bool {
		task := value.(*Task)
		if state, _ := task.snapshotState(); state == StateCompleted || state == StateFailed || state == StateCancelled {
			toDelete = append(toDelete, key)
		}
		return true
	})
	for _, key := range toDelete {
		m.tasks.Delete(key)
	}
	return len(toDelete)
}
