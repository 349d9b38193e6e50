package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/akarpov/sonance/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New("download-test", false, nil)
}

func TestStartDownloadsIntoSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "11")
		w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	m := NewManager(Config{MaxConcurrent: 2, RetryAttempts: 0, RatePerSecond: 1000, BurstSize: 10}, testLogger())

	done := make(chan struct{})
	m.OnCompletion(func(task *Task) { close(done) })

	src := m.Start(context.Background(), 1, srv.URL)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("download did not complete in time")
	}

	data, ok := src.TakeCompleteData()
	if !ok || string(data) != "hello world" {
		t.Fatalf("expected hello world, got %q ok=%v", data, ok)
	}
}

func TestStartDeduplicatesInFlightDownload(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	m := NewManager(Config{MaxConcurrent: 2, RetryAttempts: 0, RatePerSecond: 1000, BurstSize: 10}, testLogger())

	src1 := m.Start(context.Background(), 7, srv.URL)
	src2 := m.Start(context.Background(), 7, srv.URL)

	if src1 != src2 {
		t.Fatal("expected duplicate Start for the same in-flight task to return the same Source")
	}
	close(release)
}

func TestPerformDownloadFailsOnNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	// RetryAttempts 0 selects the manager's default of 3 retries; a short
	// RetryDelay keeps those retries well inside the timeout below.
	m := NewManager(Config{MaxConcurrent: 1, RetryAttempts: 0, RetryDelay: time.Millisecond, RatePerSecond: 1000, BurstSize: 10}, testLogger())

	done := make(chan struct{})
	var failedTask *Task
	m.OnCompletion(func(task *Task) { failedTask = task; close(done) })

	m.Start(context.Background(), 2, srv.URL)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("download did not complete in time")
	}

	if failedTask.State != StateFailed {
		t.Fatalf("expected StateFailed, got %v", failedTask.State)
	}
}
