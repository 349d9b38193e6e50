package streaming

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/akarpov/sonance/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New("streaming-test", false, nil)
}

func newTestCond(s *Source) *sync.Cond {
	return sync.NewCond(&s.mu)
}

func TestReadBlocksUntilDataArrives(t *testing.T) {
	s := New(1, testLogger())

	done := make(chan struct{})
	var n int
	var err error
	buf := make([]byte, 5)

	go func() {
		n, err = s.Read(buf)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Read returned before any data was written")
	case <-time.After(30 * time.Millisecond):
	}

	s.WriteChunk([]byte("hello"))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Read did not unblock after WriteChunk")
	}

	if err != nil || n != 5 || string(buf) != "hello" {
		t.Fatalf("expected hello/5/nil, got %q %d %v", buf, n, err)
	}
}

func TestReadReturnsEOFAfterCompletion(t *testing.T) {
	s := New(1, testLogger())
	s.WriteChunk([]byte("ab"))
	s.Complete()

	buf := make([]byte, 2)
	n, err := s.Read(buf)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 bytes no error, got %d %v", n, err)
	}

	n, err = s.Read(buf)
	if n != 0 || err != io.EOF {
		t.Fatalf("expected EOF, got %d %v", n, err)
	}
}

func TestReadPropagatesDownloadError(t *testing.T) {
	s := New(1, testLogger())
	wantErr := io.ErrUnexpectedEOF
	s.Fail(wantErr)

	buf := make([]byte, 4)
	_, err := s.Read(buf)
	if err != wantErr {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
}

func TestSeekBackwardIsImmediate(t *testing.T) {
	s := New(1, testLogger())
	s.WriteChunk([]byte("0123456789"))
	s.Complete()

	buf := make([]byte, 4)
	s.Read(buf)

	pos, err := s.Seek(0, io.SeekStart)
	if err != nil || pos != 0 {
		t.Fatalf("expected seek to 0, got %d %v", pos, err)
	}

	n, err := s.Read(buf)
	if err != nil || n != 4 || string(buf) != "0123" {
		t.Fatalf("expected 0123, got %q %v", buf[:n], err)
	}
}

func TestSeekForwardBlocksUntilDataArrives(t *testing.T) {
	s := New(1, testLogger())
	s.WriteChunk([]byte("01234"))

	done := make(chan struct{})
	var pos int64
	var err error

	go func() {
		pos, err = s.Seek(8, io.SeekStart)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Seek returned before data reached the target offset")
	case <-time.After(30 * time.Millisecond):
	}

	s.WriteChunk([]byte("56789"))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Seek did not unblock once data arrived")
	}

	if err != nil || pos != 8 {
		t.Fatalf("expected seek to 8, got %d %v", pos, err)
	}
}

func TestSeekEndWithoutTotalSizeOrCompletionFails(t *testing.T) {
	s := New(1, testLogger())
	s.WriteChunk([]byte("abc"))

	if _, err := s.Seek(0, io.SeekEnd); err == nil {
		t.Fatal("expected error seeking from end with unknown size and incomplete download")
	}
}

func TestTakeCompleteDataOnlyAfterSuccess(t *testing.T) {
	s := New(1, testLogger())
	s.WriteChunk([]byte("payload"))

	if _, ok := s.TakeCompleteData(); ok {
		t.Fatal("expected TakeCompleteData to fail before completion")
	}

	s.Complete()
	data, ok := s.TakeCompleteData()
	if !ok || string(data) != "payload" {
		t.Fatalf("expected payload, got %q ok=%v", data, ok)
	}
}

func TestTakeCompleteDataFailsAfterError(t *testing.T) {
	s := New(1, testLogger())
	s.WriteChunk([]byte("payload"))
	s.Fail(io.ErrClosedPipe)

	if _, ok := s.TakeCompleteData(); ok {
		t.Fatal("expected TakeCompleteData to fail after a download error")
	}
}

func TestHasMinBufferReflectsThreshold(t *testing.T) {
	s := &Source{minBufferBytes: 4, log: testLogger()}
	s.cond = newTestCond(s)

	if s.HasMinBuffer() {
		t.Fatal("expected HasMinBuffer=false before any data written")
	}
	s.WriteChunk([]byte("1234"))
	if !s.HasMinBuffer() {
		t.Fatal("expected HasMinBuffer=true once threshold bytes are buffered")
	}
}
