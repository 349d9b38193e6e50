// Package streaming adapts an asynchronous HTTP download into the blocking
// io.ReadSeeker a decoder needs, the same mutex+condvar shape as the
// teacher's StreamReader, generalized to a full Seek contract.
package streaming

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/akarpov/sonance/internal/logging"
	"github.com/akarpov/sonance/pkg/types"
)

// bytesPerSecondEstimate is the rough network-audio rate used to translate
// "seconds of initial buffer" into bytes, matching the teacher's MB/s-based
// buffer sizing.
const bytesPerSecondEstimate = 1 << 20 // ~1 MiB/sec

// Source is the shared buffer state, guarded by one mutex plus a condvar so
// both the producer (download goroutine) and the consumer (decoder thread)
// can block on it without polling.
type Source struct {
	mu   sync.Mutex
	cond *sync.Cond

	data             []byte
	downloadComplete bool
	downloadErr      error
	totalSize        *int64

	position int64

	minBufferBytes int64
	log            *logging.Logger
}

// New creates a Source whose WaitForInitialBuffer unblocks once
// initialBufferSeconds worth of audio (at bytesPerSecondEstimate) has
// arrived, clamped to the 1-10s range the spec allows.
func New(initialBufferSeconds float64, log *logging.Logger) *Source {
	if initialBufferSeconds < 1 {
		initialBufferSeconds = 1
	}
	if initialBufferSeconds > 10 {
		initialBufferSeconds = 10
	}
	s := &Source{
		minBufferBytes: int64(initialBufferSeconds * float64(bytesPerSecondEstimate)),
		log:            log,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// --- producer half -----------------------------------------------------

// WriteChunk appends downloaded bytes and wakes every waiter.
func (s *Source) WriteChunk(chunk []byte) {
	s.mu.Lock()
	s.data = append(s.data, chunk...)
	s.mu.Unlock()
	s.cond.Broadcast()
}

// SetTotalSize records the Content-Length once known.
func (s *Source) SetTotalSize(n int64) {
	s.mu.Lock()
	s.totalSize = &n
	s.mu.Unlock()
}

// Complete marks the download finished successfully.
func (s *Source) Complete() {
	s.mu.Lock()
	s.downloadComplete = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Fail marks the download as having errored; waiting readers observe err.
func (s *Source) Fail(err error) {
	s.mu.Lock()
	s.downloadErr = err
	s.downloadComplete = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

// --- consumer half -------------------------------------------------------

// WaitForInitialBuffer blocks until enough bytes have arrived to let the
// decoder read format headers, or the download completes/errors first.
func (s *Source) WaitForInitialBuffer() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for int64(len(s.data)) < s.minBufferBytes && !s.downloadComplete {
		s.cond.Wait()
	}
	return s.downloadErr
}

// HasMinBuffer reports whether the initial buffer threshold has been met.
func (s *Source) HasMinBuffer() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.data)) >= s.minBufferBytes || s.downloadComplete
}

// IsComplete reports whether the download has finished (successfully or not).
func (s *Source) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downloadComplete
}

// Read implements io.Reader: it blocks while the cursor has caught up to
// the buffered data and the download is neither complete nor errored.
func (s *Source) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.downloadErr != nil {
			return 0, s.downloadErr
		}

		available := int64(len(s.data)) - s.position
		if available > 0 {
			n := int64(len(p))
			if n > available {
				n = available
			}
			copy(p, s.data[s.position:s.position+n])
			s.position += n
			return int(n), nil
		}

		if s.downloadComplete {
			return 0, io.EOF
		}

		s.cond.Wait()
	}
}

// Seek implements io.Seeker. End requires either a known total size or a
// completed download; forward seeks block until the data arrives (or the
// download completes/errors), backward seeks are immediate since the buffer
// only ever grows.
func (s *Source) Seek(offset int64, whence int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = s.position + offset
	case io.SeekEnd:
		if s.totalSize != nil {
			target = *s.totalSize + offset
		} else if s.downloadComplete {
			target = int64(len(s.data)) + offset
		} else {
			return 0, types.NewCoreError(types.ErrTransport, types.CodeSeekUnsupported, "seek from end requires a known size or a completed download", nil)
		}
	default:
		return 0, fmt.Errorf("streaming: invalid whence %d", whence)
	}

	if target < 0 {
		return 0, fmt.Errorf("streaming: negative seek position %d", target)
	}

	if target <= int64(len(s.data)) {
		s.position = target
		return target, nil
	}

	for int64(len(s.data)) < target && !s.downloadComplete {
		s.cond.Wait()
	}

	if s.downloadErr != nil {
		return 0, s.downloadErr
	}
	if target > int64(len(s.data)) {
		return 0, types.NewCoreError(types.ErrTransport, types.CodeEOFMidSeek, "seek target beyond completed download", nil)
	}

	s.position = target
	return target, nil
}

// TakeCompleteData returns the full downloaded byte slice for L1 caching,
// only once the download finished without error.
func (s *Source) TakeCompleteData() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.downloadComplete || s.downloadErr != nil {
		return nil, false
	}
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out, true
}

// Progress reports downloaded/total bytes and a 0-1 completion fraction.
func (s *Source) Progress() (downloaded, total int64, fraction float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	downloaded = int64(len(s.data))
	if s.totalSize != nil {
		total = *s.totalSize
		if total > 0 {
			fraction = float64(downloaded) / float64(total)
			if fraction > 1 {
				fraction = 1
			}
		}
	} else if s.downloadComplete {
		fraction = 1
	}
	return downloaded, total, fraction
}

// Close is a no-op placeholder satisfying io.Closer for callers that want
// to treat a Source as an io.ReadSeekCloser; the underlying download is
// cancelled by the downloader's own context, not by closing the Source.
func (s *Source) Close() error { return nil }

var _ io.ReadSeekCloser = (*Source)(nil)

// segmentReader is a read-only view into a Source starting at a fixed
// absolute offset, for zero-copy re-decode on seeks that land on
// already-buffered bytes — mirrors the teacher's NewSegmentFrom/SegmentReader.
type segmentReader struct {
	src    *Source
	start  int64
	cursor int64
}

// NewSegmentFrom returns a read-only view into src beginning at offset. It
// never closes or cancels the underlying download.
func NewSegmentFrom(src *Source, offset int64) io.ReadCloser {
	if offset < 0 {
		offset = 0
	}
	return &segmentReader{src: src, start: offset}
}

func (seg *segmentReader) Read(p []byte) (int, error) {
	s := seg.src
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		abs := seg.start + seg.cursor
		available := int64(len(s.data)) - abs
		if available > 0 {
			n := int64(len(p))
			if n > available {
				n = available
			}
			copy(p, s.data[abs:abs+n])
			seg.cursor += n
			return int(n), nil
		}
		if s.downloadComplete {
			if s.downloadErr != nil {
				return 0, s.downloadErr
			}
			return 0, io.EOF
		}
		s.cond.Wait()
	}
}

func (seg *segmentReader) Close() error { return nil }

// DrainTimeout is a 30-second bound for waiting on a stalled download.
// Source itself never applies it: Read and Seek block with no deadline.
const DrainTimeout = 30 * time.Second
