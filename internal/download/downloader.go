package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/hashicorp/go-retryablehttp"
)

const chunkSize = 64 * 1024

// performDownload issues one GET attempt and streams the response body into
// task.Source, chunk by chunk, exactly as the teacher's StreamReader.startDownload
// grows its in-memory buffer — but writing into the shared Source instead of
// a private slice, so any other reader of the same Source observes progress.
func (m *Manager) performDownload(ctx context.Context, task *Task) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, task.URL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", m.config.UserAgent)
	req.Header.Set("Accept", "audio/mpeg, audio/mp4, audio/*;q=0.9, */*;q=0.5")
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("http %d: %s", resp.StatusCode, resp.Status)
	}

	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, perr := strconv.ParseInt(cl, 10, 64); perr == nil {
			task.Source.SetTotalSize(n)
		}
	}

	buf := make([]byte, chunkSize)
	var downloaded int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			task.Source.WriteChunk(chunk)
			downloaded += int64(n)
			m.notifyProgress(task, downloaded, resp.ContentLength)
		}

		if readErr != nil {
			if readErr == io.EOF {
				task.Source.Complete()
				return nil
			}
			return fmt.Errorf("read response body: %w", readErr)
		}
	}
}
