package player

import (
	"io"
	"strings"
	"testing"

	"github.com/akarpov/sonance/pkg/types"
)

func nopReadCloser(data string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(data))
}

func TestDecodeTrackRejectsUnrecognizedHint(t *testing.T) {
	_, _, err := decodeTrack("application/x-made-up", nopReadCloser("not audio"))
	if err == nil {
		t.Fatal("expected an error for an unrecognized container hint")
	}
	var coreErr *types.CoreError
	if !asCoreError(err, &coreErr) {
		t.Fatalf("expected a CoreError, got %T: %v", err, err)
	}
	if coreErr.Code != types.CodeContainerUnrecognized {
		t.Fatalf("code = %s, want %s", coreErr.Code, types.CodeContainerUnrecognized)
	}
}

func TestDecodeTrackHintLookupIsCaseAndWhitespaceInsensitive(t *testing.T) {
	for _, hint := range []string{"MP3", " mp3 ", "audio/Mpeg", "FLAC", "Audio/Flac", "OGG"} {
		_, _, err := decodeTrack(hint, nopReadCloser("garbage"))
		if err == nil {
			t.Fatalf("hint %q: expected a decode error from garbage input", hint)
		}
		var coreErr *types.CoreError
		if asCoreError(err, &coreErr) && coreErr.Code == types.CodeContainerUnrecognized {
			t.Fatalf("hint %q: recognized container hint was mistakenly reported as unrecognized", hint)
		}
	}
}

func TestDecodeTrackEmptyHintFallsBackToMP3(t *testing.T) {
	_, _, err := decodeTrack("", nopReadCloser("garbage"))
	if err == nil {
		t.Fatal("expected a decode error from garbage input")
	}
	var coreErr *types.CoreError
	if asCoreError(err, &coreErr) && coreErr.Code == types.CodeContainerUnrecognized {
		t.Fatal("empty hint should fall back to mp3, not report unrecognized")
	}
}

func asCoreError(err error, target **types.CoreError) bool {
	ce, ok := err.(*types.CoreError)
	if ok {
		*target = ce
	}
	return ok
}
