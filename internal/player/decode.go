package player

import (
	"fmt"
	"io"
	"strings"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"

	"github.com/akarpov/sonance/pkg/types"
)

// decodeFunc matches every beep container decoder's signature.
type decodeFunc func(r io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error)

// containerDecoders maps a track's container hint to the beep decoder that
// understands it. Hints are matched case-insensitively and accept both bare
// extensions ("mp3") and MIME-style subtypes ("audio/mpeg").
var containerDecoders = map[string]decodeFunc{
	"mp3":       mp3.Decode,
	"mpeg":      mp3.Decode,
	"audio/mpeg": mp3.Decode,
	"flac":      flac.Decode,
	"audio/flac": flac.Decode,
	"ogg":       vorbis.Decode,
	"vorbis":    vorbis.Decode,
	"audio/ogg": vorbis.Decode,
	"wav":       wav.Decode,
	"wave":      wav.Decode,
	"audio/wav": wav.Decode,
	"audio/x-wav": wav.Decode,
}

// decodeTrack picks a decoder by the track's container hint and decodes r.
// An empty hint falls back to mp3, the most common container in this
// catalog; any other unrecognized hint fails with CodeContainerUnrecognized.
func decodeTrack(hint string, r io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
	key := strings.ToLower(strings.TrimSpace(hint))
	if fn, ok := containerDecoders[key]; ok {
		return fn(r)
	}
	if key == "" {
		return mp3.Decode(r)
	}
	return nil, beep.Format{}, types.NewCoreError(types.ErrFormat, types.CodeContainerUnrecognized,
		fmt.Sprintf("unrecognized container hint %q", hint), nil)
}
