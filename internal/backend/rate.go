package backend

import "sort"

// BufferFramesForRate sizes an ALSA direct buffer the way the teacher's
// alsa_direct.rs does: 500ms at 192kHz+, 250ms at 96kHz+, 125ms below that.
func BufferFramesForRate(sampleRate int) int {
	switch {
	case sampleRate >= 192000:
		return sampleRate / 2
	case sampleRate >= 96000:
		return sampleRate / 4
	default:
		return sampleRate / 8
	}
}

// PeriodFramesForBuffer mirrors the teacher's period-size-is-a-tenth-of-
// buffer-size rule.
func PeriodFramesForBuffer(bufferFrames int) int {
	return bufferFrames / 10
}

// PipeWireBufferFrames sizes a PipeWire/Pulse stream's buffer: 512 frames
// in exclusive mode, else ~100ms (effectiveRate/10) in shared mode. This is
// a different rule from BufferFramesForRate's ALSA sizing.
func PipeWireBufferFrames(effectiveRate int, exclusive bool) int {
	if exclusive {
		return 512
	}
	return effectiveRate / 10
}

// FindBestFallbackRate finds the best sample rate to actually request when
// a device doesn't support the one a track was decoded at: the highest
// supported rate in the same family (44.1kHz multiples vs 48kHz multiples)
// that's at or below the request, or — if nothing in that family qualifies
// — the highest supported rate overall.
func FindBestFallbackRate(requested int, supported []int) int {
	if len(supported) == 0 {
		return requested
	}

	is441Family := requested%44100 == 0

	var candidates []int
	for _, r := range supported {
		inFamily := r%44100 == 0
		if !is441Family {
			inFamily = r%48000 == 0
		}
		if inFamily && r <= requested {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) > 0 {
		sort.Ints(candidates)
		return candidates[len(candidates)-1]
	}

	best := supported[0]
	for _, r := range supported {
		if r > best {
			best = r
		}
	}
	return best
}

// RateSupported reports whether requested appears in supported, or true
// unconditionally when supported is nil (meaning the device's range is
// continuous or simply unknown, per procfs.SupportedPlaybackRates).
func RateSupported(requested int, supported []int) bool {
	if supported == nil {
		return true
	}
	for _, r := range supported {
		if r == requested {
			return true
		}
	}
	return false
}

// EffectiveRate resolves the sample rate a stream should actually be
// opened at: requested if supported (or unknown), otherwise the best
// same-family fallback.
func EffectiveRate(requested int, supported []int) int {
	if RateSupported(requested, supported) {
		return requested
	}
	return FindBestFallbackRate(requested, supported)
}
