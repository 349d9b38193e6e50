package loudness

import (
	"math"
	"strconv"
	"strings"
)

// MaxGainDB caps how much gain the normalizer will ever apply upward,
// regardless of how quiet the measured/tagged loudness is.
const MaxGainDB = 6.0

// ReplayGainReferenceLUFS is the loudness ReplayGain track gains are
// defined relative to.
const ReplayGainReferenceLUFS = -18.0

// ReplayGainData is a gain/peak pair extracted from a track's tags.
type ReplayGainData struct {
	GainDB float64
	Peak   *float64
}

// replayGainGainKeys and replayGainPeakKeys list the tag keys (already
// lowercased) this engine recognizes, checked in order.
var replayGainGainKeys = []string{"replaygain_track_gain", "replaygain_album_gain"}
var replayGainPeakKeys = []string{"replaygain_track_peak", "replaygain_album_peak"}

// ExtractReplayGain scans a case-insensitive tag map for ReplayGain
// fields. tags keys are matched after lowercasing, mirroring the
// standard-tag-key-or-raw-key fallback the format readers expose.
func ExtractReplayGain(tags map[string]string) (ReplayGainData, bool) {
	lower := make(map[string]string, len(tags))
	for k, v := range tags {
		lower[strings.ToLower(k)] = v
	}

	var gainDB float64
	var found bool
	for _, key := range replayGainGainKeys {
		if raw, ok := lower[key]; ok {
			if v, ok := ParseGainValue(raw); ok {
				gainDB = v
				found = true
				break
			}
		}
	}
	if !found {
		return ReplayGainData{}, false
	}

	data := ReplayGainData{GainDB: gainDB}
	for _, key := range replayGainPeakKeys {
		if raw, ok := lower[key]; ok {
			if v, ok := ParsePeakValue(raw); ok {
				data.Peak = &v
				break
			}
		}
	}
	return data, true
}

// ParseGainValue parses a ReplayGain gain tag value, stripping the " dB",
// " db", and "dB" suffixes the tag may carry, tried in that order.
func ParseGainValue(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	for _, suffix := range []string{" dB", " db", "dB"} {
		if trimmed, ok := strings.CutSuffix(s, suffix); ok {
			s = trimmed
			break
		}
	}
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParsePeakValue parses a ReplayGain peak tag value (a bare float, no
// suffix convention).
func ParsePeakValue(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// DBToLinear converts a decibel gain to a linear amplitude multiplier.
func DBToLinear(db float64) float64 {
	return math.Pow(10.0, db/20.0)
}

// CalculateGainFactor converts ReplayGain data, referenced against
// ReplayGainReferenceLUFS, into a linear gain factor targeting
// targetLUFS, capped so it never clips: when a peak sample is known the
// cap keeps the result at or below 1/peak; otherwise it caps at
// MaxGainDB.
func CalculateGainFactor(rg ReplayGainData, targetLUFS float64) float64 {
	targetAdjustment := targetLUFS - ReplayGainReferenceLUFS
	adjustedGainDB := rg.GainDB + targetAdjustment
	gain := DBToLinear(adjustedGainDB)

	if rg.Peak != nil && *rg.Peak > 0.0 {
		maxSafeGain := 1.0 / *rg.Peak
		if gain > maxSafeGain {
			gain = maxSafeGain
		}
		return gain
	}

	maxGain := DBToLinear(MaxGainDB)
	if gain > maxGain {
		gain = maxGain
	}
	return gain
}

// ComputeGainCapped mirrors the analyzer's own cap: an EBU R128
// adjustment in dB, capped at MaxGainDB before conversion to linear.
func ComputeGainCapped(adjustmentDB float64) float64 {
	return DBToLinear(math.Min(adjustmentDB, MaxGainDB))
}
