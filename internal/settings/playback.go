package settings

import (
	"database/sql"
	"encoding/json"
)

// Playback mirrors the single-row playback_settings table: every option
// from spec §6's table lives here, one row pinned at id=1.
type Playback struct {
	OutputDevice            *string
	ExclusiveMode           bool
	BackendType             string
	ALSAPlugin              *string
	PreferredSampleRate     *int
	DeviceSampleRateLimits  map[string]int // device id -> max sample rate
	LimitQualityToDevice    bool
	NormalizationEnabled    bool
	NormalizationTargetLUFS float64
	GaplessEnabled          bool
	StreamFirstTrack        bool
	StreamBufferSeconds     float64
	StreamingOnly           bool
	PWForceBitperfect       bool
}

// GetPlayback loads the single settings row, seeding it with defaults if
// the table is empty.
func (s *Store) GetPlayback() (Playback, error) {
	row := s.db.QueryRow(`
		SELECT output_device, exclusive_mode, backend_type, alsa_plugin,
		       preferred_sample_rate, device_sample_rate_limits, limit_quality_to_device,
		       normalization_enabled, normalization_target_lufs,
		       gapless_enabled, stream_first_track, stream_buffer_seconds,
		       streaming_only, pw_force_bitperfect
		FROM playback_settings WHERE id = 1`)

	var p Playback
	var device, plugin sql.NullString
	var rate sql.NullInt64
	var rateLimitsJSON string

	err := row.Scan(&device, &p.ExclusiveMode, &p.BackendType, &plugin, &rate,
		&rateLimitsJSON, &p.LimitQualityToDevice, &p.NormalizationEnabled, &p.NormalizationTargetLUFS,
		&p.GaplessEnabled, &p.StreamFirstTrack, &p.StreamBufferSeconds,
		&p.StreamingOnly, &p.PWForceBitperfect)

	if err == sql.ErrNoRows {
		p = defaultPlayback()
		if err := s.SetPlayback(p); err != nil {
			return Playback{}, err
		}
		return p, nil
	}
	if err != nil {
		return Playback{}, err
	}

	if device.Valid {
		p.OutputDevice = &device.String
	}
	if plugin.Valid {
		p.ALSAPlugin = &plugin.String
	}
	if rate.Valid {
		v := int(rate.Int64)
		p.PreferredSampleRate = &v
	}
	p.DeviceSampleRateLimits = map[string]int{}
	if rateLimitsJSON != "" {
		_ = json.Unmarshal([]byte(rateLimitsJSON), &p.DeviceSampleRateLimits)
	}
	return p, nil
}

// SetPlayback replaces the single settings row.
func (s *Store) SetPlayback(p Playback) error {
	rateLimits := p.DeviceSampleRateLimits
	if rateLimits == nil {
		rateLimits = map[string]int{}
	}
	rateLimitsJSON, err := json.Marshal(rateLimits)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO playback_settings (
			id, output_device, exclusive_mode, backend_type, alsa_plugin,
			preferred_sample_rate, device_sample_rate_limits, limit_quality_to_device,
			normalization_enabled, normalization_target_lufs,
			gapless_enabled, stream_first_track, stream_buffer_seconds,
			streaming_only, pw_force_bitperfect
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			output_device = excluded.output_device,
			exclusive_mode = excluded.exclusive_mode,
			backend_type = excluded.backend_type,
			alsa_plugin = excluded.alsa_plugin,
			preferred_sample_rate = excluded.preferred_sample_rate,
			device_sample_rate_limits = excluded.device_sample_rate_limits,
			limit_quality_to_device = excluded.limit_quality_to_device,
			normalization_enabled = excluded.normalization_enabled,
			normalization_target_lufs = excluded.normalization_target_lufs,
			gapless_enabled = excluded.gapless_enabled,
			stream_first_track = excluded.stream_first_track,
			stream_buffer_seconds = excluded.stream_buffer_seconds,
			streaming_only = excluded.streaming_only,
			pw_force_bitperfect = excluded.pw_force_bitperfect
	`, p.OutputDevice, p.ExclusiveMode, p.BackendType, p.ALSAPlugin,
		p.PreferredSampleRate, string(rateLimitsJSON), p.LimitQualityToDevice,
		p.NormalizationEnabled, p.NormalizationTargetLUFS,
		p.GaplessEnabled, p.StreamFirstTrack, p.StreamBufferSeconds,
		p.StreamingOnly, p.PWForceBitperfect)
	return err
}

func defaultPlayback() Playback {
	return Playback{
		BackendType:             "pipewire",
		DeviceSampleRateLimits:  map[string]int{},
		NormalizationEnabled:    true,
		NormalizationTargetLUFS: -18.0,
		GaplessEnabled:          true,
		StreamFirstTrack:        true,
		StreamBufferSeconds:     2.0,
	}
}
