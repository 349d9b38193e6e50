package settings

import "database/sql"

// CachedLoudness is a previously-measured gain adjustment for a track,
// keyed by track ID in the loudness_cache table.
type CachedLoudness struct {
	GainDB float64
	Peak   float64
	Source string
}

// GetLoudness looks up a cached loudness measurement. The bool is false
// if no row exists for trackID.
func (s *Store) GetLoudness(trackID uint64) (CachedLoudness, bool, error) {
	row := s.db.QueryRow(`
		SELECT gain_db, peak, source FROM loudness_cache WHERE track_id = ?`, trackID)

	var c CachedLoudness
	err := row.Scan(&c.GainDB, &c.Peak, &c.Source)
	if err == sql.ErrNoRows {
		return CachedLoudness{}, false, nil
	}
	if err != nil {
		return CachedLoudness{}, false, err
	}
	return c, true, nil
}

// SetLoudness stores (or replaces) a track's loudness measurement.
func (s *Store) SetLoudness(trackID uint64, gainDB, peak float64, source string) error {
	_, err := s.db.Exec(`
		INSERT INTO loudness_cache (track_id, gain_db, peak, source)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (track_id) DO UPDATE SET
			gain_db = excluded.gain_db,
			peak = excluded.peak,
			source = excluded.source,
			created_at = strftime('%s', 'now')
	`, trackID, gainDB, peak, source)
	return err
}
