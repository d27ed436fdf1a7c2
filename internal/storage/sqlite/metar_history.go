package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// METARRecord is one stored observation
type METARRecord struct {
	ID         int64     `json:"id"`
	ICAO       string    `json:"icao"`
	Raw        string    `json:"raw"`
	ObservedAt time.Time `json:"observed_at"`
}

// SaveMETAR stores an observation. Re-saving the same report is a no-op.
func (s *Storage) SaveMETAR(ctx context.Context, icao, raw string, observedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO metar_history (icao, raw, observed_at) VALUES (?, ?, ?)`,
		strings.ToUpper(icao),
		raw,
		observedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert metar: %w", err)
	}
	return nil
}

// METARHistory returns the newest observations for an airport first
func (s *Storage) METARHistory(ctx context.Context, icao string, limit int) ([]METARRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, icao, raw, observed_at FROM metar_history
		WHERE icao = ?
		ORDER BY observed_at DESC, id DESC
		LIMIT ?`,
		strings.ToUpper(icao), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query metar history: %w", err)
	}
	defer rows.Close()

	records := []METARRecord{}
	for rows.Next() {
		var r METARRecord
		var observedAt string
		if err := rows.Scan(&r.ID, &r.ICAO, &r.Raw, &observedAt); err != nil {
			return nil, fmt.Errorf("failed to scan metar: %w", err)
		}
		r.ObservedAt, err = time.Parse(time.RFC3339, observedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse observed_at: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate metar history: %w", err)
	}

	return records, nil
}
