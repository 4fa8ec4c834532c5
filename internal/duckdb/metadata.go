package duckdb

import (
	"fmt"
	"time"
)

// Export records one export of a source file into the database.
type Export struct {
	URL        string
	Size       int64
	Features   int64
	ExportedAt time.Time
}

// RecordExport appends e to the export log.
func (s *Store) RecordExport(e Export) error {
	if e.ExportedAt.IsZero() {
		e.ExportedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`INSERT INTO exports VALUES (?, ?, ?, ?)`, e.URL, e.Size, e.Features, e.ExportedAt)
	if err != nil {
		return fmt.Errorf("record export: %w", err)
	}
	return nil
}

// Exports lists recorded exports, oldest first.
func (s *Store) Exports() ([]Export, error) {
	rows, err := s.db.Query(`SELECT url, size, features, exported_at FROM exports ORDER BY exported_at`)
	if err != nil {
		return nil, fmt.Errorf("query exports: %w", err)
	}
	defer rows.Close()

	var out []Export
	for rows.Next() {
		var e Export
		if err := rows.Scan(&e.URL, &e.Size, &e.Features, &e.ExportedAt); err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exports: %w", err)
	}
	return out, nil
}
