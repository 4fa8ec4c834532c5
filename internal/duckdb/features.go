package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-vcf/internal/vcf"
)

const featureColumns = `id, seq_id, start_pos, end_pos, type, ref, alt, score, filter, info, format, other, description`

// nullable returns v's text, or nil (NULL) when v is missing.
func nullable(v vcf.Value) any {
	if !v.Valid {
		return nil
	}
	return v.Text
}

// WriteFeatures batch-inserts features into DuckDB using the Appender API.
// Features are keyed by ID: repeats within the batch and IDs already stored
// are skipped, so features seen in overlapping index chunks are written once.
// It returns the number of rows written.
func (s *Store) WriteFeatures(features []*vcf.Feature) (int, error) {
	if len(features) == 0 {
		return 0, nil
	}

	ctx := context.Background()
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	seen := make(map[string]bool, len(features))
	deduped := make([]*vcf.Feature, 0, len(features))
	exists, err := conn.PrepareContext(ctx, `SELECT count(*) FROM features WHERE id = ?`)
	if err != nil {
		return 0, fmt.Errorf("prepare id lookup: %w", err)
	}
	for _, f := range features {
		if seen[f.ID] {
			continue
		}
		seen[f.ID] = true

		var n int
		if err := exists.QueryRowContext(ctx, f.ID).Scan(&n); err != nil {
			exists.Close()
			return 0, fmt.Errorf("look up feature %s: %w", f.ID, err)
		}
		if n == 0 {
			deduped = append(deduped, f)
		}
	}
	exists.Close()
	if len(deduped) == 0 {
		return 0, nil
	}

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "features")
		return err
	}); err != nil {
		return 0, fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, f := range deduped {
		other, err := json.Marshal(f.Other)
		if err != nil {
			return 0, fmt.Errorf("encode feature %s: %w", f.ID, err)
		}
		if err := appender.AppendRow(
			f.ID, f.SeqID, f.Start, f.End, string(f.Type),
			nullable(f.Ref), nullable(f.Alt), nullable(f.Score), nullable(f.Filter),
			nullable(f.Info), nullable(f.Format), string(other), f.Description,
		); err != nil {
			return 0, fmt.Errorf("append feature %s: %w", f.ID, err)
		}
	}

	if err := appender.Flush(); err != nil {
		return 0, fmt.Errorf("flush features: %w", err)
	}
	return len(deduped), nil
}

// ClearFeatures removes all stored features.
func (s *Store) ClearFeatures() error {
	_, err := s.db.Exec("DELETE FROM features")
	return err
}

// CountFeatures returns the number of stored features.
func (s *Store) CountFeatures() (int64, error) {
	var n int64
	if err := s.db.QueryRow("SELECT count(*) FROM features").Scan(&n); err != nil {
		return 0, fmt.Errorf("count features: %w", err)
	}
	return n, nil
}

// LookupFeature returns the feature with the given ID, or nil if none is
// stored.
func (s *Store) LookupFeature(id string) (*vcf.Feature, error) {
	rows, err := s.db.Query(`SELECT `+featureColumns+` FROM features WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query feature: %w", err)
	}
	defer rows.Close()

	fs, err := scanFeatures(rows)
	if err != nil || len(fs) == 0 {
		return nil, err
	}
	return fs[0], nil
}

// FeaturesInRange returns the stored features of seqID overlapping the
// half-open range [start, end), ordered by position. A zero-width feature at
// p overlaps when start <= p < end.
func (s *Store) FeaturesInRange(seqID string, start, end int64) ([]*vcf.Feature, error) {
	rows, err := s.db.Query(`SELECT `+featureColumns+` FROM features
		WHERE seq_id = ?
		AND ((start_pos = end_pos AND start_pos >= ? AND start_pos < ?)
			OR (start_pos < end_pos AND start_pos < ? AND end_pos > ?))
		ORDER BY start_pos, id`,
		seqID, start, end, end, start)
	if err != nil {
		return nil, fmt.Errorf("query range: %w", err)
	}
	defer rows.Close()

	return scanFeatures(rows)
}

// scanFeatures scans rows selected with featureColumns.
func scanFeatures(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]*vcf.Feature, error) {
	var out []*vcf.Feature
	for rows.Next() {
		var f vcf.Feature
		var typ, other string
		var ref, alt, score, filter, info, format sql.NullString

		if err := rows.Scan(
			&f.ID, &f.SeqID, &f.Start, &f.End, &typ,
			&ref, &alt, &score, &filter, &info, &format,
			&other, &f.Description,
		); err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}

		f.Type = vcf.VariantType(typ)
		f.Ref = vcf.Value{Text: ref.String, Valid: ref.Valid}
		f.Alt = vcf.Value{Text: alt.String, Valid: alt.Valid}
		f.Score = vcf.Value{Text: score.String, Valid: score.Valid}
		f.Filter = vcf.Value{Text: filter.String, Valid: filter.Valid}
		f.Info = vcf.Value{Text: info.String, Valid: info.Valid}
		f.Format = vcf.Value{Text: format.String, Valid: format.Valid}
		if err := json.Unmarshal([]byte(other), &f.Other); err != nil {
			return nil, fmt.Errorf("decode feature %s: %w", f.ID, err)
		}
		out = append(out, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate features: %w", err)
	}
	return out, nil
}
