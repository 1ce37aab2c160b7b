package storage

import (
	"strings"

	"github.com/pable/go-court-metrics/internal/model"
)

// PositionRow is one projected court position.
type PositionRow struct {
	Timestamp string
	Seconds   float64
	Identity  model.Identity
	Point     model.Point
}

// PositionFilter narrows GetPositions. Zero values select everything.
type PositionFilter struct {
	Identity model.Identity // IdentityNone for both
	From     *float64       // inclusive, seconds
	To       *float64       // inclusive, seconds
}

// GetPositions returns a match's projected positions ordered by time, then identity.
func (db *DB) GetPositions(hash string, f PositionFilter) ([]PositionRow, error) {
	where := []string{"match_hash = ?"}
	args := []any{hash}
	if f.Identity != model.IdentityNone {
		where = append(where, "identity = ?")
		args = append(args, int(f.Identity))
	}
	if f.From != nil {
		where = append(where, "seconds >= ?")
		args = append(args, *f.From)
	}
	if f.To != nil {
		where = append(where, "seconds <= ?")
		args = append(args, *f.To)
	}

	rows, err := db.conn.Query(`
		SELECT timestamp, seconds, identity, x, y FROM positions
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY seconds, identity`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PositionRow
	for rows.Next() {
		var r PositionRow
		var id int
		if err := rows.Scan(&r.Timestamp, &r.Seconds, &id, &r.Point.X, &r.Point.Y); err != nil {
			return nil, err
		}
		r.Identity = model.Identity(id)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Overview is a database-wide summary.
type Overview struct {
	TotalMatches   int
	EarliestMatch  string
	LatestMatch    string
	TotalFrames    int
	TotalEvents    int
	TotalPositions int
	SkippedRecords int
	Quadrants      model.QuadrantTime // dwell seconds summed over every match and identity
	Distance       float64
}

// GetOverview aggregates every stored match.
func (db *DB) GetOverview() (Overview, error) {
	var ov Overview
	err := db.conn.QueryRow(`
		SELECT COUNT(1),
		       COALESCE(MIN(analysed_at), ''), COALESCE(MAX(analysed_at), ''),
		       COALESCE(SUM(frames), 0), COALESCE(SUM(events), 0),
		       COALESCE(SUM(unassigned + missing_identity + missing_timestamp + malformed_timestamp), 0)
		FROM matches`).
		Scan(&ov.TotalMatches, &ov.EarliestMatch, &ov.LatestMatch, &ov.TotalFrames, &ov.TotalEvents, &ov.SkippedRecords)
	if err != nil {
		return ov, err
	}

	var q1, q2, q3, q4 float64
	err = db.conn.QueryRow(`
		SELECT COALESCE(SUM(q1), 0), COALESCE(SUM(q2), 0), COALESCE(SUM(q3), 0), COALESCE(SUM(q4), 0),
		       COALESCE(SUM(distance), 0), COALESCE(SUM(positions), 0)
		FROM dwell_times`).
		Scan(&q1, &q2, &q3, &q4, &ov.Distance, &ov.TotalPositions)
	if err != nil {
		return ov, err
	}
	ov.Quadrants = model.QuadrantTime{q1, q2, q3, q4}
	return ov, nil
}
