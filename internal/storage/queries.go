package storage

import (
	"database/sql"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pable/go-court-metrics/internal/model"
)

// MatchRecord is everything persisted for one analysed match.
type MatchRecord struct {
	Summary    model.MatchSummary
	Layout     model.CourtLayout
	Lengths    model.CourtLengths
	Homography [9]float64
	Dwell      []model.DwellStats
	Frames     []model.ProjectedFrame
	Heatmap    *model.HeatmapGrid
}

// childTables are deleted before the matches row.
var childTables = []string{"court_layouts", "court_lengths", "homographies", "dwell_times", "positions", "heatmaps"}

const summaryColumns = `hash, match_id, analysed_at, native_width, native_height, point_count,
	threshold, per_identity, heatmap_radius, blur_kernel, frames, events, inliers,
	unassigned, missing_identity, missing_timestamp, malformed_timestamp,
	outside_window, below_threshold, clamped_deltas`

// MatchExists returns true if a match with the given hash is already stored.
func (db *DB) MatchExists(hash string) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(1) FROM matches WHERE hash = ?", hash).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SaveMatch replaces everything stored under rec.Summary.Hash in one transaction.
func (db *DB) SaveMatch(rec MatchRecord) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	hash := rec.Summary.Hash
	if err := deleteMatch(tx, hash); err != nil {
		return err
	}

	s := rec.Summary
	_, err = tx.Exec(`
		INSERT INTO matches(`+summaryColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.Hash, s.MatchID, s.AnalysedAt, s.NativeWidth, s.NativeHeight, s.PointCount,
		s.Threshold, boolInt(s.PerIdentity), s.HeatmapRadius, s.BlurKernel,
		s.Frames, s.Events, s.Inliers,
		s.Skips.Unassigned, s.Skips.MissingIdentity, s.Skips.MissingTimestamp, s.Skips.MalformedTimestamp,
		s.Skips.OutsideWindow, s.Skips.BelowThreshold, s.Skips.ClampedDeltas,
	)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}

	for _, role := range rec.Layout.Roles() {
		p := rec.Layout[role]
		if _, err := tx.Exec(`INSERT INTO court_layouts(match_hash, role, x, y) VALUES (?,?,?,?)`,
			hash, string(role), p.X, p.Y); err != nil {
			return fmt.Errorf("insert court_layouts %s: %w", role, err)
		}
	}

	l := rec.Lengths
	if _, err := tx.Exec(`
		INSERT INTO court_lengths(match_hash, top_width, bottom_width, left_height, right_height,
			shortline_width, tl_short_left, bl_short_left, br_short_right, tr_short_right)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		hash, l.TopWidth, l.BottomWidth, l.LeftHeight, l.RightHeight,
		l.ShortlineWidth, l.TopLeftShort, l.BotLeftShort, l.BotRightShort, l.TopRightShort,
	); err != nil {
		return fmt.Errorf("insert court_lengths: %w", err)
	}

	h := rec.Homography
	if _, err := tx.Exec(`
		INSERT INTO homographies(match_hash, h0, h1, h2, h3, h4, h5, h6, h7, h8)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		hash, h[0], h[1], h[2], h[3], h[4], h[5], h[6], h[7], h[8],
	); err != nil {
		return fmt.Errorf("insert homographies: %w", err)
	}

	for _, d := range rec.Dwell {
		q := d.Quadrants
		if _, err := tx.Exec(`
			INSERT INTO dwell_times(match_hash, identity, q1, q2, q3, q4, distance, positions)
			VALUES (?,?,?,?,?,?,?,?)`,
			hash, int(d.Identity), q.Get(model.Q1), q.Get(model.Q2), q.Get(model.Q3), q.Get(model.Q4),
			d.Distance, d.Positions,
		); err != nil {
			return fmt.Errorf("insert dwell_times for identity %s: %w", d.Identity, err)
		}
	}

	stmt, err := tx.Prepare(`
		INSERT INTO positions(match_hash, timestamp, seconds, identity, x, y)
		VALUES (?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, f := range rec.Frames {
		for _, id := range model.Identities {
			p, ok := f.Positions[id]
			if !ok {
				continue
			}
			if _, err := stmt.Exec(hash, f.Timestamp, f.Seconds, int(id), p.X, p.Y); err != nil {
				return fmt.Errorf("insert positions at %s: %w", f.Timestamp, err)
			}
		}
	}

	if rec.Heatmap != nil {
		cells, err := msgpack.Marshal(rec.Heatmap.Cells)
		if err != nil {
			return fmt.Errorf("encode heatmap: %w", err)
		}
		if _, err := tx.Exec(`INSERT INTO heatmaps(match_hash, width, height, cells) VALUES (?,?,?,?)`,
			hash, rec.Heatmap.Width, rec.Heatmap.Height, cells); err != nil {
			return fmt.Errorf("insert heatmaps: %w", err)
		}
	}

	return tx.Commit()
}

// DeleteMatch removes a match and all its rows. Deleting an unknown hash is not an error.
func (db *DB) DeleteMatch(hash string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := deleteMatch(tx, hash); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteMatch(tx *sql.Tx, hash string) error {
	for _, table := range childTables {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE match_hash = ?", hash); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	if _, err := tx.Exec("DELETE FROM matches WHERE hash = ?", hash); err != nil {
		return fmt.Errorf("delete matches: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(r rowScanner) (model.MatchSummary, error) {
	var s model.MatchSummary
	var perIdentity int
	err := r.Scan(&s.Hash, &s.MatchID, &s.AnalysedAt, &s.NativeWidth, &s.NativeHeight, &s.PointCount,
		&s.Threshold, &perIdentity, &s.HeatmapRadius, &s.BlurKernel, &s.Frames, &s.Events, &s.Inliers,
		&s.Skips.Unassigned, &s.Skips.MissingIdentity, &s.Skips.MissingTimestamp, &s.Skips.MalformedTimestamp,
		&s.Skips.OutsideWindow, &s.Skips.BelowThreshold, &s.Skips.ClampedDeltas)
	s.PerIdentity = perIdentity != 0
	return s, err
}

// ListMatches returns all stored match summaries, most recently analysed first.
func (db *DB) ListMatches() ([]model.MatchSummary, error) {
	rows, err := db.conn.Query(`SELECT ` + summaryColumns + ` FROM matches ORDER BY analysed_at DESC, hash`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MatchSummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetMatchByPrefix finds the first match whose hash starts with the given
// prefix. It returns nil, nil when nothing matches.
func (db *DB) GetMatchByPrefix(prefix string) (*model.MatchSummary, error) {
	row := db.conn.QueryRow(`SELECT `+summaryColumns+` FROM matches WHERE hash LIKE ? ORDER BY hash LIMIT 1`, prefix+"%")
	s, err := scanSummary(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetLayout returns the resolved court layout of a match.
func (db *DB) GetLayout(hash string) (model.CourtLayout, error) {
	rows, err := db.conn.Query(`SELECT role, x, y FROM court_layouts WHERE match_hash = ?`, hash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	layout := make(model.CourtLayout)
	for rows.Next() {
		var role string
		var p model.Point
		if err := rows.Scan(&role, &p.X, &p.Y); err != nil {
			return nil, err
		}
		layout[model.Role(role)] = p
	}
	return layout, rows.Err()
}

// GetLengths returns the court lengths of a match, or nil if none are stored.
func (db *DB) GetLengths(hash string) (*model.CourtLengths, error) {
	var l model.CourtLengths
	err := db.conn.QueryRow(`
		SELECT top_width, bottom_width, left_height, right_height,
		       shortline_width, tl_short_left, bl_short_left, br_short_right, tr_short_right
		FROM court_lengths WHERE match_hash = ?`, hash).
		Scan(&l.TopWidth, &l.BottomWidth, &l.LeftHeight, &l.RightHeight,
			&l.ShortlineWidth, &l.TopLeftShort, &l.BotLeftShort, &l.BotRightShort, &l.TopRightShort)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// GetHomography returns the stored row-major homography of a match.
func (db *DB) GetHomography(hash string) ([9]float64, error) {
	var h [9]float64
	err := db.conn.QueryRow(`SELECT h0, h1, h2, h3, h4, h5, h6, h7, h8 FROM homographies WHERE match_hash = ?`, hash).
		Scan(&h[0], &h[1], &h[2], &h[3], &h[4], &h[5], &h[6], &h[7], &h[8])
	if err != nil {
		return h, fmt.Errorf("get homography %s: %w", hash, err)
	}
	return h, nil
}

// GetDwell returns per-identity dwell stats ordered by identity.
func (db *DB) GetDwell(hash string) ([]model.DwellStats, error) {
	rows, err := db.conn.Query(`
		SELECT identity, q1, q2, q3, q4, distance, positions
		FROM dwell_times WHERE match_hash = ? ORDER BY identity`, hash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.DwellStats
	for rows.Next() {
		d := model.DwellStats{MatchHash: hash}
		var id int
		var q1, q2, q3, q4 float64
		if err := rows.Scan(&id, &q1, &q2, &q3, &q4, &d.Distance, &d.Positions); err != nil {
			return nil, err
		}
		d.Identity = model.Identity(id)
		d.Quadrants = model.QuadrantTime{q1, q2, q3, q4}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetHeatmap returns the stored blurred heatmap, or nil if none was saved.
func (db *DB) GetHeatmap(hash string) (*model.HeatmapGrid, error) {
	var (
		g    model.HeatmapGrid
		blob []byte
	)
	err := db.conn.QueryRow(`SELECT width, height, cells FROM heatmaps WHERE match_hash = ?`, hash).
		Scan(&g.Width, &g.Height, &blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := msgpack.Unmarshal(blob, &g.Cells); err != nil {
		return nil, fmt.Errorf("decode heatmap %s: %w", hash, err)
	}
	if len(g.Cells) != g.Width*g.Height {
		return nil, fmt.Errorf("heatmap %s: %d cells for %dx%d grid", hash, len(g.Cells), g.Width, g.Height)
	}
	return &g, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
