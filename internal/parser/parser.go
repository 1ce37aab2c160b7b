// Package parser reads the pose-estimation stream and the court boundary
// points that feed one match analysis.
package parser

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pable/go-court-metrics/internal/model"
)

// Format is the on-disk encoding of a pose stream.
type Format int

const (
	FormatMsgpack Format = iota
	FormatJSON
)

// FormatFor picks the encoding from a file extension; anything other than
// .json is treated as msgpack.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatMsgpack
}

// poseRecord is one detection as written by the pose estimator. Keypoint
// coordinates are integer pixels with [0,0] meaning undetected.
type poseRecord struct {
	TrackID   int                  `msgpack:"track_id" json:"track_id"`
	Timestamp string               `msgpack:"timestamp" json:"timestamp"`
	Keypoints map[string][]float64 `msgpack:"keypoints" json:"keypoints"`
}

// Input is everything needed to analyse one match.
type Input struct {
	MatchID string
	Hash    string // sha256 over the pose stream followed by the bounds file
	Frames  []model.KeypointFrame
	Bounds  []model.Point // reference-frame boundary points
}

// Load reads the pose stream and bounds files. The match id defaults to the
// pose file's base name without extension.
func Load(posePath, boundsPath, matchID string) (*Input, error) {
	poseData, err := os.ReadFile(posePath)
	if err != nil {
		return nil, fmt.Errorf("read pose stream: %w", err)
	}
	boundsData, err := os.ReadFile(boundsPath)
	if err != nil {
		return nil, fmt.Errorf("read bounds: %w", err)
	}

	// Hash both inputs for the idempotency key.
	h := sha256.New()
	h.Write(poseData)
	h.Write(boundsData)

	frames, err := DecodePoses(bytes.NewReader(poseData), FormatFor(posePath))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", posePath, err)
	}
	bounds, err := DecodeBounds(bytes.NewReader(boundsData))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", boundsPath, err)
	}

	if matchID == "" {
		matchID = MatchIDFromPath(posePath)
	}
	return &Input{
		MatchID: matchID,
		Hash:    fmt.Sprintf("%x", h.Sum(nil)),
		Frames:  frames,
		Bounds:  bounds,
	}, nil
}

// MatchIDFromPath returns the base name of path without its extension.
func MatchIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// DecodePoses reads an ordered list of pose records. Keypoints with fewer
// than two coordinates are dropped; record order is preserved.
func DecodePoses(r io.Reader, format Format) ([]model.KeypointFrame, error) {
	var records []poseRecord
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&records); err != nil {
			return nil, fmt.Errorf("decode json poses: %w", err)
		}
	default:
		if err := msgpack.NewDecoder(r).Decode(&records); err != nil {
			return nil, fmt.Errorf("decode msgpack poses: %w", err)
		}
	}

	frames := make([]model.KeypointFrame, 0, len(records))
	for _, rec := range records {
		kp := make(map[string]model.Point, len(rec.Keypoints))
		for name, xy := range rec.Keypoints {
			if len(xy) < 2 {
				continue
			}
			kp[name] = model.Point{X: xy[0], Y: xy[1]}
		}
		frames = append(frames, model.KeypointFrame{
			TrackID:   rec.TrackID,
			Timestamp: rec.Timestamp,
			Keypoints: kp,
		})
	}
	return frames, nil
}

// EncodePoses writes frames in the msgpack stream layout DecodePoses reads.
func EncodePoses(w io.Writer, frames []model.KeypointFrame) error {
	records := make([]poseRecord, len(frames))
	for i, f := range frames {
		kp := make(map[string][]float64, len(f.Keypoints))
		for name, p := range f.Keypoints {
			kp[name] = []float64{p.X, p.Y}
		}
		records[i] = poseRecord{TrackID: f.TrackID, Timestamp: f.Timestamp, Keypoints: kp}
	}
	if err := msgpack.NewEncoder(w).Encode(records); err != nil {
		return fmt.Errorf("encode poses: %w", err)
	}
	return nil
}

// DecodeBounds reads boundary points as a JSON array of [x, y] pairs, either
// bare or under a "courtBounds" key.
func DecodeBounds(r io.Reader) ([]model.Point, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read bounds: %w", err)
	}

	var pairs [][]float64
	if err := json.Unmarshal(data, &pairs); err != nil {
		var wrapped struct {
			CourtBounds [][]float64 `json:"courtBounds"`
		}
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil || wrapped.CourtBounds == nil {
			return nil, fmt.Errorf("parse bounds: %w", err)
		}
		pairs = wrapped.CourtBounds
	}

	out := make([]model.Point, len(pairs))
	for i, xy := range pairs {
		if len(xy) != 2 {
			return nil, fmt.Errorf("bounds point %d: want [x, y], got %d values", i, len(xy))
		}
		out[i] = model.Point{X: xy[0], Y: xy[1]}
	}
	return out, nil
}
