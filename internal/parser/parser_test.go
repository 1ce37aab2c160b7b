package parser

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/pable/go-court-metrics/internal/model"
)

const poseJSON = `[
  {"track_id": 3, "timestamp": "0.04s", "keypoints": {"LEFT_ANKLE": [410, 620], "RIGHT_ANKLE": [0, 0], "NOSE": [415]}},
  {"track_id": 5, "timestamp": "0.08s", "keypoints": {"LEFT_ANKLE": [800, 300]}}
]`

func TestDecodePoses_JSON(t *testing.T) {
	frames, err := DecodePoses(strings.NewReader(poseJSON), FormatJSON)
	require.NoError(t, err)
	require.Len(t, frames, 2)

	want := model.KeypointFrame{
		TrackID:   3,
		Timestamp: "0.04s",
		Keypoints: map[string]model.Point{
			model.JointLeftAnkle:  {X: 410, Y: 620},
			model.JointRightAnkle: {},
		},
	}
	if diff := cmp.Diff(want, frames[0]); diff != "" {
		t.Errorf("frame 0 mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 5, frames[1].TrackID)
}

func TestDecodePoses_MsgpackIntegerCoordinates(t *testing.T) {
	// The pose estimator writes integer pixel coordinates.
	raw := []map[string]interface{}{
		{"track_id": 1, "timestamp": "1.20s", "keypoints": map[string][]int{"LEFT_ANKLE": {12, 34}}},
	}
	data, err := msgpack.Marshal(raw)
	require.NoError(t, err)

	frames, err := DecodePoses(bytes.NewReader(data), FormatMsgpack)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, model.Point{X: 12, Y: 34}, frames[0].Keypoints[model.JointLeftAnkle])
	assert.Equal(t, "1.20s", frames[0].Timestamp)
}

func TestEncodePoses_RoundTrip(t *testing.T) {
	in := []model.KeypointFrame{
		{TrackID: 9, Timestamp: "2.00s", Keypoints: map[string]model.Point{model.JointRightAnkle: {X: 5, Y: 6}}},
		{TrackID: 10, Keypoints: map[string]model.Point{}},
	}
	var buf bytes.Buffer
	require.NoError(t, EncodePoses(&buf, in))
	out, err := DecodePoses(&buf, FormatMsgpack)
	require.NoError(t, err)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodePoses_Garbage(t *testing.T) {
	_, err := DecodePoses(strings.NewReader("{not json"), FormatJSON)
	assert.Error(t, err)
	_, err = DecodePoses(bytes.NewReader([]byte{0xc1}), FormatMsgpack)
	assert.Error(t, err)
}

func TestDecodeBounds(t *testing.T) {
	pts, err := DecodeBounds(strings.NewReader(`[[100, 10], [800.5, 10], [100, 710], [800, 710]]`))
	require.NoError(t, err)
	assert.Equal(t, []model.Point{{X: 100, Y: 10}, {X: 800.5, Y: 10}, {X: 100, Y: 710}, {X: 800, Y: 710}}, pts)

	wrapped, err := DecodeBounds(strings.NewReader(`{"courtBounds": [[1, 2], [3, 4]]}`))
	require.NoError(t, err)
	assert.Equal(t, []model.Point{{X: 1, Y: 2}, {X: 3, Y: 4}}, wrapped)

	_, err = DecodeBounds(strings.NewReader(`[[1, 2, 3]]`))
	assert.Error(t, err)
	_, err = DecodeBounds(strings.NewReader(`{"other": 1}`))
	assert.Error(t, err)
}

func TestFormatFor(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatFor("match.JSON"))
	assert.Equal(t, FormatMsgpack, FormatFor("match.msgpack"))
	assert.Equal(t, FormatMsgpack, FormatFor("match"))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	posePath := filepath.Join(dir, "final-2024.json")
	boundsPath := filepath.Join(dir, "bounds.json")
	require.NoError(t, os.WriteFile(posePath, []byte(poseJSON), 0o644))
	require.NoError(t, os.WriteFile(boundsPath, []byte(`[[0,0],[1,0],[0,1],[1,1]]`), 0o644))

	in, err := Load(posePath, boundsPath, "")
	require.NoError(t, err)
	assert.Equal(t, "final-2024", in.MatchID)
	assert.Len(t, in.Hash, 64)
	assert.Len(t, in.Frames, 2)
	assert.Len(t, in.Bounds, 4)

	again, err := Load(posePath, boundsPath, "override")
	require.NoError(t, err)
	assert.Equal(t, "override", again.MatchID)
	assert.Equal(t, in.Hash, again.Hash, "hash depends only on file contents")

	require.NoError(t, os.WriteFile(boundsPath, []byte(`[[0,0],[2,0],[0,1],[1,1]]`), 0o644))
	moved, err := Load(posePath, boundsPath, "")
	require.NoError(t, err)
	assert.NotEqual(t, in.Hash, moved.Hash)

	_, err = Load(filepath.Join(dir, "missing.msgpack"), boundsPath, "")
	assert.Error(t, err)
}
