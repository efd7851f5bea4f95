package ffwork

import (
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSegmentLine(t *testing.T) {
	seg, err := ParseSegmentLine("20260101_101500.tmp,0.000000,6.006000\n")
	require.NoError(t, err)
	assert.Equal(t, "20260101_101500.tmp", seg.Filename)
	assert.InDelta(t, 6.006, seg.Duration(), 1e-9)

	seg, err = ParseSegmentLine(`"/data/cam-1/2026-01-01/10/20260101_101500.tmp",12.5,18.5`)
	require.NoError(t, err)
	assert.Equal(t, "20260101_101500.tmp", seg.Filename)
	assert.InDelta(t, 6.0, seg.Duration(), 1e-9)

	for _, line := range []string{"", "a,b", "x.tmp,1,abc", "x.tmp,5,1"} {
		_, err := ParseSegmentLine(line)
		assert.Error(t, err, line)
	}
}

func TestBuildArgs(t *testing.T) {
	r, err := NewSegmentRecorder(Config{
		Name:      "cam-1",
		InputURL:  "rtsp://10.0.0.2/stream1",
		OutputDir: "/data/cam-1",
	})
	require.NoError(t, err)

	args := r.BuildArgs()
	idx := slices.Index(args, "-segment_time")
	require.Greater(t, idx, 0)
	assert.Equal(t, "6", args[idx+1])
	assert.Contains(t, args, "-rtsp_transport")
	assert.Equal(t, filepath.Join("/data/cam-1", "%Y-%m-%d", "%H", "%Y%m%d_%H%M%S.tmp"), args[len(args)-1])

	_, err = NewSegmentRecorder(Config{OutputDir: "/tmp"})
	assert.Error(t, err)
}

func TestStopBeforeStart(t *testing.T) {
	r, err := NewSegmentRecorder(Config{InputURL: "rtsp://x", OutputDir: t.TempDir()})
	require.NoError(t, err)
	assert.NoError(t, r.Stop())
	assert.False(t, r.GetStats().IsRunning)
}
