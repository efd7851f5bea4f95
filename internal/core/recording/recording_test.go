package recording

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gowvp/camcore/internal/conf"
	"github.com/gowvp/camcore/internal/errcode"
	"github.com/gowvp/camcore/pkg/ffwork"
	"github.com/grafov/m3u8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0x47}, size), 0o644))
}

func TestSegmentDuration(t *testing.T) {
	assert.InDelta(t, 6.02, SegmentDuration("20260101_100000_6.02s.ts", 0), 1e-9)
	assert.InDelta(t, 4, SegmentDuration("20260101_100000_4s.ts", 999999), 1e-9)
	assert.InDelta(t, 2, SegmentDuration("20260101_100000.ts", 250000), 1e-9)
	assert.InDelta(t, 6, SegmentDuration("20260101_100000.ts", 0), 1e-9)
}

func TestBuildPlaylist(t *testing.T) {
	root := t.TempDir()
	hourDir := filepath.Join(root, "cam-1", "2026-01-01", "10")
	writeFile(t, filepath.Join(hourDir, "20260101_100006_5.50s.ts"), 10)
	writeFile(t, filepath.Join(hourDir, "20260101_100000_6.00s.ts"), 10)
	writeFile(t, filepath.Join(hourDir, "20260101_100012.ts"), 250000)
	writeFile(t, filepath.Join(hourDir, "20260101_100018.tmp"), 10)

	c := NewCore(root)
	out, err := c.BuildPlaylist("cam-1", "2026-01-01", "10")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "#EXTM3U"))
	assert.Contains(t, out, "#EXT-X-PLAYLIST-TYPE:VOD")
	assert.Contains(t, out, "#EXT-X-TARGETDURATION:6\n")
	assert.Contains(t, out, "#EXT-X-ENDLIST")
	assert.NotContains(t, out, ".tmp")

	pl, typ, err := m3u8.DecodeFrom(strings.NewReader(out), true)
	require.NoError(t, err)
	require.Equal(t, m3u8.MEDIA, typ)
	media := pl.(*m3u8.MediaPlaylist)
	segs := media.Segments[:media.Count()]
	require.Len(t, segs, 3)
	assert.Equal(t, "/recordings/cam-1/2026-01-01/10/20260101_100000_6.00s.ts", segs[0].URI)
	assert.InDelta(t, 6.0, segs[0].Duration, 1e-3)
	assert.InDelta(t, 5.5, segs[1].Duration, 1e-3)
	assert.InDelta(t, 2.0, segs[2].Duration, 1e-3)
}

func TestBuildPlaylistWholeDay(t *testing.T) {
	root := t.TempDir()
	day := filepath.Join(root, "cam-1", "2026-01-01")
	writeFile(t, filepath.Join(day, "11", "20260101_110000_6.00s.ts"), 1)
	writeFile(t, filepath.Join(day, "09", "20260101_090000_7.20s.ts"), 1)

	c := NewCore(root)
	segs, err := c.Segments("cam-1", "2026-01-01", "")
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, "09", segs[0].Hour)
	assert.Equal(t, "11", segs[1].Hour)

	out, err := c.BuildPlaylist("cam-1", "2026-01-01", "")
	require.NoError(t, err)
	assert.Contains(t, out, "#EXT-X-TARGETDURATION:8\n")
}

func TestBuildPlaylistNotFound(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "cam-1", "2026-01-01", "10"), 0o755))
	c := NewCore(root)

	_, err := c.BuildPlaylist("cam-1", "2026-01-01", "10")
	assert.ErrorIs(t, err, errcode.ErrNotFound)

	_, err = c.BuildPlaylist("cam-1", "2026-01-02", "")
	assert.ErrorIs(t, err, errcode.ErrNotFound)
}

func TestPathValidation(t *testing.T) {
	root := t.TempDir()
	c := NewCore(root)

	cases := []struct {
		cam, date, hour, seg string
		code                 int
	}{
		{"..", "2026-01-01", "10", "a.ts", 403},
		{"cam-1", "..", "10", "a.ts", 403},
		{"cam-1", "2026-01-01", "10", "..%2f.ts", 403},
		{"cam-1", "2026-01-01", "10", `a\b.ts`, 403},
		{"cam 1", "2026-01-01", "10", "a.ts", 400},
		{"cam-1", "2026-13-01", "10", "a.ts", 400},
		{"cam-1", "20260101", "10", "a.ts", 400},
		{"cam-1", "2026-01-01", "24", "a.ts", 400},
		{"cam-1", "2026-01-01", "10", "a.mp4", 400},
		{"cam-1", "2026-01-01", "10", "a.ts", 404},
	}
	for _, tc := range cases {
		_, err := c.SegmentPath(tc.cam, tc.date, tc.hour, tc.seg)
		require.Error(t, err, tc)
		assert.Equal(t, tc.code, errcode.HTTPStatus(err), tc)
	}

	_, err := c.BuildPlaylist("cam-1", "../x", "")
	assert.Equal(t, 403, errcode.HTTPStatus(err))
}

func TestSegmentPathSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := filepath.Join(t.TempDir(), "secret.ts")
	writeFile(t, outside, 1)
	hourDir := filepath.Join(root, "cam-1", "2026-01-01", "10")
	writeFile(t, filepath.Join(hourDir, "20260101_100000_6.00s.ts"), 1)
	require.NoError(t, os.Symlink(outside, filepath.Join(hourDir, "evil.ts")))

	c := NewCore(root)
	p, err := c.SegmentPath("cam-1", "2026-01-01", "10", "20260101_100000_6.00s.ts")
	require.NoError(t, err)
	assert.Equal(t, "20260101_100000_6.00s.ts", filepath.Base(p))

	_, err = c.SegmentPath("cam-1", "2026-01-01", "10", "evil.ts")
	assert.Equal(t, 403, errcode.HTTPStatus(err))
}

type fakeArchiver struct {
	mu    sync.Mutex
	dates []string
	fail  map[string]bool
}

func (f *fakeArchiver) ArchiveDir(_ context.Context, cameraID, date, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[date] {
		return errors.New("upload failed")
	}
	f.dates = append(f.dates, cameraID+"/"+date)
	return nil
}

func fixedClock() time.Time {
	return time.Date(2026, 1, 10, 12, 0, 0, 0, time.Local)
}

func TestApplyRetention(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"2026-01-01", "2026-01-02", "2026-01-03", "2026-01-10"} {
		writeFile(t, filepath.Join(root, "cam-1", d, "10", "a_6.00s.ts"), 100)
	}
	arch := fakeArchiver{fail: map[string]bool{"2026-01-02": true}}
	c := NewCore(root, WithClock(fixedClock), WithArchiver(&arch))

	res, err := c.ApplyRetention(context.Background(), "cam-1", 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-01-01"}, res.Removed)
	assert.Equal(t, 1, res.Archived)
	assert.EqualValues(t, 100, res.FreedBytes)
	assert.Equal(t, []string{"cam-1/2026-01-01"}, arch.dates)

	// 归档失败的目录保留
	assert.DirExists(t, filepath.Join(root, "cam-1", "2026-01-02"))
	assert.DirExists(t, filepath.Join(root, "cam-1", "2026-01-03"))
	assert.NoDirExists(t, filepath.Join(root, "cam-1", "2026-01-01"))

	res, err = c.ApplyRetention(context.Background(), "cam-1", 0)
	require.NoError(t, err)
	assert.Empty(t, res.Removed)

	_, err = c.ApplyRetention(context.Background(), "../etc", 1)
	assert.Error(t, err)
}

type policyFunc func(ctx context.Context) (map[string]int, error)

func (f policyFunc) RetentionPolicies(ctx context.Context) (map[string]int, error) { return f(ctx) }

func TestRunCleanupPerCameraPolicy(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "cam-1", "2026-01-05", "10", "a_6.00s.ts"), 1)
	writeFile(t, filepath.Join(root, "cam-2", "2026-01-05", "10", "a_6.00s.ts"), 1)

	cfg := conf.DefaultConfig().Recording
	cfg.DefaultRetentionDays = 7
	cfg.DiskUsageThreshold = 0
	c := NewCore(root,
		WithConfig(cfg),
		WithClock(fixedClock),
		WithPolicySource(policyFunc(func(context.Context) (map[string]int, error) {
			return map[string]int{"cam-2": 2}, nil
		})),
	)

	results := c.RunCleanup(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, "cam-2", results[0].CameraID)
	assert.DirExists(t, filepath.Join(root, "cam-1", "2026-01-05"))
	assert.NoDirExists(t, filepath.Join(root, "cam-2"))
}

func TestCleanupByDiskUsage(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "cam-1", "2026-01-03", "10", "a_6.00s.ts"), 1)
	writeFile(t, filepath.Join(root, "cam-2", "2026-01-02", "10", "a_6.00s.ts"), 1)
	writeFile(t, filepath.Join(root, "cam-2", "2026-01-10", "10", "a_6.00s.ts"), 1)

	cfg := conf.DefaultConfig().Recording
	cfg.DiskUsageThreshold = 90
	c := NewCore(root, WithConfig(cfg), WithClock(fixedClock))
	readings := []float64{97, 92, 80}
	c.usage = func(string) (float64, error) {
		v := readings[0]
		if len(readings) > 1 {
			readings = readings[1:]
		}
		return v, nil
	}

	c.cleanupByDiskUsage(context.Background())
	assert.NoDirExists(t, filepath.Join(root, "cam-2", "2026-01-02"))
	assert.NoDirExists(t, filepath.Join(root, "cam-1", "2026-01-03"))
	// 当天的录像保留
	assert.DirExists(t, filepath.Join(root, "cam-2", "2026-01-10"))
}

type fakeCapture struct {
	cfg     ffwork.Config
	done    chan error
	stopped atomic.Bool
}

func (f *fakeCapture) Start() error { return nil }
func (f *fakeCapture) Stop() error {
	f.stopped.Store(true)
	return nil
}
func (f *fakeCapture) Done() <-chan error { return f.done }

type captureFactory struct {
	mu   sync.Mutex
	list []*fakeCapture
}

func (f *captureFactory) New(cfg ffwork.Config) (Capturer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fc := fakeCapture{cfg: cfg, done: make(chan error, 1)}
	f.list = append(f.list, &fc)
	return &fc, nil
}

func (f *captureFactory) get(i int) *fakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.list) {
		return nil
	}
	return f.list[i]
}

func (f *captureFactory) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.list)
}

func TestStreamSupervisor(t *testing.T) {
	root := t.TempDir()
	cfg := conf.DefaultConfig().Recording
	cfg.RestartDelay = conf.Duration(10 * time.Millisecond)
	var factory captureFactory
	c := NewCore(root, WithConfig(cfg), WithCapture(factory.New))
	ctx := context.Background()

	require.NoError(t, c.StartStream(ctx, "cam-1", "rtsp://a/1"))
	require.NoError(t, c.StartStream(ctx, "cam-1", "rtsp://a/1"))
	assert.Equal(t, 1, factory.len())
	assert.True(t, c.IsStreaming("cam-1"))
	assert.Equal(t, filepath.Join(root, "cam-1"), factory.get(0).cfg.OutputDir)

	// ffmpeg 异常退出后自动重启
	factory.get(0).done <- errors.New("exit status 1")
	require.Eventually(t, func() bool { return factory.len() == 2 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return c.Streams()[0].Restarts == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "exit status 1", c.Streams()[0].LastError)

	require.NoError(t, c.StopStream(ctx, "cam-1"))
	assert.True(t, factory.get(1).stopped.Load())
	assert.False(t, c.IsStreaming("cam-1"))
	require.NoError(t, c.StopStream(ctx, "cam-1"))

	assert.Error(t, c.StartStream(ctx, "cam-1", ""))
	assert.Error(t, c.StartStream(ctx, "../cam", "rtsp://a/1"))
}

func TestStartStreamSourceChanged(t *testing.T) {
	var factory captureFactory
	c := NewCore(t.TempDir(), WithCapture(factory.New))
	ctx := context.Background()

	require.NoError(t, c.StartStream(ctx, "cam-1", "rtsp://a/1"))
	require.NoError(t, c.StartStream(ctx, "cam-1", "rtsp://a/2"))
	require.Equal(t, 2, factory.len())
	assert.True(t, factory.get(0).stopped.Load())
	assert.Equal(t, "rtsp://a/2", factory.get(1).cfg.InputURL)
	require.NoError(t, c.Close(ctx))
}

func TestRecordingDisabled(t *testing.T) {
	var factory captureFactory
	cfg := conf.DefaultConfig().Recording
	cfg.Disabled = true
	c := NewCore(t.TempDir(), WithConfig(cfg), WithCapture(factory.New))

	require.NoError(t, c.StartStream(context.Background(), "cam-1", "rtsp://a/1"))
	assert.Zero(t, factory.len())
}

func TestFinalizeSegment(t *testing.T) {
	root := t.TempDir()
	c := NewCore(root)
	tmp := filepath.Join(root, "cam-1", "2026-01-01", "10", "20260101_101500.tmp")
	writeFile(t, tmp, 1)

	c.finalizeSegment("cam-1", ffwork.Segment{Filename: "20260101_101500.tmp", Start: 12, End: 18.004})
	assert.NoFileExists(t, tmp)
	assert.FileExists(t, filepath.Join(root, "cam-1", "2026-01-01", "10", "20260101_101500_6.00s.ts"))
}
