package recording

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gowvp/camcore/internal/errcode"
	"github.com/gowvp/camcore/pkg/ffwork"
	"github.com/ixugo/goddd/pkg/reason"
)

// segmentTimeLayout ffmpeg strftime 生成的切片文件名
const segmentTimeLayout = "20060102_150405"

type stream struct {
	src    string
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	status StreamStatus
}

func (s *stream) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil && !errors.Is(err, io.EOF) {
		s.status.LastError = err.Error()
	}
}

func (s *stream) restarted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Restarts++
}

func (s *stream) snapshot() StreamStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// StartStream 启动摄像头录制，同一源地址重复调用无副作用
// 源地址变化时先停止旧的录制进程
func (c *Core) StartStream(ctx context.Context, cameraID, sourceURL string) error {
	if !c.IsEnabled() {
		return nil
	}
	if hasTraversal(cameraID) {
		return errcode.ErrForbidden.Withf("invalid camera id[%s]", cameraID)
	}
	if err := validateCameraID(cameraID); err != nil {
		return err
	}
	if strings.TrimSpace(sourceURL) == "" {
		return reason.ErrBadRequest.SetMsg("streamUrl 不能为空")
	}

	c.mu.Lock()
	if s, ok := c.streams[cameraID]; ok {
		if s.src == sourceURL {
			c.mu.Unlock()
			return nil
		}
		delete(c.streams, cameraID)
		c.mu.Unlock()
		if err := c.wait(ctx, s); err != nil {
			return err
		}
		c.mu.Lock()
	}
	defer c.mu.Unlock()
	if _, ok := c.streams[cameraID]; ok {
		// 等待旧进程退出期间已被其它调用启动
		return nil
	}

	cp, err := c.spawn(cameraID, sourceURL)
	if err != nil {
		return reason.ErrServer.Withf("start recording[%s] err[%s]", cameraID, err.Error())
	}
	sctx, cancel := context.WithCancel(context.Background())
	s := stream{
		src:    sourceURL,
		cancel: cancel,
		done:   make(chan struct{}),
		status: StreamStatus{CameraID: cameraID, SourceURL: sourceURL, StartedAt: c.now()},
	}
	c.streams[cameraID] = &s
	go c.supervise(sctx, cameraID, &s, cp)

	c.log.InfoContext(ctx, "recording started", "camera_id", cameraID)
	return nil
}

// StopStream 停止录制并等待 ffmpeg 写完最后一个切片，未在录制时直接返回
func (c *Core) StopStream(ctx context.Context, cameraID string) error {
	c.mu.Lock()
	s, ok := c.streams[cameraID]
	delete(c.streams, cameraID)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	if err := c.wait(ctx, s); err != nil {
		return err
	}
	c.log.InfoContext(ctx, "recording stopped", "camera_id", cameraID)
	return nil
}

// IsStreaming 摄像头是否在录制
func (c *Core) IsStreaming(cameraID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.streams[cameraID]
	return ok
}

// Streams 当前所有录制进程，按摄像头 id 排序
func (c *Core) Streams() []StreamStatus {
	c.mu.Lock()
	out := make([]StreamStatus, 0, len(c.streams))
	for _, s := range c.streams {
		out = append(out, s.snapshot())
	}
	c.mu.Unlock()
	slices.SortFunc(out, func(a, b StreamStatus) int { return strings.Compare(a.CameraID, b.CameraID) })
	return out
}

// Close 停止全部录制
func (c *Core) Close(ctx context.Context) error {
	c.mu.Lock()
	ids := make([]string, 0, len(c.streams))
	for id := range c.streams {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := c.StopStream(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Core) wait(ctx context.Context, s *stream) error {
	s.cancel()
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Core) spawn(cameraID, sourceURL string) (Capturer, error) {
	cp, err := c.capture(ffwork.Config{
		Name:           cameraID,
		InputURL:       sourceURL,
		OutputDir:      filepath.Join(c.root, cameraID),
		SegmentSeconds: c.conf.SegmentSeconds,
		FFmpegPath:     c.conf.FFmpegPath,
		OnSegment: func(seg ffwork.Segment) {
			c.finalizeSegment(cameraID, seg)
		},
	})
	if err != nil {
		return nil, err
	}
	if err := cp.Start(); err != nil {
		return nil, err
	}
	return cp, nil
}

// supervise ffmpeg 异常退出后按 RestartDelay 重启，直到 ctx 取消
func (c *Core) supervise(ctx context.Context, cameraID string, s *stream, cp Capturer) {
	defer close(s.done)
	delay := c.conf.RestartDelay.Duration()
	if delay <= 0 {
		delay = 5 * time.Second
	}
	log := c.log.With("camera_id", cameraID)

	for {
		if cp == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			next, err := c.spawn(cameraID, s.src)
			if err != nil {
				s.fail(err)
				log.WarnContext(ctx, "restart recording failed", "err", err)
				continue
			}
			cp = next
			s.restarted()
			log.InfoContext(ctx, "recording restarted")
		}

		select {
		case <-ctx.Done():
			if err := cp.Stop(); err != nil {
				log.Warn("stop recording failed", "err", err)
			}
			return
		case err := <-cp.Done():
			s.fail(err)
			log.WarnContext(ctx, "ffmpeg exited", "err", err)
			cp = nil
		}
	}
}

// finalizeSegment 将完成的 .tmp 切片重命名为带时长的 .ts，回放只认 .ts
func (c *Core) finalizeSegment(cameraID string, seg ffwork.Segment) {
	base := strings.TrimSuffix(seg.Filename, ffwork.TempExt)
	t, err := time.ParseInLocation(segmentTimeLayout, base, time.Local)
	if err != nil {
		c.log.Warn("unexpected segment name", "camera_id", cameraID, "file", seg.Filename)
		return
	}
	dir := filepath.Join(c.root, cameraID, t.Format(time.DateOnly), t.Format("15"))
	src := filepath.Join(dir, seg.Filename)
	dst := filepath.Join(dir, fmt.Sprintf("%s_%.2fs.ts", base, seg.Duration()))
	if err := os.Rename(src, dst); err != nil {
		c.log.Warn("finalize segment failed", "camera_id", cameraID, "file", seg.Filename, "err", err)
	}
}
