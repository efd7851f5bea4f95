package ffwork

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gowvp/camcore/pkg/ring"
)

// TempExt ffmpeg 正在写入的切片后缀，完成后由调用方重命名
const TempExt = ".tmp"

type (
	Config struct {
		Name           string
		InputURL       string
		Transport      string
		OutputDir      string // 摄像头录像根目录 {storage}/{camera_id}
		SegmentSeconds int
		FFmpegPath     string
		OnSegment      func(seg Segment)
	}
	// Segment ffmpeg 通过 segment_list 上报的已完成切片
	Segment struct {
		Filename string  // 切片文件名，不含目录
		Start    float64 // 相对录制开始的秒数
		End      float64
	}
	SegmentRecorder struct {
		Name      string
		config    Config
		ctx       context.Context
		cancel    context.CancelFunc
		m         sync.Mutex
		started   bool
		cmd       *exec.Cmd
		wg        sync.WaitGroup
		done      chan error
		ffmpegLog *ring.Ring[string]
		segments  uint64
		lastSeg   time.Time
	}
	Stats struct {
		Name      string
		Segments  uint64
		LastSeg   time.Time
		IsRunning bool
	}
)

func NewSegmentRecorder(cfg Config) (*SegmentRecorder, error) {
	if cfg.InputURL == "" {
		return nil, fmt.Errorf("input url is required")
	}
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("output dir is required")
	}
	if cfg.SegmentSeconds <= 0 {
		cfg.SegmentSeconds = 6
	}
	if cfg.Transport == "" {
		cfg.Transport = "tcp"
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SegmentRecorder{
		Name:      cfg.Name,
		config:    cfg,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan error, 1),
		ffmpegLog: ring.New[string](100),
	}, nil
}

// BuildArgs 生成 ffmpeg 参数
// 切片按 {date}/{hour}/{start}.tmp 落盘，完成列表以 csv 输出到 stdout
func (r *SegmentRecorder) BuildArgs() []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-user_agent", "FFmpeg camcore",
		"-fflags", "+genpts+discardcorrupt",
	}
	if strings.HasPrefix(r.config.InputURL, "rtsp") {
		args = append(args,
			"-rtsp_transport", r.config.Transport,
			"-timeout", "10000000",
		)
	}
	args = append(args, "-i", r.config.InputURL)
	args = append(args,
		"-map", "0",
		"-c", "copy",
		"-f", "segment",
		"-segment_time", strconv.Itoa(r.config.SegmentSeconds),
		"-segment_format", "mpegts",
		"-reset_timestamps", "1",
		"-strftime", "1",
		"-strftime_mkdir", "1",
		"-segment_list", "pipe:1",
		"-segment_list_type", "csv",
		filepath.Join(r.config.OutputDir, "%Y-%m-%d", "%H", "%Y%m%d_%H%M%S"+TempExt),
	)
	return args
}

func (r *SegmentRecorder) Start() error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.started {
		return fmt.Errorf("segment recorder already started")
	}

	r.cmd = exec.CommandContext(r.ctx, r.config.FFmpegPath, r.BuildArgs()...)
	// 先发 SIGINT 让 ffmpeg 写完最后一个切片
	r.cmd.Cancel = func() error { return r.cmd.Process.Signal(os.Interrupt) }
	r.cmd.WaitDelay = 5 * time.Second
	stdout, err := r.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stderr, err := r.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}
	if err := r.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	r.started = true

	r.wg.Go(func() { r.readSegments(stdout) })
	r.wg.Go(func() { r.readStderr(stderr) })
	go func() {
		r.wg.Wait()
		err := r.cmd.Wait()
		if err == nil {
			err = io.EOF
		}
		r.done <- err
	}()
	return nil
}

// readSegments 解析 segment_list csv 输出
func (r *SegmentRecorder) readSegments(stdout io.Reader) {
	scan := bufio.NewScanner(stdout)
	for scan.Scan() {
		seg, err := ParseSegmentLine(scan.Text())
		if err != nil {
			r.ffmpegLog.Push(err.Error())
			continue
		}
		r.m.Lock()
		r.segments++
		r.lastSeg = time.Now()
		r.m.Unlock()
		if r.config.OnSegment != nil {
			r.config.OnSegment(seg)
		}
	}
}

// readStderr 读取 ffmpeg 的 stderr 输出用于日志记录
func (r *SegmentRecorder) readStderr(stderr io.Reader) {
	scan := bufio.NewScanner(stderr)
	for scan.Scan() {
		r.ffmpegLog.Push(scan.Text())
	}
}

// ParseSegmentLine 解析形如 "20260101_101500.tmp,0.000000,6.006000" 的一行
func ParseSegmentLine(line string) (Segment, error) {
	line = strings.TrimSpace(line)
	parts := strings.Split(line, ",")
	if len(parts) < 3 {
		return Segment{}, fmt.Errorf("invalid segment line: %q", line)
	}
	// 文件名本身可能被 csv 转义
	name := strings.Trim(strings.Join(parts[:len(parts)-2], ","), `"`)
	start, err := strconv.ParseFloat(parts[len(parts)-2], 64)
	if err != nil {
		return Segment{}, fmt.Errorf("invalid segment start: %w", err)
	}
	end, err := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil {
		return Segment{}, fmt.Errorf("invalid segment end: %w", err)
	}
	if name == "" || end < start {
		return Segment{}, fmt.Errorf("invalid segment line: %q", line)
	}
	return Segment{Filename: filepath.Base(name), Start: start, End: end}, nil
}

// Duration 切片时长（秒）
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Done 进程退出时返回退出原因，正常退出为 io.EOF
func (r *SegmentRecorder) Done() <-chan error {
	return r.done
}

func (r *SegmentRecorder) Log() []string {
	return r.ffmpegLog.Range()
}

func (r *SegmentRecorder) Stop() error {
	r.m.Lock()
	if !r.started {
		r.m.Unlock()
		return nil
	}
	r.m.Unlock()

	r.cancel()
	select {
	case <-time.After(5 * time.Second):
		if r.cmd != nil && r.cmd.Process != nil {
			if err := r.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				return fmt.Errorf("failed to kill ffmpeg: %w", err)
			}
		}
	case err := <-r.done:
		// 放回去，Done() 的其它读者仍然可以感知退出
		r.done <- err
	}
	return nil
}

func (r *SegmentRecorder) GetStats() Stats {
	r.m.Lock()
	defer r.m.Unlock()
	return Stats{
		Name:      r.config.Name,
		Segments:  r.segments,
		LastSeg:   r.lastSeg,
		IsRunning: r.started,
	}
}
