package recording

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gowvp/camcore/internal/conf"
	"github.com/gowvp/camcore/pkg/ffwork"
)

// Capturer 单路录制进程
type Capturer interface {
	Start() error
	Stop() error
	// Done 进程退出时返回退出原因
	Done() <-chan error
}

// CaptureFunc 根据配置创建录制进程，测试时可替换
type CaptureFunc func(cfg ffwork.Config) (Capturer, error)

// Archiver 在本地删除前归档一个日期目录
type Archiver interface {
	ArchiveDir(ctx context.Context, cameraID, date, dir string) error
}

// PolicySource 提供每个摄像头的保留天数
type PolicySource interface {
	RetentionPolicies(ctx context.Context) (map[string]int, error)
}

// Core 录像领域，负责 ffmpeg 切片录制、回放清单与保留策略
type Core struct {
	root     string
	conf     conf.Recording
	capture  CaptureFunc
	archiver Archiver
	policies PolicySource
	now      func() time.Time
	usage    func(path string) (float64, error)
	log      *slog.Logger

	mu      sync.Mutex
	streams map[string]*stream
}

type Option func(*Core)

// WithConfig 注入录制配置
func WithConfig(cfg conf.Recording) Option {
	return func(c *Core) {
		c.conf = cfg
	}
}

// WithCapture 替换录制进程的创建方式
func WithCapture(fn CaptureFunc) Option {
	return func(c *Core) {
		c.capture = fn
	}
}

// WithArchiver 删除过期录像前先归档
func WithArchiver(a Archiver) Option {
	return func(c *Core) {
		c.archiver = a
	}
}

// WithPolicySource 按摄像头覆盖默认保留天数
func WithPolicySource(p PolicySource) Option {
	return func(c *Core) {
		c.policies = p
	}
}

// WithClock 测试用
func WithClock(now func() time.Time) Option {
	return func(c *Core) {
		c.now = now
	}
}

// NewCore root 为录像根目录，目录结构为 {root}/{camera}/{date}/{hour}/{segment}.ts
func NewCore(root string, opts ...Option) *Core {
	c := Core{
		root:    root,
		conf:    conf.DefaultConfig().Recording,
		now:     time.Now,
		usage:   diskUsage,
		streams: make(map[string]*stream),
		log:     slog.With("component", "recording"),
	}
	c.capture = func(cfg ffwork.Config) (Capturer, error) {
		r, err := ffwork.NewSegmentRecorder(cfg)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	for _, opt := range opts {
		opt(&c)
	}
	return &c
}

// IsEnabled 检查是否启用录制（全局开关）
func (c *Core) IsEnabled() bool {
	return !c.conf.Disabled
}

// Root 录像根目录
func (c *Core) Root() string {
	return c.root
}
