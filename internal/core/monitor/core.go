// Package monitor 摄像头监控生命周期编排
// 负责把摄像头的分析用途路由到对应后端，同时驱动转发注册与本地录像
package monitor

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gowvp/camcore/internal/core/camera"
	"github.com/gowvp/camcore/internal/errcode"
	"github.com/gowvp/camcore/internal/rpc"
	"github.com/gowvp/camcore/pkg/pubsub"
	"github.com/ixugo/goddd/pkg/reason"
)

// ErrBackendUnavailable 分析后端不可达，摄像头以 degraded 状态继续录像
var ErrBackendUnavailable = reason.NewError("ErrBackendUnavailable", "分析后端不可用").SetHTTPStatus(http.StatusBadGateway)

// CameraStore 摄像头持久化，camera.Core 实现了该接口
type CameraStore interface {
	GetCamera(ctx context.Context, id string) (*camera.Camera, error)
	FindMonitoring(ctx context.Context) ([]*camera.Camera, error)
	SetMonitoring(ctx context.Context, id string, monitoring bool, status camera.Status) error
	SetPurpose(ctx context.Context, id string, purpose camera.Purpose, cfg camera.PurposeConfig) (*camera.Camera, error)
}

// Backend 分析后端
type Backend interface {
	StartCamera(ctx context.Context, baseURL string, in rpc.StartCameraRequest) error
	StopCamera(ctx context.Context, baseURL, cameraID string, enc rpc.Encoding) error
	ListCameras(ctx context.Context, baseURL string) ([]string, error)
}

// Recorder 本地录像
type Recorder interface {
	StartStream(ctx context.Context, cameraID, sourceURL string) error
	StopStream(ctx context.Context, cameraID string) error
}

// Registry 低延迟转发注册
type Registry interface {
	AddStream(ctx context.Context, id, sourceURL string) error
	RemoveStream(ctx context.Context, id string) error
}

// Core 监控编排
type Core struct {
	cameras  CameraStore
	backend  Backend
	recorder Recorder
	registry Registry
	routes   Routes
	timeout  time.Duration
	broker   *pubsub.Broker[StatusChanged]
	now      func() time.Time
	log      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	busy     map[string]State
	regTail  map[string]chan struct{}

	// 后台任务，Close 时等待
	wg sync.WaitGroup
}

type Option func(*Core)

// WithRecorder 启动监控时同时启动录像
func WithRecorder(r Recorder) Option {
	return func(c *Core) {
		c.recorder = r
	}
}

// WithRegistry 启动监控时注册转发
func WithRegistry(r Registry) Option {
	return func(c *Core) {
		c.registry = r
	}
}

// WithBroker 状态变化发布到总线
func WithBroker(b *pubsub.Broker[StatusChanged]) Option {
	return func(c *Core) {
		c.broker = b
	}
}

// WithTimeout 请求分析后端的超时
func WithTimeout(d time.Duration) Option {
	return func(c *Core) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithClock 测试用
func WithClock(now func() time.Time) Option {
	return func(c *Core) {
		c.now = now
	}
}

// NewCore create business domain
func NewCore(cameras CameraStore, backend Backend, routes Routes, opts ...Option) *Core {
	c := Core{
		cameras:  cameras,
		backend:  backend,
		routes:   routes,
		timeout:  4 * time.Second,
		now:      time.Now,
		log:      slog.With("component", "monitor"),
		sessions: make(map[string]*Session),
		busy:     make(map[string]State),
		regTail:  make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return &c
}

// acquire 同一摄像头同时只允许一个操作，其余直接返回冲突
func (c *Core) acquire(id string, st State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.busy[id]; ok {
		return errcode.ErrConflict.Withf("camera[%s] is %s", id, cur)
	}
	c.busy[id] = st
	return nil
}

func (c *Core) release(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.busy, id)
}

func (c *Core) isBusy(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.busy[id]
	return ok
}

// registryOp 后台执行转发注册/注销，失败只记录日志
// 同一摄像头的操作按提交顺序执行，避免注销先于注册完成
func (c *Core) registryOp(name, cameraID string, fn func(ctx context.Context) error) {
	if c.registry == nil {
		return
	}
	c.mu.Lock()
	prev := c.regTail[cameraID]
	done := make(chan struct{})
	c.regTail[cameraID] = done
	c.mu.Unlock()

	c.wg.Go(func() {
		defer func() {
			c.mu.Lock()
			if c.regTail[cameraID] == done {
				delete(c.regTail, cameraID)
			}
			c.mu.Unlock()
			close(done)
		}()
		if prev != nil {
			<-prev
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			c.log.Warn(name+" failed", "camera_id", cameraID, "err", err)
		}
	})
}

func (c *Core) publish(ev StatusChanged) {
	if c.broker == nil {
		return
	}
	ev.At = c.now()
	c.broker.Publish(ev)
}

// Close 等待后台任务结束
func (c *Core) Close() {
	c.wg.Wait()
}
