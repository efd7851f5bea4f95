// Package sitesync 分支与中心节点之间的数据同步
// 分支定时推送摄像头与事件，中心节点按 (实例, 原始 id) 幂等写入
package sitesync

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gowvp/camcore/internal/conf"
	"github.com/patrickmn/go-cache"
)

// Storer data persistence
type Storer interface {
	Remote() RemoteStorer
}

// RemoteStorer Instantiation interface
type RemoteStorer interface {
	// Apply 在一个事务中写入一次推送，inst.ID 会被回填
	Apply(ctx context.Context, inst *RemoteInstance, cams []*RemoteCamera, events []*RemoteEvent) error
	FindInstances(ctx context.Context) ([]*RemoteInstance, error)
	Counts(ctx context.Context) (RemoteCounts, error)
}

// LocalCounts 本地统计
type LocalCounts struct {
	Cameras    int64
	Monitoring int64
	Events     int64
}

// LocalSource 本地数据，分支推送与统计使用
type LocalSource interface {
	Cameras(ctx context.Context) ([]PushCamera, error)
	EventsAfter(ctx context.Context, afterID int64, limit int) ([]PushEvent, error)
	Counts(ctx context.Context) (LocalCounts, error)
}

// Core 同步服务，行为由 conf.Sync.Role 决定
type Core struct {
	cfg   conf.Sync
	store Storer
	local LocalSource
	cli   *http.Client
	now   func() time.Time
	log   *slog.Logger
	stats *cache.Cache

	// 以下为分支推送状态
	pushMu  sync.Mutex
	mu      sync.Mutex
	cursor  int64
	pending *PushInput
	last    PushState
}

// PushState 分支最近一次推送的结果
type PushState struct {
	LastAttemptAt *time.Time `json:"last_attempt_at"`
	LastSuccessAt *time.Time `json:"last_success_at"`
	LastError     string     `json:"last_error,omitempty"`
	Cursor        int64      `json:"cursor"`
	Pending       bool       `json:"pending"`
}

type Option func(*Core)

// WithHTTPClient 推送使用的客户端
func WithHTTPClient(cli *http.Client) Option {
	return func(c *Core) {
		c.cli = cli
	}
}

// WithClock 测试用
func WithClock(now func() time.Time) Option {
	return func(c *Core) {
		c.now = now
	}
}

// NewCore store 仅中心节点使用，其余角色可传 nil
func NewCore(cfg conf.Sync, store Storer, local LocalSource, opts ...Option) *Core {
	if cfg.OnlineWindow <= 0 {
		cfg.OnlineWindow = conf.Duration(DefaultOnlineWindow)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = conf.Duration(5 * time.Second)
	}
	ttl := cfg.StatsTTL.Duration()
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	c := Core{
		cfg:   cfg,
		store: store,
		local: local,
		now:   time.Now,
		log:   slog.With("component", "sitesync", "role", cfg.Role),
		stats: cache.New(ttl, 2*ttl),
	}
	c.cli = &http.Client{Timeout: cfg.Timeout.Duration()}
	for _, opt := range opts {
		opt(&c)
	}
	return &c
}

// Role central/satellite/standalone
func (c *Core) Role() string {
	return c.cfg.Role
}

// KeyMatch 校验预共享密钥，未配置密钥时拒绝所有推送
func (c *Core) KeyMatch(key string) bool {
	return c.cfg.Key != "" && constantTimeEqual(key, c.cfg.Key)
}
