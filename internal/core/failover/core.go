// Package failover 应用服务器健康监测
// 只负责探测与展示，备机提升必须显式调用 PromoteBackup
package failover

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gowvp/camcore/internal/conf"
	"github.com/gowvp/camcore/pkg/ring"
)

// Storer data persistence
type Storer interface {
	Server() ServerStorer
}

// ServerStorer Instantiation interface
type ServerStorer interface {
	List(ctx context.Context) ([]*Server, error)
	Add(ctx context.Context, s *Server) error
	// UpdateHealth 仅更新探测相关字段，记录不存在时不会新建
	UpdateHealth(ctx context.Context, s *Server) error
	UpdateRole(ctx context.Context, id string, role Role) error
	Delete(ctx context.Context, id string) error
}

type entry struct {
	server  Server
	history *ring.Ring[HealthCheck]
}

// Manager 服务器注册表
type Manager struct {
	store Storer
	cfg   conf.Failover
	cli   *http.Client
	now   func() time.Time
	log   *slog.Logger

	mu      sync.RWMutex
	servers map[string]*entry
}

type Option func(*Manager)

// WithHTTPClient 探测使用的客户端
func WithHTTPClient(cli *http.Client) Option {
	return func(m *Manager) {
		m.cli = cli
	}
}

// WithClock 测试用
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager 创建后需调用 Load 恢复已注册的服务器
func NewManager(store Storer, cfg conf.Failover, opts ...Option) *Manager {
	m := Manager{
		store:   store,
		cfg:     cfg,
		cli:     &http.Client{},
		now:     time.Now,
		log:     slog.With("component", "failover"),
		servers: make(map[string]*entry),
	}
	if m.cfg.HistoryCap < 1 {
		m.cfg.HistoryCap = 50
	}
	if m.cfg.HistoryView < 1 {
		m.cfg.HistoryView = 20
	}
	if m.cfg.DegradedAfter < 1 {
		m.cfg.DegradedAfter = 1
	}
	if m.cfg.OfflineAfter < m.cfg.DegradedAfter {
		m.cfg.OfflineAfter = max(3, m.cfg.DegradedAfter)
	}
	if m.cfg.Timeout <= 0 {
		m.cfg.Timeout = conf.Duration(5 * time.Second)
	}
	for _, opt := range opts {
		opt(&m)
	}
	return &m
}

// Load 从数据库恢复注册表
func (m *Manager) Load(ctx context.Context) error {
	items, err := m.store.Server().List(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range items {
		e := entry{server: *s, history: ring.FromSlice(m.cfg.HistoryCap, s.History)}
		e.server.History = nil
		m.servers[s.ID] = &e
	}
	m.log.Info("failover servers loaded", "count", len(items))
	return nil
}

// statusFor 连续失败次数对应的状态
func (m *Manager) statusFor(failures int) Status {
	switch {
	case failures >= m.cfg.OfflineAfter:
		return StatusOffline
	case failures >= m.cfg.DegradedAfter:
		return StatusDegraded
	}
	return StatusOnline
}

// snapshot 调用方需持有锁，n<0 返回全部历史
func (e *entry) snapshot(n int) *Server {
	s := e.server
	s.History = e.history.Last(n)
	return &s
}

func newHistory(n int) *ring.Ring[HealthCheck] {
	return ring.New[HealthCheck](n)
}
