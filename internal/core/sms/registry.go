package sms

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ixugo/goddd/pkg/conc"
	"github.com/patrickmn/go-cache"
)

var (
	ErrSnapshotUnsupported = errors.New("relay does not support snapshot")
	ErrStreamNotRegistered = errors.New("stream not registered")
)

// Registry 对转发服务的幂等封装
// 本地记录已注册的流，重复注册同一 id/源地址时不再请求转发服务
// 注销失败的流记为待清理，由 resync 在转发服务恢复后补删
type Registry struct {
	driver  Driver
	timeout time.Duration
	log     *slog.Logger
	snaps   *cache.Cache

	mu      sync.Mutex
	streams map[string]string
	removed map[string]struct{}
	online  atomic.Bool
}

type Option func(*Registry)

// WithTimeout 单次请求转发服务的超时
func WithTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.timeout = d
	}
}

// WithSnapshotTTL 截图缓存时间，短时间内的重复请求直接返回缓存
func WithSnapshotTTL(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.snaps = cache.New(d, 2*d)
		}
	}
}

// NewRegistry driver 为 nil 时所有操作均为空操作
func NewRegistry(driver Driver, opts ...Option) *Registry {
	r := Registry{
		driver:  driver,
		timeout: 3 * time.Second,
		snaps:   cache.New(time.Second, time.Minute),
		streams: make(map[string]string),
		removed: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(&r)
	}
	proto := "none"
	if driver != nil {
		proto = driver.Protocol()
	}
	r.log = slog.With("component", "sms", "driver", proto)
	return &r
}

// AddStream 注册流，同一 id 与源地址重复调用无副作用
func (r *Registry) AddStream(ctx context.Context, id, sourceURL string) error {
	if r.driver == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if src, ok := r.streams[id]; ok && src == sourceURL {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.driver.AddStream(ctx, id, sourceURL); err != nil {
		return err
	}
	r.streams[id] = sourceURL
	delete(r.removed, id)
	r.log.InfoContext(ctx, "stream registered", "id", id)
	return nil
}

// RemoveStream 注销流，未注册的 id 直接返回
// 本地记录总是被移除，转发服务注销失败时返回错误并等待 resync 补删
func (r *Registry) RemoveStream(ctx context.Context, id string) error {
	if r.driver == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.streams[id]; !ok {
		return nil
	}
	delete(r.streams, id)
	r.snaps.Delete(id)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.driver.RemoveStream(ctx, id); err != nil {
		r.removed[id] = struct{}{}
		return err
	}
	r.log.InfoContext(ctx, "stream removed", "id", id)
	return nil
}

// Streams 返回本地已注册的流
func (r *Registry) Streams() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.streams)
}

// Pending 返回注销失败、等待补删的流
func (r *Registry) Pending() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.removed))
	for id := range r.removed {
		out = append(out, id)
	}
	return out
}

// IsOnline 最近一次探测时转发服务是否在线，不会等待进行中的请求
func (r *Registry) IsOnline() bool {
	return r.online.Load()
}

// Run 定时探测转发服务，服务重启丢失注册时补注册
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if r.driver == nil || interval <= 0 {
		return
	}
	conc.Timer(ctx, interval, interval, func() {
		r.resync(ctx)
	})
}

// resync 请求转发服务期间不持有锁，结束后按最新的本地记录修正
func (r *Registry) resync(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, r.timeout)
	remote, err := r.driver.Streams(pctx)
	cancel()
	if err != nil {
		if r.online.Swap(false) {
			r.log.WarnContext(ctx, "relay offline", "err", err)
		}
		return
	}
	r.online.Store(true)

	exists := make(map[string]struct{}, len(remote))
	for _, id := range remote {
		exists[id] = struct{}{}
	}

	r.mu.Lock()
	streams := maps.Clone(r.streams)
	removed := maps.Clone(r.removed)
	r.mu.Unlock()

	for id := range removed {
		if _, ok := exists[id]; ok {
			if err := r.removeRemote(ctx, id); err != nil {
				r.log.WarnContext(ctx, "remove stale stream failed", "id", id, "err", err)
				continue
			}
			r.log.InfoContext(ctx, "stale stream removed", "id", id)
		}
		r.mu.Lock()
		if _, readded := r.streams[id]; !readded {
			delete(r.removed, id)
		}
		r.mu.Unlock()
	}

	for id, src := range streams {
		if _, ok := exists[id]; ok {
			continue
		}
		actx, cancel := context.WithTimeout(ctx, r.timeout)
		err := r.driver.AddStream(actx, id, src)
		cancel()
		if err != nil {
			r.log.WarnContext(ctx, "re-register stream failed", "id", id, "err", err)
			continue
		}

		// 补注册期间该流可能已被注销
		r.mu.Lock()
		cur, still := r.streams[id]
		r.mu.Unlock()
		if still && cur == src {
			r.log.InfoContext(ctx, "stream re-registered", "id", id)
			continue
		}
		if !still {
			if err := r.removeRemote(ctx, id); err != nil {
				r.mu.Lock()
				if _, readded := r.streams[id]; !readded {
					r.removed[id] = struct{}{}
				}
				r.mu.Unlock()
			}
		}
	}
}

func (r *Registry) removeRemote(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.driver.RemoveStream(ctx, id)
}

// Snapshot 截取已注册流的当前画面
// 转发服务不支持截图时返回 ErrSnapshotUnsupported
func (r *Registry) Snapshot(ctx context.Context, id string) ([]byte, error) {
	snap, ok := r.driver.(Snapshotter)
	if !ok {
		return nil, ErrSnapshotUnsupported
	}
	r.mu.Lock()
	_, registered := r.streams[id]
	r.mu.Unlock()
	if !registered {
		return nil, ErrStreamNotRegistered
	}
	if v, ok := r.snaps.Get(id); ok {
		return v.([]byte), nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	img, err := snap.Snapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	r.snaps.SetDefault(id, img)
	return img, nil
}
