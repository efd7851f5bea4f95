package failover

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Run 按固定周期探测所有服务器，ctx 结束时退出
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	m.CheckAll(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckAll(ctx)
		}
	}
}

// CheckAll 并发探测全部服务器，单台的超时不影响其它服务器
func (m *Manager) CheckAll(ctx context.Context) {
	type target struct{ id, url string }
	m.mu.RLock()
	targets := make([]target, 0, len(m.servers))
	for id, e := range m.servers {
		targets = append(targets, target{id: id, url: e.server.URL})
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, t := range targets {
		wg.Go(func() {
			m.record(ctx, t.id, m.checkHealth(ctx, t.url))
		})
	}
	wg.Wait()
}

// CheckServer 立即探测一台服务器
func (m *Manager) CheckServer(ctx context.Context, id string) (*Server, error) {
	s, err := m.GetServer(id)
	if err != nil {
		return nil, err
	}
	m.record(ctx, id, m.checkHealth(ctx, s.URL))
	return m.GetServer(id)
}

func (m *Manager) checkHealth(ctx context.Context, baseURL string) HealthCheck {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout.Duration())
	defer cancel()

	start := time.Now()
	hc := HealthCheck{Timestamp: m.now(), Status: StatusOffline}
	err := m.get(ctx, baseURL+m.cfg.HealthPath)
	hc.ResponseTimeMs = time.Since(start).Milliseconds()
	if err != nil {
		hc.Error = err.Error()
		return hc
	}
	hc.Status = StatusOnline
	return hc
}

func (m *Manager) get(ctx context.Context, u string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := m.cli.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// record 应用探测结果并写库
// 成功一次即恢复 online，失败按连续次数进入 degraded/offline
func (m *Manager) record(ctx context.Context, id string, hc HealthCheck) {
	m.mu.Lock()
	e, ok := m.servers[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	s := &e.server
	prev := s.Status
	at := hc.Timestamp
	s.LastCheckedAt = &at
	if hc.Error == "" {
		s.ConsecutiveFailures = 0
		s.LastOnlineAt = &at
	} else {
		s.ConsecutiveFailures++
	}
	s.Status = m.statusFor(s.ConsecutiveFailures)
	s.UpdatedAt = m.now()
	e.history.Push(hc)
	snap := e.snapshot(-1)
	m.mu.Unlock()

	if prev != snap.Status {
		m.log.Warn("server status changed",
			"server_id", id,
			"name", snap.Name,
			"from", prev,
			"to", snap.Status,
			"failures", snap.ConsecutiveFailures,
			"err", hc.Error,
		)
	}
	if err := m.store.Server().UpdateHealth(ctx, snap); err != nil {
		m.log.Error("persist health failed", "server_id", id, "err", err)
	}
}
