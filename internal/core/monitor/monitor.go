package monitor

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/gowvp/camcore/internal/core/camera"
	"github.com/gowvp/camcore/internal/errcode"
	"github.com/gowvp/camcore/internal/rpc"
	"github.com/ixugo/goddd/pkg/reason"
)

// Start 开始监控摄像头
// 已有健康会话时直接返回；degraded 会话会重试后端，成功后清除 degraded
// 后端失败时仍返回会话，同时返回 ErrBackendUnavailable
func (c *Core) Start(ctx context.Context, id string) (*Session, error) {
	if err := c.acquire(id, StateStarting); err != nil {
		return nil, err
	}
	defer c.release(id)
	return c.start(ctx, id)
}

func (c *Core) start(ctx context.Context, id string) (*Session, error) {
	cam, err := c.cameras.GetCamera(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cam.StreamURL) == "" {
		return nil, reason.ErrBadRequest.Withf("camera[%s] has no stream url", id)
	}
	route, ok := c.routes.Resolve(cam.Purpose)
	if !ok {
		return nil, reason.ErrBadRequest.Withf("no backend configured for purpose[%s]", cam.Purpose)
	}
	opts := OptionsFromCamera(cam)
	if lc, ok := opts.(LineCrossingOptions); ok && (lc.Tripwire == nil || !lc.Tripwire.Enabled) {
		return nil, reason.ErrBadRequest.Withf("camera[%s] line_crossing requires an enabled tripwire", id)
	}

	c.mu.Lock()
	prev := c.sessions[id]
	c.mu.Unlock()
	if prev != nil && !prev.Degraded && prev.BackendURL == route.URL && prev.StreamURL == cam.StreamURL {
		out := *prev
		return &out, nil
	}

	// 首次启动才注册转发和录像，degraded 重试只重新调用后端
	fresh := prev == nil || prev.StreamURL != cam.StreamURL
	if fresh {
		c.registryOp("register stream", id, func(ctx context.Context) error {
			return c.registry.AddStream(ctx, id, cam.StreamURL)
		})
		if c.recorder != nil {
			if err := c.recorder.StartStream(ctx, id, cam.StreamURL); err != nil {
				c.log.WarnContext(ctx, "start recording failed", "camera_id", id, "err", err)
			}
		}
	}

	req := rpc.StartCameraRequest{CameraID: id, StreamURL: cam.StreamURL, Encoding: route.Encoding}
	opts.apply(&req)
	bctx, cancel := context.WithTimeout(ctx, c.timeout)
	berr := c.backend.StartCamera(bctx, route.URL, req)
	cancel()

	if err := c.cameras.SetMonitoring(ctx, id, true, camera.StatusOnline); err != nil {
		// 落库失败回滚本次启动的副作用
		switch {
		case prev == nil:
			c.rollbackStart(ctx, id, route, berr == nil)
		case berr == nil:
			// 已有会话保留，但本次拉起的后端要撤销，会话标记为 degraded 等待下次重试
			c.stopBackend(ctx, id, route, "rollback backend start failed")
			c.markDegraded(id, err)
		}
		c.log.ErrorContext(ctx, "persist monitoring failed", "camera_id", id, "err", err)
		return nil, err
	}

	now := c.now()
	s := Session{
		CameraID:      id,
		Purpose:       cam.Purpose,
		BackendURL:    route.URL,
		StreamURL:     cam.StreamURL,
		StartedAt:     now,
		LastHeartbeat: now,
	}
	if prev != nil {
		s.StartedAt = prev.StartedAt
	}
	if berr != nil {
		s.Degraded = true
		s.LastError = berr.Error()
	}
	c.mu.Lock()
	c.sessions[id] = &s
	c.mu.Unlock()

	c.publish(StatusChanged{CameraID: id, State: StateMonitoring, Degraded: s.Degraded, Purpose: s.Purpose})
	out := s
	if berr != nil {
		c.log.WarnContext(ctx, "backend unavailable, camera degraded", "camera_id", id, "backend", route.URL, "err", berr)
		return &out, ErrBackendUnavailable.Withf("%s: %s", route.URL, berr.Error())
	}
	c.log.InfoContext(ctx, "camera monitoring started", "camera_id", id, "purpose", cam.Purpose, "backend", route.URL)
	return &out, nil
}

func (c *Core) rollbackStart(ctx context.Context, id string, route Route, backendStarted bool) {
	if backendStarted {
		c.stopBackend(ctx, id, route, "rollback backend start failed")
	}
	c.registryOp("unregister stream", id, func(ctx context.Context) error {
		return c.registry.RemoveStream(ctx, id)
	})
	if c.recorder != nil {
		if err := c.recorder.StopStream(ctx, id); err != nil {
			c.log.WarnContext(ctx, "rollback recording failed", "camera_id", id, "err", err)
		}
	}
}

func (c *Core) stopBackend(ctx context.Context, id string, route Route, msg string) {
	bctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.backend.StopCamera(bctx, route.URL, id, route.Encoding); err != nil {
		c.log.WarnContext(ctx, msg, "camera_id", id, "backend", route.URL, "err", err)
	}
}

func (c *Core) markDegraded(id string, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[id]; ok {
		s.Degraded = true
		s.LastError = cause.Error()
	}
}

// Stop 停止监控，对未在监控的摄像头调用无副作用
// 先持久化 isMonitoring=false，落库失败时内存状态保持不变
func (c *Core) Stop(ctx context.Context, id string) error {
	if err := c.acquire(id, StateStopping); err != nil {
		return err
	}
	defer c.release(id)
	return c.stop(ctx, id)
}

func (c *Core) stop(ctx context.Context, id string) error {
	c.mu.Lock()
	s := c.sessions[id]
	c.mu.Unlock()

	cam, err := c.cameras.GetCamera(ctx, id)
	switch {
	case errors.Is(err, errcode.ErrNotFound):
		if s == nil {
			return err
		}
		// 摄像头已被删除，只清理本地会话
		c.teardown(ctx, id, s, nil)
		return nil
	case err != nil:
		return err
	}

	if s == nil && !cam.IsMonitoring && cam.Status == camera.StatusOffline {
		return nil
	}
	if err := c.cameras.SetMonitoring(ctx, id, false, camera.StatusOffline); err != nil {
		c.log.ErrorContext(ctx, "persist stop failed", "camera_id", id, "err", err)
		return err
	}
	c.teardown(ctx, id, s, cam)
	return nil
}

// teardown 后端停止与转发注销均为尽力而为
func (c *Core) teardown(ctx context.Context, id string, s *Session, cam *camera.Camera) {
	c.mu.Lock()
	delete(c.sessions, id)
	c.mu.Unlock()

	var route Route
	var ok bool
	if s != nil {
		route, ok = c.routeByURL(s.Purpose, s.BackendURL)
	} else if cam != nil {
		route, ok = c.routes.Resolve(cam.Purpose)
	}
	if ok {
		bctx, cancel := context.WithTimeout(ctx, c.timeout)
		if err := c.backend.StopCamera(bctx, route.URL, id, route.Encoding); err != nil {
			c.log.WarnContext(ctx, "backend stop failed", "camera_id", id, "backend", route.URL, "err", err)
		}
		cancel()
	}
	c.registryOp("unregister stream", id, func(ctx context.Context) error {
		return c.registry.RemoveStream(ctx, id)
	})
	if c.recorder != nil {
		if err := c.recorder.StopStream(ctx, id); err != nil {
			c.log.WarnContext(ctx, "stop recording failed", "camera_id", id, "err", err)
		}
	}

	var purpose camera.Purpose
	if s != nil {
		purpose = s.Purpose
	}
	c.publish(StatusChanged{CameraID: id, State: StateStopped, Purpose: purpose})
	c.log.InfoContext(ctx, "camera monitoring stopped", "camera_id", id)
}

// routeByURL 会话记录的后端地址优先，路由表变化后仍能停掉旧后端
func (c *Core) routeByURL(p camera.Purpose, url string) (Route, bool) {
	if route, ok := c.routes.Resolve(p); ok && route.URL == url {
		return route, true
	}
	for _, route := range c.routes.Backends() {
		if route.URL == url {
			return route, true
		}
	}
	return Route{}, false
}

// ChangePurpose 切换用途，监控中的摄像头先停旧后端再启新后端
// 两步之间不做补偿，新后端启动失败时摄像头保持停止状态
func (c *Core) ChangePurpose(ctx context.Context, id string, opts PurposeOptions) (*Session, error) {
	if err := c.acquire(id, StateStarting); err != nil {
		return nil, err
	}
	defer c.release(id)

	cam, err := c.cameras.GetCamera(ctx, id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	_, running := c.sessions[id]
	c.mu.Unlock()
	wasMonitoring := running || cam.IsMonitoring

	if wasMonitoring {
		if err := c.stop(ctx, id); err != nil {
			return nil, err
		}
	}
	if _, err := c.cameras.SetPurpose(ctx, id, opts.Purpose(), opts.config()); err != nil {
		return nil, err
	}
	c.log.InfoContext(ctx, "camera purpose changed", "camera_id", id, "from", cam.Purpose, "to", opts.Purpose())
	if !wasMonitoring {
		return nil, nil
	}
	return c.start(ctx, id)
}

// Bootstrap 进程启动时恢复 isMonitoring=true 的摄像头，返回成功启动的数量
// degraded 也算启动成功
func (c *Core) Bootstrap(ctx context.Context) int {
	cams, err := c.cameras.FindMonitoring(ctx)
	if err != nil {
		c.log.ErrorContext(ctx, "bootstrap: load cameras failed", "err", err)
		return 0
	}
	var started int
	for _, cam := range cams {
		_, err := c.Start(ctx, cam.ID)
		if err != nil && !errors.Is(err, ErrBackendUnavailable) {
			c.log.WarnContext(ctx, "bootstrap: start camera failed", "camera_id", cam.ID, "err", err)
			continue
		}
		started++
	}
	c.log.InfoContext(ctx, "bootstrap completed", "total", len(cams), "started", started)
	return started
}

// Reconcile 对比各后端实际在分析的摄像头与持久化的期望状态
// 摄像头不存在、已停止监控或已改到其它后端的任务会被停止
func (c *Core) Reconcile(ctx context.Context) []Orphan {
	var orphans []Orphan
	for _, route := range c.routes.Backends() {
		lctx, cancel := context.WithTimeout(ctx, c.timeout)
		ids, err := c.backend.ListCameras(lctx, route.URL)
		cancel()
		if err != nil {
			c.log.WarnContext(ctx, "reconcile: list backend cameras failed", "backend", route.URL, "err", err)
			continue
		}
		for _, id := range ids {
			if c.isBusy(id) {
				continue
			}
			orphan, err := c.isOrphan(ctx, id, route.URL)
			if err != nil {
				c.log.WarnContext(ctx, "reconcile: load camera failed", "camera_id", id, "err", err)
				continue
			}
			if !orphan {
				continue
			}
			sctx, cancel := context.WithTimeout(ctx, c.timeout)
			err = c.backend.StopCamera(sctx, route.URL, id, route.Encoding)
			cancel()
			if err != nil {
				c.log.WarnContext(ctx, "reconcile: stop orphan failed", "camera_id", id, "backend", route.URL, "err", err)
				continue
			}
			c.log.InfoContext(ctx, "reconcile: orphan watcher stopped", "camera_id", id, "backend", route.URL)
			orphans = append(orphans, Orphan{BackendURL: route.URL, CameraID: id})
		}
	}
	return orphans
}

func (c *Core) isOrphan(ctx context.Context, id, backendURL string) (bool, error) {
	cam, err := c.cameras.GetCamera(ctx, id)
	if errors.Is(err, errcode.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if !cam.IsMonitoring {
		return true, nil
	}
	route, ok := c.routes.Resolve(cam.Purpose)
	return !ok || route.URL != backendURL, nil
}

// RunReconcile 定时对账，ctx 取消后退出
func (c *Core) RunReconcile(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Reconcile(ctx)
		}
	}
}

// Heartbeat 后端上报事件或心跳时刷新会话，摄像头没有会话时返回 false
func (c *Core) Heartbeat(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[id]
	if ok {
		s.LastHeartbeat = c.now()
	}
	return ok
}

// State 摄像头当前状态
func (c *Core) State(id string) CameraState {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := CameraState{CameraID: id, State: StateStopped}
	if s, ok := c.sessions[id]; ok {
		cp := *s
		out.Session = &cp
		out.State = StateMonitoring
	}
	if st, ok := c.busy[id]; ok {
		out.State = st
	}
	return out
}

// Sessions 所有会话，按摄像头 id 排序
func (c *Core) Sessions() []Session {
	c.mu.Lock()
	out := make([]Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		out = append(out, *s)
	}
	c.mu.Unlock()
	slices.SortFunc(out, func(a, b Session) int { return strings.Compare(a.CameraID, b.CameraID) })
	return out
}
