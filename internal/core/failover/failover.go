package failover

import (
	"cmp"
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/gowvp/camcore/internal/errcode"
	"github.com/ixugo/goddd/pkg/reason"
)

// RegisterServer 注册服务器，首次探测前视为在线
func (m *Manager) RegisterServer(ctx context.Context, in *RegisterServerInput) (*Server, error) {
	role, err := ParseRole(in.Role)
	if err != nil {
		return nil, reason.ErrBadRequest.Withf("%s", err.Error())
	}
	u, err := normalizeURL(in.URL)
	if err != nil {
		return nil, reason.ErrBadRequest.Withf("%s", err.Error())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.servers {
		if e.server.URL == u {
			return nil, errcode.ErrConflict.Withf("server url[%s] already registered as %s", u, e.server.ID)
		}
	}

	now := m.now()
	e := entry{
		server: Server{
			ID:        uuid.NewString(),
			Name:      strings.TrimSpace(in.Name),
			URL:       u,
			Role:      role,
			Status:    StatusOnline,
			CreatedAt: now,
			UpdatedAt: now,
		},
		history: newHistory(m.cfg.HistoryCap),
	}
	out := e.snapshot(-1)
	if err := m.store.Server().Add(ctx, out); err != nil {
		return nil, reason.ErrDB.Withf("%s", err.Error())
	}
	m.servers[e.server.ID] = &e
	m.log.Info("server registered", "server_id", e.server.ID, "name", e.server.Name, "role", role)
	return out, nil
}

// UnregisterServer 删除服务器
func (m *Manager) UnregisterServer(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.servers[id]
	if !ok {
		return errcode.ErrNotFound.Withf("server[%s] not found", id)
	}
	if err := m.store.Server().Delete(ctx, id); err != nil {
		return reason.ErrDB.Withf("%s", err.Error())
	}
	delete(m.servers, id)
	m.log.Info("server removed", "server_id", id, "name", e.server.Name)
	return nil
}

// PromoteBackup 将备机提升为主机
// 原主机的角色保持不变，双主由调用方自行处理
func (m *Manager) PromoteBackup(ctx context.Context, id string) (*Server, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.servers[id]
	if !ok {
		return nil, errcode.ErrNotFound.Withf("server[%s] not found", id)
	}
	if e.server.Role != RoleBackup {
		return nil, errcode.ErrConflict.SetMsg(fmt.Sprintf("服务器 %s 不是备机，无法提升", e.server.Name)).
			Withf("server[%s] role is %s", id, e.server.Role)
	}
	if err := m.store.Server().UpdateRole(ctx, id, RolePrimary); err != nil {
		return nil, reason.ErrDB.Withf("%s", err.Error())
	}
	e.server.Role = RolePrimary
	e.server.UpdatedAt = m.now()
	m.log.Warn("backup promoted to primary", "server_id", id, "name", e.server.Name)
	return e.snapshot(m.cfg.HistoryView), nil
}

// GetServer 返回服务器当前状态
func (m *Manager) GetServer(id string) (*Server, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.servers[id]
	if !ok {
		return nil, errcode.ErrNotFound.Withf("server[%s] not found", id)
	}
	return e.snapshot(m.cfg.HistoryView), nil
}

// ListServers 按注册时间排序，每台服务器只带最近的探测记录
func (m *Manager) ListServers() []*Server {
	m.mu.RLock()
	out := make([]*Server, 0, len(m.servers))
	for _, e := range m.servers {
		out = append(out, e.snapshot(m.cfg.HistoryView))
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Server) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.URL, b.URL)
	})
	return out
}

func normalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errInvalidURL(raw)
	}
	if u.Host == "" {
		return "", errInvalidURL(raw)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return strings.TrimRight(u.String(), "/"), nil
}

type errInvalidURL string

func (e errInvalidURL) Error() string {
	return "invalid server url " + string(e)
}
