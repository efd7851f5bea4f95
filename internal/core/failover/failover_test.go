package failover

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gowvp/camcore/internal/conf"
	"github.com/gowvp/camcore/internal/errcode"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	rows    map[string]Server
	failAdd bool
}

func newMemStore() *memStore { return &memStore{rows: make(map[string]Server)} }

func (m *memStore) Server() ServerStorer { return m }

func (m *memStore) List(context.Context) ([]*Server, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Server, 0, len(m.rows))
	for _, s := range m.rows {
		out = append(out, &s)
	}
	return out, nil
}

func (m *memStore) Add(_ context.Context, s *Server) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAdd {
		return errors.New("disk full")
	}
	m.rows[s.ID] = *s
	return nil
}

func (m *memStore) UpdateHealth(_ context.Context, s *Server) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[s.ID]; ok {
		m.rows[s.ID] = *s
	}
	return nil
}

func (m *memStore) UpdateRole(_ context.Context, id string, role Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.rows[id]
	s.Role = role
	m.rows[id] = s
	return nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

func testConfig() conf.Failover {
	return conf.DefaultConfig().Failover
}

// healthServer 返回一个可切换健康状态的 HTTP 服务
func healthServer(t *testing.T, healthy *atomic.Bool) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" || !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestStateMachine(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := healthServer(t, &healthy)

	m := NewManager(newMemStore(), testConfig())
	ctx := context.Background()
	s, err := m.RegisterServer(ctx, &RegisterServerInput{Name: "app-1", URL: srv.URL + "/", Role: "primary"})
	require.NoError(t, err)
	assert.Equal(t, StatusOnline, s.Status)
	assert.Equal(t, srv.URL, s.URL)

	healthy.Store(false)
	steps := []struct {
		failures int
		status   Status
	}{
		{1, StatusDegraded},
		{2, StatusDegraded},
		{3, StatusOffline},
		{4, StatusOffline},
	}
	for _, step := range steps {
		got, err := m.CheckServer(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, step.failures, got.ConsecutiveFailures)
		assert.Equal(t, step.status, got.Status)
	}

	healthy.Store(true)
	got, err := m.CheckServer(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusOnline, got.Status)
	assert.Zero(t, got.ConsecutiveFailures)
	require.NotNil(t, got.LastOnlineAt)
	require.Len(t, got.History, 5)
	assert.Equal(t, StatusOffline, got.History[0].Status)
	assert.NotEmpty(t, got.History[0].Error)
	assert.Equal(t, StatusOnline, got.History[4].Status)
}

func TestHistoryBounded(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := healthServer(t, &healthy)

	store := newMemStore()
	m := NewManager(store, testConfig())
	ctx := context.Background()
	s, err := m.RegisterServer(ctx, &RegisterServerInput{Name: "app-1", URL: srv.URL, Role: "primary"})
	require.NoError(t, err)

	for range 60 {
		m.CheckAll(ctx)
	}
	got, err := m.GetServer(s.ID)
	require.NoError(t, err)
	assert.Len(t, got.History, 20)

	// 数据库保存完整的环形队列
	assert.Len(t, store.rows[s.ID].History, 50)
}

func TestPromoteDoesNotDemote(t *testing.T) {
	m := NewManager(newMemStore(), testConfig())
	ctx := context.Background()
	primary, err := m.RegisterServer(ctx, &RegisterServerInput{Name: "primary", URL: "http://10.0.0.1", Role: "primary"})
	require.NoError(t, err)
	b1, err := m.RegisterServer(ctx, &RegisterServerInput{Name: "backup-1", URL: "http://10.0.0.2", Role: "backup"})
	require.NoError(t, err)
	b2, err := m.RegisterServer(ctx, &RegisterServerInput{Name: "backup-2", URL: "http://10.0.0.3", Role: "backup"})
	require.NoError(t, err)

	got, err := m.PromoteBackup(ctx, b1.ID)
	require.NoError(t, err)
	assert.Equal(t, RolePrimary, got.Role)

	roles := map[string]Role{}
	for _, s := range m.ListServers() {
		roles[s.ID] = s.Role
	}
	assert.Equal(t, RolePrimary, roles[primary.ID])
	assert.Equal(t, RolePrimary, roles[b1.ID])
	assert.Equal(t, RoleBackup, roles[b2.ID])

	_, err = m.PromoteBackup(ctx, primary.ID)
	assert.ErrorIs(t, err, errcode.ErrConflict)
	_, err = m.PromoteBackup(ctx, "missing")
	assert.ErrorIs(t, err, errcode.ErrNotFound)
}

func TestRegisterValidation(t *testing.T) {
	store := newMemStore()
	m := NewManager(store, testConfig())
	ctx := context.Background()

	_, err := m.RegisterServer(ctx, &RegisterServerInput{Name: "a", URL: "http://10.0.0.1", Role: "standby"})
	assert.ErrorIs(t, err, reason.ErrBadRequest)
	_, err = m.RegisterServer(ctx, &RegisterServerInput{Name: "a", URL: "ftp://10.0.0.1", Role: "backup"})
	assert.ErrorIs(t, err, reason.ErrBadRequest)
	_, err = m.RegisterServer(ctx, &RegisterServerInput{Name: "a", URL: "http://", Role: "backup"})
	assert.ErrorIs(t, err, reason.ErrBadRequest)

	_, err = m.RegisterServer(ctx, &RegisterServerInput{Name: "a", URL: "http://10.0.0.1", Role: "backup"})
	require.NoError(t, err)
	_, err = m.RegisterServer(ctx, &RegisterServerInput{Name: "b", URL: "http://10.0.0.1/", Role: "primary"})
	assert.ErrorIs(t, err, errcode.ErrConflict)

	store.failAdd = true
	_, err = m.RegisterServer(ctx, &RegisterServerInput{Name: "c", URL: "http://10.0.0.9", Role: "backup"})
	assert.ErrorIs(t, err, reason.ErrDB)
	assert.Len(t, m.ListServers(), 1)
}

func TestUnregister(t *testing.T) {
	store := newMemStore()
	m := NewManager(store, testConfig())
	ctx := context.Background()
	s, err := m.RegisterServer(ctx, &RegisterServerInput{Name: "a", URL: "http://10.0.0.1", Role: "backup"})
	require.NoError(t, err)

	require.NoError(t, m.UnregisterServer(ctx, s.ID))
	assert.Empty(t, m.ListServers())
	assert.Empty(t, store.rows)
	assert.ErrorIs(t, m.UnregisterServer(ctx, s.ID), errcode.ErrNotFound)
	_, err = m.CheckServer(ctx, s.ID)
	assert.ErrorIs(t, err, errcode.ErrNotFound)
}

func TestProbeTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(block)
		srv.Close()
	})

	cfg := testConfig()
	cfg.Timeout = conf.Duration(50 * time.Millisecond)
	m := NewManager(newMemStore(), cfg)
	ctx := context.Background()
	s, err := m.RegisterServer(ctx, &RegisterServerInput{Name: "slow", URL: srv.URL, Role: "backup"})
	require.NoError(t, err)

	start := time.Now()
	m.CheckAll(ctx)
	assert.Less(t, time.Since(start), 2*time.Second)

	got, err := m.GetServer(s.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDegraded, got.Status)
}

func TestLoad(t *testing.T) {
	store := newMemStore()
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.rows["srv-1"] = Server{
		ID:      "srv-1",
		URL:     "http://10.0.0.1",
		Role:    RoleBackup,
		Status:  StatusOffline,
		History: []HealthCheck{{Timestamp: at, Status: StatusOffline}},
	}
	m := NewManager(store, testConfig())
	require.NoError(t, m.Load(context.Background()))

	got, err := m.GetServer("srv-1")
	require.NoError(t, err)
	assert.Equal(t, StatusOffline, got.Status)
	assert.Len(t, got.History, 1)

	_, err = m.RegisterServer(context.Background(), &RegisterServerInput{Name: "dup", URL: "http://10.0.0.1", Role: "backup"})
	assert.ErrorIs(t, err, errcode.ErrConflict)
}
