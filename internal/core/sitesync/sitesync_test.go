package sitesync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gowvp/camcore/internal/conf"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu        sync.Mutex
	instances map[string]*RemoteInstance
	cameras   map[string]*RemoteCamera
	events    map[int64]*RemoteEvent
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		instances: make(map[string]*RemoteInstance),
		cameras:   make(map[string]*RemoteCamera),
		events:    make(map[int64]*RemoteEvent),
	}
}

func (f *fakeStore) Remote() RemoteStorer { return f }

func (f *fakeStore) Apply(_ context.Context, inst *RemoteInstance, cams []*RemoteCamera, events []*RemoteEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if old, ok := f.instances[inst.InstanceID]; ok {
		inst.ID = old.ID
	} else {
		inst.ID = int64(len(f.instances) + 1)
	}
	v := *inst
	f.instances[inst.InstanceID] = &v
	for _, c := range cams {
		f.cameras[c.OriginalID] = c
	}
	for _, e := range events {
		if _, ok := f.events[e.OriginalID]; !ok {
			f.events[e.OriginalID] = e
		}
	}
	return nil
}

func (f *fakeStore) FindInstances(context.Context) ([]*RemoteInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*RemoteInstance, 0, len(f.instances))
	for _, v := range f.instances {
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeStore) Counts(context.Context) (RemoteCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return RemoteCounts{Cameras: int64(len(f.cameras)), Events: int64(len(f.events))}, nil
}

type fakeLocal struct {
	mu      sync.Mutex
	cameras []PushCamera
	events  []PushEvent
	counts  atomic.Int32
}

func (f *fakeLocal) Cameras(context.Context) ([]PushCamera, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PushCamera(nil), f.cameras...), nil
}

func (f *fakeLocal) EventsAfter(_ context.Context, afterID int64, limit int) ([]PushEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]PushEvent, 0, limit)
	for _, e := range f.events {
		if e.OriginalID > afterID && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeLocal) Counts(context.Context) (LocalCounts, error) {
	f.counts.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return LocalCounts{Cameras: int64(len(f.cameras)), Events: int64(len(f.events))}, nil
}

func (f *fakeLocal) addEvent(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, PushEvent{OriginalID: id, CameraID: "cam-1", Type: "detection", OccurredAt: time.Now()})
}

func syncConfig(role string) conf.Sync {
	cfg := conf.DefaultConfig().Sync
	cfg.Role = role
	cfg.InstanceID = "inst-A"
	cfg.BranchName = "north"
	cfg.Key = "secret"
	return cfg
}

func TestDerivedStatus(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	inst := RemoteInstance{LastSyncAt: now}
	assert.Equal(t, StatusOnline, inst.DerivedStatus(now, 0))
	assert.Equal(t, StatusOnline, inst.DerivedStatus(now.Add(9*time.Minute), 0))
	assert.Equal(t, StatusOffline, inst.DerivedStatus(now.Add(11*time.Minute), 0))
	assert.Equal(t, StatusOffline, (&RemoteInstance{}).DerivedStatus(now, 0))
}

func TestCentralStatusGoesStale(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewCore(syncConfig(conf.RoleCentral), newFakeStore(), &fakeLocal{}, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	_, err := c.Apply(ctx, &PushInput{InstanceID: "inst-A", BranchName: "north"})
	require.NoError(t, err)
	st, err := c.Status(ctx)
	require.NoError(t, err)
	require.Len(t, st.Instances, 1)
	assert.Equal(t, StatusOnline, st.Instances[0].Status)
	assert.Equal(t, 1, st.Online)

	now = now.Add(11 * time.Minute)
	st, err = c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusOffline, st.Instances[0].Status)
	assert.Equal(t, 1, st.Offline)
}

func TestApplyValidation(t *testing.T) {
	ctx := context.Background()
	sat := NewCore(syncConfig(conf.RoleSatellite), nil, &fakeLocal{})
	_, err := sat.Apply(ctx, &PushInput{InstanceID: "x", BranchName: "n"})
	assert.ErrorIs(t, err, reason.ErrBadRequest)

	store := newFakeStore()
	c := NewCore(syncConfig(conf.RoleCentral), store, &fakeLocal{})
	_, err = c.Apply(ctx, &PushInput{InstanceID: " ", BranchName: "n"})
	assert.ErrorIs(t, err, reason.ErrBadRequest)
	_, err = c.Apply(ctx, &PushInput{InstanceID: "x", Cameras: []PushCamera{{Name: "no id"}}})
	assert.ErrorIs(t, err, reason.ErrBadRequest)
	_, err = c.Apply(ctx, &PushInput{InstanceID: "x", Events: []PushEvent{{OriginalID: 0}}})
	assert.ErrorIs(t, err, reason.ErrBadRequest)

	out, err := c.Apply(ctx, &PushInput{
		InstanceID: "x",
		Cameras:    []PushCamera{{OriginalID: "cam-1", Status: "online"}, {OriginalID: "cam-1", Status: "offline"}},
		Events:     []PushEvent{{OriginalID: 7, Label: "person"}, {OriginalID: 7, Label: "person"}},
	})
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, Accepted{Cameras: 1, Events: 1}, out.Accepted)
	assert.Equal(t, "offline", store.cameras["cam-1"].Status)
	assert.Equal(t, int64(7), store.events[7].OriginalID)
}

func TestKeyMatch(t *testing.T) {
	c := NewCore(syncConfig(conf.RoleCentral), newFakeStore(), &fakeLocal{})
	assert.True(t, c.KeyMatch("secret"))
	assert.False(t, c.KeyMatch("secreT"))
	assert.False(t, c.KeyMatch(""))

	cfg := syncConfig(conf.RoleCentral)
	cfg.Key = ""
	c = NewCore(cfg, newFakeStore(), &fakeLocal{})
	assert.False(t, c.KeyMatch(""))
}

// centralServer 模拟中心节点，fail 为 true 时返回 503
func centralServer(t *testing.T, central *Core, fail *atomic.Bool, bodies *[]PushInput, mu *sync.Mutex) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sync/push" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if !central.KeyMatch(r.Header.Get(KeyHeader)) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"reason":"ErrUnauthorizedToken"}`))
			return
		}
		var in PushInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		*bodies = append(*bodies, in)
		mu.Unlock()
		if fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		out, err := central.Apply(r.Context(), &in)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(out)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPushRetriesSameBatch(t *testing.T) {
	store := newFakeStore()
	central := NewCore(syncConfig(conf.RoleCentral), store, &fakeLocal{})
	var (
		fail   atomic.Bool
		bodies []PushInput
		mu     sync.Mutex
	)
	srv := centralServer(t, central, &fail, &bodies, &mu)

	local := fakeLocal{cameras: []PushCamera{{OriginalID: "cam-1", Status: "online"}}}
	local.addEvent(1)
	local.addEvent(2)

	cfg := syncConfig(conf.RoleSatellite)
	cfg.CentralURL = srv.URL + "/"
	cfg.BatchSize = 2
	sat := NewCore(cfg, nil, &local)
	ctx := context.Background()

	fail.Store(true)
	require.Error(t, sat.PushOnce(ctx))
	st := sat.PushState()
	assert.True(t, st.Pending)
	assert.NotEmpty(t, st.LastError)
	assert.Nil(t, st.LastSuccessAt)

	// 失败期间产生的新事件不会混入待重试的批次
	local.addEvent(3)
	fail.Store(false)
	require.NoError(t, sat.PushOnce(ctx))
	st = sat.PushState()
	assert.False(t, st.Pending)
	assert.Empty(t, st.LastError)
	assert.EqualValues(t, 2, st.Cursor)

	require.NoError(t, sat.PushOnce(ctx))
	assert.EqualValues(t, 3, sat.PushState().Cursor)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 3)
	assert.Equal(t, bodies[0], bodies[1])
	assert.Equal(t, "inst-A", bodies[0].InstanceID)
	require.Len(t, bodies[2].Events, 1)
	assert.EqualValues(t, 3, bodies[2].Events[0].OriginalID)
	assert.Len(t, store.events, 3)
	assert.Len(t, store.cameras, 1)
}

func TestPushUnauthorized(t *testing.T) {
	central := NewCore(syncConfig(conf.RoleCentral), newFakeStore(), &fakeLocal{})
	var (
		fail   atomic.Bool
		bodies []PushInput
		mu     sync.Mutex
	)
	srv := centralServer(t, central, &fail, &bodies, &mu)

	cfg := syncConfig(conf.RoleSatellite)
	cfg.CentralURL = srv.URL
	cfg.Key = "wrong"
	sat := NewCore(cfg, nil, &fakeLocal{})

	err := sat.PushOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Empty(t, bodies)
	assert.True(t, sat.PushState().Pending)
}

func TestRunOnlyForSatellite(t *testing.T) {
	c := NewCore(syncConfig(conf.RoleStandalone), nil, &fakeLocal{})
	done := make(chan struct{})
	go func() {
		c.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run should return immediately for non-satellite roles")
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	local := fakeLocal{cameras: []PushCamera{{OriginalID: "cam-1"}}}
	local.addEvent(1)

	store := newFakeStore()
	central := NewCore(syncConfig(conf.RoleCentral), store, &local)
	_, err := central.Apply(ctx, &PushInput{
		InstanceID: "inst-B",
		Cameras:    []PushCamera{{OriginalID: "cam-9"}, {OriginalID: "cam-10"}},
		Events:     []PushEvent{{OriginalID: 1}, {OriginalID: 2}},
	})
	require.NoError(t, err)

	s, err := central.Stats(ctx, &StatsInput{})
	require.NoError(t, err)
	assert.True(t, s.IncludesRemote)
	assert.EqualValues(t, 3, s.Cameras)
	assert.EqualValues(t, 3, s.Events)

	s, err = central.Stats(ctx, &StatsInput{Branch: "north"})
	require.NoError(t, err)
	assert.False(t, s.IncludesRemote)
	assert.EqualValues(t, 1, s.Cameras)

	// 缓存命中不再查询
	calls := local.counts.Load()
	_, err = central.Stats(ctx, &StatsInput{})
	require.NoError(t, err)
	assert.Equal(t, calls, local.counts.Load())

	sat := NewCore(syncConfig(conf.RoleSatellite), nil, &local)
	s, err = sat.Stats(ctx, &StatsInput{})
	require.NoError(t, err)
	assert.False(t, s.IncludesRemote)
	assert.EqualValues(t, 1, s.Events)
}
