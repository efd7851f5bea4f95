package lalmax

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, h http.HandlerFunc) Engine {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return NewEngine().SetConfig(Config{URL: ts.URL + "/", Secret: "s3"})
}

func TestStartRelayPull(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, apiCtrlStartRelayPull, r.URL.Path)
		assert.Equal(t, "Bearer s3", r.Header.Get("Authorization"))
		var in StartRelayPullRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "rtsp://cam/1", in.URL)
		assert.Equal(t, "cam-1", in.StreamName)
		_, _ = w.Write([]byte(`{"code":10000,"msg":"success","data":{"stream_name":"cam-1","session_id":"RTSPPULL1"}}`))
	})
	out, err := e.StartRelayPull(context.Background(), StartRelayPullRequest{URL: "rtsp://cam/1", StreamName: "cam-1", PullRetryNum: -1})
	require.NoError(t, err)
	assert.Equal(t, "RTSPPULL1", out.Data.SessionID)
}

func TestStopRelayPullNotFound(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cam-1", r.URL.Query().Get("stream_name"))
		_, _ = w.Write([]byte(`{"code":11001,"msg":"group not found"}`))
	})
	require.NoError(t, e.StopRelayPull(context.Background(), "cam-1"))
}

func TestAllGroupsError(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":10002,"msg":"busy"}`))
	})
	_, err := e.AllGroups(context.Background())
	var le *Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 10002, le.Code)
}

func TestGetSnapshot(t *testing.T) {
	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	var busy atomic.Bool
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "image", r.URL.Query().Get("type"))
		if busy.Load() {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write(png)
	})
	out, err := e.GetSnapshot(context.Background(), "cam-1")
	require.NoError(t, err)
	assert.Equal(t, png, out)

	busy.Store(true)
	_, err = e.GetSnapshot(context.Background(), "cam-1")
	assert.True(t, errors.Is(err, ErrSnapshotBusy))

	_, err = e.GetSnapshot(context.Background(), "")
	assert.Error(t, err)
}
