package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartCameraForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cameras/start", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "cam-1", r.PostForm.Get("camera_id"))
		assert.Equal(t, "rtsp://10.0.0.2/1", r.PostForm.Get("stream_url"))
		assert.Equal(t, "entry", r.PostForm.Get("direction"))
		_, _ = w.Write([]byte(`{"status":"started"}`))
	}))
	defer srv.Close()

	cli := NewBackendClient(time.Second)
	err := cli.StartCamera(context.Background(), srv.URL, StartCameraRequest{
		CameraID:  "cam-1",
		StreamURL: "rtsp://10.0.0.2/1",
		Direction: "entry",
	})
	require.NoError(t, err)
}

func TestStartCameraJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body struct {
			CameraID string   `json:"cameraId"`
			Tripwire Tripwire `json:"tripwireLine"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cam-9", body.CameraID)
		assert.True(t, body.Tripwire.Enabled)
		assert.InDelta(t, 0.75, body.Tripwire.X2, 1e-9)
	}))
	defer srv.Close()

	cli := NewBackendClient(time.Second)
	err := cli.StartCamera(context.Background(), srv.URL, StartCameraRequest{
		CameraID:  "cam-9",
		StreamURL: "rtsp://x",
		Tripwire:  &Tripwire{X1: 0.1, Y1: 0.5, X2: 0.75, Y2: 0.5, Enabled: true},
		Encoding:  EncodingJSON,
	})
	require.NoError(t, err)
}

func TestStartCameraErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	cli := NewBackendClient(time.Second)

	err := cli.StartCamera(context.Background(), srv.URL, StartCameraRequest{CameraID: "c", StreamURL: "s"})
	assert.True(t, errors.Is(err, ErrStatus))
	assert.Contains(t, err.Error(), "503")

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer slow.Close()
	err = NewBackendClient(50*time.Millisecond).StartCamera(context.Background(), slow.URL, StartCameraRequest{CameraID: "c", StreamURL: "s"})
	assert.Error(t, err)
}

func TestStopCameraNotFoundIsOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cameras/stop", r.URL.Path)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	cli := NewBackendClient(time.Second)
	assert.NoError(t, cli.StopCamera(context.Background(), srv.URL, "cam-1", EncodingForm))
	assert.NoError(t, cli.StopCamera(context.Background(), srv.URL, "cam-1", EncodingJSON))
}

func TestListCameras(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"ok","service":"plate-service","cameras":{"cam-2":{"alive":true},"cam-1":{"alive":false}}}`))
	}))
	defer srv.Close()

	ids, err := NewBackendClient(time.Second).ListCameras(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{"cam-1", "cam-2"}, ids)
}
