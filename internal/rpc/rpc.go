// Package rpc 分析后端 HTTP 客户端
// 各后端提供 /cameras/start、/cameras/stop 与 /health，进程内只保存连接池
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Encoding 启动请求的编码方式
type Encoding string

const (
	// EncodingForm camera_id/stream_url/direction 表单
	EncodingForm Encoding = "form"
	// EncodingJSON cameraId/streamUrl/direction/tripwireLine，越线后端使用
	EncodingJSON Encoding = "json"
)

// ErrStatus 后端返回了非 2xx 状态码
var ErrStatus = errors.New("unexpected backend status")

// Tripwire 越线检测的线段，坐标为画面比例
type Tripwire struct {
	X1      float64 `json:"x1"`
	Y1      float64 `json:"y1"`
	X2      float64 `json:"x2"`
	Y2      float64 `json:"y2"`
	Enabled bool    `json:"enabled"`
}

type StartCameraRequest struct {
	CameraID  string
	StreamURL string
	Direction string
	Tripwire  *Tripwire
	Encoding  Encoding
}

// BackendClient 所有分析后端共用一个客户端，baseURL 随调用传入
type BackendClient struct {
	cli *http.Client
}

// NewBackendClient timeout 为单次请求超时，建议 3~5s
func NewBackendClient(timeout time.Duration) *BackendClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &BackendClient{
		cli: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        30,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// StartCamera 通知后端开始分析，后端对已在运行的摄像头返回成功
func (b *BackendClient) StartCamera(ctx context.Context, baseURL string, in StartCameraRequest) error {
	var (
		body        io.Reader
		contentType string
	)
	switch in.Encoding {
	case EncodingJSON:
		payload := map[string]any{
			"cameraId":  in.CameraID,
			"streamUrl": in.StreamURL,
		}
		if in.Direction != "" {
			payload["direction"] = in.Direction
		}
		if in.Tripwire != nil {
			payload["tripwireLine"] = in.Tripwire
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body, contentType = bytes.NewReader(raw), "application/json"
	default:
		form := url.Values{}
		form.Set("camera_id", in.CameraID)
		form.Set("stream_url", in.StreamURL)
		if in.Direction != "" {
			form.Set("direction", in.Direction)
		}
		if t := in.Tripwire; t != nil {
			form.Set("x1", strconv.FormatFloat(t.X1, 'f', -1, 64))
			form.Set("y1", strconv.FormatFloat(t.Y1, 'f', -1, 64))
			form.Set("x2", strconv.FormatFloat(t.X2, 'f', -1, 64))
			form.Set("y2", strconv.FormatFloat(t.Y2, 'f', -1, 64))
		}
		body, contentType = strings.NewReader(form.Encode()), "application/x-www-form-urlencoded"
	}
	return b.post(ctx, baseURL+"/cameras/start", contentType, body, false)
}

// StopCamera 通知后端停止分析，后端不认识该摄像头 (404) 视为成功
func (b *BackendClient) StopCamera(ctx context.Context, baseURL, cameraID string, enc Encoding) error {
	if enc == EncodingJSON {
		raw, _ := json.Marshal(map[string]string{"cameraId": cameraID})
		return b.post(ctx, baseURL+"/cameras/stop", "application/json", bytes.NewReader(raw), true)
	}
	form := url.Values{}
	form.Set("camera_id", cameraID)
	return b.post(ctx, baseURL+"/cameras/stop", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), true)
}

type healthResponse struct {
	Status  string                     `json:"status"`
	Service string                     `json:"service"`
	Cameras map[string]json.RawMessage `json:"cameras"`
}

// ListCameras 通过 /health 获取后端正在分析的摄像头，结果已排序
func (b *BackendClient) ListCameras(ctx context.Context, baseURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.cli.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}
	var out healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode health: %w", err)
	}
	ids := make([]string, 0, len(out.Cameras))
	for id := range out.Cameras {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (b *BackendClient) post(ctx context.Context, u, contentType string, body io.Reader, notFoundOK bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := b.cli.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if notFoundOK && resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %d %s", ErrStatus, resp.StatusCode, bytes.TrimSpace(msg))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
