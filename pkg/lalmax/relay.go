package lalmax

import (
	"context"
	"net/url"
)

const (
	apiCtrlStartRelayPull = "/api/ctrl/start_relay_pull"
	apiCtrlStopRelayPull  = "/api/ctrl/stop_relay_pull"
	apiStatAllGroup       = "/api/stat/all_group"
)

type StartRelayPullRequest struct {
	URL           string `json:"url"`             // 回源拉流地址，支持 rtmp 与 rtsp
	StreamName    string `json:"stream_name"`     // 不指定时从 url 中解析
	PullTimeoutMs int    `json:"pull_timeout_ms"` // 建立会话超时
	// -1 一直重试直到收到 stop，0 不重试
	PullRetryNum int `json:"pull_retry_num"`
	// -1 不自动关闭，>=0 没有观看者持续该毫秒数后关闭
	AutoStopPullAfterNoOutMs int `json:"auto_stop_pull_after_no_out_ms"`
	RtspMode                 int `json:"rtsp_mode"` // 0 tcp，1 udp
}

type StartRelayPullResponse struct {
	CommonResp
	Data struct {
		StreamName string `json:"stream_name"`
		SessionID  string `json:"session_id"`
	} `json:"data"`
}

// StartRelayPull 让 lalmax 主动拉取源地址
func (e *Engine) StartRelayPull(ctx context.Context, in StartRelayPullRequest) (*StartRelayPullResponse, error) {
	var out StartRelayPullResponse
	if err := e.post(ctx, apiCtrlStartRelayPull, in, &out); err != nil {
		return nil, err
	}
	return &out, out.err()
}

// StopRelayPull 停止拉流，流不存在视为成功
func (e *Engine) StopRelayPull(ctx context.Context, streamName string) error {
	var out CommonResp
	if err := e.get(ctx, apiCtrlStopRelayPull, url.Values{"stream_name": {streamName}}, &out); err != nil {
		return err
	}
	if out.Code == CodeGroupNotFound {
		return nil
	}
	return out.err()
}

// Group 一路流的统计信息，只保留关心的字段
type Group struct {
	StreamName string `json:"stream_name"`
	AppName    string `json:"app_name"`
	VideoCodec string `json:"video_codec"`
	AudioCodec string `json:"audio_codec"`
}

type allGroupResponse struct {
	CommonResp
	Data struct {
		Groups []Group `json:"groups"`
	} `json:"data"`
}

// AllGroups 列出服务上全部流
func (e *Engine) AllGroups(ctx context.Context) ([]Group, error) {
	var out allGroupResponse
	if err := e.get(ctx, apiStatAllGroup, nil, &out); err != nil {
		return nil, err
	}
	if err := out.err(); err != nil {
		return nil, err
	}
	return out.Data.Groups, nil
}
