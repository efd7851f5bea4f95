package lalmax

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const apiStatKeyFrame = "/api/stat/key_frame"

// ErrSnapshotBusy 关键帧正在生成，稍后重试
var ErrSnapshotBusy = errors.New("lalmax: keyframe is being generated")

// GetSnapshot 获取流最近关键帧的 PNG 截图
func (e *Engine) GetSnapshot(ctx context.Context, streamName string) ([]byte, error) {
	if streamName == "" {
		return nil, fmt.Errorf("lalmax: stream_name is required")
	}
	q := url.Values{"stream_name": {streamName}, "type": {"image"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.cfg.URL+apiStatKeyFrame+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if e.cfg.Secret != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.Secret)
	}
	resp, err := e.cli.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return nil, ErrSnapshotBusy
	case http.StatusNotFound:
		return nil, &Error{Code: CodeGroupNotFound, Msg: "stream not found: " + streamName}
	default:
		return nil, fmt.Errorf("lalmax: unexpected status %d", resp.StatusCode)
	}
	// 服务端可能以 200 返回 JSON 错误
	if len(body) > 0 && body[0] == '{' {
		var r CommonResp
		if err := json.Unmarshal(body, &r); err == nil {
			if err := r.err(); err != nil {
				return nil, err
			}
		}
	}
	return body, nil
}
