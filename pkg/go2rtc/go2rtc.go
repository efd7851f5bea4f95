// Package go2rtc go2rtc HTTP API 客户端
package go2rtc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const apiStreams = "/api/streams"

type Config struct {
	URL string
}

type Engine struct {
	cfg Config
	cli *http.Client
}

func NewEngine() Engine {
	return Engine{
		cli: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        30,
				MaxIdleConnsPerHost: 30,
				MaxConnsPerHost:     100,
			},
		},
	}
}

func (e Engine) SetConfig(cfg Config) Engine {
	e.cfg = cfg
	return e
}

// SetTimeout 调整单次请求超时
func (e Engine) SetTimeout(d time.Duration) Engine {
	cli := *e.cli
	cli.Timeout = d
	e.cli = &cli
	return e
}

// StreamInfo go2rtc 返回的单路流信息，只保留关心的字段
type StreamInfo struct {
	Producers []struct {
		URL string `json:"url"`
	} `json:"producers"`
	Consumers []json.RawMessage `json:"consumers"`
}

// AddStream 注册一路流，同名流会被覆盖
func (e *Engine) AddStream(ctx context.Context, name, src string) error {
	q := url.Values{}
	q.Set("name", name)
	q.Set("src", src)
	return e.do(ctx, http.MethodPut, apiStreams+"?"+q.Encode(), nil)
}

// RemoveStream 删除一路流
func (e *Engine) RemoveStream(ctx context.Context, name string) error {
	q := url.Values{}
	q.Set("src", name)
	return e.do(ctx, http.MethodDelete, apiStreams+"?"+q.Encode(), nil)
}

// Streams 列出已注册的流
func (e *Engine) Streams(ctx context.Context) (map[string]StreamInfo, error) {
	out := make(map[string]StreamInfo)
	if err := e.do(ctx, http.MethodGet, apiStreams, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(e.cfg.URL, "/")+path, nil)
	if err != nil {
		return err
	}
	resp, err := e.cli.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("go2rtc %s %s: status %d %s", method, path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
