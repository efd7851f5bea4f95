// Package lalmax lalmax HTTP API 客户端，只实现拉流转发与关键帧截图
package lalmax

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// CodeSuccess 业务成功
	CodeSuccess = 10000
	// CodeGroupNotFound 流不存在
	CodeGroupNotFound = 11001
)

type Config struct {
	URL    string
	Secret string
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
	cfg.URL = strings.TrimRight(cfg.URL, "/")
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

// CommonResp lalmax 响应公共头
type CommonResp struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Error code 不为 10000 时的业务错误
type Error struct {
	Code int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("lalmax: code %d %s", e.Code, e.Msg)
}

func (r CommonResp) err() error {
	if r.Code == CodeSuccess {
		return nil
	}
	return &Error{Code: r.Code, Msg: r.Msg}
}

func (e *Engine) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.URL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return e.do(req, out)
}

func (e *Engine) get(ctx context.Context, path string, q url.Values, out any) error {
	u := e.cfg.URL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return e.do(req, out)
}

func (e *Engine) do(req *http.Request, out any) error {
	if e.cfg.Secret != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.Secret)
	}
	resp, err := e.cli.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("lalmax %s %s: status %d %s", req.Method, req.URL.Path, resp.StatusCode, bytes.TrimSpace(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
