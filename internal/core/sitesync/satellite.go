package sitesync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gowvp/camcore/internal/conf"
)

// KeyHeader 推送携带预共享密钥的请求头
const KeyHeader = "X-Sync-Key"

// Run 分支按固定周期推送，失败的批次在下个周期整体重试
func (c *Core) Run(ctx context.Context) {
	if c.cfg.Role != conf.RoleSatellite {
		return
	}
	interval := c.cfg.Interval.Duration()
	if interval <= 0 {
		interval = time.Minute
	}
	c.log.Info("sync pusher started", "central", c.cfg.CentralURL, "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := c.PushOnce(ctx); err != nil {
			c.log.Warn("sync push failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PushOnce 推送一次
// 上次失败的批次原样重发，成功后游标前进到批次中最后一个事件
func (c *Core) PushOnce(ctx context.Context) error {
	c.pushMu.Lock()
	defer c.pushMu.Unlock()

	c.mu.Lock()
	now := c.now()
	c.last.LastAttemptAt = &now
	batch, cursor := c.pending, c.cursor
	c.mu.Unlock()

	if batch == nil {
		var err error
		if batch, err = c.buildBatch(ctx, cursor); err != nil {
			c.fail(err)
			return err
		}
		c.mu.Lock()
		c.pending = batch
		c.mu.Unlock()
	}

	out, err := c.post(ctx, batch)
	if err != nil {
		c.fail(err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if n := len(batch.Events); n > 0 {
		c.cursor = batch.Events[n-1].OriginalID
	}
	c.pending = nil
	ok := c.now()
	c.last.LastSuccessAt = &ok
	c.last.LastError = ""
	c.log.Debug("sync push ok", "cameras", out.Accepted.Cameras, "events", out.Accepted.Events, "cursor", c.cursor)
	return nil
}

func (c *Core) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last.LastError = err.Error()
}

func (c *Core) buildBatch(ctx context.Context, cursor int64) (*PushInput, error) {
	cams, err := c.local.Cameras(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cameras: %w", err)
	}
	events, err := c.local.EventsAfter(ctx, cursor, c.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	return &PushInput{
		InstanceID:       c.cfg.InstanceID,
		BranchName:       c.cfg.BranchName,
		BranchAddress:    c.cfg.BranchAddress,
		OrganizationName: c.cfg.OrganizationName,
		Cameras:          cams,
		Events:           events,
	}, nil
}

func (c *Core) post(ctx context.Context, in *PushInput) (*PushOutput, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout.Duration())
	defer cancel()

	u := strings.TrimRight(c.cfg.CentralURL, "/") + "/sync/push"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(KeyHeader, c.cfg.Key)

	resp, err := c.cli.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("central responded %d: %s", resp.StatusCode, bytes.TrimSpace(b))
	}
	var out PushOutput
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !out.OK {
		return nil, fmt.Errorf("central rejected push: %s", bytes.TrimSpace(b))
	}
	return &out, nil
}

// PushState 最近一次推送的结果
func (c *Core) PushState() PushState {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.last
	s.Cursor = c.cursor
	s.Pending = c.pending != nil
	return s
}
