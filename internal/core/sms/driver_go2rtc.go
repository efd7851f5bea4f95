package sms

import (
	"context"
	"time"

	"github.com/gowvp/camcore/pkg/go2rtc"
)

var _ Driver = (*Go2RTCDriver)(nil)

type Go2RTCDriver struct {
	engine go2rtc.Engine
}

// NewGo2RTCDriver url 为 go2rtc 的 HTTP API 地址
func NewGo2RTCDriver(url string, timeout time.Duration) *Go2RTCDriver {
	engine := go2rtc.NewEngine().SetConfig(go2rtc.Config{URL: url})
	if timeout > 0 {
		engine = engine.SetTimeout(timeout)
	}
	return &Go2RTCDriver{engine: engine}
}

// Protocol implements Driver.
func (g *Go2RTCDriver) Protocol() string {
	return ProtocolGo2RTC
}

// Ping implements Driver.
func (g *Go2RTCDriver) Ping(ctx context.Context) error {
	_, err := g.engine.Streams(ctx)
	return err
}

// AddStream implements Driver.
func (g *Go2RTCDriver) AddStream(ctx context.Context, id, sourceURL string) error {
	return g.engine.AddStream(ctx, id, sourceURL)
}

// RemoveStream implements Driver.
func (g *Go2RTCDriver) RemoveStream(ctx context.Context, id string) error {
	return g.engine.RemoveStream(ctx, id)
}

// Streams implements Driver.
func (g *Go2RTCDriver) Streams(ctx context.Context) ([]string, error) {
	list, err := g.engine.Streams(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(list))
	for name := range list {
		out = append(out, name)
	}
	return out, nil
}
