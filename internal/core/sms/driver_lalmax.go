package sms

import (
	"context"
	"time"

	"github.com/gowvp/camcore/pkg/lalmax"
)

var (
	_ Driver      = (*LalmaxDriver)(nil)
	_ Snapshotter = (*LalmaxDriver)(nil)
)

// LalmaxDriver 通过 relay pull 让 lalmax 回源拉流
type LalmaxDriver struct {
	engine lalmax.Engine
}

func NewLalmaxDriver(url, secret string, timeout time.Duration) *LalmaxDriver {
	engine := lalmax.NewEngine().SetConfig(lalmax.Config{URL: url, Secret: secret})
	if timeout > 0 {
		engine = engine.SetTimeout(timeout)
	}
	return &LalmaxDriver{engine: engine}
}

// Protocol implements Driver.
func (l *LalmaxDriver) Protocol() string {
	return ProtocolLalmax
}

// Ping implements Driver.
func (l *LalmaxDriver) Ping(ctx context.Context) error {
	_, err := l.engine.AllGroups(ctx)
	return err
}

// AddStream implements Driver.
// 源断开后一直重试，由 RemoveStream 负责停止
func (l *LalmaxDriver) AddStream(ctx context.Context, id, sourceURL string) error {
	_, err := l.engine.StartRelayPull(ctx, lalmax.StartRelayPullRequest{
		URL:                      sourceURL,
		StreamName:               id,
		PullTimeoutMs:            10000,
		PullRetryNum:             -1,
		AutoStopPullAfterNoOutMs: -1,
	})
	return err
}

// RemoveStream implements Driver.
func (l *LalmaxDriver) RemoveStream(ctx context.Context, id string) error {
	return l.engine.StopRelayPull(ctx, id)
}

// Streams implements Driver.
func (l *LalmaxDriver) Streams(ctx context.Context) ([]string, error) {
	groups, err := l.engine.AllGroups(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.StreamName)
	}
	return out, nil
}

// Snapshot implements Snapshotter.
func (l *LalmaxDriver) Snapshot(ctx context.Context, id string) ([]byte, error) {
	return l.engine.GetSnapshot(ctx, id)
}
