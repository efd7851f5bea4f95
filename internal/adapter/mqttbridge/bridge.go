package mqttbridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/gowvp/camcore/internal/core/event"
	"github.com/gowvp/camcore/internal/core/monitor"
	"github.com/gowvp/camcore/pkg/pubsub"
)

// Publisher Client 实现了该接口
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Bridge 订阅总线并发布到 {prefix}/cameras/{id}/status 与 {prefix}/cameras/{id}/events
type Bridge struct {
	pub    Publisher
	prefix string
	log    *slog.Logger
}

func NewBridge(pub Publisher, prefix string) *Bridge {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = "camcore"
	}
	return &Bridge{pub: pub, prefix: prefix, log: slog.With("component", "mqttbridge")}
}

// Run 阻塞直到 ctx 结束或总线关闭，退出时取消订阅
func (b *Bridge) Run(ctx context.Context, status *pubsub.Broker[monitor.StatusChanged], events *pubsub.Broker[event.Event]) {
	statusC, unsubStatus := status.Subscribe()
	defer unsubStatus()
	eventC, unsubEvents := events.Subscribe()
	defer unsubEvents()

	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-statusC:
			if !ok {
				return
			}
			// 状态保留最新一条，新订阅者立即可见
			b.publish(b.topic(v.CameraID, "status"), 1, true, v)
		case v, ok := <-eventC:
			if !ok {
				return
			}
			b.publish(b.topic(v.CameraID, "events"), 0, false, v)
		}
	}
}

func (b *Bridge) topic(cameraID, kind string) string {
	return b.prefix + "/cameras/" + cameraID + "/" + kind
}

func (b *Bridge) publish(topic string, qos byte, retained bool, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.log.Error("marshal payload", "topic", topic, "err", err)
		return
	}
	if err := b.pub.Publish(topic, qos, retained, payload); err != nil {
		b.log.Warn("mqtt publish failed", "topic", topic, "err", err)
	}
}
