package api

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gowvp/camcore/internal/core/event"
	"github.com/gowvp/camcore/internal/core/monitor"
	"github.com/gowvp/camcore/pkg/pubsub"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/ixugo/goddd/pkg/web"
)

const sseKeepalive = 15 * time.Second

// EventAPI 分析事件查询、实时推送与后端回调
type EventAPI struct {
	log       *slog.Logger
	events    event.Core
	monitor   *monitor.Core
	eventBus  *pubsub.Broker[event.Event]
	statusBus *pubsub.Broker[monitor.StatusChanged]
	limiter   func(cameraID string) bool
}

func NewEventAPI(events event.Core, m *monitor.Core, eventBus *pubsub.Broker[event.Event], statusBus *pubsub.Broker[monitor.StatusChanged]) EventAPI {
	return EventAPI{
		log:       slog.With("hook", "ai"),
		events:    events,
		monitor:   m,
		eventBus:  eventBus,
		statusBus: statusBus,
		limiter:   web.IDRateLimiter(5, 20, 3*time.Minute),
	}
}

func registerEvent(g gin.IRouter, api EventAPI, handler ...gin.HandlerFunc) {
	g.Group("/events", handler...).GET("", web.WrapH(api.findEvents))
	// SSE 不能经过 gzip
	g.GET("/events/stream", api.stream)

	group := g.Group("/ai")
	group.POST("/events", web.WrapH(api.onEvents))
	group.POST("/keepalive", web.WrapH(api.onKeepalive))
}

func (a EventAPI) findEvents(c *gin.Context, in *event.FindEventInput) (any, error) {
	items, total, err := a.events.FindEvents(c.Request.Context(), in)
	return gin.H{"items": items, "total": total}, err
}

// onEvents 保存后端上报的事件，同时刷新会话心跳
// 一次上报可能包含多个摄像头，按摄像头分别限流，过于频繁的摄像头事件直接丢弃
func (a EventAPI) onEvents(c *gin.Context, in *aiEventInput) (aiWebhookOutput, error) {
	ctx := c.Request.Context()
	order := make([]string, 0, 1)
	groups := make(map[string][]int, 1)
	for i, e := range in.Events {
		id := strings.TrimSpace(e.CameraID)
		if id == "" {
			return aiWebhookOutput{}, reason.ErrBadRequest.SetMsg("camera_id 不能为空")
		}
		if _, ok := groups[id]; !ok {
			order = append(order, id)
		}
		groups[id] = append(groups[id], i)
	}

	for _, cameraID := range order {
		idx := groups[cameraID]
		a.monitor.Heartbeat(cameraID)
		if !a.limiter(cameraID) {
			a.log.DebugContext(ctx, "ai event dropped by limiter", "camera_id", cameraID, "count", len(idx))
			continue
		}
		for _, i := range idx {
			if _, err := a.events.AddEvent(ctx, &in.Events[i]); err != nil {
				return aiWebhookOutput{}, err
			}
		}
		a.log.InfoContext(ctx, "ai event", "camera_id", cameraID, "type", in.Events[idx[0]].Type, "count", len(idx))
	}
	return newAIWebhookOutputOK(), nil
}

func (a EventAPI) onKeepalive(c *gin.Context, in *aiKeepaliveInput) (aiWebhookOutput, error) {
	var active int
	if in.Stats != nil {
		active = in.Stats.ActiveStreams
	}
	var unknown int
	for _, id := range in.Cameras {
		if !a.monitor.Heartbeat(id) {
			unknown++
		}
	}
	a.log.DebugContext(c.Request.Context(), "ai keepalive",
		"message", in.Message,
		"cameras", len(in.Cameras),
		"unknown", unknown,
		"active_streams", active,
	)
	return newAIWebhookOutputOK(), nil
}

// stream SSE 推送新事件与监控状态变化，客户端断开时取消订阅
func (a EventAPI) stream(c *gin.Context) {
	cameraID := c.Query("camera_id")
	events, unsubEvents := a.eventBus.Subscribe()
	defer unsubEvents()
	status, unsubStatus := a.statusBus.Subscribe()
	defer unsubStatus()

	if _, ok := c.Writer.(http.Flusher); !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"msg": "不支持 SSE"})
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(sseKeepalive)
	defer ticker.Stop()
	c.SSEvent("ready", gin.H{"camera_id": cameraID})
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(_ io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case v, ok := <-events:
			if !ok {
				return false
			}
			if cameraID == "" || v.CameraID == cameraID {
				c.SSEvent("event", v)
			}
		case v, ok := <-status:
			if !ok {
				return false
			}
			if cameraID == "" || v.CameraID == cameraID {
				c.SSEvent("status", v)
			}
		case <-ticker.C:
			c.SSEvent("ping", time.Now().Unix())
		}
		return true
	})
}
