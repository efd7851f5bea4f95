package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gowvp/camcore/internal/core/event"
)

// aiEventInput 兼容各分析后端的上报格式
// 摄像头字段可以是 camera_id 或 cameraId，detections 中的每一项各生成一条事件
// 批量上报时 body 为数组或 {"events": [...]}，其中可以混有多个摄像头
type aiEventInput struct {
	Events []event.AddEventInput
}

func (in *aiEventInput) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	var batch []json.RawMessage
	if len(b) > 0 && b[0] == '[' {
		if err := json.Unmarshal(b, &batch); err != nil {
			return err
		}
	} else {
		var wrap struct {
			Events []json.RawMessage `json:"events"`
		}
		if err := json.Unmarshal(b, &wrap); err == nil && len(wrap.Events) > 0 {
			batch = wrap.Events
		}
	}
	if batch == nil {
		events, err := parseAIEvent(b)
		in.Events = events
		return err
	}
	in.Events = make([]event.AddEventInput, 0, len(batch))
	for i, raw := range batch {
		events, err := parseAIEvent(raw)
		if err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}
		in.Events = append(in.Events, events...)
	}
	return nil
}

type aiDetection struct {
	Label      string          `json:"label"`
	Confidence float64         `json:"confidence"`
	Box        json.RawMessage `json:"box,omitempty"`
}

func parseAIEvent(b []byte) ([]event.AddEventInput, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	var base event.AddEventInput
	base.CameraID = firstString(m, "camera_id", "cameraId")
	if base.CameraID == "" {
		return nil, fmt.Errorf("camera_id is required")
	}
	base.Type = firstString(m, "type")
	if base.Type == "" {
		switch {
		case m["plateNumber"] != nil:
			base.Type = "plate"
		case m["employeeId"] != nil:
			base.Type = "attendance"
		case m["crossing"] != nil || m["line"] != nil:
			base.Type = "line_crossing"
		default:
			base.Type = "detection"
		}
	}
	base.Label = firstString(m, "label", "plateNumber", "employeeName")
	if v, ok := m["confidence"]; ok {
		_ = json.Unmarshal(v, &base.Confidence)
	}
	base.OccurredAt = parseTimestamp(m["timestamp"])

	var dets []aiDetection
	if v, ok := m["detections"]; ok {
		if err := json.Unmarshal(v, &dets); err != nil {
			return nil, fmt.Errorf("detections: %w", err)
		}
	}
	// 快照体积大，不入库
	delete(m, "snapshot")
	delete(m, "detections")

	if len(dets) == 0 {
		detail, err := json.Marshal(m)
		if err != nil {
			return nil, err
		}
		base.Detail = detail
		return []event.AddEventInput{base}, nil
	}
	out := make([]event.AddEventInput, 0, len(dets))
	for _, d := range dets {
		e := base
		e.Label = d.Label
		e.Confidence = d.Confidence
		if len(d.Box) > 0 {
			e.Detail, _ = json.Marshal(map[string]json.RawMessage{"box": d.Box})
		}
		out = append(out, e)
	}
	return out, nil
}

func firstString(m map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// parseTimestamp 支持 RFC3339 字符串与毫秒时间戳，无法解析时返回零值
func parseTimestamp(raw json.RawMessage) time.Time {
	if len(raw) == 0 {
		return time.Time{}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}
		}
		return t
	}
	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil && ms > 0 {
		return time.UnixMilli(ms)
	}
	return time.Time{}
}

// aiKeepaliveInput 后端心跳
type aiKeepaliveInput struct {
	Timestamp int64    `json:"timestamp"`
	Message   string   `json:"message"`
	Cameras   []string `json:"cameras"`
	Stats     *struct {
		ActiveStreams int   `json:"active_streams"`
		UptimeSeconds int64 `json:"uptime_seconds"`
	} `json:"stats"`
}

type aiWebhookOutput struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func newAIWebhookOutputOK() aiWebhookOutput {
	return aiWebhookOutput{Code: 0, Msg: "success"}
}
