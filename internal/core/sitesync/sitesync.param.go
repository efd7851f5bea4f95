package sitesync

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	maxPushCameras = 5000
	maxPushEvents  = 5000
)

// PushInput 分支推送到中心节点的数据
type PushInput struct {
	InstanceID       string       `json:"instanceId" binding:"required,max=64"`
	BranchName       string       `json:"branchName" binding:"required,max=128"`
	BranchAddress    string       `json:"branchAddress,omitempty" binding:"max=256"`
	OrganizationName string       `json:"organizationName" binding:"max=128"`
	Cameras          []PushCamera `json:"cameras"`
	Events           []PushEvent  `json:"events"`
}

type PushCamera struct {
	OriginalID   string `json:"id"`
	Name         string `json:"name"`
	Purpose      string `json:"purpose"`
	Status       string `json:"status"`
	IsMonitoring bool   `json:"isMonitoring"`
}

type PushEvent struct {
	OriginalID int64           `json:"id"`
	CameraID   string          `json:"cameraId"`
	Type       string          `json:"type"`
	Label      string          `json:"label"`
	Confidence float64         `json:"confidence"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
}

type PushOutput struct {
	OK       bool     `json:"ok"`
	Accepted Accepted `json:"accepted"`
}

type Accepted struct {
	Cameras int `json:"cameras"`
	Events  int `json:"events"`
}

// normalize 校验并去重，同一批次内重复的 id 以最后一条为准
func (in *PushInput) normalize() error {
	if in.InstanceID == "" {
		return fmt.Errorf("instanceId is required")
	}
	if len(in.Cameras) > maxPushCameras || len(in.Events) > maxPushEvents {
		return fmt.Errorf("payload too large: %d cameras, %d events", len(in.Cameras), len(in.Events))
	}

	cams := make([]PushCamera, 0, len(in.Cameras))
	seenCam := make(map[string]int, len(in.Cameras))
	for i, c := range in.Cameras {
		if c.OriginalID == "" {
			return fmt.Errorf("cameras[%d].id is required", i)
		}
		if j, ok := seenCam[c.OriginalID]; ok {
			cams[j] = c
			continue
		}
		seenCam[c.OriginalID] = len(cams)
		cams = append(cams, c)
	}

	events := make([]PushEvent, 0, len(in.Events))
	seenEvent := make(map[int64]int, len(in.Events))
	for i, e := range in.Events {
		if e.OriginalID <= 0 {
			return fmt.Errorf("events[%d].id must be positive", i)
		}
		if j, ok := seenEvent[e.OriginalID]; ok {
			events[j] = e
			continue
		}
		seenEvent[e.OriginalID] = len(events)
		events = append(events, e)
	}
	in.Cameras, in.Events = cams, events
	return nil
}

// StatsInput GET /sync/stats
type StatsInput struct {
	Branch string `form:"branch"`
}

// Stats 看板统计
type Stats struct {
	Role       string `json:"role"`
	Cameras    int64  `json:"cameras"`
	Monitoring int64  `json:"monitoring"`
	Events     int64  `json:"events"`
	// 仅中心节点且未按分支过滤时包含镜像数据
	IncludesRemote bool `json:"includes_remote"`
}
