package monitor

import (
	"time"

	"github.com/gowvp/camcore/internal/core/camera"
)

// State 摄像头监控状态机 stopped → starting → monitoring → stopping → stopped
type State string

const (
	StateStopped    State = "stopped"
	StateStarting   State = "starting"
	StateMonitoring State = "monitoring"
	StateStopping   State = "stopping"
)

// Session 本进程内正在运行的监控会话，不落库
// 每个摄像头最多一个会话
type Session struct {
	CameraID      string         `json:"camera_id"`
	Purpose       camera.Purpose `json:"purpose"`
	BackendURL    string         `json:"backend_url"`
	StreamURL     string         `json:"stream_url"`
	Degraded      bool           `json:"degraded"` // 录像继续，分析后端不可达
	LastError     string         `json:"last_error,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	LastHeartbeat time.Time      `json:"last_heartbeat"`
}

// CameraState 对外展示的摄像头监控状态
type CameraState struct {
	CameraID string   `json:"camera_id"`
	State    State    `json:"state"`
	Session  *Session `json:"session,omitempty"`
}

// StatusChanged 监控状态变化，发布到总线
type StatusChanged struct {
	CameraID string         `json:"camera_id"`
	State    State          `json:"state"`
	Degraded bool           `json:"degraded"`
	Purpose  camera.Purpose `json:"purpose"`
	At       time.Time      `json:"at"`
}

// Orphan 对账时发现并停止的后端任务
type Orphan struct {
	BackendURL string `json:"backend_url"`
	CameraID   string `json:"camera_id"`
}
