package recording

import "time"

// SegmentInfo 回放列表中的一个切片
type SegmentInfo struct {
	Name     string  `json:"name"`
	Hour     string  `json:"hour"`
	Size     int64   `json:"size"`
	Duration float64 `json:"duration"` // 秒
	URI      string  `json:"uri"`
}

// StreamStatus 录制进程状态
type StreamStatus struct {
	CameraID  string    `json:"camera_id"`
	SourceURL string    `json:"source_url"`
	StartedAt time.Time `json:"started_at"`
	Restarts  int       `json:"restarts"`
	LastError string    `json:"last_error,omitempty"`
}

// RetentionResult 一次保留策略执行的结果
type RetentionResult struct {
	CameraID   string   `json:"camera_id"`
	Removed    []string `json:"removed"` // 删除的日期目录
	Archived   int      `json:"archived"`
	FreedBytes int64    `json:"freed_bytes"`
}
