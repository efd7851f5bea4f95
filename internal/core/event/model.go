package event

import (
	"encoding/json"
	"time"
)

// Event 分析后端上报的一次识别结果
// ID 自增，卫星节点以其作为同步游标
type Event struct {
	ID         int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	CameraID   string          `gorm:"size:64;index;not null" json:"camera_id"`
	Type       string          `gorm:"size:32;index" json:"type"` // detection/attendance/plate/line_crossing
	Label      string          `gorm:"size:128" json:"label"`
	Confidence float64         `json:"confidence"`
	Detail     json.RawMessage `gorm:"serializer:json" json:"detail,omitempty"`
	OccurredAt time.Time       `gorm:"index" json:"occurred_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (*Event) TableName() string {
	return "events"
}
