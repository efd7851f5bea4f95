package camera

import (
	"fmt"
	"time"
)

// Purpose 摄像头的分析用途，决定由哪个分析后端处理
type Purpose string

const (
	PurposeDetection       Purpose = "detection"
	PurposeAttendanceEntry Purpose = "attendance_entry"
	PurposeAttendanceExit  Purpose = "attendance_exit"
	PurposePeopleSearch    Purpose = "people_search"
	PurposeLPR             Purpose = "lpr"
	PurposeLineCrossing    Purpose = "line_crossing"
)

var purposes = []Purpose{
	PurposeDetection,
	PurposeAttendanceEntry,
	PurposeAttendanceExit,
	PurposePeopleSearch,
	PurposeLPR,
	PurposeLineCrossing,
}

// ParsePurpose 校验并返回用途，未知值返回错误
func ParsePurpose(s string) (Purpose, error) {
	for _, p := range purposes {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown purpose %q", s)
}

// Status 观测到的摄像头在线状态
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Direction 进出方向，考勤与越线使用
type Direction string

const (
	DirectionEntry Direction = "entry"
	DirectionExit  Direction = "exit"
)

func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionEntry, DirectionExit:
		return Direction(s), nil
	case "":
		return DirectionEntry, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// Tripwire 越线检测的绊线，坐标为相对画面的比例
type Tripwire struct {
	X1             float64 `json:"x1"`
	Y1             float64 `json:"y1"`
	X2             float64 `json:"x2"`
	Y2             float64 `json:"y2"`
	Enabled        bool    `json:"enabled"`
	CrossDirection string  `json:"cross_direction,omitempty"` // forward/backward
}

func (t *Tripwire) Validate() error {
	for _, v := range []float64{t.X1, t.Y1, t.X2, t.Y2} {
		if v < 0 || v > 1 {
			return fmt.Errorf("tripwire coordinates must be within [0,1]")
		}
	}
	if t.X1 == t.X2 && t.Y1 == t.Y2 {
		return fmt.Errorf("tripwire endpoints must differ")
	}
	switch t.CrossDirection {
	case "", "forward", "backward":
	default:
		return fmt.Errorf("unknown cross direction %q", t.CrossDirection)
	}
	return nil
}

// Camera 摄像头，由外部管理平台维护，此处只读写监控相关字段
type Camera struct {
	ID            string    `gorm:"primaryKey;size:64" json:"id"`
	Name          string    `gorm:"size:128;notNull;default:''" json:"name"`
	Purpose       Purpose   `gorm:"size:32;notNull;default:'detection'" json:"purpose"`
	StreamURL     string    `gorm:"size:512;notNull;default:''" json:"stream_url"`
	IsMonitoring  bool      `gorm:"notNull;default:false;index" json:"is_monitoring"` // 期望状态
	Status        Status    `gorm:"size:16;notNull;default:'offline'" json:"status"`   // 观测状态
	Direction     Direction `gorm:"size:16;notNull;default:''" json:"direction"`
	Tripwire      *Tripwire `gorm:"serializer:json" json:"tripwire,omitempty"`
	OnvifUsername string    `gorm:"size:64;notNull;default:''" json:"onvif_username"`
	OnvifPassword string    `gorm:"size:128;notNull;default:''" json:"-"`
	PTZEnabled    bool      `gorm:"notNull;default:false" json:"ptz_enabled"`
	RetentionDays int       `gorm:"notNull;default:0" json:"retention_days"` // 0 使用全局默认值
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (*Camera) TableName() string {
	return "cameras"
}

// Counts 摄像头数量统计
type Counts struct {
	Total      int64 `json:"total"`
	Monitoring int64 `json:"monitoring"`
	Online     int64 `json:"online"`
}
