package sitesync

import (
	"encoding/json"
	"time"
)

// Status 分支在线状态，由最后同步时间推算，不落库
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// DefaultOnlineWindow 超过该时长未同步视为离线
const DefaultOnlineWindow = 10 * time.Minute

// RemoteInstance 中心节点上记录的分支实例
type RemoteInstance struct {
	ID               int64     `gorm:"primaryKey" json:"id"`
	InstanceID       string    `gorm:"size:64;notNull;uniqueIndex" json:"instance_id"`
	BranchName       string    `gorm:"size:128;notNull;default:''" json:"branch_name"`
	BranchAddress    string    `gorm:"size:256;notNull;default:''" json:"branch_address"`
	OrganizationName string    `gorm:"size:128;notNull;default:''" json:"organization_name"`
	LastSyncAt       time.Time `json:"last_sync_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (*RemoteInstance) TableName() string {
	return "remote_instances"
}

// DerivedStatus now-LastSyncAt 小于 window 时在线
func (r *RemoteInstance) DerivedStatus(now time.Time, window time.Duration) Status {
	if window <= 0 {
		window = DefaultOnlineWindow
	}
	if !r.LastSyncAt.IsZero() && now.Sub(r.LastSyncAt) < window {
		return StatusOnline
	}
	return StatusOffline
}

// RemoteCamera 分支摄像头的镜像，(RemoteInstanceID, OriginalID) 唯一
type RemoteCamera struct {
	ID               int64     `gorm:"primaryKey" json:"id"`
	RemoteInstanceID int64     `gorm:"notNull;uniqueIndex:idx_remote_cameras_origin" json:"remote_instance_id"`
	OriginalID       string    `gorm:"size:64;notNull;uniqueIndex:idx_remote_cameras_origin" json:"original_id"`
	Name             string    `gorm:"size:128;notNull;default:''" json:"name"`
	Purpose          string    `gorm:"size:32;notNull;default:''" json:"purpose"`
	Status           string    `gorm:"size:16;notNull;default:''" json:"status"`
	IsMonitoring     bool      `gorm:"notNull;default:false" json:"is_monitoring"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (*RemoteCamera) TableName() string {
	return "remote_cameras"
}

// RemoteEvent 分支事件的镜像，重复推送不会产生新行
type RemoteEvent struct {
	ID               int64           `gorm:"primaryKey" json:"id"`
	RemoteInstanceID int64           `gorm:"notNull;uniqueIndex:idx_remote_events_origin" json:"remote_instance_id"`
	OriginalID       int64           `gorm:"notNull;uniqueIndex:idx_remote_events_origin" json:"original_id"`
	CameraID         string          `gorm:"size:64;notNull;default:''" json:"camera_id"`
	Type             string          `gorm:"size:32;notNull;default:''" json:"type"`
	Label            string          `gorm:"size:64;notNull;default:''" json:"label"`
	Confidence       float64         `gorm:"notNull;default:0" json:"confidence"`
	Detail           json.RawMessage `gorm:"serializer:json" json:"detail,omitempty"`
	OccurredAt       time.Time       `gorm:"index" json:"occurred_at"`
	CreatedAt        time.Time       `json:"created_at"`
}

func (*RemoteEvent) TableName() string {
	return "remote_events"
}

// RemoteCounts 中心节点镜像数据统计
type RemoteCounts struct {
	Cameras int64
	Events  int64
}
