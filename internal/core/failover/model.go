package failover

import (
	"fmt"
	"time"
)

// Role 服务器角色
type Role string

const (
	RolePrimary Role = "primary"
	RoleBackup  Role = "backup"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RolePrimary, RoleBackup:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Status 健康状态
type Status string

const (
	StatusOnline   Status = "online"
	StatusDegraded Status = "degraded"
	StatusOffline  Status = "offline"
)

// HealthCheck 单次探测结果
type HealthCheck struct {
	Timestamp      time.Time `json:"timestamp"`
	Status         Status    `json:"status"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	Error          string    `json:"error,omitempty"`
}

// Server 应用服务器
// 内存中的注册表为准，数据库仅用于重启后恢复
type Server struct {
	ID                  string        `gorm:"primaryKey;size:36" json:"id"`
	Name                string        `gorm:"size:128;notNull;default:''" json:"name"`
	URL                 string        `gorm:"size:512;notNull;uniqueIndex" json:"url"`
	Role                Role          `gorm:"size:16;notNull" json:"role"`
	Status              Status        `gorm:"size:16;notNull" json:"status"`
	ConsecutiveFailures int           `gorm:"notNull;default:0" json:"consecutive_failures"`
	LastCheckedAt       *time.Time    `json:"last_checked_at"`
	LastOnlineAt        *time.Time    `json:"last_online_at"`
	History             []HealthCheck `gorm:"serializer:json" json:"history"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

func (*Server) TableName() string {
	return "failover_servers"
}
