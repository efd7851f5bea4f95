package sms

import (
	"context"
)

const (
	ProtocolGo2RTC = "go2rtc"
	ProtocolLalmax = "lalmax"
)

// Driver 定义低延迟转发服务的通用行为
type Driver interface {
	// Protocol 返回协议/类型名称，如 "go2rtc"
	Protocol() string

	// Ping 主动探测服务是否在线
	Ping(ctx context.Context) error

	// AddStream 注册一路流，重复注册同一 id 不应产生副作用
	AddStream(ctx context.Context, id, sourceURL string) error
	// RemoveStream 注销一路流
	RemoveStream(ctx context.Context, id string) error
	// Streams 返回转发服务上当前已注册的流 id
	Streams(ctx context.Context) ([]string, error)
}

// Snapshotter 支持截图的转发服务额外实现该接口
type Snapshotter interface {
	Snapshot(ctx context.Context, id string) ([]byte, error)
}
