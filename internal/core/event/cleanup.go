package event

import (
	"context"
	"log/slog"
	"time"

	"github.com/ixugo/goddd/pkg/conc"
)

// StartCleanupWorker 启动定时清理协程，每 24 小时执行一次
// days 参数指定保留的天数，超过该天数的事件将被删除
func (c Core) StartCleanupWorker(ctx context.Context, days int) {
	if days <= 0 {
		slog.Info("event cleanup disabled", "days", days)
		return
	}

	slog.Info("event cleanup worker started", "retain_days", days)

	// 启动时先执行一次清理
	c.cleanupExpiredEvents(ctx, days)
	conc.Timer(ctx, 24*time.Hour, 24*time.Hour, func() {
		c.cleanupExpiredEvents(ctx, days)
	})
}

// cleanupExpiredEvents 分批删除过期事件，避免长事务锁表
func (c Core) cleanupExpiredEvents(ctx context.Context, days int) int64 {
	cutoffTime := c.now().AddDate(0, 0, -days)
	const batchSize = 500

	var totalDeleted int64
	for {
		n, err := c.store.Event().DeleteBefore(ctx, cutoffTime, batchSize)
		if err != nil {
			slog.WarnContext(ctx, "failed to batch delete events", "err", err)
			break
		}
		totalDeleted += n
		if n < batchSize {
			break
		}
	}

	if totalDeleted > 0 {
		slog.InfoContext(ctx, "event cleanup completed",
			"cutoff_time", cutoffTime.Format(time.DateTime),
			"retain_days", days,
			"events_deleted", totalDeleted,
		)
	}
	return totalDeleted
}
