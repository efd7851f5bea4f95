package recording

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/ixugo/goddd/pkg/reason"
	"github.com/shirou/gopsutil/v4/disk"
)

// StartRetentionWorker 启动定时清理协程
// 程序启动时执行一次清理，随后按 RetentionInterval 周期执行，ctx 取消后退出
func (c *Core) StartRetentionWorker(ctx context.Context) {
	if !c.IsEnabled() {
		c.log.Info("recording cleanup disabled")
		return
	}
	interval := c.conf.RetentionInterval.Duration()
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	c.log.InfoContext(ctx, "recording cleanup worker started",
		"default_retention_days", c.conf.DefaultRetentionDays,
		"disk_threshold", c.conf.DiskUsageThreshold,
		"storage_dir", c.root,
	)

	// 程序启动时先执行一次清理
	c.RunCleanup(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RunCleanup(ctx)
		}
	}
}

// RunCleanup 先按保留天数清理，再处理磁盘空间，最后删除空目录
func (c *Core) RunCleanup(ctx context.Context) []RetentionResult {
	policies := map[string]int{}
	if c.policies != nil {
		p, err := c.policies.RetentionPolicies(ctx)
		if err != nil {
			c.log.WarnContext(ctx, "load retention policies failed, using default", "err", err)
		} else {
			policies = p
		}
	}

	entries, err := os.ReadDir(c.root)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.WarnContext(ctx, "read storage dir failed", "err", err)
		}
		return nil
	}

	var results []RetentionResult
	for _, e := range entries {
		if !e.IsDir() || !cameraIDRe.MatchString(e.Name()) {
			continue
		}
		days, ok := policies[e.Name()]
		if !ok {
			days = c.conf.DefaultRetentionDays
		}
		res, err := c.ApplyRetention(ctx, e.Name(), days)
		if err != nil {
			c.log.WarnContext(ctx, "apply retention failed", "camera_id", e.Name(), "err", err)
			continue
		}
		if len(res.Removed) > 0 {
			results = append(results, res)
		}
	}

	c.cleanupByDiskUsage(ctx)
	cleanupEmptyDirs(c.root)
	return results
}

// ApplyRetention 删除早于 retentionDays 天的日期目录，retentionDays<=0 表示永久保留
// 配置了归档时先归档，归档失败的目录本轮保留
func (c *Core) ApplyRetention(ctx context.Context, cameraID string, retentionDays int) (RetentionResult, error) {
	res := RetentionResult{CameraID: cameraID}
	if err := checkParams(cameraID, "", "", ""); err != nil {
		return res, err
	}
	if retentionDays <= 0 {
		return res, nil
	}
	camDir, err := c.resolve(cameraID)
	if err != nil {
		return res, err
	}
	dates, err := dateDirs(camDir)
	if err != nil {
		return res, reason.ErrServer.Withf("%s", err.Error())
	}

	now := c.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	cutoff := today.AddDate(0, 0, -retentionDays)

	for _, date := range dates {
		d, _ := time.ParseInLocation(time.DateOnly, date, time.Local)
		if !d.Before(cutoff) {
			break
		}
		dir := filepath.Join(camDir, date)
		if c.archiver != nil {
			if err := c.archiver.ArchiveDir(ctx, cameraID, date, dir); err != nil {
				c.log.WarnContext(ctx, "archive recording failed, keep local copy", "camera_id", cameraID, "date", date, "err", err)
				continue
			}
			res.Archived++
		}
		size := dirSize(dir)
		if err := os.RemoveAll(dir); err != nil {
			c.log.WarnContext(ctx, "remove recording dir failed", "dir", dir, "err", err)
			continue
		}
		res.Removed = append(res.Removed, date)
		res.FreedBytes += size
	}

	if len(res.Removed) > 0 {
		c.log.InfoContext(ctx, "expired recording cleanup completed",
			"reason", "retention_policy",
			"camera_id", cameraID,
			"retention_days", retentionDays,
			"cutoff", cutoff.Format(time.DateOnly),
			"dates_removed", len(res.Removed),
			"freed_bytes", res.FreedBytes,
		)
	}
	return res, nil
}

// cleanupByDiskUsage 磁盘使用率超过阈值时，跨摄像头删除最旧的日期目录
// 当天的录像不会被删除
func (c *Core) cleanupByDiskUsage(ctx context.Context) {
	threshold := c.conf.DiskUsageThreshold
	if threshold <= 0 || threshold >= 100 {
		return
	}
	usage, err := c.usage(c.root)
	if err != nil {
		c.log.WarnContext(ctx, "failed to get disk usage", "err", err)
		return
	}
	if usage < threshold {
		return
	}
	initial := usage
	today := c.now().Format(time.DateOnly)

	var removed int
	var freed int64
	for usage >= threshold {
		cameraID, date, ok := c.oldestDate()
		if !ok || date >= today {
			break
		}
		dir := filepath.Join(c.root, cameraID, date)
		if c.archiver != nil {
			// 空间不足时归档失败也要删除
			if err := c.archiver.ArchiveDir(ctx, cameraID, date, dir); err != nil {
				c.log.WarnContext(ctx, "archive before disk cleanup failed", "camera_id", cameraID, "date", date, "err", err)
			}
		}
		size := dirSize(dir)
		if err := os.RemoveAll(dir); err != nil {
			c.log.WarnContext(ctx, "remove recording dir failed", "dir", dir, "err", err)
			break
		}
		removed++
		freed += size
		if usage, err = c.usage(c.root); err != nil {
			break
		}
	}

	if removed > 0 {
		c.log.InfoContext(ctx, "disk usage cleanup completed",
			"reason", "disk_threshold_exceeded",
			"initial_usage", initial,
			"threshold", threshold,
			"dates_removed", removed,
			"freed_bytes", freed,
		)
	}
}

// oldestDate 所有摄像头中最早的日期目录
func (c *Core) oldestDate() (cameraID, date string, ok bool) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return "", "", false
	}
	for _, e := range entries {
		if !e.IsDir() || !cameraIDRe.MatchString(e.Name()) {
			continue
		}
		dates, err := dateDirs(filepath.Join(c.root, e.Name()))
		if err != nil || len(dates) == 0 {
			continue
		}
		if !ok || dates[0] < date {
			cameraID, date, ok = e.Name(), dates[0], true
		}
	}
	return
}

// dateDirs 返回合法的日期目录名，升序
func dateDirs(camDir string) ([]string, error) {
	entries, err := os.ReadDir(camDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && ValidateDate(e.Name()) == nil {
			out = append(out, e.Name())
		}
	}
	slices.Sort(out)
	return out, nil
}

func dirSize(dir string) int64 {
	var size int64
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			size += fi.Size()
		}
		return nil
	})
	return size
}

// diskUsage 获取指定路径所在磁盘的使用率（百分比）
func diskUsage(path string) (float64, error) {
	st, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return st.UsedPercent, nil
}

// cleanupEmptyDirs 递归删除空目录，根目录本身保留
func cleanupEmptyDirs(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			subDir := filepath.Join(dir, entry.Name())
			cleanupEmptyDirs(subDir)

			subEntries, err := os.ReadDir(subDir)
			if err == nil && len(subEntries) == 0 {
				_ = os.Remove(subDir)
			}
		}
	}
}
