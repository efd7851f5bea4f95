package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gowvp/camcore/internal/conf"
	"github.com/ixugo/goddd/pkg/logger"
)

// SetupLog 日志按周期切割写入文件，调试模式同时输出到终端
func SetupLog(bc *conf.Bootstrap) (*slog.Logger, func(), error) {
	dir := bc.Log.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(filepath.Dir(bc.ConfigDir), dir)
	}
	// crash.log 需要目录已存在
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	cfg := logger.NewDefaultConfig().
		SetDir(dir).
		SetDebug(bc.Debug).
		SetLevel(bc.Log.Level).
		SetMaxAge(bc.Log.MaxAge.Duration()).
		SetService("", "camcore", bc.BuildVersion)
	cfg.RotationTime = bc.Log.RotationTime.Duration()
	log, closeLog := logger.SetupSlog(cfg)
	return log, closeLog, nil
}
