package api

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/ixugo/goddd/pkg/web"
)

var startRuntime = time.Now()

func setupRouter(r *gin.Engine, uc *Usecase) {
	r.Use(
		// 格式化输出到日志，底层 http.server 的 recover 不方便查看
		gin.CustomRecovery(func(c *gin.Context, err any) {
			slog.ErrorContext(c.Request.Context(), "panic", "err", err, "stack", string(debug.Stack()))
			c.AbortWithStatus(http.StatusInternalServerError)
		}),
	)
	// 关闭访问日志时仍需要 Logger 生成 trace_id
	r.Use(
		web.Logger(
			web.IgnoreBool(!uc.Conf.Server.HTTP.AccessLog),
			web.IgnoreMethod(http.MethodOptions),
			web.IgnorePrefix("/recordings/"), // 切片与播放列表
			web.IgnorePrefix("/events/stream"),
			web.IgnorePrefix("/ai/keepalive"),
			web.IgnorePrefix("/health"),
		),
		web.LoggerWithBody(web.DefaultBodyLimit,
			web.IgnoreBool(!uc.Conf.Debug),
			web.IgnoreMethod(http.MethodOptions),
			web.IgnorePrefix("/recordings/"),
			web.IgnorePrefix("/events/stream"),
		),
	)

	r.Use(cors.New(cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders: []string{
			"Accept", "Content-Length", "Content-Type", "Range", "Accept-Language",
			"Origin", "Authorization", "Referer", "User-Agent",
			"Cache-Control", "Pragma", "X-Requested-With", "X-Sync-Key",
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
		AllowOriginFunc: func(_ string) bool {
			return true
		},
	}))

	// 切片文件与 SSE 不压缩
	gz := gzip.Gzip(gzip.DefaultCompression)

	r.GET("/health", web.WrapH(uc.getHealth))
	registerCamera(r, uc.CameraAPI, gz)
	registerRecording(r, uc.RecordingAPI)
	registerEvent(r, uc.EventAPI, gz)
	registerFailover(r, uc.FailoverAPI, gz)
	registerSync(r, uc.SyncAPI, gz)
}

type getHealthOutput struct {
	Status     string    `json:"status"`
	Version    string    `json:"version"`
	StartAt    time.Time `json:"start_at"`
	Role       string    `json:"role"`
	InstanceID string    `json:"instance_id"`
	Monitoring int       `json:"monitoring"`
	Recording  int       `json:"recording"`
	RelayOK    bool      `json:"relay_ok"`
}

func (uc *Usecase) getHealth(_ *gin.Context, _ *struct{}) (getHealthOutput, error) {
	return getHealthOutput{
		Status:     "ok",
		Version:    uc.Conf.BuildVersion,
		StartAt:    startRuntime,
		Role:       uc.Conf.Sync.Role,
		InstanceID: uc.Conf.Sync.InstanceID,
		Monitoring: len(uc.Monitor.Sessions()),
		Recording:  len(uc.Recording.Streams()),
		RelayOK:    uc.Registry.IsOnline(),
	}, nil
}
