package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gowvp/camcore/internal/conf"
	"github.com/gowvp/camcore/internal/core/sitesync"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/ixugo/goddd/pkg/web"
	"golang.org/x/time/rate"
)

type SyncAPI struct {
	core  *sitesync.Core
	allow func(ip string) bool
}

func NewSyncAPI(bc *conf.Bootstrap, core *sitesync.Core) SyncAPI {
	limit := rate.Limit(bc.Sync.PushRateLimit)
	if limit <= 0 {
		limit = 1
	}
	return SyncAPI{
		core:  core,
		allow: web.IDRateLimiter(limit, 5, 10*time.Minute),
	}
}

func registerSync(g gin.IRouter, api SyncAPI, handler ...gin.HandlerFunc) {
	g.POST("/sync/push", api.authPush, web.WrapH(api.push))

	group := g.Group("/sync", handler...)
	group.GET("/status", web.WrapH(api.status))
	group.GET("/stats", web.WrapH(api.stats))
}

// authPush 先按来源 IP 限流，再校验共享密钥
func (a SyncAPI) authPush(c *gin.Context) {
	if !a.allow(c.ClientIP()) {
		web.AbortWithStatusJSON(c, reason.ErrRateLimit)
		return
	}
	if !a.core.KeyMatch(c.GetHeader(sitesync.KeyHeader)) {
		slog.WarnContext(c.Request.Context(), "sync push rejected", "ip", c.ClientIP())
		web.AbortWithStatusJSON(c, reason.ErrUnauthorizedToken.SetMsg("同步密钥无效"))
		return
	}
	c.Next()
}

func (a SyncAPI) push(c *gin.Context, in *sitesync.PushInput) (*sitesync.PushOutput, error) {
	return a.core.Apply(c.Request.Context(), in)
}

func (a SyncAPI) status(c *gin.Context, _ *struct{}) (*sitesync.StatusOutput, error) {
	return a.core.Status(c.Request.Context())
}

func (a SyncAPI) stats(c *gin.Context, in *sitesync.StatsInput) (*sitesync.Stats, error) {
	return a.core.Stats(c.Request.Context(), in)
}
