package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/gowvp/camcore/internal/core/failover"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/ixugo/goddd/pkg/web"
)

type FailoverAPI struct {
	m *failover.Manager
}

func NewFailoverAPI(m *failover.Manager) FailoverAPI {
	return FailoverAPI{m: m}
}

func registerFailover(g gin.IRouter, api FailoverAPI, handler ...gin.HandlerFunc) {
	group := g.Group("/failover/servers", handler...)
	group.GET("", web.WrapH(api.findServers))
	group.GET("/:id", web.WrapH(api.getServer))
	group.POST("", web.WrapH(api.addServer))
	group.PUT("", web.WrapH(api.editServer))
}

func (a FailoverAPI) findServers(_ *gin.Context, _ *struct{}) (gin.H, error) {
	items := a.m.ListServers()
	return gin.H{"items": items, "total": len(items)}, nil
}

func (a FailoverAPI) getServer(c *gin.Context, _ *struct{}) (*failover.Server, error) {
	return a.m.GetServer(c.Param("id"))
}

func (a FailoverAPI) addServer(c *gin.Context, in *failover.RegisterServerInput) (*failover.Server, error) {
	return a.m.RegisterServer(c.Request.Context(), in)
}

type editServerOutput struct {
	Action failover.Action  `json:"action"`
	Server *failover.Server `json:"server,omitempty"`
	Msg    string           `json:"msg"`
}

// editServer 按 action 提升、删除或立即检测一台服务器
func (a FailoverAPI) editServer(c *gin.Context, in *failover.EditServerInput) (*editServerOutput, error) {
	ctx := c.Request.Context()
	out := editServerOutput{Action: in.Action}
	switch in.Action {
	case failover.ActionPromote:
		s, err := a.m.PromoteBackup(ctx, in.ServerID)
		if err != nil {
			return nil, err
		}
		out.Server, out.Msg = s, "已提升为主服务器: "+s.Name
	case failover.ActionRemove:
		s, err := a.m.GetServer(in.ServerID)
		if err != nil {
			return nil, err
		}
		if err := a.m.UnregisterServer(ctx, in.ServerID); err != nil {
			return nil, err
		}
		out.Msg = "已移除服务器: " + s.Name
	case failover.ActionCheck:
		s, err := a.m.CheckServer(ctx, in.ServerID)
		if err != nil {
			return nil, err
		}
		out.Server, out.Msg = s, "检测完成: "+s.Name
	default:
		return nil, reason.ErrBadRequest.SetMsg(fmt.Sprintf("未知操作: %s", in.Action))
	}
	return &out, nil
}
