package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gowvp/camcore/internal/core/camera"
	"github.com/gowvp/camcore/internal/core/monitor"
	"github.com/gowvp/camcore/internal/core/sms"
	"github.com/gowvp/camcore/internal/errcode"
	"github.com/gowvp/camcore/pkg/lalmax"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/ixugo/goddd/pkg/web"
)

// CameraAPI 摄像头与监控生命周期
type CameraAPI struct {
	cameras  camera.Core
	monitor  *monitor.Core
	registry *sms.Registry
}

func NewCameraAPI(cameras camera.Core, m *monitor.Core, reg *sms.Registry) CameraAPI {
	return CameraAPI{cameras: cameras, monitor: m, registry: reg}
}

func registerCamera(g gin.IRouter, api CameraAPI, handler ...gin.HandlerFunc) {
	{
		group := g.Group("/cameras", handler...)
		group.GET("", web.WrapH(api.findCameras))
		group.POST("", web.WrapH(api.addCamera))
		group.GET("/:id", web.WrapH(api.getCamera))
		group.POST("/:id/start", web.WrapH(api.startCamera))
		group.POST("/:id/stop", web.WrapH(api.stopCamera))
		group.PUT("/:id/purpose", web.WrapH(api.changePurpose))
		group.GET("/:id/monitoring", web.WrapH(api.getMonitoring))
	}
	// 图片已压缩
	g.GET("/cameras/:id/snapshot", api.getSnapshot)
	g.Group("/monitoring", handler...).GET("", web.WrapH(api.listMonitoring))
}

func (a CameraAPI) findCameras(c *gin.Context, in *camera.FindCameraInput) (any, error) {
	items, total, err := a.cameras.FindCameras(c.Request.Context(), in)
	return gin.H{"items": items, "total": total}, err
}

func (a CameraAPI) addCamera(c *gin.Context, in *camera.AddCameraInput) (*camera.Camera, error) {
	return a.cameras.AddCamera(c.Request.Context(), in)
}

func (a CameraAPI) getCamera(c *gin.Context, _ *struct{}) (*camera.Camera, error) {
	return a.cameras.GetCamera(c.Request.Context(), c.Param("id"))
}

// startCamera 分析后端不可达时返回 502，但会话已建立并继续录像
func (a CameraAPI) startCamera(c *gin.Context, _ *struct{}) (*monitor.Session, error) {
	return a.monitor.Start(c.Request.Context(), c.Param("id"))
}

func (a CameraAPI) stopCamera(c *gin.Context, _ *struct{}) (monitor.CameraState, error) {
	id := c.Param("id")
	if err := a.monitor.Stop(c.Request.Context(), id); err != nil {
		return monitor.CameraState{}, err
	}
	return a.monitor.State(id), nil
}

type changePurposeInput struct {
	Purpose   string           `json:"purpose" binding:"required"`
	Direction string           `json:"direction"`
	Tripwire  *camera.Tripwire `json:"tripwire"`
}

// changePurpose 监控中的摄像头会先停旧后端再启新后端
func (a CameraAPI) changePurpose(c *gin.Context, in *changePurposeInput) (monitor.CameraState, error) {
	opts, err := monitor.DecodePurposeOptions(in.Purpose, in.Direction, in.Tripwire)
	if err != nil {
		return monitor.CameraState{}, err
	}
	id := c.Param("id")
	if _, err := a.monitor.ChangePurpose(c.Request.Context(), id, opts); err != nil {
		return monitor.CameraState{}, err
	}
	return a.monitor.State(id), nil
}

func (a CameraAPI) getMonitoring(c *gin.Context, _ *struct{}) (monitor.CameraState, error) {
	id := c.Param("id")
	if _, err := a.cameras.GetCamera(c.Request.Context(), id); err != nil {
		return monitor.CameraState{}, err
	}
	return a.monitor.State(id), nil
}

func (a CameraAPI) listMonitoring(_ *gin.Context, _ *struct{}) (any, error) {
	items := a.monitor.Sessions()
	return gin.H{"items": items, "total": len(items)}, nil
}

// getSnapshot 通过转发服务截取当前画面，摄像头需处于监控中
func (a CameraAPI) getSnapshot(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := a.cameras.GetCamera(ctx, id); err != nil {
		web.Fail(c, err)
		return
	}
	img, err := a.registry.Snapshot(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, sms.ErrSnapshotUnsupported):
		web.Fail(c, reason.ErrBadRequest.SetMsg("转发服务不支持截图"))
		return
	case errors.Is(err, sms.ErrStreamNotRegistered):
		web.Fail(c, errcode.ErrNotFound.SetMsg("摄像头未在监控中").Withf("camera[%s]", id))
		return
	case errors.Is(err, lalmax.ErrSnapshotBusy):
		web.Fail(c, reason.ErrRateLimit.Withf("%s", err.Error()))
		return
	default:
		web.Fail(c, errcode.ErrBadGateway.Withf("%s", err.Error()))
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, http.DetectContentType(img), img)
}
