package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gowvp/camcore/internal/core/recording"
	"github.com/ixugo/goddd/pkg/web"
)

// RecordingAPI 录像切片与播放列表
type RecordingAPI struct {
	core *recording.Core
}

func NewRecordingAPI(core *recording.Core) RecordingAPI {
	return RecordingAPI{core: core}
}

func registerRecording(g gin.IRouter, api RecordingAPI, handler ...gin.HandlerFunc) {
	group := g.Group("/recordings", handler...)
	group.GET("", web.WrapH(api.listStreams))
	// ?format=playlist 返回 m3u8，否则返回切片列表
	group.GET("/:cid/:date", api.getDay)
	group.GET("/:cid/:date/:hour", api.getHour)
	group.GET("/:cid/:date/:hour/:segment", api.getSegment)
}

func (a RecordingAPI) listStreams(_ *gin.Context, _ *struct{}) (any, error) {
	items := a.core.Streams()
	return gin.H{"items": items, "total": len(items)}, nil
}

func (a RecordingAPI) getDay(c *gin.Context) {
	a.serveIndex(c, "")
}

func (a RecordingAPI) getHour(c *gin.Context) {
	a.serveIndex(c, c.Param("hour"))
}

func (a RecordingAPI) serveIndex(c *gin.Context, hour string) {
	cid, date := c.Param("cid"), c.Param("date")
	if c.Query("format") == "playlist" {
		out, err := a.core.BuildPlaylist(cid, date, hour)
		if err != nil {
			web.Fail(c, err)
			return
		}
		c.Header("Cache-Control", "no-cache")
		c.Data(http.StatusOK, "application/vnd.apple.mpegurl", []byte(out))
		return
	}
	items, err := a.core.Segments(cid, date, hour)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, gin.H{"items": items, "total": len(items)})
}

func (a RecordingAPI) getSegment(c *gin.Context) {
	p, err := a.core.SegmentPath(c.Param("cid"), c.Param("date"), c.Param("hour"), c.Param("segment"))
	if err != nil {
		web.Fail(c, err)
		return
	}
	// 系统 mime 表里 .ts 可能被识别为 TypeScript
	c.Header("Content-Type", "video/mp2t")
	c.File(p)
}
