package monitor

import (
	"github.com/gowvp/camcore/internal/conf"
	"github.com/gowvp/camcore/internal/core/camera"
	"github.com/gowvp/camcore/internal/rpc"
)

// Route 用途对应的分析后端
type Route struct {
	URL      string
	Encoding rpc.Encoding
}

// Routes 静态路由表
type Routes map[camera.Purpose]Route

// NewRoutes detection→A，attendance/people_search→B，lpr→C，line_crossing→D
func NewRoutes(cfg conf.Monitor) Routes {
	attendance := Route{URL: cfg.AttendanceURL, Encoding: rpc.EncodingForm}
	return Routes{
		camera.PurposeDetection:       {URL: cfg.DetectionURL, Encoding: rpc.EncodingForm},
		camera.PurposeAttendanceEntry: attendance,
		camera.PurposeAttendanceExit:  attendance,
		camera.PurposePeopleSearch:    attendance,
		camera.PurposeLPR:             {URL: cfg.LPRURL, Encoding: rpc.EncodingForm},
		camera.PurposeLineCrossing:    {URL: cfg.LineCrossingURL, Encoding: rpc.EncodingJSON},
	}
}

// Resolve 未配置地址的用途返回 false
func (r Routes) Resolve(p camera.Purpose) (Route, bool) {
	route, ok := r[p]
	if !ok || route.URL == "" {
		return Route{}, false
	}
	return route, true
}

// Backends 去重后的后端列表
func (r Routes) Backends() []Route {
	seen := make(map[string]struct{}, len(r))
	out := make([]Route, 0, len(r))
	for _, p := range []camera.Purpose{
		camera.PurposeDetection,
		camera.PurposeAttendanceEntry,
		camera.PurposeAttendanceExit,
		camera.PurposePeopleSearch,
		camera.PurposeLPR,
		camera.PurposeLineCrossing,
	} {
		route, ok := r.Resolve(p)
		if !ok {
			continue
		}
		if _, dup := seen[route.URL]; dup {
			continue
		}
		seen[route.URL] = struct{}{}
		out = append(out, route)
	}
	return out
}
