package monitor

import (
	"github.com/gowvp/camcore/internal/core/camera"
	"github.com/gowvp/camcore/internal/rpc"
	"github.com/ixugo/goddd/pkg/reason"
)

// PurposeOptions 每种用途各自的启动参数，在接口边界解码后不再出现非法组合
type PurposeOptions interface {
	Purpose() camera.Purpose
	config() camera.PurposeConfig
	apply(req *rpc.StartCameraRequest)
}

type (
	DetectionOptions    struct{}
	PeopleSearchOptions struct{}
	LPROptions          struct{}

	// AttendanceOptions 方向由用途决定
	AttendanceOptions struct {
		Direction camera.Direction
	}

	LineCrossingOptions struct {
		Direction camera.Direction
		Tripwire  *camera.Tripwire
	}
)

var (
	_ PurposeOptions = DetectionOptions{}
	_ PurposeOptions = PeopleSearchOptions{}
	_ PurposeOptions = LPROptions{}
	_ PurposeOptions = AttendanceOptions{}
	_ PurposeOptions = LineCrossingOptions{}
)

func (DetectionOptions) Purpose() camera.Purpose { return camera.PurposeDetection }
func (DetectionOptions) config() camera.PurposeConfig { return camera.PurposeConfig{} }
func (DetectionOptions) apply(*rpc.StartCameraRequest) {}
func (PeopleSearchOptions) Purpose() camera.Purpose { return camera.PurposePeopleSearch }
func (PeopleSearchOptions) config() camera.PurposeConfig { return camera.PurposeConfig{} }
func (PeopleSearchOptions) apply(*rpc.StartCameraRequest) {}
func (LPROptions) Purpose() camera.Purpose { return camera.PurposeLPR }
func (LPROptions) config() camera.PurposeConfig { return camera.PurposeConfig{} }
func (LPROptions) apply(*rpc.StartCameraRequest) {}

func (o AttendanceOptions) Purpose() camera.Purpose {
	if o.Direction == camera.DirectionExit {
		return camera.PurposeAttendanceExit
	}
	return camera.PurposeAttendanceEntry
}

func (o AttendanceOptions) config() camera.PurposeConfig {
	return camera.PurposeConfig{Direction: o.Direction}
}

func (o AttendanceOptions) apply(req *rpc.StartCameraRequest) {
	req.Direction = string(o.Direction)
}

func (LineCrossingOptions) Purpose() camera.Purpose { return camera.PurposeLineCrossing }

func (o LineCrossingOptions) config() camera.PurposeConfig {
	return camera.PurposeConfig{Direction: o.Direction, Tripwire: o.Tripwire}
}

func (o LineCrossingOptions) apply(req *rpc.StartCameraRequest) {
	req.Direction = string(o.Direction)
	if t := o.Tripwire; t != nil {
		req.Tripwire = &rpc.Tripwire{X1: t.X1, Y1: t.Y1, X2: t.X2, Y2: t.Y2, Enabled: t.Enabled}
	}
}

// DecodePurposeOptions 校验用途与附带参数的组合
// 考勤用途的方向由用途本身决定，传入相反的方向视为错误
func DecodePurposeOptions(purpose, direction string, tripwire *camera.Tripwire) (PurposeOptions, error) {
	p, err := camera.ParsePurpose(purpose)
	if err != nil {
		return nil, reason.ErrBadRequest.Withf("%s", err.Error())
	}
	if tripwire != nil && p != camera.PurposeLineCrossing {
		return nil, reason.ErrBadRequest.Withf("tripwire is only valid for %s", camera.PurposeLineCrossing)
	}

	switch p {
	case camera.PurposeAttendanceEntry, camera.PurposeAttendanceExit:
		want := camera.DirectionEntry
		if p == camera.PurposeAttendanceExit {
			want = camera.DirectionExit
		}
		if direction != "" && camera.Direction(direction) != want {
			return nil, reason.ErrBadRequest.Withf("purpose %s implies direction %s", p, want)
		}
		return AttendanceOptions{Direction: want}, nil
	case camera.PurposeLineCrossing:
		d, err := camera.ParseDirection(direction)
		if err != nil {
			return nil, reason.ErrBadRequest.Withf("%s", err.Error())
		}
		if tripwire != nil {
			if err := tripwire.Validate(); err != nil {
				return nil, reason.ErrBadRequest.Withf("%s", err.Error())
			}
		}
		return LineCrossingOptions{Direction: d, Tripwire: tripwire}, nil
	}

	if direction != "" {
		return nil, reason.ErrBadRequest.Withf("direction is not valid for %s", p)
	}
	switch p {
	case camera.PurposePeopleSearch:
		return PeopleSearchOptions{}, nil
	case camera.PurposeLPR:
		return LPROptions{}, nil
	}
	return DetectionOptions{}, nil
}

// OptionsFromCamera 由已持久化的摄像头还原启动参数
func OptionsFromCamera(cam *camera.Camera) PurposeOptions {
	switch cam.Purpose {
	case camera.PurposeAttendanceEntry:
		return AttendanceOptions{Direction: camera.DirectionEntry}
	case camera.PurposeAttendanceExit:
		return AttendanceOptions{Direction: camera.DirectionExit}
	case camera.PurposeLineCrossing:
		d := cam.Direction
		if d == "" {
			d = camera.DirectionEntry
		}
		return LineCrossingOptions{Direction: d, Tripwire: cam.Tripwire}
	case camera.PurposePeopleSearch:
		return PeopleSearchOptions{}
	case camera.PurposeLPR:
		return LPROptions{}
	}
	return DetectionOptions{}
}
