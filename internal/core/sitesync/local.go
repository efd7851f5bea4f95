package sitesync

import (
	"context"

	"github.com/gowvp/camcore/internal/core/camera"
	"github.com/gowvp/camcore/internal/core/event"
	"github.com/ixugo/goddd/pkg/web"
)

var _ LocalSource = Local{}

// Local 以本地摄像头与事件作为同步数据源
type Local struct {
	cameras camera.Core
	events  event.Core
}

func NewLocal(cameras camera.Core, events event.Core) Local {
	return Local{cameras: cameras, events: events}
}

// Cameras implements LocalSource.
func (l Local) Cameras(ctx context.Context) ([]PushCamera, error) {
	out := make([]PushCamera, 0, 16)
	in := camera.FindCameraInput{PagerFilter: web.PagerFilter{Page: 1, Size: 1000}}
	for {
		items, _, err := l.cameras.FindCameras(ctx, &in)
		if err != nil {
			return nil, err
		}
		for _, cam := range items {
			out = append(out, PushCamera{
				OriginalID:   cam.ID,
				Name:         cam.Name,
				Purpose:      string(cam.Purpose),
				Status:       string(cam.Status),
				IsMonitoring: cam.IsMonitoring,
			})
		}
		if len(items) < in.Size {
			return out, nil
		}
		in.Page++
	}
}

// EventsAfter implements LocalSource.
func (l Local) EventsAfter(ctx context.Context, afterID int64, limit int) ([]PushEvent, error) {
	items, err := l.events.FindAfter(ctx, afterID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]PushEvent, 0, len(items))
	for _, e := range items {
		out = append(out, PushEvent{
			OriginalID: e.ID,
			CameraID:   e.CameraID,
			Type:       e.Type,
			Label:      e.Label,
			Confidence: e.Confidence,
			Detail:     e.Detail,
			OccurredAt: e.OccurredAt,
		})
	}
	return out, nil
}

// Counts implements LocalSource.
func (l Local) Counts(ctx context.Context) (LocalCounts, error) {
	cams, err := l.cameras.Counts(ctx)
	if err != nil {
		return LocalCounts{}, err
	}
	n, err := l.events.Count(ctx)
	if err != nil {
		return LocalCounts{}, err
	}
	return LocalCounts{Cameras: cams.Total, Monitoring: cams.Monitoring, Events: n}, nil
}
