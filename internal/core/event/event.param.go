package event

import (
	"encoding/json"
	"time"

	"github.com/ixugo/goddd/pkg/web"
)

type FindEventInput struct {
	web.PagerFilter
	CameraID string    `form:"camera_id"`
	Type     string    `form:"type"`
	Since    time.Time `form:"since" time_format:"2006-01-02T15:04:05Z07:00"`
}

// Pager 未指定时默认每页 20 条，单页最多 500 条
func (in *FindEventInput) Pager() web.PagerFilter {
	p := in.PagerFilter
	if p.Size < 1 {
		p.Size = 20
	}
	p.Size = web.Limit(p.Size, 1, 500)
	return p
}

type AddEventInput struct {
	CameraID   string          `json:"camera_id" binding:"required"`
	Type       string          `json:"type"`
	Label      string          `json:"label"`
	Confidence float64         `json:"confidence"`
	Detail     json.RawMessage `json:"detail"`
	OccurredAt time.Time       `json:"occurred_at"`
}
