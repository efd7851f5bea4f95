package camera

import "github.com/ixugo/goddd/pkg/web"

type FindCameraInput struct {
	web.PagerFilter
	Purpose    Purpose `form:"purpose"`
	Monitoring *bool   `form:"monitoring"`
}

// Pager 未指定时默认每页 20 条，单页最多 1000 条
func (in *FindCameraInput) Pager() web.PagerFilter {
	p := in.PagerFilter
	if p.Size < 1 {
		p.Size = 20
	}
	p.Size = web.Limit(p.Size, 1, 1000)
	return p
}

type AddCameraInput struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Purpose       string    `json:"purpose"`
	StreamURL     string    `json:"stream_url"`
	Direction     string    `json:"direction"`
	Tripwire      *Tripwire `json:"tripwire"`
	RetentionDays int       `json:"retention_days"`
}

// PurposeConfig 切换用途时附带的参数
type PurposeConfig struct {
	Direction Direction
	Tripwire  *Tripwire
}
