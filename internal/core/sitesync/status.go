package sitesync

import (
	"context"
	"fmt"

	"github.com/gowvp/camcore/internal/conf"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/patrickmn/go-cache"
)

// StatusOutput GET /sync/status，字段按角色填充
type StatusOutput struct {
	Role       string `json:"role"`
	InstanceID string `json:"instance_id"`
	BranchName string `json:"branch_name,omitempty"`

	// satellite
	CentralURL string     `json:"central_url,omitempty"`
	Push       *PushState `json:"push,omitempty"`

	// central
	Instances []InstanceView `json:"instances,omitempty"`
	Online    int            `json:"online"`
	Offline   int            `json:"offline"`
}

// Status 同步状态
func (c *Core) Status(ctx context.Context) (*StatusOutput, error) {
	out := StatusOutput{
		Role:       c.cfg.Role,
		InstanceID: c.cfg.InstanceID,
		BranchName: c.cfg.BranchName,
	}
	switch c.cfg.Role {
	case conf.RoleSatellite:
		out.CentralURL = c.cfg.CentralURL
		s := c.PushState()
		out.Push = &s
	case conf.RoleCentral:
		items, err := c.Instances(ctx)
		if err != nil {
			return nil, err
		}
		out.Instances = items
		for _, v := range items {
			if v.Status == StatusOnline {
				out.Online++
			} else {
				out.Offline++
			}
		}
	}
	return &out, nil
}

// Stats 看板统计
// 只有中心节点且未按分支过滤时才合并镜像数据，结果缓存 StatsTTL
func (c *Core) Stats(ctx context.Context, in *StatsInput) (*Stats, error) {
	merge := c.cfg.Role == conf.RoleCentral && in.Branch == ""
	key := fmt.Sprintf("%s:%t", in.Branch, merge)
	if v, ok := c.stats.Get(key); ok {
		s := v.(Stats)
		return &s, nil
	}

	local, err := c.local.Counts(ctx)
	if err != nil {
		return nil, reason.ErrDB.Withf("local counts err[%s]", err.Error())
	}
	out := Stats{
		Role:       c.cfg.Role,
		Cameras:    local.Cameras,
		Monitoring: local.Monitoring,
		Events:     local.Events,
	}
	if merge {
		remote, err := c.store.Remote().Counts(ctx)
		if err != nil {
			return nil, reason.ErrDB.Withf("remote counts err[%s]", err.Error())
		}
		out.Cameras += remote.Cameras
		out.Events += remote.Events
		out.IncludesRemote = true
	}
	c.stats.Set(key, out, cache.DefaultExpiration)
	return &out, nil
}
