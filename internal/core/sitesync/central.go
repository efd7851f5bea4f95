package sitesync

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/gowvp/camcore/internal/conf"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/jinzhu/copier"
)

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Apply 中心节点写入一次推送
// 实例与摄像头按唯一键更新，事件已存在时不做任何修改，重放同一批数据结果不变
func (c *Core) Apply(ctx context.Context, in *PushInput) (*PushOutput, error) {
	if c.cfg.Role != conf.RoleCentral {
		return nil, reason.ErrBadRequest.SetMsg("当前实例不是中心节点").Withf("role is %s", c.cfg.Role)
	}
	in.InstanceID = strings.TrimSpace(in.InstanceID)
	if err := in.normalize(); err != nil {
		return nil, reason.ErrBadRequest.Withf("%s", err.Error())
	}

	inst := RemoteInstance{
		InstanceID:       in.InstanceID,
		BranchName:       strings.TrimSpace(in.BranchName),
		BranchAddress:    strings.TrimSpace(in.BranchAddress),
		OrganizationName: strings.TrimSpace(in.OrganizationName),
		LastSyncAt:       c.now(),
	}
	cams := make([]*RemoteCamera, 0, len(in.Cameras))
	if err := copier.Copy(&cams, in.Cameras); err != nil {
		return nil, reason.ErrServer.Withf("copy cameras err[%s]", err.Error())
	}
	events := make([]*RemoteEvent, 0, len(in.Events))
	if err := copier.Copy(&events, in.Events); err != nil {
		return nil, reason.ErrServer.Withf("copy events err[%s]", err.Error())
	}

	if err := c.store.Remote().Apply(ctx, &inst, cams, events); err != nil {
		return nil, reason.ErrDB.Withf("Apply err[%s]", err.Error())
	}
	c.stats.Flush()
	c.log.InfoContext(ctx, "sync push applied",
		"instance_id", inst.InstanceID,
		"branch", inst.BranchName,
		"cameras", len(cams),
		"events", len(events),
	)
	return &PushOutput{OK: true, Accepted: Accepted{Cameras: len(cams), Events: len(events)}}, nil
}

// InstanceView 分支实例及其推算状态
type InstanceView struct {
	RemoteInstance
	Status Status `json:"status"`
}

// Instances 中心节点已知的分支
func (c *Core) Instances(ctx context.Context) ([]InstanceView, error) {
	items, err := c.store.Remote().FindInstances(ctx)
	if err != nil {
		return nil, reason.ErrDB.Withf("FindInstances err[%s]", err.Error())
	}
	now := c.now()
	out := make([]InstanceView, 0, len(items))
	for _, v := range items {
		out = append(out, InstanceView{
			RemoteInstance: *v,
			Status:         v.DerivedStatus(now, c.cfg.OnlineWindow.Duration()),
		})
	}
	return out, nil
}
