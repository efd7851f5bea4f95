package camera

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/gowvp/camcore/internal/errcode"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/ixugo/goddd/pkg/web"
)

// FindCameras Paginated search
func (c Core) FindCameras(ctx context.Context, in *FindCameraInput) ([]*Camera, int64, error) {
	query := orm.NewQuery(3).OrderBy("id ASC")
	if in.Purpose != "" {
		query.Where("purpose = ?", in.Purpose)
	}
	if in.Monitoring != nil {
		query.Where("is_monitoring = ?", *in.Monitoring)
	}
	pager := in.Pager()
	items := make([]*Camera, 0, pager.Limit())
	total, err := c.store.Camera().Find(ctx, &items, pager, query.Encode()...)
	if err != nil {
		return nil, 0, reason.ErrDB.Withf(`Find err[%s]`, err.Error())
	}
	return items, total, nil
}

// GetCamera Query a single object
func (c Core) GetCamera(ctx context.Context, id string) (*Camera, error) {
	var out Camera
	if err := c.store.Camera().Get(ctx, &out, orm.Where("id=?", id)); err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, errcode.ErrNotFound.Withf(`camera[%s] not found`, id)
		}
		return nil, reason.ErrDB.Withf(`Get err[%s]`, err.Error())
	}
	return &out, nil
}

// AddCamera 新增摄像头，外部平台已有记录时一般不会调用
func (c Core) AddCamera(ctx context.Context, in *AddCameraInput) (*Camera, error) {
	purpose := PurposeDetection
	if in.Purpose != "" {
		p, err := ParsePurpose(in.Purpose)
		if err != nil {
			return nil, reason.ErrBadRequest.Withf("%s", err.Error())
		}
		purpose = p
	}
	cam := Camera{
		ID:            strings.TrimSpace(in.ID),
		Name:          in.Name,
		Purpose:       purpose,
		StreamURL:     strings.TrimSpace(in.StreamURL),
		Status:        StatusOffline,
		RetentionDays: in.RetentionDays,
		Tripwire:      in.Tripwire,
	}
	if cam.ID == "" {
		cam.ID = uuid.NewString()
	}
	if in.Direction != "" {
		d, err := ParseDirection(in.Direction)
		if err != nil {
			return nil, reason.ErrBadRequest.Withf("%s", err.Error())
		}
		cam.Direction = d
	}
	if err := c.store.Camera().Add(ctx, &cam); err != nil {
		if orm.IsDuplicatedKey(err) {
			return nil, errcode.ErrConflict.Withf(`camera[%s] already exists`, cam.ID)
		}
		return nil, reason.ErrDB.Withf(`Add err[%s]`, err.Error())
	}
	return &cam, nil
}

// FindMonitoring 返回期望处于监控状态的摄像头
func (c Core) FindMonitoring(ctx context.Context) ([]*Camera, error) {
	items := make([]*Camera, 0, 8)
	_, err := c.store.Camera().Find(ctx, &items, web.NewPagerFilterMaxSize(),
		orm.Where("is_monitoring = ?", true), orm.OrderBy("id ASC"))
	if err != nil {
		return nil, reason.ErrDB.Withf(`FindMonitoring err[%s]`, err.Error())
	}
	return items, nil
}

// SetMonitoring 持久化监控意图与在线状态
func (c Core) SetMonitoring(ctx context.Context, id string, monitoring bool, status Status) error {
	var out Camera
	err := c.store.Camera().Edit(ctx, &out, func(b *Camera) error {
		b.IsMonitoring = monitoring
		b.Status = status
		return nil
	}, orm.Where("id=?", id))
	return c.editErr(id, err)
}

// SetPurpose 持久化新用途及其参数
func (c Core) SetPurpose(ctx context.Context, id string, purpose Purpose, cfg PurposeConfig) (*Camera, error) {
	var out Camera
	err := c.store.Camera().Edit(ctx, &out, func(b *Camera) error {
		b.Purpose = purpose
		b.Direction = cfg.Direction
		if cfg.Tripwire != nil {
			b.Tripwire = cfg.Tripwire
		}
		return nil
	}, orm.Where("id=?", id))
	if err := c.editErr(id, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// RetentionPolicies 返回每个摄像头的录像保留天数，未设置的不返回
func (c Core) RetentionPolicies(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int)
	in := FindCameraInput{PagerFilter: web.PagerFilter{Page: 1, Size: 1000}}
	for {
		items, _, err := c.FindCameras(ctx, &in)
		if err != nil {
			return nil, err
		}
		for _, cam := range items {
			if cam.RetentionDays > 0 {
				out[cam.ID] = cam.RetentionDays
			}
		}
		if len(items) < in.Size {
			return out, nil
		}
		in.Page++
	}
}

// Counts 摄像头数量统计
func (c Core) Counts(ctx context.Context) (Counts, error) {
	out, err := c.store.Camera().Count(ctx)
	if err != nil {
		return Counts{}, reason.ErrDB.Withf(`Count err[%s]`, err.Error())
	}
	return out, nil
}

func (c Core) editErr(id string, err error) error {
	if err == nil {
		return nil
	}
	if orm.IsErrRecordNotFound(err) {
		return errcode.ErrNotFound.Withf(`camera[%s] not found`, id)
	}
	return reason.ErrDB.Withf(`Edit err[%s]`, err.Error())
}
