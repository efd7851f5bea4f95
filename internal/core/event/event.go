package event

import (
	"context"
	"strings"

	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/ixugo/goddd/pkg/web"
)

// FindEvents Paginated search
func (c Core) FindEvents(ctx context.Context, in *FindEventInput) ([]*Event, int64, error) {
	query := orm.NewQuery(4).OrderBy("id DESC")
	if in.CameraID != "" {
		query.Where("camera_id = ?", in.CameraID)
	}
	if in.Type != "" {
		query.Where("type = ?", in.Type)
	}
	if !in.Since.IsZero() {
		query.Where("occurred_at >= ?", in.Since)
	}
	pager := in.Pager()
	items := make([]*Event, 0, pager.Limit())
	total, err := c.store.Event().Find(ctx, &items, pager, query.Encode()...)
	if err != nil {
		return nil, 0, reason.ErrDB.Withf(`Find err[%s]`, err.Error())
	}
	return items, total, nil
}

// AddEvent 保存事件并发布，未指定发生时间时使用当前时间
func (c Core) AddEvent(ctx context.Context, in *AddEventInput) (*Event, error) {
	e := Event{
		CameraID:   strings.TrimSpace(in.CameraID),
		Type:       in.Type,
		Label:      in.Label,
		Confidence: in.Confidence,
		Detail:     in.Detail,
		OccurredAt: in.OccurredAt,
	}
	if e.CameraID == "" {
		return nil, reason.ErrBadRequest.SetMsg("camera_id 不能为空")
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = c.now()
	}
	if err := c.store.Event().Add(ctx, &e); err != nil {
		return nil, reason.ErrDB.Withf(`Add err[%s]`, err.Error())
	}
	if c.broker != nil {
		c.broker.Publish(e)
	}
	return &e, nil
}

// FindAfter 增量读取，供同步推送使用
func (c Core) FindAfter(ctx context.Context, afterID int64, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 500
	}
	items := make([]*Event, 0, limit)
	_, err := c.store.Event().Find(ctx, &items, web.PagerFilter{Size: limit},
		orm.Where("id > ?", afterID), orm.OrderBy("id ASC"))
	if err != nil {
		return nil, reason.ErrDB.Withf(`FindAfter err[%s]`, err.Error())
	}
	return items, nil
}

// Count 事件总数
func (c Core) Count(ctx context.Context) (int64, error) {
	n, err := c.store.Event().Count(ctx)
	if err != nil {
		return 0, reason.ErrDB.Withf(`Count err[%s]`, err.Error())
	}
	return n, nil
}
