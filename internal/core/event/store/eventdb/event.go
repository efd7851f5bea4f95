package eventdb

import (
	"context"
	"time"

	"github.com/gowvp/camcore/internal/core/event"
	"github.com/ixugo/goddd/pkg/orm"
	"gorm.io/gorm"
)

var _ event.EventStorer = Event{}

// Event Related business namespaces
type Event DB

// NewEvent instance object
func NewEvent(db *gorm.DB) Event {
	return Event{db: db}
}

// Find implements event.EventStorer.
func (d Event) Find(ctx context.Context, bs *[]*event.Event, page orm.Pager, opts ...orm.QueryOption) (int64, error) {
	return orm.FindWithContext(ctx, d.db, bs, page, opts...)
}

// Add implements event.EventStorer.
func (d Event) Add(ctx context.Context, model *event.Event) error {
	return d.db.WithContext(ctx).Create(model).Error
}

// Count implements event.EventStorer.
func (d Event) Count(ctx context.Context, opts ...orm.QueryOption) (int64, error) {
	return orm.CountWithContext[event.Event](ctx, d.db, opts...)
}

// DeleteBefore implements event.EventStorer.
// 先取出一批 id 再删除，单次事务只涉及 limit 行
func (d Event) DeleteBefore(ctx context.Context, t time.Time, limit int) (int64, error) {
	db := d.db.WithContext(ctx)
	var ids []int64
	if err := db.Model(new(event.Event)).Where("occurred_at < ?", t).
		Order("id ASC").Limit(limit).Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res := db.Where("id IN ?", ids).Delete(new(event.Event))
	return res.RowsAffected, res.Error
}
