package sitesyncdb

import (
	"context"

	"github.com/gowvp/camcore/internal/core/sitesync"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/web"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ sitesync.RemoteStorer = Remote{}

const batchSize = 200

// Remote Related business namespaces
type Remote DB

// NewRemote instance object
func NewRemote(db *gorm.DB) Remote {
	return Remote{db: db}
}

// Apply implements sitesync.RemoteStorer.
func (d Remote) Apply(ctx context.Context, inst *sitesync.RemoteInstance, cams []*sitesync.RemoteCamera, events []*sitesync.RemoteEvent) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "instance_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"branch_name", "branch_address", "organization_name", "last_sync_at", "updated_at"}),
		}).Create(inst).Error; err != nil {
			return err
		}
		// 冲突更新时并非所有驱动都回填主键
		var row sitesync.RemoteInstance
		if err := tx.Select("id").Where("instance_id = ?", inst.InstanceID).Take(&row).Error; err != nil {
			return err
		}
		inst.ID = row.ID

		if len(cams) > 0 {
			for _, c := range cams {
				c.ID = 0
				c.RemoteInstanceID = inst.ID
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "remote_instance_id"}, {Name: "original_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "purpose", "status", "is_monitoring", "updated_at"}),
			}).CreateInBatches(cams, batchSize).Error; err != nil {
				return err
			}
		}

		if len(events) > 0 {
			for _, e := range events {
				e.ID = 0
				e.RemoteInstanceID = inst.ID
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "remote_instance_id"}, {Name: "original_id"}},
				DoNothing: true,
			}).CreateInBatches(events, batchSize).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// FindInstances implements sitesync.RemoteStorer.
func (d Remote) FindInstances(ctx context.Context) ([]*sitesync.RemoteInstance, error) {
	items := make([]*sitesync.RemoteInstance, 0, 8)
	_, err := orm.FindWithContext(ctx, d.db, &items, web.NewPagerFilterMaxSize(), orm.OrderBy("branch_name ASC, id ASC"))
	return items, err
}

// Counts implements sitesync.RemoteStorer.
func (d Remote) Counts(ctx context.Context) (sitesync.RemoteCounts, error) {
	var out sitesync.RemoteCounts
	var err error
	if out.Cameras, err = orm.CountWithContext[sitesync.RemoteCamera](ctx, d.db); err != nil {
		return out, err
	}
	out.Events, err = orm.CountWithContext[sitesync.RemoteEvent](ctx, d.db)
	return out, err
}
