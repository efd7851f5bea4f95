package failoverdb

import (
	"context"

	"github.com/gowvp/camcore/internal/core/failover"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/web"
	"gorm.io/gorm"
)

var _ failover.ServerStorer = Server{}

// Server Related business namespaces
type Server DB

// NewServer instance object
func NewServer(db *gorm.DB) Server {
	return Server{db: db}
}

// List implements failover.ServerStorer.
func (d Server) List(ctx context.Context) ([]*failover.Server, error) {
	items := make([]*failover.Server, 0, 8)
	_, err := orm.FindWithContext(ctx, d.db, &items, web.NewPagerFilterMaxSize(), orm.OrderBy("created_at ASC"))
	return items, err
}

// Add implements failover.ServerStorer.
func (d Server) Add(ctx context.Context, s *failover.Server) error {
	return d.db.WithContext(ctx).Create(s).Error
}

// UpdateHealth implements failover.ServerStorer.
func (d Server) UpdateHealth(ctx context.Context, s *failover.Server) error {
	return d.db.WithContext(ctx).Model(&failover.Server{ID: s.ID}).
		Select("status", "consecutive_failures", "last_checked_at", "last_online_at", "history", "updated_at").
		Updates(s).Error
}

// UpdateRole implements failover.ServerStorer.
func (d Server) UpdateRole(ctx context.Context, id string, role failover.Role) error {
	res := d.db.WithContext(ctx).Model(new(failover.Server)).Where("id = ?", id).Update("role", role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete implements failover.ServerStorer.
func (d Server) Delete(ctx context.Context, id string) error {
	return orm.DeleteWithContext(ctx, d.db, new(failover.Server), orm.Where("id = ?", id))
}
