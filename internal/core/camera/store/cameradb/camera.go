package cameradb

import (
	"context"

	"github.com/gowvp/camcore/internal/core/camera"
	"github.com/ixugo/goddd/pkg/orm"
	"gorm.io/gorm"
)

var _ camera.CameraStorer = Camera{}

// Camera Related business namespaces
type Camera DB

// NewCamera instance object
func NewCamera(db *gorm.DB) Camera {
	return Camera{db: db}
}

// Find implements camera.CameraStorer.
func (d Camera) Find(ctx context.Context, bs *[]*camera.Camera, page orm.Pager, opts ...orm.QueryOption) (int64, error) {
	return orm.FindWithContext(ctx, d.db, bs, page, opts...)
}

// Get implements camera.CameraStorer.
func (d Camera) Get(ctx context.Context, model *camera.Camera, opts ...orm.QueryOption) error {
	return orm.FirstWithContext(ctx, d.db, model, opts...)
}

// Add implements camera.CameraStorer.
func (d Camera) Add(ctx context.Context, model *camera.Camera) error {
	return d.db.WithContext(ctx).Create(model).Error
}

// Edit implements camera.CameraStorer.
func (d Camera) Edit(ctx context.Context, model *camera.Camera, changeFn func(*camera.Camera) error, opts ...orm.QueryOption) error {
	return orm.UpdateWithContext2(ctx, d.db, model, changeFn, opts...)
}

// Count implements camera.CameraStorer.
func (d Camera) Count(ctx context.Context) (camera.Counts, error) {
	var out camera.Counts
	err := d.db.WithContext(ctx).Model(new(camera.Camera)).
		Select("COUNT(*) AS total, " +
			"COALESCE(SUM(CASE WHEN is_monitoring THEN 1 ELSE 0 END), 0) AS monitoring, " +
			"COALESCE(SUM(CASE WHEN status = 'online' THEN 1 ELSE 0 END), 0) AS online").
		Scan(&out).Error
	return out, err
}
