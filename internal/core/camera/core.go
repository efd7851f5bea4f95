package camera

import (
	"context"

	"github.com/ixugo/goddd/pkg/orm"
)

// Storer data persistence
type Storer interface {
	Camera() CameraStorer
}

// CameraStorer Instantiation interface
type CameraStorer interface {
	Find(context.Context, *[]*Camera, orm.Pager, ...orm.QueryOption) (int64, error)
	Get(context.Context, *Camera, ...orm.QueryOption) error
	Add(context.Context, *Camera) error
	// Edit 在事务中读取记录并应用 fn，记录不存在时返回 gorm.ErrRecordNotFound
	Edit(context.Context, *Camera, func(*Camera) error, ...orm.QueryOption) error
	Count(context.Context) (Counts, error)
}

// Core business domain
type Core struct {
	store Storer
}

// NewCore create business domain
func NewCore(store Storer) Core {
	return Core{store: store}
}
