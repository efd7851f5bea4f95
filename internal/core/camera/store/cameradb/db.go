package cameradb

import (
	"github.com/gowvp/camcore/internal/core/camera"
	"gorm.io/gorm"
)

var _ camera.Storer = DB{}

// DB Related business namespaces
type DB struct {
	db *gorm.DB
}

// NewDB instance object
func NewDB(db *gorm.DB) DB {
	return DB{db: db}
}

// Camera Get business instance
func (d DB) Camera() camera.CameraStorer {
	return Camera(d)
}

// AutoMigrate sync database
func (d DB) AutoMigrate(ok bool) DB {
	if !ok {
		return d
	}
	if err := d.db.AutoMigrate(
		new(camera.Camera),
	); err != nil {
		panic(err)
	}
	return d
}
