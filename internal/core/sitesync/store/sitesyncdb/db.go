package sitesyncdb

import (
	"github.com/gowvp/camcore/internal/core/sitesync"
	"gorm.io/gorm"
)

var _ sitesync.Storer = DB{}

// DB Related business namespaces
type DB struct {
	db *gorm.DB
}

// NewDB instance object
func NewDB(db *gorm.DB) DB {
	return DB{db: db}
}

// Remote Get business instance
func (d DB) Remote() sitesync.RemoteStorer {
	return Remote(d)
}

// AutoMigrate sync database
func (d DB) AutoMigrate(ok bool) DB {
	if !ok {
		return d
	}
	if err := d.db.AutoMigrate(
		new(sitesync.RemoteInstance),
		new(sitesync.RemoteCamera),
		new(sitesync.RemoteEvent),
	); err != nil {
		panic(err)
	}
	return d
}
