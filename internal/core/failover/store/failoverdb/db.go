package failoverdb

import (
	"github.com/gowvp/camcore/internal/core/failover"
	"gorm.io/gorm"
)

var _ failover.Storer = DB{}

// DB Related business namespaces
type DB struct {
	db *gorm.DB
}

// NewDB instance object
func NewDB(db *gorm.DB) DB {
	return DB{db: db}
}

// Server Get business instance
func (d DB) Server() failover.ServerStorer {
	return Server(d)
}

// AutoMigrate sync database
func (d DB) AutoMigrate(ok bool) DB {
	if !ok {
		return d
	}
	if err := d.db.AutoMigrate(
		new(failover.Server),
	); err != nil {
		panic(err)
	}
	return d
}
