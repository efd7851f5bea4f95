package event

import (
	"context"
	"time"

	"github.com/gowvp/camcore/pkg/pubsub"
	"github.com/ixugo/goddd/pkg/orm"
)

// Storer data persistence
type Storer interface {
	Event() EventStorer
}

// EventStorer Instantiation interface
type EventStorer interface {
	Find(context.Context, *[]*Event, orm.Pager, ...orm.QueryOption) (int64, error)
	Add(context.Context, *Event) error
	Count(context.Context, ...orm.QueryOption) (int64, error)
	// DeleteBefore 删除 occurred_at 早于 t 的事件，最多 limit 条
	DeleteBefore(ctx context.Context, t time.Time, limit int) (int64, error)
}

// Core business domain
type Core struct {
	store  Storer
	broker *pubsub.Broker[Event]
	now    func() time.Time
}

type Option func(*Core)

// WithBroker 新事件写库后发布到总线
func WithBroker(b *pubsub.Broker[Event]) Option {
	return func(c *Core) {
		c.broker = b
	}
}

// NewCore create business domain
func NewCore(store Storer, opts ...Option) Core {
	c := Core{store: store, now: time.Now}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
