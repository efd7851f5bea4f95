package eventdb

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gowvp/camcore/internal/core/event"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newSQLiteDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func TestEventStore(t *testing.T) {
	store := NewDB(newSQLiteDB(t)).AutoMigrate(true).Event()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := range 5 {
		e := event.Event{
			CameraID:   "cam-1",
			Type:       "detection",
			Label:      "person",
			OccurredAt: base.AddDate(0, 0, i),
		}
		require.NoError(t, store.Add(ctx, &e))
		assert.EqualValues(t, i+1, e.ID)
	}

	var items []*event.Event
	_, err := store.Find(ctx, &items, web.PagerFilter{Size: 2}, orm.Where("id > ?", 2), orm.OrderBy("id ASC"))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.EqualValues(t, 3, items[0].ID)
	assert.EqualValues(t, 4, items[1].ID)

	var found []*event.Event
	total, err := store.Find(ctx, &found, web.PagerFilter{Size: 2}, orm.Where("camera_id = ?", "cam-1"), orm.OrderBy("id DESC"))
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, found, 2)
	assert.EqualValues(t, 5, found[0].ID)

	n, err := store.DeleteBefore(ctx, base.AddDate(0, 0, 3), 2)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	n, err = store.DeleteBefore(ctx, base.AddDate(0, 0, 3), 2)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	count, err = store.Count(ctx, orm.Where("occurred_at >= ?", base.AddDate(0, 0, 4)))
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
