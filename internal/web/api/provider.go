package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/wire"
	"github.com/gowvp/camcore/internal/conf"
	"github.com/gowvp/camcore/internal/core/camera"
	"github.com/gowvp/camcore/internal/core/camera/store/cameradb"
	"github.com/gowvp/camcore/internal/core/event"
	"github.com/gowvp/camcore/internal/core/event/store/eventdb"
	"github.com/gowvp/camcore/internal/core/failover"
	"github.com/gowvp/camcore/internal/core/failover/store/failoverdb"
	"github.com/gowvp/camcore/internal/core/monitor"
	"github.com/gowvp/camcore/internal/core/recording"
	"github.com/gowvp/camcore/internal/core/recording/adapter"
	"github.com/gowvp/camcore/internal/core/sitesync"
	"github.com/gowvp/camcore/internal/core/sitesync/store/sitesyncdb"
	"github.com/gowvp/camcore/internal/core/sms"
	"github.com/gowvp/camcore/internal/rpc"
	"github.com/gowvp/camcore/pkg/pubsub"
	"gorm.io/gorm"
)

// ProviderSet is api providers.
var ProviderSet = wire.NewSet(
	wire.Struct(new(Usecase), "*"),
	NewStatusBus, NewEventBus,
	NewCameraCore, NewEventCore,
	NewRecordingCore, NewRegistry, NewBackendClient, NewMonitorCore,
	NewFailoverManager, NewSyncCore,
	NewCameraAPI, NewRecordingAPI, NewEventAPI, NewFailoverAPI, NewSyncAPI,
)

// Usecase 路由与后台任务共享的依赖
type Usecase struct {
	Conf *conf.Bootstrap

	StatusBus *pubsub.Broker[monitor.StatusChanged]
	EventBus  *pubsub.Broker[event.Event]
	Monitor   *monitor.Core
	Recording *recording.Core
	Registry  *sms.Registry
	Events    event.Core
	Failover  *failover.Manager
	Sync      *sitesync.Core

	CameraAPI    CameraAPI
	RecordingAPI RecordingAPI
	EventAPI     EventAPI
	FailoverAPI  FailoverAPI
	SyncAPI      SyncAPI
}

// NewHTTPHandler 生成Gin框架路由内容
func NewHTTPHandler(uc *Usecase) http.Handler {
	if !uc.Conf.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	g := gin.New()
	g.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"reason": "ErrNotFound", "msg": "来到了无人的荒漠"})
	})
	setupRouter(g, uc)
	return g
}

func NewStatusBus() *pubsub.Broker[monitor.StatusChanged] {
	return pubsub.NewBroker[monitor.StatusChanged](64)
}

func NewEventBus() *pubsub.Broker[event.Event] {
	return pubsub.NewBroker[event.Event](256)
}

func NewCameraCore(db *gorm.DB) camera.Core {
	return camera.NewCore(cameradb.NewDB(db).AutoMigrate(true))
}

func NewEventCore(db *gorm.DB, bus *pubsub.Broker[event.Event]) event.Core {
	return event.NewCore(eventdb.NewDB(db).AutoMigrate(true), event.WithBroker(bus))
}

// NewRecordingCore 配置了 MinIO 时过期录像先归档再删除
func NewRecordingCore(bc *conf.Bootstrap, cameras camera.Core) (*recording.Core, error) {
	opts := []recording.Option{
		recording.WithConfig(bc.Recording),
		recording.WithPolicySource(cameras),
	}
	archiver, err := adapter.NewMinIOArchiver(bc.MinIO)
	if err != nil {
		return nil, err
	}
	if archiver != nil {
		opts = append(opts, recording.WithArchiver(archiver))
	}
	return recording.NewCore(bc.Recording.StorageDir, opts...), nil
}

// NewRegistry 未配置转发服务时注册为空操作
func NewRegistry(bc *conf.Bootstrap) *sms.Registry {
	var driver sms.Driver
	switch {
	case bc.Relay.URL == "":
	case bc.Relay.Kind == sms.ProtocolLalmax:
		driver = sms.NewLalmaxDriver(bc.Relay.URL, bc.Relay.Secret, bc.Relay.Timeout.Duration())
	default:
		driver = sms.NewGo2RTCDriver(bc.Relay.URL, bc.Relay.Timeout.Duration())
	}
	return sms.NewRegistry(driver, sms.WithTimeout(bc.Relay.Timeout.Duration()))
}

func NewBackendClient(bc *conf.Bootstrap) *rpc.BackendClient {
	return rpc.NewBackendClient(bc.Monitor.Timeout.Duration())
}

func NewMonitorCore(bc *conf.Bootstrap, cameras camera.Core, backend *rpc.BackendClient, rec *recording.Core, reg *sms.Registry, bus *pubsub.Broker[monitor.StatusChanged]) *monitor.Core {
	return monitor.NewCore(cameras, backend, monitor.NewRoutes(bc.Monitor),
		monitor.WithRecorder(rec),
		monitor.WithRegistry(reg),
		monitor.WithBroker(bus),
		monitor.WithTimeout(bc.Monitor.Timeout.Duration()),
	)
}

// NewFailoverManager 创建并从数据库恢复注册表
func NewFailoverManager(bc *conf.Bootstrap, db *gorm.DB) (*failover.Manager, error) {
	m := failover.NewManager(failoverdb.NewDB(db).AutoMigrate(true), bc.Failover)
	if err := m.Load(context.Background()); err != nil {
		return nil, err
	}
	return m, nil
}

// NewSyncCore 只有中心节点需要镜像表
func NewSyncCore(bc *conf.Bootstrap, db *gorm.DB, cameras camera.Core, events event.Core) *sitesync.Core {
	var store sitesync.Storer
	if bc.Sync.Role == conf.RoleCentral {
		store = sitesyncdb.NewDB(db).AutoMigrate(true)
	}
	return sitesync.NewCore(bc.Sync, store, sitesync.NewLocal(cameras, events))
}
