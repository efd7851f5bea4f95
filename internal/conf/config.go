package conf

import (
	"time"
)

type Bootstrap struct {
	Server    Server    `comment:"服务配置"`
	Data      Data      `comment:"数据存储"`
	Log       Log       `comment:"日志"`
	Monitor   Monitor   `comment:"分析后端路由"`
	Recording Recording `comment:"录像"`
	Event     Event     `comment:"分析事件"`
	Relay     Relay     `comment:"低延迟转发 (go2rtc)"`
	Failover  Failover  `comment:"应用服务器健康监测"`
	Sync      Sync      `comment:"分支机构同步"`
	MQTT      MQTT      `comment:"MQTT 状态推送，Broker 为空则不启用"`
	MinIO     MinIO     `comment:"录像归档，Endpoint 为空则不启用"`

	Debug        bool   `toml:"-"`
	BuildVersion string `toml:"-"`
	ConfigDir    string `toml:"-"`
	ConfigPath   string `toml:"-"`
}

type Server struct {
	HTTP HTTP `comment:"HTTP 服务"`
}

type HTTP struct {
	Port      int      `comment:"监听端口"`
	Timeout   Duration `comment:"读写超时"`
	AccessLog bool     `comment:"是否输出访问日志"`
}

type Data struct {
	Database Database
}

type Database struct {
	Dsn             string   `comment:"sqlite 文件路径，或 postgres:// / mysql 连接串"`
	MaxIdleConns    int32    `comment:"最大空闲连接数"`
	MaxOpenConns    int32    `comment:"最大连接数"`
	ConnMaxLifetime Duration `comment:"连接最大存活时间"`
	SlowThreshold   Duration `comment:"慢查询阈值"`
}

type Log struct {
	Dir          string   `comment:"日志目录"`
	Level        string   `comment:"debug/info/warn/error"`
	MaxAge       Duration `comment:"日志保留时间"`
	RotationTime Duration `comment:"日志切割周期"`
}

// Monitor 各用途对应的分析后端
type Monitor struct {
	DetectionURL      string   `comment:"detection 用途"`
	AttendanceURL     string   `comment:"attendance_entry/attendance_exit/people_search 用途"`
	LPRURL            string   `comment:"lpr 用途"`
	LineCrossingURL   string   `comment:"line_crossing 用途"`
	Timeout           Duration `comment:"请求后端超时，建议 3~5s"`
	ReconcileInterval Duration `comment:"与后端对账的周期，0 表示不对账"`
	Bootstrap         bool     `comment:"启动时恢复 isMonitoring=true 的摄像头"`
}

type Recording struct {
	Disabled             bool     `comment:"关闭录像"`
	StorageDir           string   `comment:"录像存储目录"`
	FFmpegPath           string   `comment:"ffmpeg 可执行文件"`
	SegmentSeconds       int      `comment:"切片时长（秒）"`
	RestartDelay         Duration `comment:"ffmpeg 异常退出后的重启间隔"`
	DefaultRetentionDays int      `comment:"摄像头未设置保留天数时使用"`
	RetentionInterval    Duration `comment:"保留策略执行周期"`
	DiskUsageThreshold   float64  `comment:"磁盘使用率超过该百分比时删除最旧录像，0 表示不检查"`
}

type Event struct {
	RetainDays int `comment:"事件保留天数，0 表示永久保留"`
}

type Relay struct {
	Kind    string   `comment:"go2rtc/lalmax"`
	URL     string   `comment:"转发服务地址，为空则不注册"`
	Secret  string   `comment:"lalmax 接口鉴权，可用环境变量 CAMCORE_RELAY_SECRET 覆盖"`
	Timeout Duration `comment:"请求超时"`
}

type Failover struct {
	Interval      Duration `comment:"探测周期"`
	Timeout       Duration `comment:"单次探测超时"`
	HealthPath    string   `comment:"健康检查路径"`
	DegradedAfter int      `comment:"连续失败多少次标记为 degraded"`
	OfflineAfter  int      `comment:"连续失败多少次标记为 offline"`
	HistoryCap    int      `comment:"保存的探测记录数"`
	HistoryView   int      `comment:"接口返回的探测记录数"`
}

type Sync struct {
	Role             string   `comment:"central/satellite/standalone"`
	InstanceID       string   `comment:"本实例标识，为空时自动生成"`
	BranchName       string   `comment:"分支名称"`
	BranchAddress    string   `comment:"分支地址"`
	OrganizationName string   `comment:"组织名称"`
	CentralURL       string   `comment:"中心节点地址 (satellite)"`
	Key              string   `comment:"预共享密钥，可用环境变量 CAMCORE_SYNC_KEY 覆盖"`
	Interval         Duration `comment:"推送周期 (satellite)"`
	Timeout          Duration `comment:"推送超时"`
	BatchSize        int      `comment:"单次推送的最大事件数"`
	OnlineWindow     Duration `comment:"超过该时长未同步的分支视为离线"`
	StatsTTL         Duration `comment:"统计数据缓存时长"`
	PushRateLimit    float64  `comment:"中心节点每秒允许的推送次数（按来源 IP）"`
}

type MQTT struct {
	Broker      string `comment:"tcp://host:1883"`
	ClientID    string
	Username    string
	Password    string `comment:"可用环境变量 CAMCORE_MQTT_PASSWORD 覆盖"`
	TopicPrefix string
}

type MinIO struct {
	Endpoint  string
	AccessKey string `comment:"可用环境变量 CAMCORE_MINIO_ACCESS_KEY 覆盖"`
	SecretKey string `comment:"可用环境变量 CAMCORE_MINIO_SECRET_KEY 覆盖"`
	Bucket    string
	UseSSL    bool
}

const (
	RoleCentral    = "central"
	RoleSatellite  = "satellite"
	RoleStandalone = "standalone"
)

// DefaultConfig 默认配置
func DefaultConfig() Bootstrap {
	return Bootstrap{
		Server: Server{
			HTTP: HTTP{Port: 15123, Timeout: Duration(60 * time.Second), AccessLog: true},
		},
		Data: Data{
			Database: Database{
				Dsn:             "configs/data.db",
				MaxIdleConns:    10,
				MaxOpenConns:    50,
				ConnMaxLifetime: Duration(6 * time.Hour),
				SlowThreshold:   Duration(200 * time.Millisecond),
			},
		},
		Log: Log{
			Dir:          "configs/logs",
			Level:        "info",
			MaxAge:       Duration(7 * 24 * time.Hour),
			RotationTime: Duration(24 * time.Hour),
		},
		Monitor: Monitor{
			DetectionURL:      "http://127.0.0.1:8001",
			AttendanceURL:     "http://127.0.0.1:8002",
			LPRURL:            "http://127.0.0.1:8003",
			LineCrossingURL:   "http://127.0.0.1:8004",
			Timeout:           Duration(4 * time.Second),
			ReconcileInterval: Duration(5 * time.Minute),
			Bootstrap:         true,
		},
		Recording: Recording{
			StorageDir:           "recordings",
			FFmpegPath:           "ffmpeg",
			SegmentSeconds:       6,
			RestartDelay:         Duration(5 * time.Second),
			DefaultRetentionDays: 7,
			RetentionInterval:    Duration(24 * time.Hour),
			DiskUsageThreshold:   95,
		},
		Event: Event{RetainDays: 30},
		Relay: Relay{
			Kind:    "go2rtc",
			URL:     "http://127.0.0.1:1984",
			Timeout: Duration(3 * time.Second),
		},
		Failover: Failover{
			Interval:      Duration(30 * time.Second),
			Timeout:       Duration(5 * time.Second),
			HealthPath:    "/health",
			DegradedAfter: 1,
			OfflineAfter:  3,
			HistoryCap:    50,
			HistoryView:   20,
		},
		Sync: Sync{
			Role:          RoleStandalone,
			Interval:      Duration(60 * time.Second),
			Timeout:       Duration(5 * time.Second),
			BatchSize:     500,
			OnlineWindow:  Duration(10 * time.Minute),
			StatsTTL:      Duration(30 * time.Second),
			PushRateLimit: 1,
		},
		MQTT: MQTT{
			ClientID:    "camcore",
			TopicPrefix: "camcore",
		},
		MinIO: MinIO{
			Bucket: "camcore-recordings",
		},
	}
}
