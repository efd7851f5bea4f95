package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Duration 以 "30s" 形式出现在配置文件中
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// SetupConfig 读取配置文件，文件不存在时写出默认配置
// 同目录下的 .env 会先被加载，环境变量优先级高于配置文件
func SetupConfig(path string) (*Bootstrap, error) {
	dir := filepath.Dir(path)
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	bc := DefaultConfig()
	bc.ConfigDir = dir
	bc.ConfigPath = path

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := WriteConfig(&bc, path); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := toml.Unmarshal(b, &bc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	applyEnv(&bc)
	if err := bc.validate(); err != nil {
		return nil, err
	}
	if bc.Sync.InstanceID == "" {
		bc.Sync.InstanceID = uuid.NewString()
		// 回写，保证重启后实例标识不变
		if err := WriteConfig(&bc, path); err != nil {
			return nil, err
		}
	}
	return &bc, nil
}

// WriteConfig 以 toml 格式写出配置
func WriteConfig(bc *Bootstrap, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := toml.Marshal(bc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func applyEnv(bc *Bootstrap) {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&bc.Sync.Key, "CAMCORE_SYNC_KEY")
	set(&bc.MinIO.AccessKey, "CAMCORE_MINIO_ACCESS_KEY")
	set(&bc.MinIO.SecretKey, "CAMCORE_MINIO_SECRET_KEY")
	set(&bc.MQTT.Password, "CAMCORE_MQTT_PASSWORD")
	set(&bc.Relay.Secret, "CAMCORE_RELAY_SECRET")
	set(&bc.Data.Database.Dsn, "CAMCORE_DSN")
	if os.Getenv("CAMCORE_DEBUG") == "true" {
		bc.Debug = true
	}
}

func (bc *Bootstrap) validate() error {
	if !slices.Contains([]string{RoleCentral, RoleSatellite, RoleStandalone}, bc.Sync.Role) {
		return fmt.Errorf("sync.role must be one of central/satellite/standalone, got %q", bc.Sync.Role)
	}
	if bc.Sync.Role == RoleSatellite && bc.Sync.CentralURL == "" {
		return fmt.Errorf("sync.centralurl is required for satellite role")
	}
	f := bc.Failover
	if f.DegradedAfter < 1 || f.OfflineAfter < f.DegradedAfter {
		return fmt.Errorf("failover thresholds invalid: degraded=%d offline=%d", f.DegradedAfter, f.OfflineAfter)
	}
	if f.HistoryCap < 1 || f.HistoryView < 1 {
		return fmt.Errorf("failover history sizes must be positive")
	}
	if bc.Relay.URL != "" && !slices.Contains([]string{"", "go2rtc", "lalmax"}, bc.Relay.Kind) {
		return fmt.Errorf("relay.kind must be go2rtc or lalmax, got %q", bc.Relay.Kind)
	}
	if t := bc.Monitor.Timeout.Duration(); t <= 0 || t > 30*time.Second {
		return fmt.Errorf("monitor.timeout out of range: %s", t)
	}
	return nil
}
