package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupConfigWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "config.toml")

	bc, err := SetupConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, bc.Failover.Interval.Duration())
	assert.Equal(t, RoleStandalone, bc.Sync.Role)
	assert.NotEmpty(t, bc.Sync.InstanceID)

	// 再次读取时实例标识保持不变
	again, err := SetupConfig(path)
	require.NoError(t, err)
	assert.Equal(t, bc.Sync.InstanceID, again.Sync.InstanceID)
}

func TestSetupConfigEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[Sync]
Role = "central"
Key = "from-file"
Interval = "15s"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CAMCORE_MINIO_SECRET_KEY=dotenv-secret\n"), 0o644))
	t.Setenv("CAMCORE_SYNC_KEY", "from-env")

	bc, err := SetupConfig(path)
	require.NoError(t, err)
	assert.Equal(t, RoleCentral, bc.Sync.Role)
	assert.Equal(t, "from-env", bc.Sync.Key)
	assert.Equal(t, 15*time.Second, bc.Sync.Interval.Duration())
	assert.Equal(t, "dotenv-secret", bc.MinIO.SecretKey)
	// 未出现在文件中的字段保留默认值
	assert.Equal(t, 3, bc.Failover.OfflineAfter)
	t.Cleanup(func() { os.Unsetenv("CAMCORE_MINIO_SECRET_KEY") })
}

func TestSetupConfigRejectsBadRole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[Sync]\nRole = \"edge\"\n"), 0o644))

	_, err := SetupConfig(path)
	assert.Error(t, err)
}

func TestSatelliteNeedsCentralURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[Sync]\nRole = \"satellite\"\n"), 0o644))

	_, err := SetupConfig(path)
	assert.Error(t, err)
}
