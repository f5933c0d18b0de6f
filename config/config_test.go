package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeErrorMessage(t *testing.T) {
	fallback := "操作失败"
	testErr := errors.New("internal database error")

	// nil err 返回 fallback
	assert.Equal(t, fallback, SafeErrorMessage(nil, fallback))

	// release 模式返回 fallback，不暴露错误详情
	GlobalConfig = &Config{Server: ServerConfig{Mode: "release"}}
	defer func() { GlobalConfig = nil }()
	assert.Equal(t, fallback, SafeErrorMessage(testErr, fallback))

	// debug 模式返回 err.Error()
	GlobalConfig = &Config{Server: ServerConfig{Mode: "debug"}}
	assert.Equal(t, "internal database error", SafeErrorMessage(testErr, fallback))

	// GlobalConfig 为 nil 时返回 err.Error()（视为开发环境）
	GlobalConfig = nil
	assert.Equal(t, "internal database error", SafeErrorMessage(testErr, fallback))
}

func TestLoadConfig_Defaults(t *testing.T) {
	defer func() { GlobalConfig = nil }()

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 168, cfg.JWT.ExpireHours)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.ExpireTime)
	assert.Equal(t, 5*time.Minute, cfg.Monitor.Interval)
	assert.Equal(t, 4*time.Minute, cfg.Monitor.LockTTL)
	assert.Equal(t, "admin123", cfg.Seed.DefaultPassword)
	assert.Same(t, cfg, GlobalConfig)
}

func TestLoadConfig_ExternalFileAndEnv(t *testing.T) {
	defer func() { GlobalConfig = nil }()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "database:\n  driver: postgres\n  port: \"5432\"\nmonitor:\n  interval: 10m\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("BUGMARKET_JWT_SECRET", "from-env")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, 10*time.Minute, cfg.Monitor.Interval)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
}

func TestApplyDefaults_LockTTLShorterThanInterval(t *testing.T) {
	cfg := &Config{Monitor: MonitorConfig{Interval: time.Minute, LockTTL: 2 * time.Minute}}
	cfg.applyDefaults()
	assert.Less(t, cfg.Monitor.LockTTL, cfg.Monitor.Interval)
}
