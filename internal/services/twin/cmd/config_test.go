package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("HTTP_PORT", "")
	t.Setenv("MQTT_HOST", "")
	t.Setenv("INFLUX_URL", "")
	t.Setenv("CORS_ORIGINS", "")

	cfg, err := loadConfig([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")})
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.HTTPPort)
	assert.Equal(t, 50, cfg.AuditCapacity)
	assert.Equal(t, 100, cfg.HistorySize)
	assert.Equal(t, 2*time.Second, cfg.SendTimeout)
	assert.Equal(t, 10*time.Minute, cfg.CommandTTL)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:3001"}, cfg.AllowOrigins)
	assert.Equal(t, "sensor/reading/#", cfg.ReadingTopic)
	assert.Empty(t, cfg.MQTTHost)
	assert.Empty(t, cfg.InfluxURL)
}

func TestLoadConfig_EnvFileAndFlags(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "twin.env")
	require.NoError(t, os.WriteFile(envFile, []byte("TWIN_TEST_AUDIT=7\n"), 0o600))
	t.Setenv("AUDIT_CAPACITY", "12")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("WS_SEND_TIMEOUT", "750ms")
	t.Setenv("HISTORY_SIZE", "lots")

	cfg, err := loadConfig([]string{
		"--env-file", envFile,
		"--http-port", "9100",
		"--log-level", "debug",
		"--farm", "farm.yaml",
		"--grpc-port", "0",
	})
	require.NoError(t, err)
	t.Cleanup(func() { os.Unsetenv("TWIN_TEST_AUDIT") })

	assert.Equal(t, "7", os.Getenv("TWIN_TEST_AUDIT"))
	assert.Equal(t, 12, cfg.AuditCapacity)
	assert.Equal(t, 9100, cfg.HTTPPort, "flag wins over env")
	assert.Equal(t, 0, cfg.GRPCPort)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "farm.yaml", cfg.FarmFile)
	assert.Equal(t, 750*time.Millisecond, cfg.SendTimeout)
	assert.Equal(t, 100, cfg.HistorySize, "unparsable value falls back")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b ,"))
	assert.Empty(t, splitList(""))
}

func TestLoadConfig_BadFlag(t *testing.T) {
	_, err := loadConfig([]string{"--nope"})
	assert.Error(t, err)
}
