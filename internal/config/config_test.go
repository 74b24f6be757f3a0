package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	// 清除环境变量
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// 验证默认值
	assert.Equal(t, ":8080", cfg.HTTP.Addr)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, "postgres", cfg.Database.Password)
	assert.Equal(t, "babywatch", cfg.Database.Database)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "", cfg.Redis.Password)
	assert.Equal(t, 0, cfg.Redis.DB)

	assert.Equal(t, "http://localhost:8500", cfg.Classifier.HTTPAddress)
	assert.Equal(t, 10*time.Second, cfg.Classifier.Timeout)

	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "babywatch-ingest", cfg.MQTT.ClientID)
	assert.Equal(t, "babywatch/sensor", cfg.MQTT.Topic)

	assert.Equal(t, "uploads/audio", cfg.Upload.Dir)
	assert.Equal(t, 5*time.Second, cfg.WS.SendTimeout)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("DB_HOST", "test-host")
	os.Setenv("DB_NAME", "test-db")
	os.Setenv("REDIS_ADDR", "redis:6379")
	os.Setenv("CLASSIFIER_TIMEOUT", "3s")
	os.Setenv("MQTT_ENABLED", "true")
	os.Setenv("LOG_LEVEL", "debug")
	defer os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, "test-db", cfg.Database.Database)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 3*time.Second, cfg.Classifier.Timeout)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_YAMLOverride(t *testing.T) {
	os.Clearenv()

	yamlContent := `
http:
  addr: ":7070"
classifier:
  http_address: "http://inference:8500"
  timeout: 2s
upload:
  dir: /data/audio
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))
	os.Setenv("CONFIG_FILE", path)
	defer os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.Equal(t, "http://inference:8500", cfg.Classifier.HTTPAddress)
	assert.Equal(t, 2*time.Second, cfg.Classifier.Timeout)
	assert.Equal(t, "/data/audio", cfg.Upload.Dir)
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	os.Clearenv()
	os.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")
	defer os.Clearenv()

	cfg, err := Load()
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := &DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "secret",
		Database: "babywatch",
		SSLMode:  "disable",
	}

	dsn := cfg.DSN()
	assert.Equal(t, "host=localhost port=5432 user=postgres password=secret dbname=babywatch sslmode=disable", dsn)
}
