package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MaxIdle  int    `yaml:"max_idle"`
}

// DSN 获取数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ClassifierConfig 哭声识别服务配置（外部 HTTP 推理服务）
type ClassifierConfig struct {
	HTTPAddress string        `yaml:"http_address"` // 推理服务地址
	Timeout     time.Duration `yaml:"timeout"`      // 单次调用超时，超时按识别失败降级处理
}

// MQTTConfig MQTT 配置（ESP32 传感器数据接入）
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`   // 是否启用 MQTT 接入（默认 false）
	Broker   string `yaml:"broker"`    // Broker 地址（如 "tcp://localhost:1883"）
	ClientID string `yaml:"client_id"` // 客户端 ID
	Username string `yaml:"username"`  // 用户名（可选）
	Password string `yaml:"password"`  // 密码（可选）
	Topic    string `yaml:"topic"`     // 订阅主题
	QoS      byte   `yaml:"qos"`
}

// Config babywatch（HTTP API + 实时推送）配置
type Config struct {
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Classifier ClassifierConfig `yaml:"classifier"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Upload     struct {
		Dir string `yaml:"dir"` // 音频文件保存目录
	} `yaml:"upload"`
	WS struct {
		SendTimeout time.Duration `yaml:"send_timeout"` // 单连接推送超时，超时按投递失败处理
	} `yaml:"ws"`
	Auth struct {
		TokenTTL time.Duration `yaml:"token_ttl"` // 会话 Token 有效期
	} `yaml:"auth"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load 加载配置：先取环境变量（带默认值），再用可选的 YAML 文件覆盖
// CONFIG_FILE 指定 YAML 路径时，文件中的非零值覆盖环境变量
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "babywatch")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "20"), 20)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	// 哭声识别服务配置
	cfg.Classifier.HTTPAddress = getEnv("CLASSIFIER_HTTP_ADDRESS", "http://localhost:8500")
	cfg.Classifier.Timeout = parseDuration(getEnv("CLASSIFIER_TIMEOUT", "10s"), 10*time.Second)

	// MQTT 配置（默认禁用）
	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "babywatch-ingest")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "babywatch/sensor")
	cfg.MQTT.QoS = byte(parseInt(getEnv("MQTT_QOS", "1"), 1))

	cfg.Upload.Dir = getEnv("UPLOAD_DIR", "uploads/audio")
	cfg.WS.SendTimeout = parseDuration(getEnv("WS_SEND_TIMEOUT", "5s"), 5*time.Second)
	cfg.Auth.TokenTTL = parseDuration(getEnv("AUTH_TOKEN_TTL", "720h"), 720*time.Hour)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	// 可选 YAML 文件覆盖
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
