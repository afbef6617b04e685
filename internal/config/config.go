package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// RedisConfig Redis配置（本地持久状态：离线队列、通知偏好缓存、推送Token）
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置（实时变更流）
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// BackendConfig 托管后端RPC配置
type BackendConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// 幂等调用的重试参数
	RetryCount      int
	RetryBaseDelay  time.Duration
	RetryMultiplier float64
}

// Config WhoseHouse客户端配置
type Config struct {
	Backend BackendConfig
	Redis   RedisConfig
	MQTT    MQTTConfig

	App struct {
		// 深链接URI scheme，如 whosehouse://child/access/{token}
		DeepLinkScheme string
		// 本地存储键前缀
		StoragePrefix string
	}

	Messaging struct {
		TypingThrottle time.Duration
		TypingAutoStop time.Duration
		TypingExpiry   time.Duration
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
// 后端URL和API Key缺失是唯一致命的启动错误：宁可拒绝启动，也不半配置运行
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Backend.BaseURL = os.Getenv("BACKEND_URL")
	cfg.Backend.APIKey = os.Getenv("BACKEND_API_KEY")
	if cfg.Backend.BaseURL == "" || cfg.Backend.APIKey == "" {
		return nil, fmt.Errorf("BACKEND_URL and BACKEND_API_KEY are required")
	}
	cfg.Backend.Timeout = getEnvDuration("BACKEND_TIMEOUT", 30*time.Second)
	cfg.Backend.RetryCount = getEnvInt("BACKEND_RETRY_COUNT", 3)
	cfg.Backend.RetryBaseDelay = getEnvDuration("BACKEND_RETRY_BASE_DELAY", 500*time.Millisecond)
	cfg.Backend.RetryMultiplier = 2.0

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "whosehouse-agent")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1

	cfg.App.DeepLinkScheme = getEnv("DEEP_LINK_SCHEME", "whosehouse")
	cfg.App.StoragePrefix = getEnv("STORAGE_PREFIX", "whosehouse")

	cfg.Messaging.TypingThrottle = getEnvDuration("TYPING_THROTTLE", time.Second)
	cfg.Messaging.TypingAutoStop = getEnvDuration("TYPING_AUTO_STOP", 5*time.Second)
	cfg.Messaging.TypingExpiry = getEnvDuration("TYPING_EXPIRY", 10*time.Second)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
