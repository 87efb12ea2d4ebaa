package infra

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config — корневая структура конфигурации клиента XDR-консоли.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	WS        WSConfig        `mapstructure:"ws"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Server    ServerConfig    `mapstructure:"server"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// APIConfig описывает REST-бэкенд.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`

	// Учетные данные для автологина демона (обычно из ENV)
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// WSConfig описывает канал live-обновлений.
type WSConfig struct {
	URL                  string        `mapstructure:"url"`
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts"`
	ReconnectDelay       time.Duration `mapstructure:"reconnect_delay"`
	HandshakeTimeout     time.Duration `mapstructure:"handshake_timeout"`
	PingInterval         time.Duration `mapstructure:"ping_interval"` // 0 — без keepalive
}

// GatewayConfig — клиентский лимитер и Circuit Breaker перед бэкендом.
type GatewayConfig struct {
	RateLimit float64 `mapstructure:"rate_limit"` // запросов в секунду, 0 — без лимита
	RateBurst int     `mapstructure:"rate_burst"`

	CBMaxRequests         uint32        `mapstructure:"cb_max_requests"`
	CBInterval            time.Duration `mapstructure:"cb_interval"`
	CBTimeout             time.Duration `mapstructure:"cb_timeout"`
	CBConsecutiveFailures uint32        `mapstructure:"cb_consecutive_failures"`
}

// StorageConfig выбирает бэкенд долговременного хранения сессии.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // memory, file, redis, postgres
	Path   string `mapstructure:"path"`   // для file
}

// RedisConfig описывает подключение к Redis.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DatabaseConfig описывает подключение к PostgreSQL.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

type DashboardConfig struct {
	StaleAfter      time.Duration `mapstructure:"stale_after"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// ServerConfig описывает локальный HTTP API состояния.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// API_BASE_URL=... перекроет api.base_url
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Файла нет — работаем на ENV и дефолтах
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://127.0.0.1:8000/api")
	v.SetDefault("api.timeout", 15*time.Second)
	// AutomaticEnv не видит ключи без дефолта при Unmarshal
	v.SetDefault("api.username", "")
	v.SetDefault("api.password", "")

	v.SetDefault("ws.url", "ws://127.0.0.1:8000/ws")
	v.SetDefault("ws.max_reconnect_attempts", 5)
	v.SetDefault("ws.reconnect_delay", 3*time.Second)
	v.SetDefault("ws.handshake_timeout", 10*time.Second)
	v.SetDefault("ws.ping_interval", 0)

	v.SetDefault("gateway.rate_limit", 50)
	v.SetDefault("gateway.rate_burst", 20)
	v.SetDefault("gateway.cb_max_requests", 3)
	v.SetDefault("gateway.cb_interval", 5*time.Second)
	v.SetDefault("gateway.cb_timeout", 30*time.Second)
	v.SetDefault("gateway.cb_consecutive_failures", 5)

	v.SetDefault("storage.driver", "file")
	v.SetDefault("storage.path", "./xdr-session.json")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 5)
	v.SetDefault("database.min_conns", 1)

	v.SetDefault("dashboard.stale_after", 30*time.Second)
	v.SetDefault("dashboard.refresh_interval", 10*time.Second)

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)

	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}
