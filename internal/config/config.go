package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Драйверы хранилища
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	App         AppConfig
	DB          DBConfig
	Redis       RedisConfig
	Storage     StorageConfig
	Auth        AuthConfig
	RateLimit   RateLimitConfig
	Tracking    TrackingConfig
	Live        LiveConfig
	GeoIP       GeoIPConfig
	Kafka       KafkaConfig
	Maintenance MaintenanceConfig
}

type AppConfig struct {
	Port string
	Env  string
}

func (a AppConfig) IsDevelopment() bool {
	return a.Env == "development"
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type StorageConfig struct {
	Driver string // postgres | memory
}

type AuthConfig struct {
	APIKeys map[string]string // API ключ -> имя/описание
}

// RateLimitConfig настройки token bucket, защищающего эндпоинты дашборда
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// TrackingConfig настройки пути редиректа: лимит кликов, пороги классификатора,
// заголовки edge и пул воркеров записи
type TrackingConfig struct {
	ClickLimit      int64         // Редиректов на клиента за окно
	SuspiciousAbove int64         // Значение счётчика, выше которого клик подозрительный
	Window          time.Duration // Время жизни счётчика
	LinkCacheTTL    time.Duration
	IPHeader        string
	CountryHeader   string
	CityHeader      string
	Workers         int
	Buffer          int
}

type LiveConfig struct {
	AllowedOrigins []string
	PingInterval   time.Duration
	SendBuffer     int
}

type GeoIPConfig struct {
	Path string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Topic != ""
}

type MaintenanceConfig struct {
	SessionTTL time.Duration
	Schedule   string
}

func Load() (*Config, error) {
	return load(viper.New(), ".env")
}

func load(v *viper.Viper, file string) (*Config, error) {
	v.SetConfigFile(file)
	v.SetConfigType("env")
	v.AutomaticEnv()

	// .env необязателен, достаточно переменных окружения
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	var cfg Config
	cfg.App.Port = stringOr(v.GetString("APP_PORT"), "8080")
	cfg.App.Env = stringOr(v.GetString("APP_ENV"), "production")

	cfg.DB.Host = v.GetString("DB_HOST")
	cfg.DB.Port = stringOr(v.GetString("DB_PORT"), "5432")
	cfg.DB.User = v.GetString("DB_USER")
	cfg.DB.Password = v.GetString("DB_PASSWORD")
	cfg.DB.Name = v.GetString("DB_NAME")
	cfg.DB.SSLMode = stringOr(v.GetString("DB_SSLMODE"), "disable")

	cfg.Redis.Host = v.GetString("REDIS_HOST")
	cfg.Redis.Port = stringOr(v.GetString("REDIS_PORT"), "6379")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")

	cfg.Storage.Driver = strings.ToLower(stringOr(v.GetString("STORAGE_DRIVER"), DriverPostgres))
	if cfg.Storage.Driver != DriverPostgres && cfg.Storage.Driver != DriverMemory {
		return nil, errors.New("STORAGE_DRIVER must be postgres or memory")
	}

	// Формат: key1:name1,key2:name2
	cfg.Auth.APIKeys = parseAPIKeys(v.GetString("API_KEYS"))

	cfg.RateLimit.RequestsPerSecond = v.GetFloat64("RATE_LIMIT_RPS")
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 10
	}
	cfg.RateLimit.BurstSize = v.GetInt("RATE_LIMIT_BURST")
	if cfg.RateLimit.BurstSize == 0 {
		cfg.RateLimit.BurstSize = 20
	}

	cfg.Tracking.ClickLimit = v.GetInt64("CLICK_LIMIT")
	if cfg.Tracking.ClickLimit == 0 {
		cfg.Tracking.ClickLimit = 100
	}
	cfg.Tracking.SuspiciousAbove = v.GetInt64("CLICK_SUSPICIOUS_ABOVE")
	if cfg.Tracking.SuspiciousAbove == 0 {
		cfg.Tracking.SuspiciousAbove = 50
	}
	cfg.Tracking.Window = durationOr(v.GetDuration("CLICK_LIMIT_WINDOW"), time.Hour)
	cfg.Tracking.LinkCacheTTL = durationOr(v.GetDuration("LINK_CACHE_TTL"), time.Hour)
	cfg.Tracking.IPHeader = stringOr(v.GetString("EDGE_IP_HEADER"), "CF-Connecting-IP")
	cfg.Tracking.CountryHeader = stringOr(v.GetString("EDGE_COUNTRY_HEADER"), "CF-IPCountry")
	cfg.Tracking.CityHeader = stringOr(v.GetString("EDGE_CITY_HEADER"), "CF-Visitor")
	cfg.Tracking.Workers = v.GetInt("RECORDER_WORKERS")
	if cfg.Tracking.Workers == 0 {
		cfg.Tracking.Workers = 3
	}
	cfg.Tracking.Buffer = v.GetInt("RECORDER_BUFFER")
	if cfg.Tracking.Buffer == 0 {
		cfg.Tracking.Buffer = 1000
	}

	cfg.Live.AllowedOrigins = splitAndTrim(v.GetString("LIVE_ALLOWED_ORIGINS"))
	cfg.Live.PingInterval = durationOr(v.GetDuration("LIVE_PING_INTERVAL"), 15*time.Second)
	cfg.Live.SendBuffer = v.GetInt("LIVE_SEND_BUFFER")
	if cfg.Live.SendBuffer == 0 {
		cfg.Live.SendBuffer = 16
	}

	cfg.GeoIP.Path = v.GetString("GEOIP_DB_PATH")

	cfg.Kafka.Brokers = splitAndTrim(v.GetString("KAFKA_BROKERS"))
	cfg.Kafka.Topic = stringOr(v.GetString("KAFKA_TOPIC_CLICKS"), "click-events")

	cfg.Maintenance.SessionTTL = durationOr(v.GetDuration("SESSION_TTL"), 24*time.Hour)
	cfg.Maintenance.Schedule = stringOr(v.GetString("SESSION_PRUNE_SCHEDULE"), "*/15 * * * *")

	return &cfg, nil
}

// parseAPIKeys разбирает API ключи в формате "key1:name1,key2:name2"
func parseAPIKeys(raw string) map[string]string {
	keys := make(map[string]string)
	for _, pair := range splitAndTrim(raw) {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) == 2 {
			keys[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return keys
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(s, ",") {
		if pt := strings.TrimSpace(p); pt != "" {
			parts = append(parts, pt)
		}
	}
	return parts
}

func stringOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func durationOr(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
