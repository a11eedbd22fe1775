// 包 config：从环境变量与可选的 .env 文件加载服务配置
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Shapes     ShapesConfig
	Map        MapConfig
	MeetJeStad MeetJeStadConfig
	Session    SessionConfig
}

// ServerConfig: RateLimitQPS applies only when RateLimitEnabled is set.
type ServerConfig struct {
	Addr             string
	APIBase          string
	RateLimitEnabled bool
	RateLimitQPS     int
}

// DatabaseConfig: Driver is postgres, sqlite or none.
type DatabaseConfig struct {
	Driver       string
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	SQLitePath   string
}

type RedisConfig struct {
	Enable   bool
	Host     string
	Port     string
	Password string
	DB       int
}

// ShapesConfig: Source is dir (GeoJSON files under Dir) or sql (region_shapes table).
type ShapesConfig struct {
	Source       string
	Dir          string
	Municipality string
	CacheTTL     time.Duration
}

type MapConfig struct {
	OverlayPath string
	CenterLat   float64
	CenterLon   float64
	Zoom        float64
}

type MeetJeStadConfig struct {
	BaseURL string
	Timeout time.Duration
	Window  time.Duration
	Retries int
}

type SessionConfig struct {
	IdleTTL time.Duration
}

// Load：读取 .env（文件缺失不报错）并从环境变量填充 Config
// 约束：数值解析失败时回退默认值；最后统一 Validate
func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))

	c := &Config{
		Server: ServerConfig{
			Addr:             getEnv("ADDR", ":8080"),
			APIBase:          getEnv("API_BASE", "/api"),
			RateLimitEnabled: getBoolEnv("RATE_LIMIT_ENABLED", false),
			RateLimitQPS:     getIntEnv("RATE_LIMIT_QPS", 200),
		},
		Database: DatabaseConfig{
			Driver:       strings.ToLower(getEnv("DB_DRIVER", "none")),
			Host:         getEnv("PG_HOST", "localhost"),
			Port:         getEnv("PG_PORT", "5432"),
			User:         getEnv("PG_USER", "postgres"),
			Password:     getEnv("PG_PASSWORD", ""),
			Name:         getEnv("PG_DB", "regiokaart"),
			SSLMode:      getEnv("PG_SSLMODE", "disable"),
			MaxOpenConns: getIntEnv("PG_MAX_OPEN_CONNS", 20),
			MaxIdleConns: getIntEnv("PG_MAX_IDLE_CONNS", 10),
			SQLitePath:   getEnv("SQLITE_PATH", filepath.Join("data", "regiokaart.db")),
		},
		Redis: RedisConfig{
			Enable:   getBoolEnv("REDIS_ENABLE", false),
			Host:     getEnv("REDIS_HOST", "127.0.0.1"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASS", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Shapes: ShapesConfig{
			Source:       strings.ToLower(getEnv("SHAPES_SOURCE", "dir")),
			Dir:          getEnv("SHAPES_DIR", filepath.Join("data", "shapes")),
			Municipality: getEnv("MUNICIPALITY", "Tilburg"),
			CacheTTL:     getDurationEnv("SHAPE_CACHE_TTL", 24*time.Hour),
		},
		Map: MapConfig{
			OverlayPath: getEnv("OVERLAY_PATH", filepath.Join("data", "overlays", "wegen_spoor.json")),
			CenterLat:   getFloatEnv("MAP_CENTER_LAT", 51.57),
			CenterLon:   getFloatEnv("MAP_CENTER_LON", 5.07),
			Zoom:        getFloatEnv("MAP_ZOOM", 11.5),
		},
		MeetJeStad: MeetJeStadConfig{
			BaseURL: getEnv("MJS_BASE_URL", "https://meetjestad.net/data/"),
			Timeout: getDurationEnv("MJS_TIMEOUT", 10*time.Second),
			Window:  getDurationEnv("MJS_WINDOW", time.Hour),
			Retries: getIntEnv("MJS_RETRIES", 3),
		},
		Session: SessionConfig{
			IdleTTL: getDurationEnv("SESSION_IDLE_TTL", 2*time.Hour),
		},
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return c, nil
}

// Validate：校验枚举类配置与相互依赖的开关
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite", "none":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres, sqlite or none, got %q", c.Database.Driver)
	}
	switch c.Shapes.Source {
	case "dir":
	case "sql":
		if c.Database.Driver == "none" {
			return fmt.Errorf("SHAPES_SOURCE=sql requires DB_DRIVER postgres or sqlite")
		}
	default:
		return fmt.Errorf("SHAPES_SOURCE must be dir or sql, got %q", c.Shapes.Source)
	}
	if c.Server.RateLimitEnabled && c.Server.RateLimitQPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_QPS must be positive when RATE_LIMIT_ENABLED is set")
	}
	if c.Session.IdleTTL <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be positive")
	}
	return nil
}

// PostgresDSN builds the lib/pq connection URL.
func (d DatabaseConfig) PostgresDSN() string {
	dsn := "postgres://" + d.User
	if d.Password != "" {
		dsn += ":" + d.Password
	}
	return dsn + "@" + d.Host + ":" + d.Port + "/" + d.Name + "?sslmode=" + d.SSLMode
}

func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
