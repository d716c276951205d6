package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config configuración global de la aplicación
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"db"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Log        LogConfig        `mapstructure:"log"`
	Attendance AttendanceConfig `mapstructure:"attendance"`
	Client     ClientConfig     `mapstructure:"client"`
}

// ServerConfig servidor HTTP
type ServerConfig struct {
	Port      int        `mapstructure:"port"`
	BasePath  string     `mapstructure:"base_path"`
	BodyLimit int64      `mapstructure:"body_limit"`
	CORS      CORSConfig `mapstructure:"cors"`
	RateLimit RateLimit  `mapstructure:"rate_limit"`
}

// CORSConfig orígenes permitidos
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// RateLimit límite de escrituras por IP
type RateLimit struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// DatabaseConfig PostgreSQL
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // minutos
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // minutos
}

// DSN cadena de conexión PostgreSQL
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis (lista de revocación, rate limit, cola remota)
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig verificación de tokens emitidos por el proveedor de identidad
type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// LogConfig registro
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// AttendanceConfig reglas del módulo de asistencia
type AttendanceConfig struct {
	// Timezone define el "día" de asistencia (fecha por defecto y listados del día).
	Timezone string `mapstructure:"timezone"`
	PageSize int    `mapstructure:"page_size"`
}

// Location resuelve la zona horaria configurada
func (c *AttendanceConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// ClientConfig cliente de asistencia (CLI / terminal de campo)
type ClientConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Origin         string        `mapstructure:"origin"`
	FallbackURLs   []string      `mapstructure:"fallback_urls"`
	HealthTimeout  time.Duration `mapstructure:"health_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Token          string        `mapstructure:"token"`
	SyncInterval   time.Duration `mapstructure:"sync_interval"`
	Queue          QueueConfig   `mapstructure:"queue"`
}

// QueueConfig almacenamiento de la cola offline
type QueueConfig struct {
	Backend    string `mapstructure:"backend"` // file | redis
	Path       string `mapstructure:"path"`
	StorageKey string `mapstructure:"storage_key"`
}

// Load carga la configuración
// Prioridad: variables de entorno > archivo .env > archivo de configuración > valores por defecto
func Load(path string) (*Config, error) {
	// .env es opcional
	_ = godotenv.Load()

	v := viper.New()

	// ── valores por defecto ──
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.base_path", "/api/asistencia")
	v.SetDefault("server.body_limit", 1<<20)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.rate_limit.requests", 300)
	v.SetDefault("server.rate_limit.window", "1m")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "agromano")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.issuer", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 7)

	v.SetDefault("attendance.timezone", "UTC")
	v.SetDefault("attendance.page_size", 100)

	v.SetDefault("client.origin", "")
	v.SetDefault("client.health_timeout", "2500ms")
	v.SetDefault("client.request_timeout", "30s")
	v.SetDefault("client.sync_interval", "15s")
	v.SetDefault("client.queue.backend", "file")
	v.SetDefault("client.queue.path", "asistencia_offline_queue.json")
	v.SetDefault("client.queue.storage_key", "asistencia_offline_queue")

	// ── archivo de configuración ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── variables de entorno ──
	v.SetEnvPrefix("AGRO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error leyendo archivo de configuración: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error interpretando configuración: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate valida las claves críticas
func (c *Config) Validate() error {
	if c.Auth.Enabled {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("configuración inválida: auth.jwt_secret es obligatorio con auth.enabled")
		}
		if len(c.Auth.JWTSecret) < 16 {
			return fmt.Errorf("configuración inválida: auth.jwt_secret debe tener al menos 16 caracteres")
		}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("configuración inválida: server.port debe estar entre 1 y 65535")
	}
	if _, err := c.Attendance.Location(); err != nil {
		return fmt.Errorf("configuración inválida: attendance.timezone %q: %w", c.Attendance.Timezone, err)
	}
	if c.Attendance.PageSize <= 0 || c.Attendance.PageSize > 500 {
		return fmt.Errorf("configuración inválida: attendance.page_size debe estar entre 1 y 500")
	}
	switch c.Client.Queue.Backend {
	case "file", "redis":
	default:
		return fmt.Errorf("configuración inválida: client.queue.backend %q no soportado", c.Client.Queue.Backend)
	}
	return nil
}
