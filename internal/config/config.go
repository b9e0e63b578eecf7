package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config struct is the top-level configuration structure.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Events   EventsConfig   `mapstructure:"events"`
}

// ServerConfig holds server-related settings.
type ServerConfig struct {
	Port             string        `mapstructure:"port"`
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`
	SubmitRateLimit  uint          `mapstructure:"submit_rate_limit"`
	SubmitRateWindow time.Duration `mapstructure:"submit_rate_window"`
	MaxBodyBytes     int64         `mapstructure:"max_body_bytes"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig selects the backend and holds its connection settings.
type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	DBName         string        `mapstructure:"dbname"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN renders the libpq connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		p.Host, p.User, p.Password, p.DBName, p.Port, p.SSLMode)
}

// LoggingConfig holds settings for the logger.
type LoggingConfig struct {
	Directory  string `mapstructure:"directory"`
	Level      string `mapstructure:"level"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	Console    bool   `mapstructure:"console"`
}

// CacheConfig controls the in-memory question bank cache. Zero disables it.
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// EventsConfig controls the Kafka attempt publisher.
type EventsConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
)

// setDefaults sets the default values for the configuration.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.submit_rate_limit", 10)
	v.SetDefault("server.submit_rate_window", time.Minute)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	// Database defaults
	v.SetDefault("database.driver", DriverMongo)
	v.SetDefault("database.mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("database.mongo.dbname", "minkowski_design_test")
	v.SetDefault("database.mongo.connect_timeout", 10*time.Second)
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", "5432")
	v.SetDefault("database.postgres.user", "designsense")
	v.SetDefault("database.postgres.password", "designsense")
	v.SetDefault("database.postgres.dbname", "designsense")
	v.SetDefault("database.postgres.sslmode", "disable")

	// Logging defaults
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.max_size", 10) // MB
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 7) // days
	v.SetDefault("logging.compress", true)
	v.SetDefault("logging.console", true)

	v.SetDefault("cache.ttl", 5*time.Minute)

	v.SetDefault("events.enabled", false)
	v.SetDefault("events.brokers", []string{})
	v.SetDefault("events.topic", "design-test.attempts")
}

// bindLegacyEnv maps the plain variable names used by existing deployments.
func bindLegacyEnv(v *viper.Viper) error {
	for key, env := range map[string]string{
		"database.mongo.uri":     "MONGODB_URI",
		"database.mongo.dbname":  "MONGODB_DB",
		"server.allowed_origins": "ALLOWED_ORIGINS",
		"server.port":            "PORT",
	} {
		if err := v.BindEnv(key, "DESIGNSENSE_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return err
		}
	}
	return nil
}

// Loader reads the configuration and keeps watching the file.
type Loader struct {
	v    *viper.Viper
	log  *zap.Logger
	used bool
}

// NewLoader prepares viper for projectRoot. A .env file in projectRoot is
// loaded into the environment first, when present.
func NewLoader(projectRoot string) (*Loader, error) {
	if err := godotenv.Load(filepath.Join(projectRoot, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(filepath.Join(projectRoot, "config"))
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// e.g., DESIGNSENSE_SERVER_PORT
	v.SetEnvPrefix("DESIGNSENSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return nil, fmt.Errorf("error binding env: %w", err)
	}

	return &Loader{v: v, log: zap.NewNop()}, nil
}

// SetConfigFile points the loader at an explicit file instead of config/config.yaml.
func (l *Loader) SetConfigFile(path string) {
	l.v.SetConfigFile(path)
}

// Load reads the file (if any), env vars and defaults.
func (l *Loader) Load() (*Config, error) {
	// It's okay if the file doesn't exist; defaults and env vars will be used.
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		l.used = true
	}
	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	var conf Config
	if err := l.v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	conf.Server.AllowedOrigins = splitList(conf.Server.AllowedOrigins)
	conf.Events.Brokers = splitList(conf.Events.Brokers)
	conf.Database.Driver = strings.ToLower(strings.TrimSpace(conf.Database.Driver))
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

// Watch hot-reloads the file and passes every valid reload to onChange.
func (l *Loader) Watch(log *zap.Logger, onChange func(*Config)) {
	l.log = log
	if !l.used {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		l.log.Info("Configuration file changed, reloading.", zap.String("file", e.Name))
		conf, err := l.decode()
		if err != nil {
			l.log.Error("Error reloading configuration", zap.Error(err))
			return
		}
		onChange(conf)
	})
	l.v.WatchConfig()
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMongo:
		if c.Database.Mongo.URI == "" {
			return errors.New("database.mongo.uri is required")
		}
	case DriverPostgres:
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	if c.Events.Enabled && (len(c.Events.Brokers) == 0 || c.Events.Topic == "") {
		return errors.New("events.brokers and events.topic are required when events are enabled")
	}
	return nil
}

// splitList accepts both YAML lists and comma-separated env values.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
