package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig   `mapstructure:"server"`
	Database  DatabaseConfig `mapstructure:"database"`
	Media     MediaConfig    `mapstructure:"media"`
	Transfer  TransferConfig `mapstructure:"transfer"`
	JWTSecret string         `mapstructure:"jwt_secret"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	PoolSize int    `mapstructure:"pool_size"`
	Path     string `mapstructure:"path"` // directory for SQLite database files
}

type MediaConfig struct {
	PublicHost  string `mapstructure:"public_host"` // prefix for absolutizing relative file URLs
	LocalPath   string `mapstructure:"local_path"`
	MaxFileSize int64  `mapstructure:"max_file_size"`
}

type TransferConfig struct {
	ExistingAction   string           `mapstructure:"existing_action"` // skip, update, warn
	MaxExportDepth   int              `mapstructure:"max_export_depth"`
	MaxPopulateDepth int              `mapstructure:"max_populate_depth"`
	Strategies       []StrategyConfig `mapstructure:"strategies"`
}

// StrategyConfig configures relation search for one content type. A list
// rather than a map because content type uids contain dots, which viper
// treats as key separators.
type StrategyConfig struct {
	ContentType  string         `mapstructure:"content_type"`
	SearchFields []string       `mapstructure:"search_fields"`
	Match        string         `mapstructure:"match"`
	AutoCreate   bool           `mapstructure:"auto_create"`
	Defaults     map[string]any `mapstructure:"defaults"`
}

// DSN returns the driver-specific data source name.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path + "/" + d.Name + ".db"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// IsSQLite returns true if the driver is sqlite.
func (d DatabaseConfig) IsSQLite() bool {
	return d.Driver == "sqlite"
}

func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../..")

	viper.SetDefault("server.port", 8090)
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.pool_size", 10)
	viper.SetDefault("database.path", "./data")
	viper.SetDefault("media.public_host", "http://localhost:8090")
	viper.SetDefault("media.local_path", "./uploads")
	viper.SetDefault("media.max_file_size", 10485760)
	viper.SetDefault("transfer.existing_action", "warn")
	viper.SetDefault("transfer.max_export_depth", 20)
	viper.SetDefault("transfer.max_populate_depth", 5)
	viper.SetDefault("jwt_secret", "changeme-secret")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}
