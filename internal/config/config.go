package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Uploads  UploadsConfig  `mapstructure:"uploads"`
	Media    MediaConfig    `mapstructure:"media"`
}

type ServerConfig struct {
	Address       string `mapstructure:"address"`
	PublicBaseURL string `mapstructure:"public_base_url"` // Used to build local-disk URLs
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

// JWTConfig defines JWT specific configuration.
// Tokens are issued by the platform's auth service; only the secret is needed here.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "console" or "json"
}

// StorageConfig holds the process defaults for storage. The active provider is
// read from the database on every operation; DefaultProvider is only used
// until an admin saves a configuration.
type StorageConfig struct {
	DefaultProvider string        `mapstructure:"default_provider"`
	LocalPath       string        `mapstructure:"local_path"`
	StaticMount     string        `mapstructure:"static_mount"`
	PresignTTL      time.Duration `mapstructure:"presign_ttl"`
}

type UploadsConfig struct {
	StagingDir   string        `mapstructure:"staging_dir"`
	SessionTTL   time.Duration `mapstructure:"session_ttl"`
	ReapInterval time.Duration `mapstructure:"reap_interval"`
	MaxPartBytes int64         `mapstructure:"max_part_bytes"`
}

type MediaConfig struct {
	MaxGenericBytes int64 `mapstructure:"max_generic_bytes"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS, uploads.staging_dir -> UPLOADS_STAGING_DIR
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	err = v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// Env vars and defaults are enough to run.
		err = nil
	} else if err != nil {
		return
	}

	err = v.Unmarshal(&config)
	if err != nil {
		return
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.public_base_url", "http://localhost:8080")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "course_media")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("storage.default_provider", "local")
	v.SetDefault("storage.local_path", "./data/media")
	v.SetDefault("storage.static_mount", "/uploads")
	v.SetDefault("storage.presign_ttl", "1h")
	v.SetDefault("uploads.staging_dir", "./data/staging")
	v.SetDefault("uploads.session_ttl", "24h")
	v.SetDefault("uploads.reap_interval", "1h")
	v.SetDefault("uploads.max_part_bytes", 100*1024*1024)
	v.SetDefault("media.max_generic_bytes", 50*1024*1024)
}
