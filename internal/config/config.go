package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Vision  VisionConfig  `yaml:"vision" mapstructure:"vision"`
	Weather WeatherConfig `yaml:"weather" mapstructure:"weather"`
	NASA    NASAConfig    `yaml:"nasa" mapstructure:"nasa"`
	Upload  UploadConfig  `yaml:"upload" mapstructure:"upload"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// VisionConfig holds Azure Custom Vision prediction credentials.
type VisionConfig struct {
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	Key       string `yaml:"key" mapstructure:"key"`
	ProjectID string `yaml:"project_id" mapstructure:"project_id"`
	Iteration string `yaml:"iteration" mapstructure:"iteration"`
}

// WeatherConfig holds Open-Meteo settings.
type WeatherConfig struct {
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
}

// NASAConfig holds the NASA Earth API key.
type NASAConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// UploadConfig configures scan image uploads.
type UploadConfig struct {
	Dir         string   `yaml:"dir" mapstructure:"dir"`
	MaxSizeMB   int64    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	AllowedExts []string `yaml:"allowed_exts" mapstructure:"allowed_exts"`
	Keep        bool     `yaml:"keep" mapstructure:"keep"`
}

// MaxSizeBytes returns the upload size cap in bytes.
func (u UploadConfig) MaxSizeBytes() int64 {
	return u.MaxSizeMB * 1024 * 1024
}

// ServerConfig configures the API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MAIZEGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "maizeguard.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("vision.endpoint", "")
	v.SetDefault("vision.key", "")
	v.SetDefault("vision.project_id", "")
	v.SetDefault("vision.iteration", "Iteration2")
	v.SetDefault("nasa.key", "")
	v.SetDefault("weather.base_url", "https://api.open-meteo.com/v1/forecast")
	v.SetDefault("weather.rate_limit_rps", 5)
	v.SetDefault("weather.rate_limit_burst", 5)
	v.SetDefault("upload.dir", "./uploads")
	v.SetDefault("upload.max_size_mb", 5)
	v.SetDefault("upload.allowed_exts", []string{".jpg", ".jpeg", ".png", ".gif", ".bmp"})
	v.SetDefault("upload.keep", false)
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
