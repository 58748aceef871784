package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cozy-creator/bg-remover/internal/utils/pathutil"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	FilesystemLocal = "local"
	FilesystemS3    = "s3"
)

const (
	BackendRembg     = "rembg"
	BackendThreshold = "threshold"
)

const bgrPrefix = "BGR"

type Config struct {
	Port          int              `mapstructure:"port"`
	Host          string           `mapstructure:"host"`
	Environment   string           `mapstructure:"environment"`
	ServiceName   string           `mapstructure:"service_name"`
	PublicDir     string           `mapstructure:"public_dir"`
	RequireAPIKey bool             `mapstructure:"require_api_key"`
	Limits        *LimitsConfig    `mapstructure:"limits"`
	Segmenter     *SegmenterConfig `mapstructure:"segmenter"`
	Cors          *CorsConfig      `mapstructure:"cors"`
	Archive       *ArchiveConfig   `mapstructure:"archive"`
	DB            *DBConfig        `mapstructure:"db"`
	S3            *S3Config        `mapstructure:"s3"`
}

type LimitsConfig struct {
	MaxUploadBytes          int64 `mapstructure:"max_upload_bytes"`
	MaxHeuristicUploadBytes int64 `mapstructure:"max_heuristic_upload_bytes"`
	MaxDimension            int   `mapstructure:"max_dimension"`
	MaxPixels               int64 `mapstructure:"max_pixels"`
	BrightnessThreshold     uint8 `mapstructure:"brightness_threshold"`
}

type SegmenterConfig struct {
	Backend string        `mapstructure:"backend"`
	URL     string        `mapstructure:"url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type CorsConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type ArchiveConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Workers        int    `mapstructure:"workers"`
	FilesystemType string `mapstructure:"filesystem_type"`
	AssetsDir      string `mapstructure:"assets_dir"`
	PublicURL      string `mapstructure:"public_url"`
}

type DBConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Debug  bool   `mapstructure:"debug"`
}

type S3Config struct {
	Folder      string `mapstructure:"folder"`
	Region      string `mapstructure:"region_name"`
	Bucket      string `mapstructure:"bucket_name"`
	AccessKey   string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
	EndpointUrl string `mapstructure:"endpoint_url"`
	VanityUrl   string `mapstructure:"vanity_url"`
}

var config *Config

// SetDefaults registers the default value of every key so that viper.Unmarshal
// can see keys that were never set through a flag, env var or config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", DefaultPort)
	v.SetDefault("host", DefaultHost)
	v.SetDefault("environment", DefaultEnvironment)
	v.SetDefault("service_name", ServiceName)
	v.SetDefault("public_dir", "")
	v.SetDefault("require_api_key", false)

	v.SetDefault("limits.max_upload_bytes", DefaultMaxUploadBytes)
	v.SetDefault("limits.max_heuristic_upload_bytes", DefaultMaxHeuristicUploadBytes)
	v.SetDefault("limits.max_dimension", DefaultMaxDimension)
	v.SetDefault("limits.max_pixels", DefaultMaxPixels)
	v.SetDefault("limits.brightness_threshold", DefaultBrightnessThreshold)

	v.SetDefault("segmenter.backend", BackendRembg)
	v.SetDefault("segmenter.url", DefaultSegmenterURL)
	v.SetDefault("segmenter.model", DefaultSegmenterModel)
	v.SetDefault("segmenter.timeout", DefaultSegmenterTimeout)

	v.SetDefault("cors.allow_origins", []string{"*"})

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.workers", DefaultArchiveWorkers)
	v.SetDefault("archive.filesystem_type", FilesystemLocal)
	v.SetDefault("archive.assets_dir", DefaultAssetsDir)
	v.SetDefault("archive.public_url", "")

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", DefaultDSN)
	v.SetDefault("db.debug", false)

	v.SetDefault("s3.folder", "")
	v.SetDefault("s3.region_name", "")
	v.SetDefault("s3.bucket_name", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.endpoint_url", "")
	v.SetDefault("s3.vanity_url", "")
}

// BindEnvs binds every key to its BGR_ prefixed variable. PORT and ENVIRONMENT
// are additionally read without a prefix, which is what hosting platforms set.
func BindEnvs(v *viper.Viper) {
	v.SetEnvPrefix(bgrPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(`-`, `_`, `.`, `_`))
	v.AutomaticEnv()

	v.BindEnv("port", bgrPrefix+"_PORT", "PORT")
	v.BindEnv("environment", bgrPrefix+"_ENVIRONMENT", "ENVIRONMENT")
}

// LoadEnvAndConfigFiles loads the optional .env and yaml files named by the
// env_file and config_file keys, then unmarshals the global config.
func LoadEnvAndConfigFiles() error {
	v := viper.GetViper()

	envFile := v.GetString("env_file")
	if envFile != "" {
		envFile, err := pathutil.ExpandPath(envFile)
		if err != nil {
			return fmt.Errorf("failed to expand env file path: %w", err)
		}

		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
	} else if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
	}

	SetDefaults(v)
	BindEnvs(v)

	configFile := v.GetString("config_file")
	if configFile != "" {
		configFile, err := pathutil.ExpandPath(configFile)
		if err != nil {
			return fmt.Errorf("failed to expand config file path: %w", err)
		}

		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
				return fmt.Errorf("error reading config: %w", err)
			}
		}
	}

	cfg, err := Unmarshal(v)
	if err != nil {
		return err
	}

	config = cfg
	return nil
}

// Unmarshal decodes and validates a Config from v.
func Unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Limits == nil || c.Limits.MaxUploadBytes <= 0 || c.Limits.MaxHeuristicUploadBytes <= 0 {
		return ErrInvalidUploadLimit
	}
	if c.Limits.MaxDimension <= 0 {
		return ErrInvalidMaxDimension
	}
	if c.Limits.MaxPixels <= 0 {
		return ErrInvalidMaxPixels
	}

	if c.Segmenter == nil {
		return ErrUnknownBackend
	}
	switch strings.ToLower(c.Segmenter.Backend) {
	case BackendRembg:
		if c.Segmenter.URL == "" {
			return fmt.Errorf("segmenter.url is required for the %s backend", BackendRembg)
		}
	case BackendThreshold:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownBackend, c.Segmenter.Backend)
	}

	if c.Archive != nil && c.Archive.Enabled {
		fs := strings.ToLower(c.Archive.FilesystemType)
		if fs != FilesystemLocal && fs != FilesystemS3 {
			return fmt.Errorf("invalid filesystem type %s", c.Archive.FilesystemType)
		}
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func IsLoaded() bool {
	return config != nil
}

func GetConfig() (*Config, error) {
	if config == nil {
		return nil, ErrConfigNotLoaded
	}

	return config, nil
}

func MustGetConfig() *Config {
	if config == nil {
		panic("config not loaded")
	}

	return config
}
