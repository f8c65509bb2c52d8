package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MODELFORGE_DB_URL.
const EnvPrefix = "MODELFORGE"

type Config struct {
	Port string   `mapstructure:"port"`
	DB   DBConfig `mapstructure:"db"`

	// Laravel project layout
	AppRoot       string `mapstructure:"app_root"`
	ModelsDir     string `mapstructure:"models_dir"`
	MigrationsDir string `mapstructure:"migrations_dir"`
	Namespace     string `mapstructure:"namespace"`

	FieldTypesFile string `mapstructure:"field_types_file"` // empty = embedded catalog
	DSLDir         string `mapstructure:"dsl_dir"`

	Artifacts            ArtifactsConfig `mapstructure:"artifacts"`
	TwoPhaseWrite        bool            `mapstructure:"two_phase_write"`
	PostGenerateCommands []string        `mapstructure:"post_generate_commands"`

	Log LogConfig `mapstructure:"log"`
}

type DBConfig struct {
	Driver string `mapstructure:"driver"` // "sqlite" (default) | "postgres"
	URL    string `mapstructure:"url"`    // sqlite: file path, empty = in-memory
}

type ArtifactsConfig struct {
	Driver string   `mapstructure:"driver"` // "local" (default) | "s3"
	S3     S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Endpoint  string `mapstructure:"endpoint"` // optional (MinIO/custom)
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// SetDefaults registers the defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.url", "modelforge.db")
	v.SetDefault("app_root", ".")
	v.SetDefault("models_dir", "app/Models")
	v.SetDefault("migrations_dir", "database/migrations")
	v.SetDefault("namespace", `App\Models`)
	v.SetDefault("field_types_file", "")
	v.SetDefault("dsl_dir", "dsl")
	v.SetDefault("artifacts.driver", "local")
	v.SetDefault("artifacts.s3.region", "")
	v.SetDefault("artifacts.s3.bucket", "")
	v.SetDefault("artifacts.s3.prefix", "")
	v.SetDefault("artifacts.s3.endpoint", "")
	v.SetDefault("artifacts.s3.access_key", "")
	v.SetDefault("artifacts.s3.secret_key", "")
	v.SetDefault("two_phase_write", false)
	v.SetDefault("post_generate_commands", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load resolves defaults, then the config file, then MODELFORGE_* env, then any flags already
// bound on v. An empty path searches ./modelforge.{yaml,yml,json}; a missing file is not an error
// unless it was named explicitly.
func Load(v *viper.Viper, path string) (Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("modelforge")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Port = strings.TrimSpace(c.Port)
	c.DB.Driver = strings.ToLower(strings.TrimSpace(c.DB.Driver))
	c.DB.URL = strings.TrimSpace(c.DB.URL)
	c.Artifacts.Driver = strings.ToLower(strings.TrimSpace(c.Artifacts.Driver))
	c.ModelsDir = strings.Trim(filepath.ToSlash(strings.TrimSpace(c.ModelsDir)), "/")
	c.MigrationsDir = strings.Trim(filepath.ToSlash(strings.TrimSpace(c.MigrationsDir)), "/")
}

// Validate checks the enumerated settings.
func (c Config) Validate() error {
	switch c.DB.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("db.driver must be sqlite or postgres, got %q", c.DB.Driver)
	}
	switch c.Artifacts.Driver {
	case "local":
	case "s3":
		if c.Artifacts.S3.Bucket == "" {
			return errors.New("artifacts.s3.bucket is required when artifacts.driver is s3")
		}
		if c.TwoPhaseWrite {
			return errors.New("two_phase_write is only supported with the local artifacts driver")
		}
	default:
		return fmt.Errorf("artifacts.driver must be local or s3, got %q", c.Artifacts.Driver)
	}
	if c.ModelsDir == "" || c.MigrationsDir == "" {
		return errors.New("models_dir and migrations_dir are required")
	}
	return nil
}

// Addr is the listen address for Port.
func (c Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}
