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
	Reference SourceConfig `yaml:"reference" mapstructure:"reference"`
	Incoming  SourceConfig `yaml:"incoming" mapstructure:"incoming"`
	Output    OutputConfig `yaml:"output" mapstructure:"output"`
	Fetch     FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Store     StoreConfig  `yaml:"store" mapstructure:"store"`
	Server    ServerConfig `yaml:"server" mapstructure:"server"`
	Log       LogConfig    `yaml:"log" mapstructure:"log"`
}

// SourceConfig locates one spreadsheet. URL wins over Path.
type SourceConfig struct {
	URL       string `yaml:"url" mapstructure:"url"`
	Path      string `yaml:"path" mapstructure:"path"`
	Sheet     string `yaml:"sheet" mapstructure:"sheet"`
	HeaderRow int    `yaml:"header_row" mapstructure:"header_row"`
	Charset   string `yaml:"charset" mapstructure:"charset"`
	Format    string `yaml:"format" mapstructure:"format"`
}

// OutputConfig configures where reconciliation results are written.
type OutputConfig struct {
	Dir    string `yaml:"dir" mapstructure:"dir"`
	Format string `yaml:"format" mapstructure:"format"`
}

// FetchConfig configures remote source retrieval.
type FetchConfig struct {
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	MaxBodyMB   int      `yaml:"max_body_mb" mapstructure:"max_body_mb"`
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
	v.SetEnvPrefix("RECONCILE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("reference.url", "")
	v.SetDefault("reference.path", "")
	v.SetDefault("reference.sheet", "bduNIDAD")
	v.SetDefault("reference.header_row", 0)
	v.SetDefault("reference.charset", "utf-8")
	v.SetDefault("reference.format", "")
	v.SetDefault("incoming.url", "")
	v.SetDefault("incoming.path", "")
	v.SetDefault("incoming.sheet", "Tecnico")
	v.SetDefault("incoming.header_row", 1)
	v.SetDefault("incoming.charset", "utf-8")
	v.SetDefault("incoming.format", "")
	v.SetDefault("output.dir", ".")
	v.SetDefault("output.format", "xlsx")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.user_agent", "reconcile-cli/1.0")
	v.SetDefault("fetch.rate_per_sec", 5)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "reconcile.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_body_mb", 64)
	v.SetDefault("server.cors_origins", []string{"*"})
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

// Validate checks settings that would otherwise fail deep inside a command.
func (c *Config) Validate() error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite", "postgres", "none":
	default:
		problems = append(problems, "store.driver must be sqlite, postgres or none")
	}
	if c.Store.Driver != "none" && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required unless store.driver is none")
	}
	switch strings.ToLower(c.Output.Format) {
	case "xlsx", "csv", "tsv", "json":
	default:
		problems = append(problems, "output.format must be xlsx, csv, tsv or json")
	}
	if c.Reference.HeaderRow < 0 || c.Incoming.HeaderRow < 0 {
		problems = append(problems, "header_row must not be negative")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, "server.port must be between 1 and 65535")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid settings:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
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
