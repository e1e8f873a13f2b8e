package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	DVF       DVFConfig       `yaml:"dvf" mapstructure:"dvf"`
	Communes  CommunesConfig  `yaml:"communes" mapstructure:"communes"`
	Aggregate AggregateConfig `yaml:"aggregate" mapstructure:"aggregate"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	HTTP      HTTPConfig      `yaml:"http" mapstructure:"http"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// CacheConfig configures where downloaded artifacts are kept between runs.
type CacheConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// DVFConfig configures the yearly transaction files.
// URLTemplate must contain a {year} placeholder.
type DVFConfig struct {
	URLTemplate string `yaml:"url_template" mapstructure:"url_template"`
}

// CommunesConfig configures the municipality directory.
type CommunesConfig struct {
	URL       string `yaml:"url" mapstructure:"url"`
	CacheFile string `yaml:"cache_file" mapstructure:"cache_file"`
}

// AggregateConfig configures the aggregation engine.
type AggregateConfig struct {
	Threads int `yaml:"threads" mapstructure:"threads"`
}

// OutputConfig configures the generated JSON documents.
type OutputConfig struct {
	Dir     string         `yaml:"dir" mapstructure:"dir"`
	Windows []WindowConfig `yaml:"windows" mapstructure:"windows"`
}

// WindowConfig is one trailing window and the file it is written to.
type WindowConfig struct {
	Days int    `yaml:"days" mapstructure:"days"`
	File string `yaml:"file" mapstructure:"file"`
}

// HTTPConfig configures outbound downloads.
type HTTPConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ServerConfig configures the preview server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

const (
	DefaultDVFURLTemplate = "https://files.data.gouv.fr/geo-dvf/latest/csv/{year}/full.csv.gz"
	DefaultCommunesURL    = "https://geo.api.gouv.fr/communes?fields=nom,code,codeDepartement,population,centre&format=json&geometry=centre"
)

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	// .env is optional; values already set in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DVFPRICES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Short aliases used by existing cron jobs.
	if err := v.BindEnv("dvf.url_template", "DVFPRICES_DVF_URL_TEMPLATE", "DVF_URL"); err != nil {
		return nil, eris.Wrap(err, "config: bind DVF_URL")
	}
	if err := v.BindEnv("communes.url", "DVFPRICES_COMMUNES_URL", "COMMUNES_URL"); err != nil {
		return nil, eris.Wrap(err, "config: bind COMMUNES_URL")
	}

	// Defaults
	v.SetDefault("cache.dir", ".")
	v.SetDefault("dvf.url_template", DefaultDVFURLTemplate)
	v.SetDefault("communes.url", DefaultCommunesURL)
	v.SetDefault("communes.cache_file", "communes.json")
	v.SetDefault("aggregate.threads", 4)
	v.SetDefault("output.dir", ".")
	v.SetDefault("output.windows", []map[string]any{
		{"days": 365, "file": "prices_12.json"},
		{"days": 730, "file": "prices_24.json"},
	})
	v.SetDefault("http.user_agent", "dvf-prices/1.0")
	v.SetDefault("http.timeout_secs", 60)
	v.SetDefault("server.port", 8080)
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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the settings every command relies on. The DVF template is
// checked separately by ValidateSources since only build downloads sources.
func (c *Config) Validate() error {
	if c.Communes.URL == "" {
		return eris.New("config: communes.url is empty")
	}
	if len(c.Output.Windows) == 0 {
		return eris.New("config: output.windows is empty")
	}
	for _, w := range c.Output.Windows {
		if w.Days <= 0 {
			return eris.Errorf("config: window days must be positive, got %d", w.Days)
		}
	}
	if c.Aggregate.Threads <= 0 {
		c.Aggregate.Threads = 1
	}
	return nil
}

// ValidateSources checks the DVF download template. DVF_URL and
// dvf.url_template name one file per year, so the value must contain {year}.
func (c *Config) ValidateSources() error {
	if !strings.Contains(c.DVF.URLTemplate, "{year}") {
		return eris.Errorf("config: dvf.url_template (DVF_URL) %q must be a per-year template containing {year}, e.g. %s",
			c.DVF.URLTemplate, DefaultDVFURLTemplate)
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
