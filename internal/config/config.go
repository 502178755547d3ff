// Package config loads ppi-cli configuration from config.yaml and PPI_*
// environment variables.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/ppi-cli/internal/chart"
)

// Config holds the full application configuration.
type Config struct {
	Source    SourceConfig     `yaml:"source" mapstructure:"source"`
	Store     StoreConfig      `yaml:"store" mapstructure:"store"`
	Transform TransformConfig  `yaml:"transform" mapstructure:"transform"`
	Output    OutputConfig     `yaml:"output" mapstructure:"output"`
	Chart     chart.Thresholds `yaml:"chart" mapstructure:"chart"`
	Log       LogConfig        `yaml:"log" mapstructure:"log"`
}

// SourceConfig configures the release page download.
type SourceConfig struct {
	URL         string            `yaml:"url" mapstructure:"url"`
	UserAgent   string            `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int               `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int               `yaml:"max_retries" mapstructure:"max_retries"`
	Headers     map[string]string `yaml:"headers" mapstructure:"headers"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver           string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL      string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath       string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	WaitAttempts     int    `yaml:"wait_attempts" mapstructure:"wait_attempts"`
	WaitIntervalSecs int    `yaml:"wait_interval_secs" mapstructure:"wait_interval_secs"`
	MaxConns         int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns         int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// WaitInterval returns the readiness poll interval.
func (s StoreConfig) WaitInterval() time.Duration {
	return time.Duration(s.WaitIntervalSecs) * time.Second
}

// TransformConfig overrides parts of the table layout. A zero BoundaryMonth
// keeps the layout's own value.
type TransformConfig struct {
	LayoutFile        string `yaml:"layout_file" mapstructure:"layout_file"`
	BoundaryMonth     int    `yaml:"boundary_month" mapstructure:"boundary_month"`
	FollowYearMarkers bool   `yaml:"follow_year_markers" mapstructure:"follow_year_markers"`
}

// OutputConfig configures exported files.
type OutputConfig struct {
	Dir        string `yaml:"dir" mapstructure:"dir"`
	CSVPath    string `yaml:"csv_path" mapstructure:"csv_path"`
	ImportPath string `yaml:"import_path" mapstructure:"import_path"`
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
	v.SetEnvPrefix("PPI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("source.url", "https://www.bls.gov/news.release/ppi.t04.htm")
	v.SetDefault("source.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("source.timeout_secs", 30)
	v.SetDefault("source.max_retries", 3)
	v.SetDefault("source.headers", map[string]any{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
	})
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.sqlite_path", "data/ppi.db")
	v.SetDefault("store.wait_attempts", 30)
	v.SetDefault("store.wait_interval_secs", 2)
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("transform.layout_file", "")
	v.SetDefault("transform.boundary_month", 0)
	v.SetDefault("transform.follow_year_markers", false)
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.csv_path", "output/ppi_data_export.csv")
	v.SetDefault("output.import_path", "data/ppi_data_latest.csv")
	v.SetDefault("chart.high_threshold", 5.0)
	v.SetDefault("chart.medium_threshold", 2.0)
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
	cfg.Source.Headers = lowerKeys(cfg.Source.Headers)

	return &cfg, nil
}

// lowerKeys folds header names to lower case. Viper lowercases keys read
// from files and env but leaves defaults as written.
func lowerKeys(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}

// Validate checks the settings every command depends on.
func (c *Config) Validate() error {
	var errs []string

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			errs = append(errs, "store.sqlite_path is required for the sqlite driver")
		}
	default:
		errs = append(errs, "store.driver must be postgres or sqlite")
	}
	if c.Store.WaitAttempts < 1 {
		errs = append(errs, "store.wait_attempts must be >= 1")
	}
	if c.Store.WaitIntervalSecs < 0 {
		errs = append(errs, "store.wait_interval_secs must be >= 0")
	}
	if c.Transform.BoundaryMonth < 0 || c.Transform.BoundaryMonth > 12 {
		errs = append(errs, "transform.boundary_month must be between 1 and 12, or 0 for the layout default")
	}
	if c.Chart.Medium > c.Chart.High {
		errs = append(errs, "chart.medium_threshold must not exceed chart.high_threshold")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
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
