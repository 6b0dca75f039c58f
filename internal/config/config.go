// Package config loads client settings from, in increasing precedence, built-in
// defaults, an optional config file, a .env file, ODATA_-prefixed environment
// variables and bound command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Ratio1/odata_sdk_go/internal/logging"
)

// EnvPrefix prefixes every environment variable, e.g. ODATA_URL or ODATA_LOG_LEVEL.
const EnvPrefix = "ODATA"

// Runtime modes.
const (
	ModeAuto = "auto"
	ModeHTTP = "http"
	ModeMock = "mock"
)

// Config is the resolved client configuration.
type Config struct {
	Mode         string           `mapstructure:"mode"`
	URL          string           `mapstructure:"url"`
	Dialect      string           `mapstructure:"dialect"`
	Username     string           `mapstructure:"username"`
	Password     string           `mapstructure:"password"`
	JSON         bool             `mapstructure:"json"`
	PreventCache bool             `mapstructure:"prevent-cache"`
	Credentialed bool             `mapstructure:"credentialed"`
	Timeout      time.Duration    `mapstructure:"timeout"`
	RateLimit    float64          `mapstructure:"rate-limit"`
	MockSeed     string           `mapstructure:"mock-seed"`
	Log          *logging.Options `mapstructure:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Mode:    ModeAuto,
		Dialect: "odata",
		JSON:    true,
		Timeout: 30 * time.Second,
		Log:     logging.NewOptions(),
	}
}

// New returns a viper instance with defaults and environment binding applied.
func New() *viper.Viper {
	v := viper.New()
	d := Default()
	v.SetDefault("mode", d.Mode)
	v.SetDefault("url", d.URL)
	v.SetDefault("dialect", d.Dialect)
	v.SetDefault("username", "")
	v.SetDefault("password", "")
	v.SetDefault("json", d.JSON)
	v.SetDefault("prevent-cache", d.PreventCache)
	v.SetDefault("credentialed", d.Credentialed)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("rate-limit", d.RateLimit)
	v.SetDefault("mock-seed", "")
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.enable-color", d.Log.EnableColor)
	v.SetDefault("log.enable-caller", d.Log.EnableCaller)
	v.SetDefault("log.output-paths", d.Log.OutputPaths)
	v.SetDefault("log.error-output-paths", d.Log.ErrorOutputPaths)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// AddFlags registers the connection flags on fs.
func AddFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("mode", d.Mode, "Runtime `MODE`: auto, http or mock.")
	fs.String("url", d.URL, "Service root URL.")
	fs.String("dialect", d.Dialect, "Protocol dialect: odata or sdata.")
	fs.String("username", "", "Basic auth user name.")
	fs.String("password", "", "Basic auth password.")
	fs.Bool("json", d.JSON, "Use the JSON wire format.")
	fs.Bool("prevent-cache", d.PreventCache, "Append a cache-busting parameter to every URL.")
	fs.Bool("credentialed", d.Credentialed, "Let the transport carry credentials instead of authorization headers.")
	fs.Duration("timeout", d.Timeout, "Per-request timeout.")
	fs.Float64("rate-limit", d.RateLimit, "Maximum requests per second, 0 for unlimited.")
	fs.String("mock-seed", "", "JSON or YAML seed file for mock mode.")
}

// Load reads configuration into a Config. path names an optional config file;
// a .env file in the working directory is loaded when present. fs, when not
// nil, is bound so explicitly set flags win over every other source.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("config: bind flags: %w", err)
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	cfg.Dialect = strings.ToLower(strings.TrimSpace(cfg.Dialect))
	cfg.URL = strings.TrimSpace(cfg.URL)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks mode, dialect and logging settings.
func (c *Config) Validate() error {
	var errs []error
	switch c.Mode {
	case ModeAuto, ModeMock:
	case ModeHTTP:
		if c.URL == "" {
			errs = append(errs, fmt.Errorf("config: http mode requires %s_URL", EnvPrefix))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unsupported mode %q", c.Mode))
	}
	switch c.Dialect {
	case "odata", "sdata":
	default:
		errs = append(errs, fmt.Errorf("config: unsupported dialect %q", c.Dialect))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("config: rate-limit must not be negative"))
	}
	if c.Log != nil {
		if err := c.Log.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}
