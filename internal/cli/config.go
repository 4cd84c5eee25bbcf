package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	goHMS "github.com/MrEthical07/goHMS"
	"github.com/MrEthical07/goHMS/internal/output"
)

// Config is the hms CLI configuration, read from hms.yaml, HMS_* variables and flags.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Session   SessionConfig   `mapstructure:"session"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Output    OutputConfig    `mapstructure:"output"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SessionConfig picks where credentials persist between invocations. A
// non-empty RedisAddr selects Redis; otherwise File is used.
type SessionConfig struct {
	Profile     string `mapstructure:"profile"`
	File        string `mapstructure:"file"`
	RedisAddr   string `mapstructure:"redis_addr"`
	RedisPrefix string `mapstructure:"redis_prefix"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type OutputConfig struct {
	Format string `mapstructure:"format"`
	Colors bool   `mapstructure:"colors"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"rps"`
	Burst             int     `mapstructure:"burst"`
}

type MetricsConfig struct {
	Print bool `mapstructure:"print"`
}

// LoadConfig reads .env (if present) into the environment, then builds the
// configuration from v. The caller binds flags into v beforehand.
func LoadConfig(v *viper.Viper, cfgFile, envFile string) (*Config, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("hms")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/hms")
	}

	v.SetEnvPrefix("HMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := goHMS.DefaultConfig()

	v.SetDefault("api.base_url", def.API.BaseURL)
	v.SetDefault("api.timeout", def.API.Timeout)

	v.SetDefault("session.profile", "default")
	v.SetDefault("session.file", "")
	v.SetDefault("session.redis_addr", "")
	v.SetDefault("session.redis_prefix", "hms")

	v.SetDefault("logging.level", "warn")

	v.SetDefault("output.format", string(output.FormatTable))
	v.SetDefault("output.colors", true)

	v.SetDefault("rate_limit.rps", 0.0)
	v.SetDefault("rate_limit.burst", 1)

	v.SetDefault("metrics.print", false)
}

func (c *Config) validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url %q is not an absolute URL", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}
	if c.Session.Profile == "" || strings.ContainsAny(c.Session.Profile, `/\`) {
		return fmt.Errorf("session.profile %q is invalid", c.Session.Profile)
	}
	if _, err := output.ParseFormat(c.Output.Format); err != nil {
		return err
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		return errors.New("rate_limit.rps must not be negative")
	}
	return nil
}

// sessionFile is the configured file, or <user config dir>/hms/<profile>.session.
func (c *Config) sessionFile() (string, error) {
	if c.Session.File != "" {
		return c.Session.File, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config dir: %w", err)
	}
	return filepath.Join(dir, "hms", c.Session.Profile+".session"), nil
}

// clientConfig maps the CLI settings onto the library configuration.
func (c *Config) clientConfig(version string) goHMS.Config {
	cfg := goHMS.DefaultConfig()
	cfg.API.BaseURL = c.API.BaseURL
	cfg.API.Timeout = c.API.Timeout
	cfg.API.UserAgent = "hms-cli/" + version
	if c.RateLimit.RequestsPerSecond > 0 {
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.RequestsPerSecond = c.RateLimit.RequestsPerSecond
		cfg.RateLimit.Burst = max(c.RateLimit.Burst, 1)
	}
	cfg.Metrics.Enabled = c.Metrics.Print
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.Print
	return cfg
}
