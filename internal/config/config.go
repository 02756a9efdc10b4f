package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Snapshot struct {
	Backend        string        `mapstructure:"backend"`
	Path           string        `mapstructure:"path"`
	ValkeyAddr     string        `mapstructure:"valkey_addr"`
	ValkeyPassword string        `mapstructure:"valkey_password"`
	Interval       time.Duration `mapstructure:"interval"`
}

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	// AllowedOrigins lists browser origins, besides the server's own, that may open room sockets.
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	HostPassword     string        `mapstructure:"host_password"`
	HostPasswordHash string        `mapstructure:"host_password_hash"`
	HostTokenTTL     time.Duration `mapstructure:"host_token_ttl"`

	SpeakerCapacity    int           `mapstructure:"speaker_capacity"`
	ChatRateLimit      int           `mapstructure:"chat_rate_limit"`
	ChatRateInterval   time.Duration `mapstructure:"chat_rate_interval"`
	SlowConsumerPolicy string        `mapstructure:"slow_consumer_policy"`

	Snapshot Snapshot `mapstructure:"snapshot"`
}

// HostLoginEnabled reports whether a host secret is configured.
func (c *Config) HostLoginEnabled() bool {
	return c.HostPassword != "" || c.HostPasswordHash != ""
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("module", "config").Msg("failed to read .env")
	}
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return load(fmt.Sprintf("config/config.%s.yaml", env))
}

func load(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("VENUE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("write_wait", "10s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("secret", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("host_password", "")
	v.SetDefault("host_password_hash", "")
	v.SetDefault("host_token_ttl", "12h")
	v.SetDefault("speaker_capacity", 5)
	v.SetDefault("chat_rate_limit", 5)
	v.SetDefault("chat_rate_interval", "3s")
	v.SetDefault("slow_consumer_policy", "drop")
	v.SetDefault("snapshot.backend", "none")
	v.SetDefault("snapshot.path", "venue.db")
	v.SetDefault("snapshot.valkey_addr", "")
	v.SetDefault("snapshot.valkey_password", "")
	v.SetDefault("snapshot.interval", "30s")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Str("static", cfg.StaticPath).Str("snapshot", cfg.Snapshot.Backend).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.ReadLimit <= 0 {
		errs = append(errs, errors.New("read_limit must be positive"))
	}
	if c.PingPeriod <= 0 {
		errs = append(errs, errors.New("ping_period must be positive"))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, errors.New("send_buffer must be positive"))
	}
	if c.SpeakerCapacity <= 0 {
		errs = append(errs, errors.New("speaker_capacity must be positive"))
	}
	if c.ChatRateLimit > 0 && c.ChatRateInterval <= 0 {
		errs = append(errs, errors.New("chat_rate_interval must be positive when chat_rate_limit is set"))
	}
	switch c.SlowConsumerPolicy {
	case "drop", "kick":
	default:
		errs = append(errs, fmt.Errorf("slow_consumer_policy %q is not drop or kick", c.SlowConsumerPolicy))
	}
	switch c.Snapshot.Backend {
	case "none", "sqlite", "valkey":
	default:
		errs = append(errs, fmt.Errorf("snapshot.backend %q is not none, sqlite or valkey", c.Snapshot.Backend))
	}
	if c.HostLoginEnabled() && c.Secret == "" {
		errs = append(errs, errors.New("secret is required when host login is enabled"))
	}
	return errors.Join(errs...)
}
