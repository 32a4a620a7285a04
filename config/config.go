package config

import (
	"errors"
	"log/slog"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	DefaultAddress          = ":3000"
	DefaultBackendOrigin    = "http://localhost:5000"
	DefaultBaseURL          = "/"
	DefaultMountPoint       = "#app"
	DefaultHealthInterval   = "2s"
	DefaultFailureThreshold = 5
	DefaultResetTimeout     = "10s"
)

// DefaultPrefixes are the paths the terminal client sends to the backend.
var DefaultPrefixes = []string{"/execute", "/history", "/clear-history"}

var mountPointPattern = regexp.MustCompile(`^#[A-Za-z][A-Za-z0-9_-]*$`)

type ServerConfig struct {
	Address     string `mapstructure:"address" yaml:"address"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

type HealthCheckConfig struct {
	Interval string `mapstructure:"interval" yaml:"interval"`
}

// ProxyRule forwards every request whose path starts with Prefix to Target.
// The outbound Host header is the target's unless PreserveHost is set.
type ProxyRule struct {
	Prefix       string `mapstructure:"prefix" yaml:"prefix"`
	Target       string `mapstructure:"target" yaml:"target"`
	PreserveHost bool   `mapstructure:"preserve_host" yaml:"preserve_host"`
}

type ProxyConfig struct {
	Rules            []ProxyRule `mapstructure:"rules" yaml:"rules"`
	FailureThreshold int         `mapstructure:"failure_threshold" yaml:"failure_threshold"`
	ResetTimeout     string      `mapstructure:"reset_timeout" yaml:"reset_timeout"`
}

// ClientConfig holds the values the page bootstrap applies on every load.
type ClientConfig struct {
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	MountPoint string `mapstructure:"mount_point" yaml:"mount_point"`
}

type StaticConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

type Config struct {
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	HealthCheck HealthCheckConfig `mapstructure:"health_check" yaml:"health_check"`
	Proxy       ProxyConfig       `mapstructure:"proxy" yaml:"proxy"`
	Client      ClientConfig      `mapstructure:"client" yaml:"client"`
	Static      StaticConfig      `mapstructure:"static" yaml:"static"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
}

// Default returns the configuration used when no file or environment
// override is present.
func Default() *Config {
	rules := make([]ProxyRule, 0, len(DefaultPrefixes))
	for _, prefix := range DefaultPrefixes {
		rules = append(rules, ProxyRule{Prefix: prefix, Target: DefaultBackendOrigin})
	}

	return &Config{
		Server:      ServerConfig{Address: DefaultAddress, Environment: EnvDev},
		HealthCheck: HealthCheckConfig{Interval: DefaultHealthInterval},
		Proxy: ProxyConfig{
			Rules:            rules,
			FailureThreshold: DefaultFailureThreshold,
			ResetTimeout:     DefaultResetTimeout,
		},
		Client:  ClientConfig{BaseURL: DefaultBaseURL, MountPoint: DefaultMountPoint},
		Logging: LoggingConfig{Level: LogLevelInfo},
	}
}

// Load reads configFile, or config.yaml from ./config and . when configFile
// is empty, then applies environment overrides and validates the result.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Debug("config file not found, using defaults and environment variables")
	} else {
		slog.Debug("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := Default()

	rules := make([]map[string]interface{}, 0, len(def.Proxy.Rules))
	for _, r := range def.Proxy.Rules {
		rules = append(rules, map[string]interface{}{
			"prefix":        r.Prefix,
			"target":        r.Target,
			"preserve_host": r.PreserveHost,
		})
	}

	v.SetDefault("server.address", def.Server.Address)
	v.SetDefault("server.environment", def.Server.Environment)
	v.SetDefault("health_check.interval", def.HealthCheck.Interval)
	v.SetDefault("proxy.rules", rules)
	v.SetDefault("proxy.failure_threshold", def.Proxy.FailureThreshold)
	v.SetDefault("proxy.reset_timeout", def.Proxy.ResetTimeout)
	v.SetDefault("client.base_url", def.Client.BaseURL)
	v.SetDefault("client.mount_point", def.Client.MountPoint)
	v.SetDefault("static.dir", def.Static.Dir)
	v.SetDefault("logging.level", def.Logging.Level)
}

// HealthInterval returns the parsed health check interval. Call after Validate.
func (c *Config) HealthInterval() time.Duration {
	d, _ := time.ParseDuration(c.HealthCheck.Interval)
	return d
}

// BreakerResetTimeout returns the parsed circuit reset timeout. Call after Validate.
func (c *Config) BreakerResetTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Proxy.ResetTimeout)
	return d
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server, validation.Required),
		validation.Field(&c.Logging, validation.Required),
		validation.Field(&c.HealthCheck, validation.Required),
		validation.Field(&c.Proxy, validation.Required),
		validation.Field(&c.Client, validation.Required),
	)
}

func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Environment,
			validation.Required,
			validation.In(EnvDev, EnvStaging, EnvProd),
		),
		validation.Field(&s.Address,
			validation.Required,
			validation.By(validateHostPort),
		),
	)
}

func (l LoggingConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level,
			validation.Required,
			validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
		),
	)
}

func (h HealthCheckConfig) Validate() error {
	return validation.ValidateStruct(&h,
		validation.Field(&h.Interval,
			validation.Required,
			validation.By(validateDuration),
		),
	)
}

func (p ProxyConfig) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Rules,
			validation.Required,
			validation.Length(1, 0),
		),
		validation.Field(&p.FailureThreshold,
			validation.Required,
			validation.Min(1),
		),
		validation.Field(&p.ResetTimeout,
			validation.Required,
			validation.By(validateDuration),
		),
	)
}

func (r ProxyRule) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Prefix,
			validation.Required,
			validation.By(validatePrefix),
		),
		validation.Field(&r.Target,
			validation.Required,
			validation.By(validateServerURL),
		),
	)
}

func (c ClientConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL,
			validation.Required,
			validation.By(validatePrefix),
		),
		validation.Field(&c.MountPoint,
			validation.Required,
			validation.Match(mountPointPattern).Error("must be an id selector such as #app"),
		),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	if d <= 0 {
		return validation.NewError("validation_invalid_duration", "must be positive")
	}

	return nil
}

func validatePrefix(value interface{}) error {
	prefix, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if !strings.HasPrefix(prefix, "/") {
		return validation.NewError("validation_invalid_prefix", "must start with /")
	}

	return nil
}

func validateServerURL(value interface{}) error {
	serverURL, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if serverURL == "" {
		return validation.NewError("validation_empty_url", "server URL cannot be empty")
	}

	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}
