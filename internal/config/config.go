package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix marks environment variables that override the config file
const EnvPrefix = "AUTOSAVE_"

// nestedSections are config groups two levels deep; their env names need a
// second separator.
var nestedSections = []string{"upstream.breaker"}

// envKey maps an environment variable to a koanf key:
// AUTOSAVE_UPSTREAM_CSRF_TOKEN -> upstream.csrf_token,
// AUTOSAVE_UPSTREAM_BREAKER_MAX_REQUESTS -> upstream.breaker.max_requests
func envKey(s string) string {
	key := strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
	for _, section := range nestedSections {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + strings.TrimPrefix(key, section+"_")
		}
	}
	return key
}

// DefaultFormDelay is the quiet period used by generated configs
const DefaultFormDelay = 2 * time.Second

// Config represents the application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server" koanf:"server"`
	Upstream      UpstreamConfig      `yaml:"upstream" koanf:"upstream"`
	Forms         []FormConfig        `yaml:"forms" koanf:"forms" validate:"dive"`
	Notifications NotificationsConfig `yaml:"notifications" koanf:"notifications"`
	Feed          FeedConfig          `yaml:"feed" koanf:"feed"`
	Stats         StatsConfig         `yaml:"stats" koanf:"stats"`
	Idle          IdleConfig          `yaml:"idle" koanf:"idle"`
	Log           LogConfig           `yaml:"log" koanf:"log"`

	// ConfigPath is the path to the config file (not serialized)
	ConfigPath string `yaml:"-" koanf:"-"`
}

// ServerConfig represents the local gateway listener
type ServerConfig struct {
	Port           int      `yaml:"port" koanf:"port" validate:"min=1,max=65535"`
	Host           string   `yaml:"host" koanf:"host"`
	AllowedOrigins []string `yaml:"allowed_origins" koanf:"allowed_origins"`
	SaveBufferSize int      `yaml:"save_buffer_size" koanf:"save_buffer_size" validate:"min=1"`
}

// UpstreamConfig represents the admin backend that receives saves
type UpstreamConfig struct {
	BaseURL       string        `yaml:"base_url" koanf:"base_url" validate:"required,url"`
	CSRFToken     string        `yaml:"csrf_token,omitempty" koanf:"csrf_token"`
	SessionCookie string        `yaml:"session_cookie,omitempty" koanf:"session_cookie"`
	Timeout       time.Duration `yaml:"timeout" koanf:"timeout" validate:"gt=0"`
	Breaker       BreakerConfig `yaml:"breaker" koanf:"breaker"`
}

// BreakerConfig configures the circuit breaker around save requests
type BreakerConfig struct {
	Enabled          bool          `yaml:"enabled" koanf:"enabled"`
	MaxRequests      uint32        `yaml:"max_requests" koanf:"max_requests"`
	Interval         time.Duration `yaml:"interval" koanf:"interval"`
	Timeout          time.Duration `yaml:"timeout" koanf:"timeout"`
	FailureThreshold float64       `yaml:"failure_threshold" koanf:"failure_threshold" validate:"gte=0,lte=1"`
	MinRequests      uint32        `yaml:"min_requests" koanf:"min_requests"`
}

// FormConfig represents one auto-saved form
type FormConfig struct {
	ID      string        `yaml:"id" koanf:"id" validate:"required"`
	SaveURL string        `yaml:"save_url" koanf:"save_url" validate:"required"`
	Delay   time.Duration `yaml:"delay" koanf:"delay" validate:"gt=0"`
	Fields  []string      `yaml:"fields,omitempty" koanf:"fields"`
}

// NotificationsConfig represents banner timing
type NotificationsConfig struct {
	DefaultDuration     time.Duration `yaml:"default_duration" koanf:"default_duration" validate:"gt=0"`
	SaveSuccessDuration time.Duration `yaml:"save_success_duration" koanf:"save_success_duration" validate:"gt=0"`
}

// FeedConfig represents the order-update WebSocket feed
type FeedConfig struct {
	Enabled           bool          `yaml:"enabled" koanf:"enabled"`
	URL               string        `yaml:"url" koanf:"url" validate:"required_if=Enabled true"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay" koanf:"reconnect_delay" validate:"gt=0"`
	MaxReconnectDelay time.Duration `yaml:"max_reconnect_delay" koanf:"max_reconnect_delay" validate:"gtefield=ReconnectDelay"`
	PingInterval      time.Duration `yaml:"ping_interval" koanf:"ping_interval" validate:"gt=0"`
}

// StatsConfig represents the dashboard stats poller
type StatsConfig struct {
	Enabled  bool          `yaml:"enabled" koanf:"enabled"`
	Path     string        `yaml:"path" koanf:"path"`
	Interval time.Duration `yaml:"interval" koanf:"interval" validate:"gt=0"`
}

// IdleConfig represents the inactivity logout warning
type IdleConfig struct {
	Enabled   bool          `yaml:"enabled" koanf:"enabled"`
	Timeout   time.Duration `yaml:"timeout" koanf:"timeout" validate:"gt=0"`
	Grace     time.Duration `yaml:"grace" koanf:"grace" validate:"gt=0"`
	LogoutURL string        `yaml:"logout_url" koanf:"logout_url"`
}

// LogConfig represents logging
type LogConfig struct {
	Level       string `yaml:"level" koanf:"level" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development" koanf:"development"`
	BufferSize  int    `yaml:"buffer_size" koanf:"buffer_size" validate:"min=1"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8090,
			Host:           "127.0.0.1",
			SaveBufferSize: 50,
		},
		Upstream: UpstreamConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 15 * time.Second,
			Breaker: BreakerConfig{
				Enabled:          false,
				MaxRequests:      5,
				Interval:         30 * time.Second,
				Timeout:          60 * time.Second,
				FailureThreshold: 0.8,
				MinRequests:      5,
			},
		},
		Forms: []FormConfig{},
		Notifications: NotificationsConfig{
			DefaultDuration:     5 * time.Second,
			SaveSuccessDuration: 2 * time.Second,
		},
		Feed: FeedConfig{
			URL:               "ws://localhost:8000/ws/orders/",
			ReconnectDelay:    1 * time.Second,
			MaxReconnectDelay: 30 * time.Second,
			PingInterval:      30 * time.Second,
		},
		Stats: StatsConfig{
			Path:     "/admin-dashboard/ajax/get-order-stats/",
			Interval: 2 * time.Minute,
		},
		Idle: IdleConfig{
			Timeout:   29 * time.Minute,
			Grace:     60 * time.Second,
			LogoutURL: "/admin-dashboard/profile/logout/",
		},
		Log: LogConfig{
			Level:      "info",
			BufferSize: 500,
		},
	}
}

// SearchPaths are tried in order when no config path is given
var SearchPaths = []string{
	"autosave.yaml",
	"configs/autosave.yaml",
	"/etc/autosaved/autosave.yaml",
}

// Load reads configuration from path (or the first existing SearchPaths
// entry when path is empty) over the defaults, then applies AUTOSAVE_*
// environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = findConfig()
	}

	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
			cfg.ConfigPath = path
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return cfg, nil
}

func findConfig() string {
	for _, p := range SearchPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Save writes the configuration to the given YAML file path
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and that form ids are unique
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	seen := make(map[string]bool, len(c.Forms))
	for _, f := range c.Forms {
		if seen[f.ID] {
			return fmt.Errorf("invalid config: duplicate form id %q", f.ID)
		}
		seen[f.ID] = true
	}
	return nil
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ResolveURL joins a path onto the upstream base URL. Absolute URLs are
// returned unchanged.
func (u UpstreamConfig) ResolveURL(p string) string {
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return p
	}
	return strings.TrimRight(u.BaseURL, "/") + "/" + strings.TrimLeft(p, "/")
}
