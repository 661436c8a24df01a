package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/satriahrh/jungo-bridge/domain"
)

// EnvPrefix is prepended to every environment override, e.g.
// BRIDGE_PIPELINE_DEBOUNCE=5s.
const EnvPrefix = "BRIDGE"

type Transport struct {
	Kind        string        `mapstructure:"kind"` // serial, tcp or websocket
	Port        string        `mapstructure:"port"`
	Baud        int           `mapstructure:"baud"`
	ResetDelay  time.Duration `mapstructure:"reset_delay"`
	Address     string        `mapstructure:"address"`
	URL         string        `mapstructure:"url"`
	DeviceID    string        `mapstructure:"device_id"`
	TokenSecret string        `mapstructure:"token_secret"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
}

type Pipeline struct {
	Debounce         time.Duration `mapstructure:"debounce"`
	RunTimeout       time.Duration `mapstructure:"run_timeout"`
	LookupTimeout    time.Duration `mapstructure:"lookup_timeout"`
	ReconnectBackoff time.Duration `mapstructure:"reconnect_backoff"`
	MaxInFlight      int           `mapstructure:"max_in_flight"`
}

type Camera struct {
	Driver  string        `mapstructure:"driver"` // command or file
	Command string        `mapstructure:"command"`
	Args    []string      `mapstructure:"args"`
	Device  string        `mapstructure:"device"`
	File    string        `mapstructure:"file"`
	Warmup  bool          `mapstructure:"warmup"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type Vision struct {
	Provider        string        `mapstructure:"provider"` // gemini or mock
	APIKey          string        `mapstructure:"api_key"`
	Model           string        `mapstructure:"model"`
	Temperature     float32       `mapstructure:"temperature"`
	MaxOutputTokens int           `mapstructure:"max_output_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type Store struct {
	Driver        string `mapstructure:"driver"` // sqlite, mongo or memory
	SQLitePath    string `mapstructure:"sqlite_path"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
}

type Media struct {
	Dir    string `mapstructure:"dir"`
	Prefix string `mapstructure:"prefix"`
}

type HTTP struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// Config is the bridge process configuration
type Config struct {
	Transport Transport `mapstructure:"transport"`
	Pipeline  Pipeline  `mapstructure:"pipeline"`
	Camera    Camera    `mapstructure:"camera"`
	Vision    Vision    `mapstructure:"vision"`
	Store     Store     `mapstructure:"store"`
	Media     Media     `mapstructure:"media"`
	HTTP      HTTP      `mapstructure:"http"`
	Log       Log       `mapstructure:"log"`
}

var defaults = map[string]any{
	"transport.kind":         "serial",
	"transport.port":         "/dev/ttyACM0",
	"transport.baud":         9600,
	"transport.reset_delay":  "2s",
	"transport.address":      "127.0.0.1:7000",
	"transport.url":          "",
	"transport.device_id":    "uno",
	"transport.token_secret": "",
	"transport.token_ttl":    "1h",

	"pipeline.debounce":          "3s",
	"pipeline.run_timeout":       "60s",
	"pipeline.lookup_timeout":    "5s",
	"pipeline.reconnect_backoff": "3s",
	"pipeline.max_in_flight":     8,

	"camera.driver":  "command",
	"camera.command": "rpicam-still",
	"camera.args":    []string{},
	"camera.device":  "",
	"camera.file":    "",
	"camera.warmup":  true,
	"camera.timeout": "10s",

	"vision.provider":          "gemini",
	"vision.api_key":           "",
	"vision.model":             "gemini-2.0-flash",
	"vision.temperature":       0.2,
	"vision.max_output_tokens": 512,
	"vision.timeout":           "30s",

	"store.driver":         "sqlite",
	"store.sqlite_path":    "db.sqlite3",
	"store.mongo_uri":      "mongodb://localhost:27017",
	"store.mongo_database": "jungo",

	"media.dir":    "media",
	"media.prefix": "captured",

	"http.enabled": false,
	"http.addr":    ":8090",

	"log.level":  "info",
	"log.format": "json",
}

// legacyEnv maps keys to the environment names the embedded scripts used.
var legacyEnv = map[string]string{
	"transport.port":       "UNO_PORT",
	"transport.baud":       "UNO_BAUD",
	"vision.api_key":       "GEMINI_API_KEY",
	"store.mongo_uri":      "MONGODB_URI",
	"store.mongo_database": "MONGODB_DATABASE",
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, in increasing precedence. An empty path looks for
// config.yml in the working directory and /etc/jungo-bridge.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("%w: bind %s: %w", domain.ErrConfig, key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/jungo-bridge")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: read config: %w", domain.ErrConfig, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: decode config: %w", domain.ErrConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the bridge cannot start with.
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	switch c.Transport.Kind {
	case "serial":
		check(c.Transport.Port != "", "transport.port is required for serial")
		check(c.Transport.Baud > 0, "transport.baud must be positive, got %d", c.Transport.Baud)
	case "tcp":
		check(c.Transport.Address != "", "transport.address is required for tcp")
	case "websocket":
		check(c.Transport.URL != "", "transport.url is required for websocket")
	default:
		check(false, "unknown transport.kind %q", c.Transport.Kind)
	}
	check(c.Transport.ResetDelay >= 0, "transport.reset_delay must not be negative")

	check(c.Pipeline.Debounce > 0, "pipeline.debounce must be positive")
	check(c.Pipeline.RunTimeout > 0, "pipeline.run_timeout must be positive")
	check(c.Pipeline.LookupTimeout > 0, "pipeline.lookup_timeout must be positive")
	check(c.Pipeline.ReconnectBackoff > 0, "pipeline.reconnect_backoff must be positive")
	check(c.Pipeline.MaxInFlight > 0, "pipeline.max_in_flight must be positive")

	switch c.Camera.Driver {
	case "command":
		check(c.Camera.Command != "", "camera.command is required")
	case "file":
		check(c.Camera.File != "", "camera.file is required for the file driver")
	default:
		check(false, "unknown camera.driver %q", c.Camera.Driver)
	}

	switch c.Vision.Provider {
	case "gemini":
		check(c.Vision.APIKey != "", "vision.api_key (or GEMINI_API_KEY) is required for gemini")
	case "mock":
	default:
		check(false, "unknown vision.provider %q", c.Vision.Provider)
	}
	check(c.Vision.Temperature >= 0 && c.Vision.Temperature <= 1, "vision.temperature must be between 0 and 1")

	switch c.Store.Driver {
	case "sqlite":
		check(c.Store.SQLitePath != "", "store.sqlite_path is required for sqlite")
	case "mongo":
		check(c.Store.MongoURI != "", "store.mongo_uri is required for mongo")
	case "memory":
	default:
		check(false, "unknown store.driver %q", c.Store.Driver)
	}

	check(c.Media.Dir != "", "media.dir is required")

	switch c.Log.Format {
	case "json", "console":
	default:
		check(false, "unknown log.format %q", c.Log.Format)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrConfig, strings.Join(problems, "; "))
	}
	return nil
}
