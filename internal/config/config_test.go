package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/satriahrh/jungo-bridge/domain"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key-from-legacy-env")
	t.Setenv("UNO_PORT", "")
	t.Setenv("UNO_BAUD", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Pipeline.Debounce != 3*time.Second {
		t.Errorf("Expected 3s debounce, got %v", cfg.Pipeline.Debounce)
	}
	if cfg.Pipeline.ReconnectBackoff != 3*time.Second {
		t.Errorf("Expected 3s backoff, got %v", cfg.Pipeline.ReconnectBackoff)
	}
	if cfg.Transport.Baud != 9600 || cfg.Transport.ResetDelay != 2*time.Second {
		t.Errorf("Unexpected transport defaults %+v", cfg.Transport)
	}
	if cfg.Vision.APIKey != "key-from-legacy-env" {
		t.Errorf("Expected legacy GEMINI_API_KEY to be used, got %q", cfg.Vision.APIKey)
	}
	if cfg.Media.Prefix != "captured" {
		t.Errorf("Expected captured prefix, got %q", cfg.Media.Prefix)
	}
}

func TestLoad_FileAndEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	yaml := `
transport:
  kind: tcp
  address: 10.0.0.5:7000
pipeline:
  debounce: 5s
vision:
  provider: mock
camera:
  driver: file
  file: /tmp/sample.jpg
store:
  driver: memory
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("BRIDGE_PIPELINE_DEBOUNCE", "7s")
	t.Setenv("BRIDGE_PIPELINE_MAX_IN_FLIGHT", "2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Transport.Kind != "tcp" || cfg.Transport.Address != "10.0.0.5:7000" {
		t.Errorf("File values not applied: %+v", cfg.Transport)
	}
	if cfg.Pipeline.Debounce != 7*time.Second {
		t.Errorf("Env should override file, got %v", cfg.Pipeline.Debounce)
	}
	if cfg.Pipeline.MaxInFlight != 2 {
		t.Errorf("Expected max in flight 2, got %d", cfg.Pipeline.MaxInFlight)
	}
	if cfg.Camera.Driver != "file" || cfg.Store.Driver != "memory" {
		t.Errorf("Unexpected camera/store %+v %+v", cfg.Camera, cfg.Store)
	}
}

func TestLoad_LegacyPortEnv(t *testing.T) {
	t.Setenv("BRIDGE_VISION_PROVIDER", "mock")
	t.Setenv("UNO_PORT", "/dev/ttyUSB3")
	t.Setenv("UNO_BAUD", "115200")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Transport.Port != "/dev/ttyUSB3" || cfg.Transport.Baud != 115200 {
		t.Errorf("Legacy env not applied: %+v", cfg.Transport)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	if !errors.Is(err, domain.ErrConfig) {
		t.Errorf("Expected ErrConfig, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Transport: Transport{Kind: "serial", Port: "/dev/ttyACM0", Baud: 9600},
			Pipeline:  Pipeline{Debounce: time.Second, RunTimeout: time.Second, LookupTimeout: time.Second, ReconnectBackoff: time.Second, MaxInFlight: 1},
			Camera:    Camera{Driver: "command", Command: "rpicam-still"},
			Vision:    Vision{Provider: "mock"},
			Store:     Store{Driver: "memory"},
			Media:     Media{Dir: "media"},
			Log:       Log{Level: "info", Format: "json"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"unknown transport", func(c *Config) { c.Transport.Kind = "bluetooth" }, true},
		{"websocket without url", func(c *Config) { c.Transport.Kind = "websocket" }, true},
		{"zero debounce", func(c *Config) { c.Pipeline.Debounce = 0 }, true},
		{"gemini without key", func(c *Config) { c.Vision.Provider = "gemini" }, true},
		{"gemini with key", func(c *Config) { c.Vision.Provider = "gemini"; c.Vision.APIKey = "k" }, false},
		{"file camera without file", func(c *Config) { c.Camera.Driver = "file" }, true},
		{"unknown store", func(c *Config) { c.Store.Driver = "postgres" }, true},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrConfig) {
				t.Errorf("Expected ErrConfig, got %v", err)
			}
		})
	}
}
