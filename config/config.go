package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Server ServerConfig
	Collab CollabConfig
}

type ServerConfig struct {
	Port         int
	ReadTimeout  int // Seconds
	WriteTimeout int // Seconds
}

type CollabConfig struct {
	SaveDebounceMs  int // Quiet period before a debounced save lands
	SendBufferSize  int // Per-client outbound frame buffer
	ShutdownTimeout int // Seconds to wait for the final flush
}

// Load builds the configuration from defaults overridden by environment
// variables (prefix COEDIT, e.g. COEDIT_SERVER_PORT).
func Load() (*AppConfig, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvPrefix("COEDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Collab.SaveDebounceMs <= 0 {
		return fmt.Errorf("save debounce must be positive, got %d", c.Collab.SaveDebounceMs)
	}
	return nil
}
