package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/taskplan/api/schedule"
	"github.com/kilianp07/taskplan/connectors/remote"
	"github.com/kilianp07/taskplan/core/metrics"
	"github.com/kilianp07/taskplan/core/runlog"
	"github.com/kilianp07/taskplan/core/scheduler"
	"github.com/kilianp07/taskplan/infra/mqtt"
)

// EnvPrefix marks environment overrides, e.g. K_SCHEDULER__HORIZON=14.
const EnvPrefix = "K_"

type Config struct {
	Scheduler scheduler.Config `json:"scheduler"`
	HTTP      schedule.Config  `json:"http"`
	MQTT      mqtt.Config      `json:"mqtt"`
	Metrics   metrics.Config   `json:"metrics"`
	Logging   runlog.Config    `json:"logging"`
	Log       LogConfig        `json:"log"`
	Sentry    SentryConfig     `json:"sentry"`
	Remote    remote.Config    `json:"remote"`
}

// Load reads the YAML or JSON file at path, applies environment overrides,
// fills defaults and validates every section. An empty path loads defaults
// and environment overrides only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills unset fields of every section.
func (c *Config) SetDefaults() {
	c.Scheduler.SetDefaults()
	c.HTTP.SetDefaults()
	c.MQTT.SetDefaults()
	c.Logging.SetDefaults()
	c.Log.SetDefaults()
	c.Remote.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	checks := []struct {
		section string
		fn      func() error
	}{
		{"scheduler", c.Scheduler.Validate},
		{"http", c.HTTP.Validate},
		{"mqtt", c.MQTT.Validate},
		{"metrics", c.Metrics.Validate},
		{"logging", c.Logging.Validate},
		{"log", c.Log.Validate},
		{"sentry", c.Sentry.Validate},
		{"remote", c.Remote.Validate},
	}
	for _, ch := range checks {
		if err := ch.fn(); err != nil {
			return fmt.Errorf("%s: %w", ch.section, err)
		}
	}
	return nil
}
