package scheduler

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/taskplan/core/model"
)

const (
	// FinderLinear scans the timeline backward from the deadline.
	FinderLinear = "linear"
	// FinderDisjointSet jumps to the latest free slot through a union-find index.
	FinderDisjointSet = "disjoint_set"
)

// Config defines scheduling parameters loaded from configuration.
type Config struct {
	// Horizon is the number of day slots available. Defaults to 31.
	Horizon int `json:"horizon" yaml:"horizon"`
	// SlotFinder selects the free slot search: "linear" or "disjoint_set".
	SlotFinder string `json:"slot_finder" yaml:"slot_finder"`
	// Audit compares every greedy result with the LP optimum and logs gaps.
	Audit bool `json:"audit" yaml:"audit"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Horizon == 0 {
		c.Horizon = model.DefaultHorizon
	}
	if c.SlotFinder == "" {
		c.SlotFinder = FinderLinear
	}
}

// Validate checks the horizon and slot finder.
func (c Config) Validate() error {
	if c.Horizon <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidHorizon, c.Horizon)
	}
	switch c.SlotFinder {
	case FinderLinear, FinderDisjointSet:
	default:
		return fmt.Errorf("unknown slot finder %q", c.SlotFinder)
	}
	return nil
}

// LoadConfig loads a Config from a JSON or YAML file.
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	var cfg Config
	switch ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	default:
		return Config{}, fmt.Errorf("unsupported config format: %s", ext)
	}
	return cfg, err
}

// DecodeConfig reads from r to decode a Config.
func DecodeConfig(r io.Reader, format string) (Config, error) {
	var cfg Config
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
			return cfg, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported format: %s", format)
	}
	return cfg, nil
}
