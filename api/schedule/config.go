package schedule

import (
	"errors"
	"strings"
)

// Config defines the HTTP API settings.
type Config struct {
	Enabled bool   `json:"enabled"`
	Address string `json:"address"`
	// Token protects the read APIs; an empty token disables the check.
	Token        string   `json:"token"`
	CORSOrigins  []string `json:"cors_origins"`
	MaxBodyBytes int64    `json:"max_body_bytes"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = ":5000"
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 1 << 20
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Enabled && strings.TrimSpace(c.Address) == "" {
		return errors.New("http.address required")
	}
	for _, o := range c.CORSOrigins {
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return errors.New("http.cors_origins entries must be * or an http(s) origin")
		}
	}
	return nil
}
