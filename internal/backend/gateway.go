package backend

import (
	"fmt"
	"strings"
)

// Config holds the service URL and the anonymous public key.
type Config struct {
	URL     string
	AnonKey string
}

// IsConfigured is true iff both values are present and non-empty.
func (c Config) IsConfigured() bool {
	return len(c.missing()) == 0
}

func (c Config) missing() []string {
	var missing []string
	if strings.TrimSpace(c.URL) == "" {
		missing = append(missing, EnvURL)
	}
	if strings.TrimSpace(c.AnonKey) == "" {
		missing = append(missing, EnvAnonKey)
	}
	return missing
}

// Builder constructs the drivers behind a Handle. It only runs for a configured Gateway.
type Builder func(cfg Config) (*Handle, error)

// Gateway is built once at startup and read by everything after that.
type Gateway struct {
	cfg    Config
	handle *Handle
}

// NewGateway builds the handle when cfg is configured. An unconfigured gateway is
// valid: it never calls build and Handle reports a *ConfigurationError.
func NewGateway(cfg Config, build Builder) (*Gateway, error) {
	g := &Gateway{cfg: cfg}
	if !cfg.IsConfigured() {
		return g, nil
	}

	handle, err := build(cfg)
	if err != nil {
		return nil, fmt.Errorf("building backend handle: %w", err)
	}
	g.handle = handle
	return g, nil
}

func (g *Gateway) IsConfigured() bool {
	return g.handle != nil
}

// Handle returns the shared handle, or a *ConfigurationError when unconfigured.
func (g *Gateway) Handle() (*Handle, error) {
	if g.handle == nil {
		return nil, &ConfigurationError{Missing: g.cfg.missing()}
	}
	return g.handle, nil
}

// Missing lists the environment values that still need to be set.
func (g *Gateway) Missing() []string {
	return g.cfg.missing()
}
